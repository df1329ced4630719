package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/everstacklabs/modelprice/internal/httpclient"
)

// DefaultCatalogURL is LiteLLM's community-maintained model catalog.
const DefaultCatalogURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// Entry is the part of an external catalog entry that enrichment reads.
type Entry struct {
	MaxInputTokens  *int
	MaxOutputTokens *int
	MaxTokens       *int
	IsOpenSource    *bool
}

func (e Entry) hasLimits() bool {
	return (e.MaxInputTokens != nil && *e.MaxInputTokens > 0) ||
		(e.MaxOutputTokens != nil && *e.MaxOutputTokens > 0)
}

// Metadata converts the entry into a tier value. The output limit falls
// back to max_tokens when max_output_tokens is absent.
func (e Entry) Metadata() Metadata {
	out := e.MaxOutputTokens
	if out == nil {
		out = e.MaxTokens
	}
	return Metadata{
		ContextLength:   e.MaxInputTokens,
		MaxOutputTokens: out,
		IsOpenSource:    e.IsOpenSource,
	}
}

// Snapshot is an immutable view of the external catalog.
type Snapshot struct {
	entries map[string]Entry
	keys    []string
}

// NewSnapshot builds a snapshot; keys iterate in sorted order.
func NewSnapshot(entries map[string]Entry) *Snapshot {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{entries: entries, keys: keys}
}

// ParseSnapshot decodes a catalog document: a JSON object mapping free-form
// keys to objects. Entries that are not objects are skipped and fields of
// the wrong type are ignored.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	entries := make(map[string]Entry, len(raw))
	for key, msg := range raw {
		var fields map[string]any
		if err := json.Unmarshal(msg, &fields); err != nil {
			continue
		}
		entries[key] = Entry{
			MaxInputTokens:  intField(fields, "max_input_tokens"),
			MaxOutputTokens: intField(fields, "max_output_tokens"),
			MaxTokens:       intField(fields, "max_tokens"),
			IsOpenSource:    boolField(fields, "is_open_source"),
		}
	}
	return NewSnapshot(entries), nil
}

func intField(fields map[string]any, name string) *int {
	f, ok := fields[name].(float64)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	v := int(f)
	return &v
}

func boolField(fields map[string]any, name string) *bool {
	b, ok := fields[name].(bool)
	if !ok {
		return nil
	}
	return &b
}

// Lookup returns the entry stored under key.
func (s *Snapshot) Lookup(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Keys returns all keys in sorted order. Callers must not modify the slice.
func (s *Snapshot) Keys() []string { return s.keys }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.keys) }

// CatalogSource provides the external tier.
type CatalogSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Invalidate()
}

// Catalog fetches the external catalog over HTTP once and keeps it for the
// life of the process. Failures are not cached, so the next call retries.
type Catalog struct {
	url     string
	timeout time.Duration
	client  *httpclient.Client

	mu       sync.Mutex
	snapshot *Snapshot
}

// NewCatalog creates a lazily-fetched catalog. An empty url selects
// DefaultCatalogURL; a zero timeout means 30s.
func NewCatalog(client *httpclient.Client, url string, timeout time.Duration) *Catalog {
	if url == "" {
		url = DefaultCatalogURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Catalog{url: url, timeout: timeout, client: client}
}

// Snapshot returns the cached catalog, fetching it on first use.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		return c.snapshot, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Get(ctx, c.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &CatalogUnavailableError{URL: c.url, Err: err}
	}

	snap, err := ParseSnapshot(resp.Body)
	if err != nil {
		return nil, &CatalogUnavailableError{URL: c.url, Err: err}
	}

	slog.Info("metadata catalog loaded", "entries", snap.Len(), "from_cache", resp.FromCache)
	c.snapshot = snap
	return snap, nil
}

// Invalidate drops the cached catalog so the next Snapshot refetches it.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()

	if err := c.client.Invalidate(c.url); err != nil {
		slog.Warn("dropping cached catalog response", "error", err)
	}
}
