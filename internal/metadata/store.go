package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelprice/internal/fsutil"
)

// Tier is a keyed metadata source. Keys are "{source}:{sourceModelId}".
type Tier interface {
	Lookup(key string) (Metadata, bool)
}

// MapTier is an in-memory tier.
type MapTier map[string]Metadata

func (t MapTier) Lookup(key string) (Metadata, bool) {
	m, ok := t[key]
	return m, ok
}

// StaticStore is the curated local tier, read from a JSON or YAML file.
// The file is loaded on first use and cached until Invalidate.
type StaticStore struct {
	path string

	mu     sync.RWMutex
	loaded bool
	data   map[string]Metadata
}

// NewStaticStore creates a static tier backed by path. A missing file is an empty tier.
func NewStaticStore(path string) *StaticStore {
	return &StaticStore{path: path}
}

// Path returns the backing file path.
func (s *StaticStore) Path() string { return s.path }

func (s *StaticStore) Lookup(key string) (Metadata, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[key]
	return m, ok
}

// Len returns the number of keys in the tier.
func (s *StaticStore) Len() int {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Invalidate forces a reload on next lookup.
func (s *StaticStore) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.data = nil
	s.mu.Unlock()
}

func (s *StaticStore) ensureLoaded() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	data, err := readTierFile(s.path)
	if err != nil {
		slog.Error("failed to load static metadata", "path", s.path, "error", err)
		data = map[string]Metadata{}
	}
	s.data = data
	s.loaded = true
}

// readTierFile decodes a key→metadata document. YAML is used for .yaml and
// .yml files, JSON otherwise.
func readTierFile(path string) (map[string]Metadata, error) {
	if path == "" {
		return map[string]Metadata{}, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	data := map[string]Metadata{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return data, nil
}

// OverrideStore is the user-override tier: a JSON file written only through
// Apply/Delete and never touched by a refresh.
type OverrideStore struct {
	path     string
	validate *validator.Validate

	mu     sync.RWMutex
	loaded bool
	data   map[string]Metadata
}

// NewOverrideStore creates an override tier backed by path.
func NewOverrideStore(path string) *OverrideStore {
	return &OverrideStore{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Path returns the backing file path.
func (s *OverrideStore) Path() string { return s.path }

func (s *OverrideStore) Lookup(key string) (Metadata, bool) {
	if err := s.ensureLoaded(); err != nil {
		slog.Error("failed to load user overrides", "path", s.path, "error", err)
		return Metadata{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[key]
	return m, ok
}

// All returns a copy of every override.
func (s *OverrideStore) All() (map[string]Metadata, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Metadata, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

// Apply merges an RFC 7386 JSON merge patch into the override for key and
// persists the result. A null member removes that override field; an
// override left empty is deleted.
func (s *OverrideStore) Apply(key string, patch []byte) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return Metadata{}, err
	}

	current, err := json.Marshal(s.data[key])
	if err != nil {
		return Metadata{}, fmt.Errorf("encoding override: %w", err)
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return Metadata{}, &ValidationError{Key: key, Err: err}
	}

	var m Metadata
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Metadata{}, &ValidationError{Key: key, Err: err}
	}
	if err := s.validate.Struct(m); err != nil {
		return Metadata{}, &ValidationError{Key: key, Err: err}
	}
	if m.Pricing.empty() {
		m.Pricing = nil
	}

	next := make(map[string]Metadata, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	if m.IsZero() {
		delete(next, key)
	} else {
		next[key] = m
	}

	if err := s.save(next); err != nil {
		return Metadata{}, err
	}
	s.data = next
	slog.Info("saved user override", "key", key)
	return m, nil
}

// Delete removes the override for key. Deleting a missing key is a no-op.
func (s *OverrideStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}

	if _, ok := s.data[key]; !ok {
		return nil
	}
	next := make(map[string]Metadata, len(s.data))
	for k, v := range s.data {
		if k != key {
			next[k] = v
		}
	}
	if err := s.save(next); err != nil {
		return err
	}
	s.data = next
	slog.Info("deleted user override", "key", key)
	return nil
}

// Invalidate forces a reload on next use.
func (s *OverrideStore) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.data = nil
	s.mu.Unlock()
}

func (s *OverrideStore) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// loadLocked reads the file unless already loaded. s.mu must be held for
// writing; mutations load and save under one lock so an Invalidate cannot
// slip in between.
func (s *OverrideStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := readTierFile(s.path)
	if err != nil {
		return err
	}
	s.data = data
	s.loaded = true
	return nil
}

func (s *OverrideStore) save(data map[string]Metadata) error {
	if s.path == "" {
		return nil
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing overrides: %w", err)
	}
	return nil
}
