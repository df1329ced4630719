package model

import (
	"fmt"
	"strings"
	"time"
)

// DatabaseVersion is written to the root of every persisted database document.
const DatabaseVersion = "1.0"

// Pricing holds prices in USD per million tokens (or units).
// A nil field means the price is unknown, which is not the same as free.
type Pricing struct {
	Input       *float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output      *float64 `json:"output,omitempty" yaml:"output,omitempty"`
	CachedInput *float64 `json:"cached_input,omitempty" yaml:"cached_input,omitempty"`
	CachedWrite *float64 `json:"cached_write,omitempty" yaml:"cached_write,omitempty"`
	Reasoning   *float64 `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	ImageInput  *float64 `json:"image_input,omitempty" yaml:"image_input,omitempty"`
	ImageOutput *float64 `json:"image_output,omitempty" yaml:"image_output,omitempty"`
	AudioInput  *float64 `json:"audio_input,omitempty" yaml:"audio_input,omitempty"`
	AudioOutput *float64 `json:"audio_output,omitempty" yaml:"audio_output,omitempty"`
	Embedding   *float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// BatchPricing holds discounted batch-processing prices.
type BatchPricing struct {
	Input  *float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output *float64 `json:"output,omitempty" yaml:"output,omitempty"`
}

// Record is one priced model offering from one source.
type Record struct {
	ID               string        `json:"id" yaml:"-"`
	Source           string        `json:"provider" yaml:"-"`
	SourceModelID    string        `json:"model_id" yaml:"model_id"`
	DisplayName      string        `json:"model_name" yaml:"model_name"`
	Pricing          Pricing       `json:"pricing" yaml:"pricing"`
	BatchPricing     *BatchPricing `json:"batch_pricing,omitempty" yaml:"batch_pricing,omitempty"`
	ContextLength    *int          `json:"context_length,omitempty" yaml:"context_length,omitempty"`
	MaxOutputTokens  *int          `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	IsOpenSource     *bool         `json:"is_open_source,omitempty" yaml:"is_open_source,omitempty"`
	Capabilities     []string      `json:"capabilities" yaml:"capabilities"`
	InputModalities  []string      `json:"input_modalities" yaml:"-"`
	OutputModalities []string      `json:"output_modalities" yaml:"-"`
	LastUpdated      time.Time     `json:"last_updated" yaml:"-"`
}

// Key returns the metadata lookup key "{source}:{sourceModelId}".
func (r *Record) Key() string {
	return NewID(r.Source, r.SourceModelID)
}

// HasCapability reports whether the record carries the given capability tag.
func (r *Record) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Database is the root of the persisted model database.
type Database struct {
	Version     string    `json:"version"`
	LastRefresh time.Time `json:"last_refresh"`
	Models      []Record  `json:"models"`
}

// NewDatabase returns an empty database stamped with the given time.
func NewDatabase(now time.Time) *Database {
	return &Database{Version: DatabaseVersion, LastRefresh: now, Models: []Record{}}
}

// ProviderInfo summarizes one source in the persisted database.
type ProviderInfo struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	ModelCount  int        `json:"model_count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// NewID builds a record id from a source name and the source's own model id.
func NewID(source, sourceModelID string) string {
	return source + ":" + sourceModelID
}

// SplitID splits a record id into source and source model id.
// Only the first colon separates; model ids may contain colons themselves.
func SplitID(id string) (source, sourceModelID string, err error) {
	source, sourceModelID, ok := strings.Cut(id, ":")
	if !ok || source == "" || sourceModelID == "" {
		return "", "", fmt.Errorf("invalid model id %q: want {source}:{model_id}", id)
	}
	return source, sourceModelID, nil
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
