// Package validate checks fetched records before they reach enrichment and storage.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Record is dropped
	SeverityWarning                 // Logged, record kept
)

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity
	Model    string
	Field    string
	Message  string
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s: %s", sev, i.Model, i.Field, i.Message)
}

// Result holds all validation issues.
type Result struct {
	Issues []Issue
}

// HasErrors returns true if there are any blocking errors.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

// Known capability values (warn on unknown, don't block).
var knownCapabilities = map[string]bool{
	model.CapText:            true,
	model.CapVision:          true,
	model.CapAudio:           true,
	model.CapVideo:           true,
	model.CapFile:            true,
	model.CapEmbedding:       true,
	model.CapImageGeneration: true,
	model.CapVideoGeneration: true,
	model.CapTTS:             true,
	model.CapReasoning:       true,
	model.CapToolUse:         true,
}

// maxPlausiblePrice bounds per-million prices; anything above is almost
// certainly a unit mix-up upstream.
const maxPlausiblePrice = 10_000.0

// ValidateRecord checks a single record fetched from source.
func ValidateRecord(r *model.Record, source string) *Result {
	res := &Result{}
	name := r.ID
	if name == "" {
		name = r.SourceModelID
	}
	add := func(sev Severity, field, msg string) {
		res.Issues = append(res.Issues, Issue{sev, name, field, msg})
	}

	// Required fields
	if r.SourceModelID == "" {
		add(SeverityError, "model_id", "required field is empty")
	}
	if r.Source != source {
		add(SeverityError, "provider", fmt.Sprintf("record belongs to %q, fetched from %q", r.Source, source))
	}
	if r.ID == "" {
		add(SeverityError, "id", "required field is empty")
	} else if r.SourceModelID != "" && r.ID != model.NewID(r.Source, r.SourceModelID) {
		add(SeverityError, "id", fmt.Sprintf("want %q", model.NewID(r.Source, r.SourceModelID)))
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		add(SeverityWarning, "model_name", "empty display name")
	}

	isEmbedding := r.HasCapability(model.CapEmbedding)

	// Pricing sanity
	for _, f := range prices(r) {
		if f.v == nil {
			continue
		}
		v := *f.v
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			add(SeverityError, f.name, "not a finite number")
		case v < 0:
			add(SeverityError, f.name, fmt.Sprintf("value %.6f is negative", v))
		case v > maxPlausiblePrice:
			add(SeverityWarning, f.name, fmt.Sprintf("value %.2f above %.0f per million", v, maxPlausiblePrice))
		}
	}
	if !isEmbedding && r.Pricing.Input != nil && *r.Pricing.Input > 0 && r.Pricing.Output != nil && *r.Pricing.Output == 0 {
		add(SeverityWarning, "pricing.output", "non-embedding model has zero output price")
	}

	// Limits sanity
	if r.ContextLength != nil && *r.ContextLength <= 0 {
		add(SeverityError, "context_length", fmt.Sprintf("value %d must be positive", *r.ContextLength))
	}
	if r.MaxOutputTokens != nil && *r.MaxOutputTokens <= 0 {
		add(SeverityError, "max_output_tokens", fmt.Sprintf("value %d must be positive", *r.MaxOutputTokens))
	}
	if r.ContextLength != nil && r.MaxOutputTokens != nil && *r.MaxOutputTokens > *r.ContextLength {
		add(SeverityWarning, "max_output_tokens",
			fmt.Sprintf("value %d exceeds context_length %d", *r.MaxOutputTokens, *r.ContextLength))
	}

	// Capability taxonomy
	for _, c := range r.Capabilities {
		if !knownCapabilities[c] {
			add(SeverityWarning, "capabilities", fmt.Sprintf("unknown capability %q", c))
		}
	}

	return res
}

type price struct {
	name string
	v    *float64
}

func prices(r *model.Record) []price {
	p := &r.Pricing
	out := []price{
		{"pricing.input", p.Input},
		{"pricing.output", p.Output},
		{"pricing.cached_input", p.CachedInput},
		{"pricing.cached_write", p.CachedWrite},
		{"pricing.reasoning", p.Reasoning},
		{"pricing.image_input", p.ImageInput},
		{"pricing.image_output", p.ImageOutput},
		{"pricing.audio_input", p.AudioInput},
		{"pricing.audio_output", p.AudioOutput},
		{"pricing.embedding", p.Embedding},
	}
	if r.BatchPricing != nil {
		out = append(out,
			price{"batch_pricing.input", r.BatchPricing.Input},
			price{"batch_pricing.output", r.BatchPricing.Output},
		)
	}
	return out
}

// Sanitize validates one source's batch. Records with errors are dropped and
// duplicate ids keep the last occurrence, in the position of that
// occurrence. minExpected, when positive, adds a warning for a batch that is
// suspiciously small.
func Sanitize(source string, records []model.Record, minExpected int) ([]model.Record, *Result) {
	res := &Result{}
	valid := make([]model.Record, 0, len(records))
	for i := range records {
		r := ValidateRecord(&records[i], source)
		res.Issues = append(res.Issues, r.Issues...)
		if !r.HasErrors() {
			valid = append(valid, records[i])
		}
	}

	last := make(map[string]int, len(valid))
	for i, r := range valid {
		last[r.ID] = i
	}
	kept := make([]model.Record, 0, len(last))
	for i, r := range valid {
		if last[r.ID] != i {
			res.Issues = append(res.Issues, Issue{SeverityWarning, r.ID, "id", "duplicate id, later record kept"})
			continue
		}
		kept = append(kept, r)
	}

	if minExpected > 0 && len(kept) < minExpected {
		res.Issues = append(res.Issues, Issue{SeverityWarning, source, "models",
			fmt.Sprintf("only %d models, expected at least %d", len(kept), minExpected)})
	}
	return kept, res
}

// FormatResult formats validation results for display.
func FormatResult(r *Result) string {
	if len(r.Issues) == 0 {
		return "Validation passed: no issues found."
	}

	var b strings.Builder
	errors := r.Errors()
	warnings := r.Warnings()

	if len(errors) > 0 {
		b.WriteString(fmt.Sprintf("Errors (%d):\n", len(errors)))
		for _, e := range errors {
			b.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}

	if len(warnings) > 0 {
		b.WriteString(fmt.Sprintf("Warnings (%d):\n", len(warnings)))
		for _, w := range warnings {
			b.WriteString(fmt.Sprintf("  %s\n", w))
		}
	}

	return b.String()
}
