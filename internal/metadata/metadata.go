// Package metadata resolves context length, output-token limit, open-source
// status and pricing overrides for fetched records from three tiers: a
// static curated file, an external catalog, and user overrides.
package metadata

import "github.com/everstacklabs/modelprice/internal/model"

// PricingOverride replaces individual record prices. Nil fields are left alone.
type PricingOverride struct {
	Input       *float64 `json:"input,omitempty" yaml:"input,omitempty" validate:"omitempty,gte=0"`
	Output      *float64 `json:"output,omitempty" yaml:"output,omitempty" validate:"omitempty,gte=0"`
	CachedInput *float64 `json:"cached_input,omitempty" yaml:"cached_input,omitempty" validate:"omitempty,gte=0"`
}

func (p *PricingOverride) empty() bool {
	return p == nil || (p.Input == nil && p.Output == nil && p.CachedInput == nil)
}

// Metadata is a partial set of values for one model key. Nil means "no opinion".
type Metadata struct {
	ContextLength   *int             `json:"context_length,omitempty" yaml:"context_length,omitempty" validate:"omitempty,gt=0"`
	MaxOutputTokens *int             `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty" validate:"omitempty,gt=0"`
	IsOpenSource    *bool            `json:"is_open_source,omitempty" yaml:"is_open_source,omitempty"`
	Pricing         *PricingOverride `json:"pricing,omitempty" yaml:"pricing,omitempty"`
}

// IsZero reports whether m carries no values at all.
func (m Metadata) IsZero() bool {
	return m.ContextLength == nil && m.MaxOutputTokens == nil && m.IsOpenSource == nil && m.Pricing.empty()
}

// Merge combines tiers ordered from highest to lowest priority. Each field,
// including each pricing sub-field, takes the first non-nil value.
func Merge(tiers ...Metadata) Metadata {
	var out Metadata
	var pricing PricingOverride
	for _, t := range tiers {
		out.ContextLength = firstInt(out.ContextLength, t.ContextLength)
		out.MaxOutputTokens = firstInt(out.MaxOutputTokens, t.MaxOutputTokens)
		if out.IsOpenSource == nil && t.IsOpenSource != nil {
			v := *t.IsOpenSource
			out.IsOpenSource = &v
		}
		if t.Pricing != nil {
			pricing.Input = firstFloat(pricing.Input, t.Pricing.Input)
			pricing.Output = firstFloat(pricing.Output, t.Pricing.Output)
			pricing.CachedInput = firstFloat(pricing.CachedInput, t.Pricing.CachedInput)
		}
	}
	if !pricing.empty() {
		out.Pricing = &pricing
	}
	return out
}

// FromRecord captures the metadata values an adapter already set on r.
func FromRecord(r *model.Record) Metadata {
	return Metadata{
		ContextLength:   r.ContextLength,
		MaxOutputTokens: r.MaxOutputTokens,
		IsOpenSource:    r.IsOpenSource,
	}
}

// Apply writes resolved metadata onto r. Pricing sub-fields are only
// written when present.
func Apply(r *model.Record, m Metadata) {
	r.ContextLength = m.ContextLength
	r.MaxOutputTokens = m.MaxOutputTokens
	r.IsOpenSource = m.IsOpenSource
	if m.Pricing == nil {
		return
	}
	if m.Pricing.Input != nil {
		r.Pricing.Input = model.Float64(*m.Pricing.Input)
	}
	if m.Pricing.Output != nil {
		r.Pricing.Output = model.Float64(*m.Pricing.Output)
	}
	if m.Pricing.CachedInput != nil {
		r.Pricing.CachedInput = model.Float64(*m.Pricing.CachedInput)
	}
}

// Copies so resolved values never alias tier data.
func firstInt(cur, next *int) *int {
	if cur != nil || next == nil {
		return cur
	}
	return model.Int(*next)
}

func firstFloat(cur, next *float64) *float64 {
	if cur != nil || next == nil {
		return cur
	}
	return model.Float64(*next)
}
