package diff

import (
	"sort"
	"strings"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Options controls diff behavior.
type Options struct {
	// TrackDisplayName enables reporting model_name changes for existing records.
	// Display names are scraped text and churn without meaning, so the default ignores them.
	TrackDisplayName bool
}

// Compute compares freshly fetched records of one source against the
// records of that source already persisted.
func Compute(source string, fetched, existing []model.Record, opts Options) *ChangeSet {
	cs := &ChangeSet{Source: source}

	prior := make(map[string]*model.Record, len(existing))
	for i := range existing {
		if existing[i].Source == source {
			prior[existing[i].ID] = &existing[i]
		}
	}

	seen := make(map[string]bool, len(fetched))
	for i := range fetched {
		r := fetched[i]
		seen[r.ID] = true

		old, ok := prior[r.ID]
		if !ok {
			cs.Added = append(cs.Added, r)
			continue
		}

		changes := computeFieldChanges(old, &r, opts)
		if len(changes) > 0 {
			cs.Updated = append(cs.Updated, RecordUpdate{ID: r.ID, Record: r, Changes: changes})
		} else {
			cs.Unchanged++
		}
	}

	for id, r := range prior {
		if !seen[id] {
			cs.Removed = append(cs.Removed, *r)
		}
	}
	sort.Slice(cs.Removed, func(i, j int) bool { return cs.Removed[i].ID < cs.Removed[j].ID })

	return cs
}

type priceField struct {
	name string
	v    *float64
}

func pricingFields(p *model.Pricing, b *model.BatchPricing) []priceField {
	fields := []priceField{
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
	var batch model.BatchPricing
	if b != nil {
		batch = *b
	}
	return append(fields,
		priceField{"batch_pricing.input", batch.Input},
		priceField{"batch_pricing.output", batch.Output},
	)
}

func isPriceField(name string) bool {
	return strings.HasPrefix(name, "pricing.") || strings.HasPrefix(name, "batch_pricing.")
}

func computeFieldChanges(existing, fetched *model.Record, opts Options) []FieldChange {
	var changes []FieldChange

	if opts.TrackDisplayName && fetched.DisplayName != "" && existing.DisplayName != fetched.DisplayName {
		changes = append(changes, FieldChange{Field: "model_name", OldValue: existing.DisplayName, NewValue: fetched.DisplayName})
	}

	oldPrices := pricingFields(&existing.Pricing, existing.BatchPricing)
	newPrices := pricingFields(&fetched.Pricing, fetched.BatchPricing)
	for i := range oldPrices {
		if !equalFloat(oldPrices[i].v, newPrices[i].v) {
			changes = append(changes, FieldChange{
				Field:    oldPrices[i].name,
				OldValue: deref(oldPrices[i].v),
				NewValue: deref(newPrices[i].v),
			})
		}
	}

	if !equalInt(existing.ContextLength, fetched.ContextLength) {
		changes = append(changes, FieldChange{Field: "context_length", OldValue: deref(existing.ContextLength), NewValue: deref(fetched.ContextLength)})
	}
	if !equalInt(existing.MaxOutputTokens, fetched.MaxOutputTokens) {
		changes = append(changes, FieldChange{Field: "max_output_tokens", OldValue: deref(existing.MaxOutputTokens), NewValue: deref(fetched.MaxOutputTokens)})
	}
	if !equalBool(existing.IsOpenSource, fetched.IsOpenSource) {
		changes = append(changes, FieldChange{Field: "is_open_source", OldValue: deref(existing.IsOpenSource), NewValue: deref(fetched.IsOpenSource)})
	}

	// Capabilities: symmetric set diff (detect both additions and removals).
	if capabilitiesChanged(existing.Capabilities, fetched.Capabilities) {
		changes = append(changes, FieldChange{Field: "capabilities", OldValue: existing.Capabilities, NewValue: fetched.Capabilities})
	}

	return changes
}

// deref returns the pointed-to value, or nil for a nil pointer.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// capabilitiesChanged returns true if the two capability slices differ
// (additions or removals). Order-independent.
func capabilitiesChanged(existing, fetched []string) bool {
	set := make(map[string]bool, len(existing))
	for _, c := range existing {
		set[c] = true
	}
	for _, c := range fetched {
		if !set[c] {
			return true
		}
	}
	fSet := make(map[string]bool, len(fetched))
	for _, c := range fetched {
		fSet[c] = true
	}
	for _, c := range existing {
		if !fSet[c] {
			return true
		}
	}
	return false
}
