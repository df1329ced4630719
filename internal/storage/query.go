package storage

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Filter selects records. Empty fields match everything; set fields are AND-ed.
type Filter struct {
	Source     string
	Capability string
	// Search is a case-insensitive substring of the display name.
	Search string
}

// Match reports whether r passes every set predicate.
func (f Filter) Match(r *model.Record) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Capability != "" && !r.HasCapability(f.Capability) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.DisplayName), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// SortKey names the field records are ordered by.
type SortKey string

const (
	SortByName          SortKey = "model_name"
	SortByInput         SortKey = "input"
	SortByOutput        SortKey = "output"
	SortByContextLength SortKey = "context_length"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort orders query results. The zero value sorts by name ascending.
type Sort struct {
	By    SortKey
	Order SortOrder
}

// ParseSort validates user-supplied sort parameters. Empty values take the
// defaults (model_name, asc); "name" is accepted for model_name.
func ParseSort(by, order string) (Sort, error) {
	s := Sort{By: SortByName, Order: Asc}
	switch SortKey(strings.ToLower(by)) {
	case "":
	case "name", SortByName:
		s.By = SortByName
	case SortByInput:
		s.By = SortByInput
	case SortByOutput:
		s.By = SortByOutput
	case SortByContextLength:
		s.By = SortByContextLength
	default:
		return Sort{}, fmt.Errorf("unknown sort key %q", by)
	}
	switch SortOrder(strings.ToLower(order)) {
	case "", Asc:
	case Desc:
		s.Order = Desc
	default:
		return Sort{}, fmt.Errorf("unknown sort order %q", order)
	}
	return s, nil
}

// Apply filters records and sorts the survivors. The input slice is not
// modified. Ties keep their input order in both directions.
func Apply(records []model.Record, f Filter, s Sort) []model.Record {
	out := make([]model.Record, 0, len(records))
	for i := range records {
		if f.Match(&records[i]) {
			out = append(out, records[i])
		}
	}

	compare := comparator(s.By)
	if s.Order == Desc {
		slices.SortStableFunc(out, func(a, b model.Record) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(out, compare)
	}
	return out
}

func comparator(by SortKey) func(a, b model.Record) int {
	switch by {
	case SortByInput:
		return func(a, b model.Record) int { return compareFloat(a.Pricing.Input, b.Pricing.Input) }
	case SortByOutput:
		return func(a, b model.Record) int { return compareFloat(a.Pricing.Output, b.Pricing.Output) }
	case SortByContextLength:
		return func(a, b model.Record) int { return cmp.Compare(intOrZero(a.ContextLength), intOrZero(b.ContextLength)) }
	default:
		return func(a, b model.Record) int {
			return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
		}
	}
}

// Missing values compare as zero.
func compareFloat(a, b *float64) int {
	x, y := 0.0, 0.0
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	return cmp.Compare(x, y)
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
