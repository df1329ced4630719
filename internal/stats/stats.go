// Package stats derives read-only aggregates from a model database.
package stats

import (
	"sort"
	"time"

	"github.com/everstacklabs/modelprice/internal/model"
	"github.com/everstacklabs/modelprice/internal/storage"
)

// Stats summarizes the whole database.
type Stats struct {
	TotalModels    int       `json:"total_models"`
	Providers      int       `json:"providers"`
	AvgInputPrice  float64   `json:"avg_input_price"`
	AvgOutputPrice float64   `json:"avg_output_price"`
	LastRefresh    time.Time `json:"last_refresh"`
}

// Compute returns aggregate statistics for db. Averages only count records
// whose price is known; an unknown price is not a free one.
func Compute(db *model.Database) Stats {
	st := Stats{LastRefresh: db.LastRefresh}
	if len(db.Models) == 0 {
		return st
	}

	sources := make(map[string]struct{})
	var in, out mean
	for i := range db.Models {
		r := &db.Models[i]
		sources[r.Source] = struct{}{}
		in.add(r.Pricing.Input)
		out.add(r.Pricing.Output)
	}

	st.TotalModels = len(db.Models)
	st.Providers = len(sources)
	st.AvgInputPrice = in.value()
	st.AvgOutputPrice = out.value()
	return st
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// Providers summarizes each source present in db after applying f, sorted
// by name. displayNames maps source names to human names; unknown sources
// use their name.
func Providers(db *model.Database, f storage.Filter, displayNames map[string]string) []model.ProviderInfo {
	byName := make(map[string]*model.ProviderInfo)
	for i := range db.Models {
		r := &db.Models[i]
		if !f.Match(r) {
			continue
		}
		info, ok := byName[r.Source]
		if !ok {
			name := displayNames[r.Source]
			if name == "" {
				name = r.Source
			}
			info = &model.ProviderInfo{Name: r.Source, DisplayName: name}
			byName[r.Source] = info
		}
		info.ModelCount++
		if !r.LastUpdated.IsZero() && (info.LastUpdated == nil || r.LastUpdated.After(*info.LastUpdated)) {
			t := r.LastUpdated
			info.LastUpdated = &t
		}
	}

	out := make([]model.ProviderInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
