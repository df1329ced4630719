package adapter

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelprice/internal/model"
)

// fallbackDoc is the on-disk shape of embedded per-source pricing data.
type fallbackDoc struct {
	Models []model.Record `yaml:"models"`
}

// LoadFallback parses an embedded YAML pricing document into records for source.
// Records get their id, source, modalities and fetch time filled in.
func LoadFallback(source string, data []byte, now time.Time) ([]model.Record, error) {
	var doc fallbackDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s fallback data: %w", source, err)
	}

	records := make([]model.Record, 0, len(doc.Models))
	for i, r := range doc.Models {
		if r.SourceModelID == "" {
			return nil, fmt.Errorf("%s fallback data: model %d has no model_id", source, i)
		}
		r.Source = source
		r.ID = model.NewID(source, r.SourceModelID)
		if r.DisplayName == "" {
			r.DisplayName = r.SourceModelID
		}
		if len(r.Capabilities) == 0 {
			r.Capabilities = []string{model.CapText}
		}
		r.InputModalities, r.OutputModalities = model.DetectModalities(r.Capabilities)
		r.LastUpdated = now
		records = append(records, r)
	}
	return records, nil
}
