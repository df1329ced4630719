package xai

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/model"
)

//go:embed pricing.yaml
var pricingData []byte

// XAI serves Grok pricing from bundled data; xAI has no public pricing API.
// Reference: https://docs.x.ai/docs/models
type XAI struct {
	now func() time.Time
}

// New creates the adapter.
func New() *XAI {
	return &XAI{now: time.Now}
}

func (x *XAI) Name() string        { return "xai" }
func (x *XAI) DisplayName() string { return "xAI" }

// MinExpectedModels returns the minimum model count for xAI.
func (x *XAI) MinExpectedModels() int { return 3 }

func (x *XAI) Fetch(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := adapter.LoadFallback(x.Name(), pricingData, x.now().UTC())
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].DisplayName == records[i].SourceModelID {
			records[i].DisplayName = inferDisplayName(records[i].SourceModelID)
		}
	}
	return records, nil
}

func inferDisplayName(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
