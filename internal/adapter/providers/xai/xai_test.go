package xai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	x := New()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	x.now = func() time.Time { return now }

	records, err := x.Fetch(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), x.MinExpectedModels())

	byID := make(map[string]int)
	for i, r := range records {
		byID[r.ID] = i
		assert.Equal(t, "xai", r.Source)
		assert.Equal(t, now, r.LastUpdated)
	}

	fast := records[byID["xai:grok-4-fast-reasoning"]]
	assert.Equal(t, "Grok 4 Fast Reasoning", fast.DisplayName)
	assert.Equal(t, 0.2, *fast.Pricing.Input)
	assert.Equal(t, []string{"text", "image"}, fast.InputModalities)

	img := records[byID["xai:grok-2-image-1212"]]
	assert.Nil(t, img.Pricing.Input)
	assert.Equal(t, 70.0, *img.Pricing.ImageOutput)
	assert.Equal(t, []string{"image"}, img.OutputModalities)
}

func TestFetch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
