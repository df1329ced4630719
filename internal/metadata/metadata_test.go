package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/model"
)

func TestMerge_FirstNonNilWins(t *testing.T) {
	high := Metadata{ContextLength: model.Int(300), Pricing: &PricingOverride{Input: model.Float64(1)}}
	mid := Metadata{ContextLength: model.Int(200), IsOpenSource: model.Bool(true), Pricing: &PricingOverride{Input: model.Float64(9), Output: model.Float64(2)}}
	low := Metadata{ContextLength: model.Int(100), MaxOutputTokens: model.Int(50), IsOpenSource: model.Bool(false)}

	got := Merge(high, mid, low)
	assert.Equal(t, 300, *got.ContextLength)
	assert.Equal(t, 50, *got.MaxOutputTokens)
	assert.True(t, *got.IsOpenSource)
	require.NotNil(t, got.Pricing)
	assert.Equal(t, 1.0, *got.Pricing.Input)
	assert.Equal(t, 2.0, *got.Pricing.Output)
	assert.Nil(t, got.Pricing.CachedInput)

	*got.ContextLength = 1
	assert.Equal(t, 300, *high.ContextLength, "merge result must not alias tier data")
}

func TestMerge_Empty(t *testing.T) {
	got := Merge()
	assert.True(t, got.IsZero())
	assert.Nil(t, got.Pricing)

	got = Merge(Metadata{Pricing: &PricingOverride{}})
	assert.Nil(t, got.Pricing)
}

func TestApply(t *testing.T) {
	r := model.Record{
		Pricing:       model.Pricing{Input: model.Float64(5), Output: model.Float64(10)},
		ContextLength: model.Int(1),
	}
	Apply(&r, Metadata{
		ContextLength: model.Int(8192),
		Pricing:       &PricingOverride{Output: model.Float64(0)},
	})

	assert.Equal(t, 8192, *r.ContextLength)
	assert.Nil(t, r.MaxOutputTokens)
	assert.Equal(t, 5.0, *r.Pricing.Input)
	assert.Equal(t, 0.0, *r.Pricing.Output)
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(DefaultRules())
	tests := []struct {
		name string
		want *bool
	}{
		{"Meta Llama 3.1 70B", model.Bool(true)},
		{"DeepSeek R1", model.Bool(true)},
		{"Claude 3 Opus", model.Bool(false)},
		{"GPT-4o", model.Bool(false)},
		{"Grok 4", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsOpenSource(tt.name))
		})
	}
}

func TestRulesWithDefaults(t *testing.T) {
	r := Rules{MinFuzzyScore: 3, OpenSourcePatterns: []string{"custom"}}.WithDefaults()
	assert.Equal(t, 3.0, r.MinFuzzyScore)
	assert.Equal(t, []string{"custom"}, r.OpenSourcePatterns)
	assert.Equal(t, DefaultRules().ProprietaryPatterns, r.ProprietaryPatterns)
	assert.Equal(t, 2, r.MinTokenLength)
}
