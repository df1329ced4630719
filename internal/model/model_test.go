package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectModalities(t *testing.T) {
	tests := []struct {
		name   string
		caps   []string
		input  []string
		output []string
	}{
		{"empty defaults to text", nil, []string{"text"}, []string{"text"}},
		{"vision", []string{"vision", "text"}, []string{"text", "image"}, []string{"text"}},
		{"embedding", []string{"embedding"}, []string{"text"}, []string{"embedding"}},
		{"tts", []string{"tts"}, []string{"text"}, []string{"audio"}},
		{"image generation", []string{"image_generation"}, []string{"text"}, []string{"image"}},
		{"mixed duplicates", []string{"text", "audio", "audio", "file", "video"},
			[]string{"text", "audio", "video", "file"}, []string{"text", "audio"}},
		{"non-modal tags ignored", []string{"reasoning", "tool_use"}, []string{"text"}, []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := DetectModalities(tt.caps)
			assert.Equal(t, tt.input, in)
			assert.Equal(t, tt.output, out)
		})
	}
}

func TestMergeModalities(t *testing.T) {
	got := MergeModalities([]string{"text", "image"}, []string{"image", "audio", ""})
	assert.Equal(t, []string{"text", "image", "audio"}, got)
}

func TestSplitID(t *testing.T) {
	source, id, err := SplitID("openrouter:meta-llama/llama-3:free")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", source)
	assert.Equal(t, "meta-llama/llama-3:free", id)

	for _, bad := range []string{"", "openai", ":gpt-4o", "openai:"} {
		_, _, err := SplitID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecordJSONNames(t *testing.T) {
	r := Record{
		ID:            NewID("openai", "gpt-4o"),
		Source:        "openai",
		SourceModelID: "gpt-4o",
		DisplayName:   "GPT-4o",
		Pricing:       Pricing{Input: Float64(2.5), Output: Float64(0)},
		ContextLength: Int(128000),
		IsOpenSource:  Bool(false),
		Capabilities:  []string{"text"},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "openai:gpt-4o", raw["id"])
	assert.Equal(t, "openai", raw["provider"])
	assert.Equal(t, "gpt-4o", raw["model_id"])
	assert.Equal(t, "GPT-4o", raw["model_name"])
	assert.Equal(t, false, raw["is_open_source"])
	assert.NotContains(t, raw, "max_output_tokens")

	pricing := raw["pricing"].(map[string]any)
	assert.Equal(t, 0.0, pricing["output"], "zero price is kept, not dropped")
	assert.NotContains(t, pricing, "cached_input")
}

func TestRecordHelpers(t *testing.T) {
	r := Record{Source: "xai", SourceModelID: "grok-4", Capabilities: []string{"text", "reasoning"}}
	assert.Equal(t, "xai:grok-4", r.Key())
	assert.True(t, r.HasCapability("reasoning"))
	assert.False(t, r.HasCapability("vision"))
}
