package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/httpclient"
)

const modelsJSON = `{"data": [
  {
    "id": "anthropic/claude-3-opus",
    "name": "Anthropic: Claude 3 Opus",
    "context_length": 200000,
    "architecture": {"input_modalities": ["text", "image"], "output_modalities": ["text"]},
    "pricing": {"prompt": "0.000015", "completion": "0.000075", "input_cache_read": "0.0000015", "image": "0.024"},
    "top_provider": {"max_completion_tokens": 4096},
    "supported_parameters": ["tools", "temperature"]
  },
  {
    "id": "openrouter/auto",
    "name": "Auto Router",
    "pricing": {"prompt": "-1", "completion": "-1"}
  },
  {
    "id": "meta-llama/llama-3-8b-instruct:free",
    "name": "Llama 3 8B (free)",
    "context_length": 8192,
    "input_modalities": ["text"],
    "output_modalities": ["text"],
    "pricing": {"prompt": "0", "completion": 0, "internal_reasoning": "0"}
  },
  {"id": "", "name": "broken"},
  {
    "id": "anthropic/claude-3-opus",
    "name": "Anthropic: Claude 3 Opus (dup)",
    "pricing": {"prompt": "0.000015", "completion": "0.000075"}
  }
]}`

func TestFetch(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(modelsJSON))
	}))
	defer srv.Close()

	o := New(httpclient.New(), srv.URL+"/api/v1/")
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	records, err := o.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/models", path)
	require.Len(t, records, 3)

	claude := records[0]
	assert.Equal(t, "openrouter:anthropic/claude-3-opus", claude.ID)
	assert.Equal(t, "Anthropic: Claude 3 Opus (dup)", claude.DisplayName, "later duplicate wins")

	first := toRecord(mustModel(t, 0), now)
	assert.InDelta(t, 15.0, *first.Pricing.Input, 1e-9)
	assert.InDelta(t, 75.0, *first.Pricing.Output, 1e-9)
	assert.InDelta(t, 1.5, *first.Pricing.CachedInput, 1e-9)
	assert.InDelta(t, 24000.0, *first.Pricing.ImageInput, 1e-6)
	assert.Nil(t, first.Pricing.CachedWrite)
	assert.Equal(t, 200000, *first.ContextLength)
	assert.Equal(t, 4096, *first.MaxOutputTokens)
	assert.Equal(t, []string{"text", "image"}, first.InputModalities)
	assert.Equal(t, []string{"text", "vision", "tool_use"}, first.Capabilities)

	auto := records[1]
	assert.Nil(t, auto.Pricing.Input, "negative price means variable pricing")
	assert.Nil(t, auto.Pricing.Output)
	assert.Equal(t, []string{"text"}, auto.InputModalities, "modalities fall back to detection")

	llama := records[2]
	require.NotNil(t, llama.Pricing.Input)
	assert.Equal(t, 0.0, *llama.Pricing.Input, "zero price is free, not unknown")
	assert.Equal(t, 0.0, *llama.Pricing.Output)
	assert.NotContains(t, llama.Capabilities, "reasoning")
	assert.Contains(t, llama.Capabilities, "tool_use")
	assert.Equal(t, now, llama.LastUpdated)
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(httpclient.New(), srv.URL).Fetch(context.Background())
	var se *httpclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	_, err := New(httpclient.New(), srv.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "parsing models response")
}

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		in     []string
		out    []string
		params []string
		want   []string
	}{
		{"image generation", "google/gemini-2.5-flash-image", []string{"text", "image"}, []string{"text", "image"}, []string{"temperature"},
			[]string{"text", "vision", "audio", "image_generation", "reasoning"}},
		{"no modalities listed", "mistralai/mistral-small", nil, nil, nil,
			[]string{"text", "tool_use"}},
		{"o3-mini exclusions", "openai/o3-mini", []string{"text"}, []string{"text"}, nil,
			[]string{"text", "reasoning"}},
		{"embedding only", "openai/text-embedding-3-small", []string{"file"}, []string{"embeddings"}, []string{"x"},
			[]string{"file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectCapabilities(tt.id, tt.in, tt.out, apiPricing{}, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func mustModel(t *testing.T, i int) apiModel {
	t.Helper()
	var resp modelsResponse
	require.NoError(t, json.Unmarshal([]byte(modelsJSON), &resp))
	return resp.Data[i]
}
