package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/htmlutil"
	"github.com/everstacklabs/modelprice/internal/httpclient"
)

const pricingPage = `<html><body>
<section>
  <h2>Text tokens</h2>
  <div><table>
    <thead><tr><th>Model</th><th>Input</th><th>Cached input</th><th>Output</th></tr></thead>
    <tbody>
      <tr><td>gpt-4.1 gpt-4.1-2025-04-14</td><td>$2.00</td><td>$0.50</td><td>$8.00</td></tr>
      <tr><td>o3-mini</td><td>$1.10</td><td>-</td><td>$4.40</td></tr>
      <tr><td>Web search (all models)[1]</td><td>$10.00</td><td></td><td></td></tr>
      <tr><td>gpt-4o-2024-05-13</td><td>$5.00</td><td></td><td>$15.00</td></tr>
    </tbody>
  </table></div>
</section>
<section>
  <h2>Batch</h2>
  <table>
    <thead><tr><th>Model</th><th>Input</th><th>Output</th></tr></thead>
    <tbody><tr><td>gpt-4.1</td><td>$1.00</td><td>$4.00</td></tr></tbody>
  </table>
</section>
<section>
  <h2>Embeddings</h2>
  <table>
    <thead><tr><th>Model</th><th>Cost</th></tr></thead>
    <tbody><tr><td>text-embedding-3-small</td><td>$0.02</td></tr></tbody>
  </table>
</section>
</body></html>`

func TestParseDocument(t *testing.T) {
	doc, err := htmlutil.Parse([]byte(pricingPage))
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	records := parseDocument(doc, now)
	require.Len(t, records, 3)

	gpt := records[0]
	assert.Equal(t, "openai:gpt-4.1", gpt.ID)
	assert.Equal(t, "GPT-4.1", gpt.DisplayName)
	assert.Equal(t, 2.0, *gpt.Pricing.Input, "batch table must not override standard price")
	require.NotNil(t, gpt.BatchPricing)
	assert.Equal(t, 1.0, *gpt.BatchPricing.Input)
	assert.Equal(t, 4.0, *gpt.BatchPricing.Output)
	assert.Equal(t, 0.5, *gpt.Pricing.CachedInput)
	assert.Equal(t, 8.0, *gpt.Pricing.Output)
	assert.Equal(t, []string{"text", "vision", "tool_use"}, gpt.Capabilities)
	assert.Equal(t, now, gpt.LastUpdated)

	mini := records[1]
	assert.Equal(t, "o3-mini", mini.SourceModelID)
	assert.Nil(t, mini.Pricing.CachedInput)
	assert.Nil(t, mini.BatchPricing)
	assert.Equal(t, []string{"text", "reasoning"}, mini.Capabilities)

	embed := records[2]
	assert.Equal(t, "text-embedding-3-small", embed.SourceModelID)
	assert.Equal(t, 0.02, *embed.Pricing.Embedding)
	assert.Nil(t, embed.Pricing.Input)
	assert.Equal(t, []string{"embedding"}, embed.OutputModalities)
}

func TestFetch_FallsBackWhenPageEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="root"></div></body></html>`))
	}))
	defer srv.Close()

	o := New(httpclient.New(), srv.URL)
	records, err := o.Fetch(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), o.MinExpectedModels())

	ids := make(map[string]bool)
	for _, r := range records {
		ids[r.ID] = true
		assert.Equal(t, "openai", r.Source)
	}
	assert.True(t, ids["openai:gpt-4o"])
}

func TestFetch_FallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	records, err := New(httpclient.New(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestFetch_UsesScrapedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pricingPage))
	}))
	defer srv.Close()

	records, err := New(httpclient.New(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		id, category string
		want         []string
	}{
		{"gpt-image-1", "", []string{"image_generation"}},
		{"text-embedding-3-large", "", []string{"embedding"}},
		{"whisper-1", "", []string{"audio"}},
		{"gpt-4o-mini-tts", "", []string{"tts"}},
		{"gpt-4o-realtime-preview", "Audio tokens", []string{"text", "audio", "tool_use"}},
		{"gpt-5-nano", "", []string{"text", "reasoning", "tool_use"}},
		{"o1-pro", "", []string{"text", "reasoning"}},
		{"gpt-4o-search-preview", "", []string{"text", "vision", "tool_use", "web_search"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCapabilities(tt.id, tt.category))
		})
	}
}

func TestIsDateSnapshot(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"gpt-4-0613", true},
		{"gpt-4-1106-preview", true},
		{"gpt-4o-2024-05-13", true},
		{"gpt-5-2025-08-07", true},
		{"o1-2024-12-17", true},
		{"gpt-4o", false},
		{"o3-mini", false},
		{"text-embedding-3-small", false},
		{"gpt-5.1-codex", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := isDateSnapshot(tt.id); got != tt.want {
				t.Errorf("isDateSnapshot(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestInferDisplayName(t *testing.T) {
	assert.Equal(t, "GPT-4o Mini", inferDisplayName("gpt-4o-mini"))
	assert.Equal(t, "Codex Mini Latest", inferDisplayName("codex-mini-latest"))
}
