package gemini

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
<h2>Gemini 2.5 Flash</h2>
<p>Our hybrid reasoning model.</p>
<section>
  <h3>Standard</h3>
  <table>
    <thead><tr><th></th><th>Free Tier</th><th>Paid Tier, per 1M tokens in USD</th></tr></thead>
    <tbody>
      <tr><td>Input price</td><td>Free of charge</td><td>$0.30 (text / image / video)</td></tr>
      <tr><td>Input price (audio)</td><td>Free of charge</td><td>$1.00</td></tr>
      <tr><td>Output price (including thinking tokens)</td><td>Free of charge</td><td>$2.50</td></tr>
      <tr><td>Context caching price</td><td>Not available</td><td>$0.03</td></tr>
      <tr><td>Used to improve our products</td><td>Yes</td><td>No</td></tr>
    </tbody>
  </table>
  <h3>Batch</h3>
  <table>
    <thead><tr><th></th><th>Free Tier</th><th>Paid Tier, per 1M tokens in USD</th></tr></thead>
    <tbody>
      <tr><td>Input price</td><td>Not available</td><td>$0.15</td></tr>
      <tr><td>Output price</td><td>Not available</td><td>$1.25</td></tr>
    </tbody>
  </table>
</section>
<h2>Gemini 2.5 Pro (Preview)</h2>
<table>
  <tr><th></th><th>Free Tier</th><th>Paid Tier</th></tr>
  <tr><td>Input price</td><td>Not available</td><td>$1.25, prompts &lt;= 200k tokens<br>$2.50, prompts &gt; 200k tokens</td></tr>
  <tr><td>Output price</td><td>Not available</td><td>$10.00, prompts &lt;= 200k tokens</td></tr>
</table>
<h2>Gemma 3</h2>
<table>
  <thead><tr><th></th><th>Free Tier</th><th>Paid Tier</th></tr></thead>
  <tbody><tr><td>Input price</td><td>Free of charge</td><td>Not available</td></tr></tbody>
</table>
<h2>Imagen 4</h2>
<table>
  <thead><tr><th></th><th>Paid Tier</th></tr></thead>
  <tbody><tr><td>Output price (images)</td><td>$0.04 per image</td></tr></tbody>
</table>
<h2>Pricing for tools</h2>
<table>
  <thead><tr><th></th><th>Paid Tier</th></tr></thead>
  <tbody><tr><td>Input price</td><td>$9.99</td></tr></tbody>
</table>
</body></html>`

func TestParseDocument(t *testing.T) {
	doc, err := htmlutil.Parse([]byte(pricingPage))
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	records := parseDocument(doc, now)
	require.Len(t, records, 4)

	flash := records[0]
	assert.Equal(t, "google_gemini:gemini-2.5-flash", flash.ID)
	assert.Equal(t, "Gemini 2.5 Flash", flash.DisplayName)
	assert.Equal(t, 0.3, *flash.Pricing.Input)
	assert.Equal(t, 2.5, *flash.Pricing.Output)
	assert.Equal(t, 0.03, *flash.Pricing.CachedInput)
	assert.Equal(t, 1.0, *flash.Pricing.AudioInput)
	require.NotNil(t, flash.BatchPricing)
	assert.Equal(t, 0.15, *flash.BatchPricing.Input)
	assert.Equal(t, 1.25, *flash.BatchPricing.Output)
	assert.Equal(t, []string{"text", "vision", "audio", "reasoning", "tool_use"}, flash.Capabilities)
	assert.False(t, *flash.IsOpenSource)
	assert.Equal(t, now, flash.LastUpdated)

	pro := records[1]
	assert.Equal(t, "gemini-2.5-pro-preview", pro.SourceModelID)
	assert.Equal(t, 1.25, *pro.Pricing.Input, "first tier wins")
	assert.Equal(t, 10.0, *pro.Pricing.Output)
	assert.Nil(t, pro.BatchPricing)

	gemma := records[2]
	assert.Equal(t, "gemma-3", gemma.SourceModelID)
	assert.Nil(t, gemma.Pricing.Input)
	assert.True(t, *gemma.IsOpenSource)

	imagen := records[3]
	assert.Equal(t, "imagen-4", imagen.SourceModelID)
	assert.Equal(t, 0.04, *imagen.Pricing.Output)
	assert.Equal(t, 0.04, *imagen.Pricing.ImageOutput)
	assert.Nil(t, imagen.Pricing.Input, "tool prices belong to no model")
	assert.Equal(t, []string{"image_generation"}, imagen.Capabilities)
}

func TestFetch_UsesScrapedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pricingPage))
	}))
	defer srv.Close()

	records, err := New(httpclient.New(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestFetch_FallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := New(httpclient.New(), srv.URL)
	records, err := g.Fetch(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), g.MinExpectedModels())

	byID := make(map[string]int)
	for i, r := range records {
		byID[r.ID] = i
		assert.Equal(t, "google_gemini", r.Source)
		require.NotNil(t, r.IsOpenSource)
	}
	i, ok := byID["google_gemini:gemini-2.5-flash"]
	require.True(t, ok)
	flash := records[i]
	assert.Equal(t, 1.0, *flash.Pricing.AudioInput)
	require.NotNil(t, flash.BatchPricing)
	assert.Equal(t, 0.15, *flash.BatchPricing.Input)
}

func TestNormalizeModelID(t *testing.T) {
	tests := map[string]string{
		"Gemini 2.5 Flash":                    "gemini-2.5-flash",
		"Gemini 2.5 Flash (Preview)":          "gemini-2.5-flash-preview",
		"Gemini 2.5 Flash-Lite":               "gemini-2.5-flash-lite",
		"Gemini 2.0 Flash Image (Deprecated)": "gemini-2.0-flash-image-preview",
		"Imagen 4 Fast":                       "imagen-4-fast",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, normalizeModelID(in))
		})
	}
}

func TestIsModelName(t *testing.T) {
	assert.True(t, isModelName("Gemini 2.5 Pro"))
	assert.True(t, isModelName("Gemma 3n"))
	assert.True(t, isModelName("Veo 3"))
	assert.False(t, isModelName("Batch"))
	assert.False(t, isModelName("Input price"))
	assert.False(t, isModelName("Pricing for tools"))
	assert.False(t, isModelName("Gem"))
}

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Gemini Embedding", []string{"embedding"}},
		{"Veo 3", []string{"video_generation"}},
		{"Gemma 3", []string{"text"}},
		{"Gemini 2.5 Flash-Lite", []string{"text", "vision", "tool_use"}},
		{"Gemini 2.5 Flash Image", []string{"text", "vision", "image_generation", "tool_use"}},
		{"Gemini 2.5 Pro TTS", []string{"text", "vision", "tts", "reasoning"}},
		{"Gemini 2.0 Flash", []string{"text", "vision", "audio", "tool_use"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCapabilities(tt.name))
		})
	}
}
