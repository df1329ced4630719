package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/metadata"
	"github.com/everstacklabs/modelprice/internal/model"
	"github.com/everstacklabs/modelprice/internal/pipeline"
	"github.com/everstacklabs/modelprice/internal/stats"
	"github.com/everstacklabs/modelprice/internal/storage"
)

type stubAdapter struct {
	name    string
	display string
	records []model.Record
	err     error
}

func (s *stubAdapter) Name() string        { return s.name }
func (s *stubAdapter) DisplayName() string { return s.display }
func (s *stubAdapter) Fetch(context.Context) ([]model.Record, error) {
	return s.records, s.err
}

func record(source, id, name string, input float64, caps ...string) model.Record {
	return model.Record{
		ID:            model.NewID(source, id),
		Source:        source,
		SourceModelID: id,
		DisplayName:   name,
		Pricing:       model.Pricing{Input: model.Float64(input), Output: model.Float64(input * 2)},
		Capabilities:  append([]string{model.CapText}, caps...),
	}
}

func newTestServer(t *testing.T, adapters ...adapter.Adapter) *Server {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewJSONStore(filepath.Join(dir, "models.json"))
	overrides := metadata.NewOverrideStore(filepath.Join(dir, "overrides.json"))
	enricher := metadata.NewEnricher(metadata.MapTier{}, nil, overrides, metadata.DefaultRules())
	registry := adapter.NewRegistry(adapters...)
	p := pipeline.New(registry, store, enricher, overrides, pipeline.Options{})
	return NewServer(store, p, registry)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seeded(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t,
		&stubAdapter{name: "openrouter", display: "OpenRouter", records: []model.Record{
			record("openrouter", "meta-llama/llama-3-70b", "Llama 3 70B", 0.5),
			record("openrouter", "openai/gpt-4o", "GPT-4o", 2.5, model.CapVision),
		}},
		&stubAdapter{name: "xai", display: "xAI", records: []model.Record{
			record("xai", "grok-3", "Grok 3", 3),
		}},
	)
	rec := do(t, s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return s
}

func TestHealth_EmptyDatabase(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := decode[healthResponse](t, rec)
	assert.Equal(t, "healthy", got.Status)
	assert.Zero(t, got.ModelsCount)
}

func TestRefreshAll_ReturnsSummary(t *testing.T) {
	s := newTestServer(t,
		&stubAdapter{name: "xai", records: []model.Record{record("xai", "grok-3", "Grok 3", 3)}},
		&stubAdapter{name: "broken", err: errors.New("timeout")},
	)
	rec := do(t, s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sum := decode[pipeline.Summary](t, rec)
	assert.Equal(t, pipeline.StatusPartial, sum.Status)
	assert.Equal(t, 1, sum.ModelsCount)
	assert.Contains(t, sum.Failed, "broken")
	assert.NotEmpty(t, sum.RunID)

	health := decode[healthResponse](t, do(t, s, http.MethodGet, "/api/health", ""))
	assert.Equal(t, 1, health.ModelsCount)
}

func TestListModels(t *testing.T) {
	s := seeded(t)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"default name asc", "/api/models", []string{"openai/gpt-4o", "grok-3", "meta-llama/llama-3-70b"}},
		{"provider filter", "/api/models?provider=xai", []string{"grok-3"}},
		{"capability filter", "/api/models?capability=vision", []string{"openai/gpt-4o"}},
		{"search", "/api/models?search=LLAMA", []string{"meta-llama/llama-3-70b"}},
		{"input desc", "/api/models?sort_by=input&sort_order=desc", []string{"grok-3", "openai/gpt-4o", "meta-llama/llama-3-70b"}},
		{"no match", "/api/models?provider=nope", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			models := decode[[]model.Record](t, rec)
			got := make([]string, len(models))
			for i, m := range models {
				got[i] = m.SourceModelID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListModels_BadSort(t *testing.T) {
	s := seeded(t)
	rec := do(t, s, http.MethodGet, "/api/models?sort_by=popularity", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Detail, "popularity")
}

func TestGetModel(t *testing.T) {
	s := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/models/openrouter:meta-llama/llama-3-70b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Record](t, rec)
	assert.Equal(t, "Llama 3 70B", got.DisplayName)

	rec = do(t, s, http.MethodGet, "/api/models/openrouter:meta-llama%2Fllama-3-70b", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/models/xai:grok-9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "model not found", decode[errorResponse](t, rec).Detail)
}

func TestUpdateModel(t *testing.T) {
	s := seeded(t)
	target := "/api/models/xai:grok-3"

	rec := do(t, s, http.MethodPatch, target, `{"context_length": 131072, "is_open_source": false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[model.Record](t, rec)
	require.NotNil(t, got.ContextLength)
	assert.Equal(t, 131072, *got.ContextLength)
	require.NotNil(t, got.IsOpenSource)
	assert.False(t, *got.IsOpenSource)

	// Persisted, and survives the next refresh.
	rec = do(t, s, http.MethodPost, "/api/refresh?provider=xai", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[model.Record](t, do(t, s, http.MethodGet, target, ""))
	require.NotNil(t, got.ContextLength)
	assert.Equal(t, 131072, *got.ContextLength)
}

func TestUpdateModel_Errors(t *testing.T) {
	s := seeded(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"empty object", "/api/models/xai:grok-3", `{}`, http.StatusBadRequest},
		{"not an object", "/api/models/xai:grok-3", `[1]`, http.StatusBadRequest},
		{"invalid value", "/api/models/xai:grok-3", `{"context_length": -5}`, http.StatusBadRequest},
		{"unknown field", "/api/models/xai:grok-3", `{"family": "grok"}`, http.StatusBadRequest},
		{"unknown model", "/api/models/xai:grok-9", `{"context_length": 1000}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPatch, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Detail)
		})
	}
}

func TestRefreshOne_Errors(t *testing.T) {
	s := newTestServer(t, &stubAdapter{name: "xai", err: errors.New("503 from upstream")})

	rec := do(t, s, http.MethodPost, "/api/refresh?provider=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown provider: nope", decode[errorResponse](t, rec).Detail)

	rec = do(t, s, http.MethodPost, "/api/refresh?provider=xai", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Detail, "503 from upstream")
}

func TestRefreshMetadata(t *testing.T) {
	s := seeded(t)
	rec := do(t, s, http.MethodPost, "/api/refresh/metadata", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[metadataRefreshResponse](t, rec)
	assert.Equal(t, "success", got.Status)
	assert.Zero(t, got.ModelsUpdated)
}

func TestProvidersAndStats(t *testing.T) {
	s := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	providers := decode[[]model.ProviderInfo](t, rec)
	require.Len(t, providers, 2)
	assert.Equal(t, "openrouter", providers[0].Name)
	assert.Equal(t, "OpenRouter", providers[0].DisplayName)
	assert.Equal(t, 2, providers[0].ModelCount)
	assert.Equal(t, "xAI", providers[1].DisplayName)

	rec = do(t, s, http.MethodGet, "/api/providers?capability=vision", "")
	providers = decode[[]model.ProviderInfo](t, rec)
	require.Len(t, providers, 1)
	assert.Equal(t, 1, providers[0].ModelCount)

	rec = do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[stats.Stats](t, rec)
	assert.Equal(t, 3, st.TotalModels)
	assert.Equal(t, 2, st.Providers)
	assert.InDelta(t, 2.0, st.AvgInputPrice, 1e-9)
}
