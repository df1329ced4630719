package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/config"
	"github.com/everstacklabs/modelprice/internal/httpclient"
	"github.com/everstacklabs/modelprice/internal/metadata"
)

func TestBuildRegistry(t *testing.T) {
	cfg := &config.Config{Providers: []string{"xai", "openrouter", "google_gemini", "openai"}}
	registry, err := buildRegistry(cfg, httpclient.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"google_gemini", "openai", "openrouter", "xai"}, registry.Names())
	assert.Equal(t, "xAI", registry.DisplayNames()["xai"])
	assert.Equal(t, "Google Gemini", registry.DisplayNames()["google_gemini"])
}

func TestBuildRegistry_UnknownProvider(t *testing.T) {
	cfg := &config.Config{Providers: []string{"xai", "acme"}}
	_, err := buildRegistry(cfg, httpclient.New())

	var unknown *adapter.UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "acme", unknown.Name)
}

func TestNewCatalog_SingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := &config.Config{
		NoCache:  true,
		HTTP:     config.HTTPConfig{Retries: 2},
		Metadata: config.MetadataConfig{CatalogURL: srv.URL, CatalogTimeout: "5s"},
	}
	_, err := newCatalog(cfg, nil).Snapshot(context.Background())

	var unavailable *metadata.CatalogUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, int32(1), hits.Load())
}
