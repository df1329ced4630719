package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/httpclient"
)

const catalogJSON = `{
  "sample_spec": {"max_input_tokens": "max input tokens, if the provider specifies it", "max_tokens": "LEGACY"},
  "gpt-4o": {"max_input_tokens": 128000, "max_output_tokens": 16384, "max_tokens": 16384, "input_cost_per_token": 2.5e-06},
  "bedrock/amazon.titan-text-express-v1": {"max_tokens": 8000, "max_input_tokens": 42000},
  "meta_llama/Llama-3.3-70B-Instruct": {"max_input_tokens": 128000, "is_open_source": true},
  "weird": [1, 2, 3],
  "fractional": {"max_input_tokens": 12.5}
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(catalogJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bedrock/amazon.titan-text-express-v1",
		"fractional",
		"gpt-4o",
		"meta_llama/Llama-3.3-70B-Instruct",
		"sample_spec",
	}, snap.Keys())

	spec, ok := snap.Lookup("sample_spec")
	require.True(t, ok)
	assert.Nil(t, spec.MaxInputTokens, "string values are ignored")
	assert.False(t, spec.hasLimits())

	titan, _ := snap.Lookup("bedrock/amazon.titan-text-express-v1")
	m := titan.Metadata()
	assert.Equal(t, 42000, *m.ContextLength)
	assert.Equal(t, 8000, *m.MaxOutputTokens, "falls back to max_tokens")

	gpt, _ := snap.Lookup("gpt-4o")
	assert.Equal(t, 16384, *gpt.Metadata().MaxOutputTokens)

	llama, _ := snap.Lookup("meta_llama/Llama-3.3-70B-Instruct")
	assert.True(t, *llama.IsOpenSource)

	frac, _ := snap.Lookup("fractional")
	assert.Nil(t, frac.MaxInputTokens)
}

func TestParseSnapshot_Invalid(t *testing.T) {
	_, err := ParseSnapshot([]byte(`[]`))
	assert.Error(t, err)
}

func TestCatalog_CachesSuccessOnly(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(catalogJSON))
	}))
	defer srv.Close()

	c := NewCatalog(httpclient.New(), srv.URL, time.Second)

	_, err := c.Snapshot(context.Background())
	var unavailable *CatalogUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, srv.URL, unavailable.URL)

	fail.Store(false)
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Len())

	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "success is cached")

	c.Invalidate()
	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCatalog_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewCatalog(httpclient.New(), srv.URL, 0).Snapshot(context.Background())
	var unavailable *CatalogUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}
