package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/metadata"
	"github.com/everstacklabs/modelprice/internal/stats"
	"github.com/everstacklabs/modelprice/internal/storage"
)

type healthResponse struct {
	Status      string    `json:"status"`
	ModelsCount int       `json:"models_count"`
	LastRefresh time.Time `json:"last_refresh"`
}

type metadataRefreshResponse struct {
	Status        string `json:"status"`
	ModelsUpdated int    `json:"models_updated"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db, err := s.store.Load(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load database")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		ModelsCount: len(db.Models),
		LastRefresh: db.LastRefresh,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := storage.ParseSort(q.Get("sort_by"), q.Get("sort_order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f := storage.Filter{
		Source:     q.Get("provider"),
		Capability: q.Get("capability"),
		Search:     q.Get("search"),
	}

	records, err := s.store.Query(r.Context(), f, sort)
	if err != nil {
		slog.Error("querying models failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query models")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), modelID(r))
	if err != nil {
		s.writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPatchBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no updates provided")
		return
	}

	rec, err := s.pipeline.UpdateModel(r.Context(), modelID(r), body)
	if err != nil {
		s.writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	db, err := s.store.Load(r.Context())
	if err != nil {
		slog.Error("loading database failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load database")
		return
	}
	q := r.URL.Query()
	f := storage.Filter{Capability: q.Get("capability"), Search: q.Get("search")}
	writeJSON(w, http.StatusOK, stats.Providers(db, f, s.registry.DisplayNames()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	db, err := s.store.Load(r.Context())
	if err != nil {
		slog.Error("loading database failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load database")
		return
	}
	writeJSON(w, http.StatusOK, stats.Compute(db))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		sum, err := s.pipeline.RefreshAll(r.Context())
		if err != nil {
			slog.Error("refresh failed", "error", err)
			writeError(w, http.StatusInternalServerError, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, sum)
		return
	}

	sum, err := s.pipeline.RefreshOne(r.Context(), provider)
	if err != nil {
		var unknown *adapter.UnknownSourceError
		var fetchErr *adapter.FetchError
		switch {
		case errors.As(err, &unknown):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &fetchErr):
			slog.Error("refresh failed", "provider", provider, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			slog.Error("refresh failed", "provider", provider, "error", err)
			writeError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.RefreshMetadata(r.Context())
	if err != nil {
		slog.Error("metadata refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "metadata refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, metadataRefreshResponse{Status: "success", ModelsUpdated: n})
}

func (s *Server) writeModelError(w http.ResponseWriter, err error) {
	var invalid *metadata.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "model not found")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("model request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// modelID returns the record id captured by the trailing wildcard. Ids may
// contain slashes, so clients can send them raw or percent-encoded.
func modelID(r *http.Request) string {
	id := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return id
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
