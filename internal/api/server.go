// Package api serves the model database and refresh triggers over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/pipeline"
	"github.com/everstacklabs/modelprice/internal/storage"
)

// maxPatchBytes bounds PATCH request bodies.
const maxPatchBytes = 1 << 20

// Server holds the chi router and the collaborators its handlers call.
type Server struct {
	router   chi.Router
	store    storage.Store
	pipeline *pipeline.Pipeline
	registry *adapter.Registry
}

// NewServer creates a Server with all routes configured.
func NewServer(store storage.Store, p *pipeline.Pipeline, registry *adapter.Registry) *Server {
	s := &Server{
		store:    store,
		pipeline: p,
		registry: registry,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/models", s.handleListModels)
		r.Get("/models/*", s.handleGetModel)
		r.Patch("/models/*", s.handleUpdateModel)
		r.Get("/providers", s.handleProviders)
		r.Get("/stats", s.handleStats)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/refresh/metadata", s.handleRefreshMetadata)
	})

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start).Round(time.Microsecond))
	})
}
