// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/state"
	"tally/internal/transfer"
)

// Server wraps http.Server with the application handlers, a per-IP rate
// limiter and read-side caches.
type Server struct {
	http.Server

	store    *state.Store
	transfer *transfer.Service
	logger   *slog.Logger

	rateLimiter *rateLimiter

	// Read-side caches, invalidated on every mutation.
	dashCache   *cache.LRUCache[state.Dashboard]
	exportCache *cache.LRUCache[[]byte]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, store *state.Store, svc *transfer.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:       store,
		transfer:    svc,
		logger:      logger,
		rateLimiter: newRateLimiter(),
		dashCache:   cache.NewLRUCache[state.Dashboard](16, 5*time.Second),
		exportCache: cache.NewLRUCache[[]byte](16, 30*time.Second),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withMiddleware(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withMiddleware(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/entries", s.withMiddleware(s.handleCreateEntry))

	mux.HandleFunc("POST /api/session/start", s.withMiddleware(s.handleStartSession))
	mux.HandleFunc("POST /api/session/pause", s.withMiddleware(s.handlePauseSession))
	mux.HandleFunc("POST /api/session/resume", s.withMiddleware(s.handleResumeSession))
	mux.HandleFunc("POST /api/session/stop", s.withMiddleware(s.handleStopSession))

	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.handleDashboard))

	mux.HandleFunc("GET /api/settings", s.withMiddleware(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withMiddleware(s.handleUpdateSettings))

	mux.HandleFunc("POST /api/import/preview", s.withMiddleware(s.handleImportPreview))
	mux.HandleFunc("POST /api/import", s.withMiddleware(s.handleImport))
	mux.HandleFunc("POST /api/import/undo", s.withMiddleware(s.handleImportUndo))

	mux.HandleFunc("GET /export.json", s.withMiddleware(s.handleExportJSON))
	mux.HandleFunc("GET /export.csv", s.withMiddleware(s.handleExportCSV))

	return s
}

// invalidateReads drops every cached read projection. Called after any
// mutation so the next dashboard or export recomputes from live state.
func (s *Server) invalidateReads() {
	s.dashCache.Clear()
	s.exportCache.Clear()
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup
// goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
