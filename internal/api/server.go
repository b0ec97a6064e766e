package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/wikidoc/internal/config"
	"github.com/dgallion1/wikidoc/internal/pipeline"
	"github.com/dgallion1/wikidoc/internal/render"
	"github.com/dgallion1/wikidoc/internal/stats"
	"github.com/dgallion1/wikidoc/internal/storage"
)

// DocumentStore is the read side of the document store.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*storage.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]storage.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SearchChunks(ctx context.Context, q string, limit int) ([]storage.ChunkHit, error)
	Counts(ctx context.Context) (storage.Counts, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP API server for wikidoc.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        DocumentStore
	math         render.MathRenderer
	stats        *stats.Window
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. math and parseStats
// may be nil.
func NewServer(orch *pipeline.Orchestrator, store DocumentStore, math render.MathRenderer, parseStats *stats.Window, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        store,
		math:         math,
		stats:        parseStats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(Metrics)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/render", s.handleRender)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Get("/api/search", s.handleSearch)
		r.Get("/api/stats/render", s.handleRenderStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Error("health check failed", "error", err)
			jsonError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// htmlRenderer returns the configured HTML renderer.
func (s *Server) htmlRenderer() *render.HTML {
	return &render.HTML{Math: s.math, Links: render.LinkResolver{Base: s.cfg.LinkBase}}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
