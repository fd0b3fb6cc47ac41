// Package server exposes the HTTP API: chat management, document upload
// and lifecycle, streaming question answering, Zotero sync and the
// operational endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/auth"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/ingest"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/observability"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/rag"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/zotero"
)

// QueryEngine is the retrieval and generation surface the query
// handlers depend on.
type QueryEngine interface {
	Retrieve(ctx context.Context, query string, activeDocs []int64, emit func(rag.Step)) ([]string, []rag.Source, []rag.Step, error)
	GenerateStream(ctx context.Context, question string, contexts []string, history []llms.Message) (<-chan llms.StreamChunk, error)
}

// Worker is the slice of the background worker the handlers touch.
type Worker interface {
	Trigger()
	CurrentlyProcessing() (int64, bool)
}

// ZoteroService mirrors zotero.SyncService for the sync endpoints.
type ZoteroService interface {
	SyncAll(ctx context.Context) (*zotero.Result, error)
	SyncNew(ctx context.Context) (*zotero.Result, error)
	Status(ctx context.Context) (*zotero.LibraryStatus, error)
}

// Deps carries everything the server needs. Zotero, Verifier and
// Observability may be nil; the matching surface degrades gracefully.
type Deps struct {
	Config        *config.Config
	Store         *storage.Store
	Vectors       vectorstore.Store
	Parents       *chunking.ParentStore
	Engine        QueryEngine
	Worker        Worker
	Progress      *ingest.ProgressStore
	Zotero        ZoteroService
	Verifier      *auth.Verifier
	Observability *observability.Manager
}

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	store    *storage.Store
	vectors  vectorstore.Store
	parents  *chunking.ParentStore
	engine   QueryEngine
	worker   Worker
	progress *ingest.ProgressStore
	zotero   ZoteroService
	verifier *auth.Verifier
	obs      *observability.Manager

	httpServer *http.Server
}

// New builds the server; call Handler or Start afterwards.
func New(deps Deps) *Server {
	return &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		vectors:  deps.Vectors,
		parents:  deps.Parents,
		engine:   deps.Engine,
		worker:   deps.Worker,
		progress: deps.Progress,
		zotero:   deps.Zotero,
		verifier: deps.Verifier,
		obs:      deps.Observability,
	}
}

// Handler builds the full middleware chain and route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.obs != nil {
		r.Use(observability.Middleware(s.obs))
	}
	r.Use(s.loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.Server.CORSEnabled() {
		r.Use(corsMiddleware)
	}
	r.Use(auth.Middleware(s.verifier))

	r.Get("/health", s.handleHealth)
	r.Get("/api/schema", s.handleSchema)
	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Handle("/metrics", s.obs.MetricsHandler())
	}

	r.Route("/chats", func(r chi.Router) {
		r.Post("/", s.handleCreateChat)
		r.Get("/", s.handleListChats)
		r.Get("/{id}", s.handleGetChat)
		r.Delete("/{id}", s.handleDeleteChat)
		r.Get("/{id}/messages", s.handleListMessages)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.handleUploadDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/{id}", s.handleGetDocument)
		r.Post("/{id}/reprocess", s.handleReprocessDocument)
		r.Patch("/{id}/preferences", s.handleDocumentPreferences)
		r.Delete("/{id}", s.handleDeleteDocument)
		r.Get("/{id}/processing-stream", s.handleProcessingStream)
	})

	r.Post("/query/stream", s.handleQueryStream)

	r.Route("/zotero", func(r chi.Router) {
		r.Post("/sync", s.handleZoteroSync)
		r.Post("/sync/new", s.handleZoteroSyncNew)
		r.Get("/status", s.handleZoteroStatus)
	})

	return r
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully. SSE streams need an unbounded write window, so no
// WriteTimeout is set.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Server.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Schema())
}
