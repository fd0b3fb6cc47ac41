// Package runtime assembles the engine from configuration and runs its
// lifecycle: startup reconciliation, the background goroutines and the
// HTTP server, with an ordered shutdown.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/auth"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/docmeta"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/embeddings"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/extraction"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/ingest"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/observability"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/rag"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/reranking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/server"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/zotero"
)

// Runtime holds every wired component of the engine.
type Runtime struct {
	cfg     *config.Config
	pool    *config.DBPool
	store   *storage.Store
	vectors vectorstore.Store
	llm     llms.Provider

	worker  *ingest.Worker
	watcher *ingest.Watcher
	poller  *zotero.Poller
	obs     *observability.Manager
	server  *server.Server
}

// New builds the full component graph. The configuration is defaulted
// and validated first; data directories are created.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	obs := observability.NewManager(&cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	pool := config.NewDBPool()
	store, err := storage.New(ctx, pool, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	embedder, err := embeddings.New(&cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	embedService, err := embeddings.NewService(ctx, embedder, cfg.Embeddings.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedding service: %w", err)
	}

	vectors, err := vectorstore.New(&cfg.VectorStore, embedService)
	if err != nil {
		return nil, err
	}

	llm, err := llms.New(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	reranker, err := reranking.New(&cfg.Reranker, llm)
	if err != nil {
		return nil, err
	}

	parents, err := chunking.NewParentStore(cfg.Paths.ParentsDir)
	if err != nil {
		return nil, err
	}
	engine := rag.NewEngine(&cfg.Retrieval, llm, vectors, reranker, parents)

	var converter extraction.Converter
	if cfg.Ingest.MCPConverter.Command != "" {
		converter = extraction.NewMCPConverter(&cfg.Ingest.MCPConverter)
	}
	extractor := extraction.New(converter)
	meta := docmeta.New(&cfg.Metadata, llm, extractor)
	chunker := chunking.New(&cfg.Chunking)

	progress := ingest.NewProgressStore()
	pipeline := ingest.NewPipeline(store, extractor, meta, chunker, parents, vectors, progress)
	worker := ingest.NewWorker(store, pipeline, &cfg.Ingest)

	var watcher *ingest.Watcher
	if cfg.Ingest.WatchUploadsEnabled() {
		watcher = ingest.NewWatcher(cfg.Paths.UploadDir, worker)
	}

	var zoteroSync *zotero.SyncService
	var poller *zotero.Poller
	var zoteroDep server.ZoteroService
	if cfg.Zotero.Enabled {
		client := zotero.NewClient(&cfg.Zotero)
		zoteroSync = zotero.NewSyncService(&cfg.Zotero, client, store, cfg.Paths.ZoteroDownloadDir)
		poller = zotero.NewPoller(&cfg.Zotero, zoteroSync, worker)
		zoteroDep = zoteroSync
	}

	// The scrape endpoint never carries user data; keep it reachable for
	// the Prometheus server when auth is on.
	if cfg.Auth.Enabled && obs.MetricsEnabled() {
		cfg.Auth.ExcludedPaths = append(cfg.Auth.ExcludedPaths, "/metrics")
	}
	verifier, err := auth.NewVerifier(ctx, &cfg.Auth)
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Deps{
		Config:        cfg,
		Store:         store,
		Vectors:       vectors,
		Parents:       parents,
		Engine:        engine,
		Worker:        worker,
		Progress:      progress,
		Zotero:        zoteroDep,
		Verifier:      verifier,
		Observability: obs,
	})

	return &Runtime{
		cfg:     cfg,
		pool:    pool,
		store:   store,
		vectors: vectors,
		llm:     llm,
		worker:  worker,
		watcher: watcher,
		poller:  poller,
		obs:     obs,
		server:  srv,
	}, nil
}

// Run reconciles state, starts the background goroutines and serves HTTP
// until ctx is canceled. Shutdown order: HTTP drain, background stop,
// observability flush, connection close.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.reconcile(ctx); err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.worker.Run(bgCtx)
	}()

	if r.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.watcher.Run(bgCtx); err != nil {
				slog.Error("Upload watcher stopped", "error", err)
			}
		}()
	}

	if r.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.poller.Run(bgCtx)
		}()
	}

	err := r.server.Start(ctx)

	cancel()
	wg.Wait()

	if shutdownErr := r.obs.Shutdown(context.Background()); shutdownErr != nil {
		slog.Warn("Observability shutdown failed", "error", shutdownErr)
	}
	if closeErr := r.llm.Close(); closeErr != nil {
		slog.Warn("LLM provider close failed", "error", closeErr)
	}
	if closeErr := r.vectors.Close(); closeErr != nil {
		slog.Warn("Vector store close failed", "error", closeErr)
	}
	if closeErr := r.pool.Close(); closeErr != nil {
		slog.Warn("Database close failed", "error", closeErr)
	}
	return err
}

// reconcile brings the document table and the vector backend back in
// sync after an unclean stop: processed rows whose collection vanished
// go back to pending, and collections without a row are dropped.
func (r *Runtime) reconcile(ctx context.Context) error {
	docs, err := r.store.ListDocuments(ctx)
	if err != nil {
		return err
	}

	valid := make(map[int64]bool, len(docs))
	for _, doc := range docs {
		valid[doc.ID] = true
		if !doc.Processed || doc.Failed() {
			continue
		}
		exists, err := r.vectors.DocumentExists(ctx, doc.ID)
		if err != nil {
			slog.Warn("Failed to check collection during reconciliation", "doc_id", doc.ID, "error", err)
			continue
		}
		if !exists {
			slog.Warn("Processed document lost its collection, queuing re-ingest", "doc_id", doc.ID, "filename", doc.Filename)
			if err := r.store.ResetForReprocess(ctx, doc.ID); err != nil {
				return err
			}
		}
	}

	dropped, err := r.vectors.CleanupOrphans(ctx, valid)
	if err != nil {
		slog.Warn("Orphan collection cleanup failed", "error", err)
		return nil
	}
	if len(dropped) > 0 {
		slog.Info("Dropped orphaned collections", "collections", dropped)
	}
	return nil
}
