package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
)

// Worker drains pending documents through the pipeline, one at a time.
// It wakes up on a fixed interval and on Trigger calls.
type Worker struct {
	store    *storage.Store
	pipeline *Pipeline
	interval time.Duration
	trigger  chan struct{}

	mu        sync.Mutex
	currentID int64
	busy      bool
}

// NewWorker creates a worker. The scan interval comes from the ingest
// config; zero falls back to 10 seconds.
func NewWorker(store *storage.Store, pipeline *Pipeline, cfg *config.IngestConfig) *Worker {
	interval := 10 * time.Second
	if cfg != nil && cfg.CheckInterval > 0 {
		interval = cfg.CheckInterval
	}
	return &Worker{
		store:    store,
		pipeline: pipeline,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate scan. It never blocks; a scan already
// queued absorbs the request.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// CurrentlyProcessing reports the document being processed right now.
func (w *Worker) CurrentlyProcessing() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentID, w.busy
}

// Run scans for pending documents until the context is canceled. The
// first scan happens immediately.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("Ingest worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingest worker stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		case <-w.trigger:
			w.scan(ctx)
		}
	}
}

func (w *Worker) scan(ctx context.Context) {
	pending, err := w.store.ListPendingDocuments(ctx)
	if err != nil {
		slog.Error("Failed to list pending documents", "error", err)
		return
	}
	for _, doc := range pending {
		if ctx.Err() != nil {
			return
		}
		w.processOne(ctx, doc.ID)
	}
}

func (w *Worker) processOne(ctx context.Context, docID int64) {
	// Re-fetch: the row may have been deleted or handled since the scan.
	doc, err := w.store.GetDocument(ctx, docID)
	if err != nil {
		slog.Debug("Pending document vanished before processing", "doc_id", docID)
		return
	}
	if doc.Processed {
		return
	}

	w.mu.Lock()
	w.currentID = doc.ID
	w.busy = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	if _, err := os.Stat(doc.FilePath); err != nil {
		w.pipeline.fail(ctx, doc, fmt.Errorf("file not found on disk: %s", doc.FilePath))
		return
	}

	if err := w.pipeline.Process(ctx, doc); err != nil {
		slog.Warn("Document left in failed state", "doc_id", doc.ID, "error", err)
	}
}
