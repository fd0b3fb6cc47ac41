// Package ingest turns uploaded files into searchable vector collections.
// The pipeline runs one document through extraction, metadata, chunking and
// embedding; the worker feeds it pending documents one at a time.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/docmeta"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/extraction"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
)

// Processing stages reported through the progress store.
const (
	StageStarting  = "starting"
	StageExtracted = "extracted"
	StageMetadata  = "metadata"
	StageChunking  = "chunking"
	StageEmbedding = "embedding"
	StageComplete  = "complete"
	StageError     = "error"
)

// Upserts are batched so the progress stream can tick between batches.
const embedBatchSize = 10

// Pipeline processes one document end to end.
type Pipeline struct {
	store     *storage.Store
	extractor *extraction.Extractor
	metadata  *docmeta.Extractor
	chunker   *chunking.Chunker
	parents   *chunking.ParentStore
	vectors   vectorstore.Store
	progress  *ProgressStore
}

// NewPipeline wires the ingest pipeline.
func NewPipeline(
	store *storage.Store,
	extractor *extraction.Extractor,
	metadata *docmeta.Extractor,
	chunker *chunking.Chunker,
	parents *chunking.ParentStore,
	vectors vectorstore.Store,
	progress *ProgressStore,
) *Pipeline {
	return &Pipeline{
		store:     store,
		extractor: extractor,
		metadata:  metadata,
		chunker:   chunker,
		parents:   parents,
		vectors:   vectors,
		progress:  progress,
	}
}

// Process runs the full ingest for one document. Any failure rolls back
// best-effort, marks the document terminally failed and propagates the
// error.
func (p *Pipeline) Process(ctx context.Context, doc *storage.Document) error {
	log := slog.With("doc_id", doc.ID, "file", doc.Filename)
	log.Info("Processing document")

	p.progress.Set(doc.ID, StageStarting, 0.05, "Starting processing...")

	text, err := p.extractor.ExtractText(doc.FilePath)
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("extraction failed: %w", err))
	}
	p.progress.Set(doc.ID, StageExtracted, 0.20, "Text extracted")

	fields := p.metadata.Extract(ctx, doc.FilePath, doc.Filename)
	metadataChunk := docmeta.MetadataChunk(doc.Filename, fields)
	p.progress.Set(doc.ID, StageMetadata, 0.30, "Metadata extracted")

	parents, children := p.chunker.BuildChunks(text, metadataChunk)
	if len(children) == 0 {
		return p.fail(ctx, doc, fmt.Errorf("document produced no chunks"))
	}
	if err := p.parents.Save(doc.ID, parents); err != nil {
		return p.fail(ctx, doc, fmt.Errorf("failed to save parent chunks: %w", err))
	}
	p.progress.Set(doc.ID, StageChunking, 0.45, fmt.Sprintf("Created %d chunks", len(children)))

	p.progress.Set(doc.ID, StageEmbedding, 0.50, "Preparing vector store...")
	if err := p.vectors.EnsureCollection(ctx, doc.ID); err != nil {
		return p.fail(ctx, doc, fmt.Errorf("failed to prepare collection: %w", err))
	}

	total := len(children)
	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		if err := p.vectors.AddDocuments(ctx, doc.ID, doc.Filename, children[start:end]); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("failed to embed chunks: %w", err))
		}
		progress := 0.45 + 0.45*float64(end)/float64(total)
		p.progress.Set(doc.ID, StageEmbedding, progress, fmt.Sprintf("Embedding chunk %d/%d", end, total))
	}

	if err := p.store.MarkProcessed(ctx, doc.ID, total, p.parents.Path(doc.ID)); err != nil {
		return p.fail(ctx, doc, fmt.Errorf("failed to finalize document: %w", err))
	}
	p.progress.Set(doc.ID, StageComplete, 1.0, fmt.Sprintf("Processed %d chunks", total))
	log.Info("Document processed", "chunks", total)
	return nil
}

// fail rolls back partial state, marks the document terminally failed and
// returns the original error.
func (p *Pipeline) fail(ctx context.Context, doc *storage.Document, cause error) error {
	slog.Error("Document processing failed", "doc_id", doc.ID, "file", doc.Filename, "error", cause)

	if err := p.vectors.DeleteDocument(ctx, doc.ID); err != nil {
		slog.Debug("Rollback: collection delete failed", "doc_id", doc.ID, "error", err)
	}
	if err := p.parents.Delete(doc.ID); err != nil {
		slog.Debug("Rollback: parents delete failed", "doc_id", doc.ID, "error", err)
	}

	// Re-fetch first: the row may have changed while processing ran.
	if _, err := p.store.GetDocument(ctx, doc.ID); err != nil {
		slog.Warn("Failed document no longer in database", "doc_id", doc.ID, "error", err)
	} else if err := p.store.MarkFailed(ctx, doc.ID); err != nil {
		slog.Error("Failed to mark document as failed", "doc_id", doc.ID, "error", err)
	}

	p.progress.Set(doc.ID, StageError, 0.0, fmt.Sprintf("Processing failed: %v", cause))
	return cause
}
