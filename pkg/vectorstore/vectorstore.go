// Package vectorstore persists document chunks as hybrid dense+sparse
// vectors, one collection per document. The qdrant backend is the primary
// one; chromem serves tests and single-binary dev setups.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/embeddings"
)

// SearchResult is one scored chunk coming back from retrieval.
type SearchResult struct {
	DocID               int64
	ChunkID             string
	ParentID            int
	Text                string
	DocumentName        string
	Section             string
	Position            string
	Score               float64
	IsMetadataInjection bool
}

// Store is the per-document vector collection interface.
type Store interface {
	// EnsureCollection makes sure a hybrid-ready collection exists for the
	// document, recreating legacy dense-only ones.
	EnsureCollection(ctx context.Context, docID int64) error

	// ResetCollection drops and recreates the document's collection.
	ResetCollection(ctx context.Context, docID int64) error

	// AddDocuments embeds and upserts the chunks of one document.
	AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error

	// Search runs hybrid retrieval across the given documents and returns
	// the global topK by fused score.
	Search(ctx context.Context, query string, docIDs []int64, topK int) ([]SearchResult, error)

	// MetadataChunks fetches the metadata chunks of the given documents
	// without similarity search.
	MetadataChunks(ctx context.Context, docIDs []int64) ([]SearchResult, error)

	// DocumentExists reports whether the document has a non-empty collection.
	DocumentExists(ctx context.Context, docID int64) (bool, error)

	// DeleteDocument removes the document's collection.
	DeleteDocument(ctx context.Context, docID int64) error

	// CleanupOrphans deletes collections whose document id is not in valid
	// and returns the deleted collection names.
	CleanupOrphans(ctx context.Context, valid map[int64]bool) ([]string, error)

	// CollectionMap maps document ids to their collection names, for
	// diagnostics.
	CollectionMap(ctx context.Context, docIDs []int64) (map[int64]string, error)

	Close() error
}

// New creates the vector store backend named by the configuration.
func New(cfg *config.VectorStoreConfig, embedder *embeddings.Service) (Store, error) {
	switch cfg.Backend {
	case "qdrant":
		return NewQdrantStore(cfg, embedder)
	case "chromem":
		return NewChromemStore(cfg, embedder)
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
}

// CollectionName derives the collection name for a document.
func CollectionName(prefix string, docID int64) string {
	return prefix + strconv.FormatInt(docID, 10)
}

// docIDFromCollection parses the document id back out of a collection name.
// Names without the prefix or with a non-numeric suffix return false.
func docIDFromCollection(prefix, name string) (int64, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
