package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/embeddings"
)

// ChromemStore is the embedded, dense-only backend. Sparse vectors are not
// supported, so hybrid fusion degenerates to dense ranking; fine for tests
// and single-binary dev setups.
type ChromemStore struct {
	cfg      *config.VectorStoreConfig
	db       *chromem.DB
	embedder *embeddings.Service
}

// NewChromemStore opens an in-memory or persistent chromem database.
func NewChromemStore(cfg *config.VectorStoreConfig, embedder *embeddings.Service) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if cfg.ChromemPath != "" {
		db, err = chromem.NewPersistentDB(cfg.ChromemPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	return &ChromemStore{cfg: cfg, db: db, embedder: embedder}, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedOne(ctx, text)
	}
}

func (s *ChromemStore) collection(docID int64) string {
	return CollectionName(s.cfg.CollectionPrefix, docID)
}

func (s *ChromemStore) EnsureCollection(_ context.Context, docID int64) error {
	_, err := s.db.GetOrCreateCollection(s.collection(docID), nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *ChromemStore) ResetCollection(ctx context.Context, docID int64) error {
	if err := s.db.DeleteCollection(s.collection(docID)); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx, docID)
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error {
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(s.collection(docID), nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to open collection: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	dense, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		chunkID := uuid.NewString()
		docs[i] = chromem.Document{
			ID:        chunkID,
			Content:   chunk.Text,
			Embedding: dense[i],
			Metadata: map[string]string{
				"doc_id":        strconv.FormatInt(docID, 10),
				"chunk_id":      chunkID,
				"parent_id":     strconv.Itoa(chunk.ParentID),
				"document_name": documentName,
				"section":       chunk.Section,
				"position":      chunk.Position,
				"chunk_index":   strconv.Itoa(chunk.ChunkIndex),
				"total_chunks":  strconv.Itoa(chunk.TotalChunks),
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, docIDs []int64, topK int) ([]SearchResult, error) {
	if len(docIDs) == 0 {
		return []SearchResult{}, nil
	}

	dense, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	perCollection := topK
	if perCollection < 5 {
		perCollection = 5
	}

	var results []SearchResult
	for _, docID := range docIDs {
		col := s.db.GetCollection(s.collection(docID), s.embeddingFunc())
		if col == nil {
			continue
		}

		n := perCollection
		if count := col.Count(); count < n {
			n = count
		}
		if n == 0 {
			continue
		}

		hits, err := col.QueryEmbedding(ctx, dense, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query collection: %w", err)
		}
		for _, hit := range hits {
			result := resultFromChromem(hit.Metadata, hit.Content)
			result.Score = float64(hit.Similarity)
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *ChromemStore) MetadataChunks(ctx context.Context, docIDs []int64) ([]SearchResult, error) {
	// chromem has no scroll; a filtered query against a fixed probe
	// embedding fetches the metadata chunks instead.
	probe, err := s.embedder.EmbedOne(ctx, "document metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to embed metadata probe: %w", err)
	}

	var results []SearchResult
	for _, docID := range docIDs {
		col := s.db.GetCollection(s.collection(docID), s.embeddingFunc())
		if col == nil {
			continue
		}

		if col.Count() == 0 {
			continue
		}

		// Each document carries at most one metadata chunk.
		hits, err := col.QueryEmbedding(ctx, probe, 1, map[string]string{"section": chunking.SectionMetadata}, nil)
		if err != nil {
			slog.Debug("Metadata query failed, skipping document", "doc_id", docID, "error", err)
			continue
		}
		for _, hit := range hits {
			result := resultFromChromem(hit.Metadata, hit.Content)
			result.Score = 0
			result.IsMetadataInjection = true
			results = append(results, result)
		}
	}
	return results, nil
}

func (s *ChromemStore) DocumentExists(_ context.Context, docID int64) (bool, error) {
	col := s.db.GetCollection(s.collection(docID), s.embeddingFunc())
	return col != nil && col.Count() > 0, nil
}

func (s *ChromemStore) DeleteDocument(_ context.Context, docID int64) error {
	if err := s.db.DeleteCollection(s.collection(docID)); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

func (s *ChromemStore) CleanupOrphans(_ context.Context, valid map[int64]bool) ([]string, error) {
	var deleted []string
	for name := range s.db.ListCollections() {
		docID, ok := docIDFromCollection(s.cfg.CollectionPrefix, name)
		if !ok || valid[docID] {
			continue
		}
		if err := s.db.DeleteCollection(name); err != nil {
			slog.Warn("Failed to delete orphaned collection", "collection", name, "error", err)
			continue
		}
		deleted = append(deleted, name)
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (s *ChromemStore) CollectionMap(_ context.Context, docIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(docIDs))
	for _, docID := range docIDs {
		name := s.collection(docID)
		if s.db.GetCollection(name, s.embeddingFunc()) != nil {
			out[docID] = name
		}
	}
	return out, nil
}

func (s *ChromemStore) Close() error { return nil }

func resultFromChromem(meta map[string]string, content string) SearchResult {
	docID, _ := strconv.ParseInt(meta["doc_id"], 10, 64)
	parentID, _ := strconv.Atoi(meta["parent_id"])
	return SearchResult{
		DocID:        docID,
		ChunkID:      meta["chunk_id"],
		ParentID:     parentID,
		Text:         content,
		DocumentName: meta["document_name"],
		Section:      meta["section"],
		Position:     meta["position"],
	}
}
