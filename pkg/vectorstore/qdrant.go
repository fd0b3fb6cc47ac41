package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/embeddings"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// QdrantStore keeps one hybrid collection per document in a qdrant server.
type QdrantStore struct {
	cfg      *config.VectorStoreConfig
	client   *qdrant.Client
	embedder *embeddings.Service
}

// NewQdrantStore connects to qdrant over gRPC.
func NewQdrantStore(cfg *config.VectorStoreConfig, embedder *embeddings.Service) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.GRPCPort,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{cfg: cfg, client: client, embedder: embedder}, nil
}

func (s *QdrantStore) collection(docID int64) string {
	return CollectionName(s.cfg.CollectionPrefix, docID)
}

// EnsureCollection keeps hybrid-ready collections, recreates legacy ones and
// creates missing ones.
func (s *QdrantStore) EnsureCollection(ctx context.Context, docID int64) error {
	name := s.collection(docID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		ready, err := s.hybridReady(ctx, name)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		slog.Info("Recreating legacy collection with hybrid vectors", "collection", name)
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to delete legacy collection %s: %w", name, err)
		}
	}
	return s.createCollection(ctx, name)
}

// ResetCollection drops and recreates the document's collection.
func (s *QdrantStore) ResetCollection(ctx context.Context, docID int64) error {
	name := s.collection(docID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", name, err)
		}
	}
	return s.createCollection(ctx, name)
}

// hybridReady reports whether the collection has both named vectors.
func (s *QdrantStore) hybridReady(ctx context.Context, name string) (bool, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to inspect collection %s: %w", name, err)
	}

	params := info.GetConfig().GetParams()
	denseOK := params.GetVectorsConfig().GetParamsMap().GetMap()[denseVectorName] != nil
	sparseOK := params.GetSparseVectorsConfig().GetMap()[sparseVectorName] != nil
	return denseOK && sparseOK, nil
}

func (s *QdrantStore) createCollection(ctx context.Context, name string) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(s.embedder.Dimension()),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
		QuantizationConfig: qdrant.NewQuantizationScalar(&qdrant.ScalarQuantization{
			Type:      qdrant.QuantizationType_Int8,
			Quantile:  qdrant.PtrOf(float32(0.99)),
			AlwaysRam: qdrant.PtrOf(true),
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	for field, fieldType := range map[string]qdrant.FieldType{
		"doc_id":    qdrant.FieldType_FieldTypeInteger,
		"section":   qdrant.FieldType_FieldTypeKeyword,
		"parent_id": qdrant.FieldType_FieldTypeInteger,
	} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to index payload field %s on %s: %w", field, name, err)
		}
	}
	return nil
}

// AddDocuments embeds and upserts all chunks of a document. Dimension
// mismatches from stale collections trigger one reset-and-retry.
func (s *QdrantStore) AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	dense, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		indices, values := embeddings.SparseEncode(chunk.Text)
		chunkID := uuid.NewString()

		points[i] = &qdrant.PointStruct{
			Id: qdrant.NewID(chunkID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				denseVectorName:  qdrant.NewVectorDense(dense[i]),
				sparseVectorName: qdrant.NewVectorSparse(indices, values),
			}),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":        docID,
				"chunk_id":      chunkID,
				"parent_id":     chunk.ParentID,
				"text":          chunk.Text,
				"document_name": documentName,
				"section":       chunk.Section,
				"position":      chunk.Position,
				"chunk_index":   chunk.ChunkIndex,
				"total_chunks":  chunk.TotalChunks,
			}),
		}
	}

	if err := s.upsert(ctx, docID, points); err != nil {
		if !isVectorConfigError(err) {
			return err
		}
		slog.Warn("Upsert hit a vector config mismatch, resetting collection", "doc_id", docID, "error", err)
		if resetErr := s.ResetCollection(ctx, docID); resetErr != nil {
			return resetErr
		}
		return s.upsert(ctx, docID, points)
	}
	return nil
}

func (s *QdrantStore) upsert(ctx context.Context, docID int64, points []*qdrant.PointStruct) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection(docID),
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points for document %d: %w", docID, err)
	}
	return nil
}

func isVectorConfigError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "vector") || strings.Contains(msg, "size") || strings.Contains(msg, "dimension")
}

// Search runs one hybrid RRF query per document collection and merges the
// results globally.
func (s *QdrantStore) Search(ctx context.Context, query string, docIDs []int64, topK int) ([]SearchResult, error) {
	if len(docIDs) == 0 {
		return []SearchResult{}, nil
	}

	dense, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	indices, values := embeddings.SparseEncode(query)

	perCollection := topK
	if perCollection < 5 {
		perCollection = 5
	}
	prefetchLimit := uint64(2 * perCollection)

	var results []SearchResult
	for _, docID := range docIDs {
		name := s.collection(docID)
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
		}
		if !exists {
			continue
		}

		prefetch := []*qdrant.PrefetchQuery{
			{
				Query: qdrant.NewQueryDense(dense),
				Using: qdrant.PtrOf(denseVectorName),
				Limit: qdrant.PtrOf(prefetchLimit),
			},
		}
		if len(indices) > 0 {
			prefetch = append(prefetch, &qdrant.PrefetchQuery{
				Query: qdrant.NewQuerySparse(indices, values),
				Using: qdrant.PtrOf(sparseVectorName),
				Limit: qdrant.PtrOf(prefetchLimit),
			})
		}

		points, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Prefetch:       prefetch,
			Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
			Limit:          qdrant.PtrOf(uint64(perCollection)),
			WithPayload:    qdrant.NewWithPayload(true),
			Params: &qdrant.SearchParams{
				Quantization: &qdrant.QuantizationSearchParams{
					Rescore:      qdrant.PtrOf(true),
					Oversampling: qdrant.PtrOf(2.0),
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query collection %s: %w", name, err)
		}

		for _, point := range points {
			result := resultFromPayload(point.GetPayload())
			result.Score = float64(point.GetScore())
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// MetadataChunks scrolls the metadata section of each document collection.
func (s *QdrantStore) MetadataChunks(ctx context.Context, docIDs []int64) ([]SearchResult, error) {
	var results []SearchResult
	for _, docID := range docIDs {
		name := s.collection(docID)
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
		}
		if !exists {
			continue
		}

		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch("section", chunking.SectionMetadata),
				},
			},
			Limit:       qdrant.PtrOf(uint32(2)),
			WithPayload: qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll collection %s: %w", name, err)
		}

		for _, point := range points {
			result := resultFromPayload(point.GetPayload())
			result.Score = 0
			result.IsMetadataInjection = true
			results = append(results, result)
		}
	}
	return results, nil
}

// DocumentExists reports a non-empty collection for the document.
func (s *QdrantStore) DocumentExists(ctx context.Context, docID int64) (bool, error) {
	name := s.collection(docID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return false, nil
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name})
	if err != nil {
		return false, fmt.Errorf("failed to count collection %s: %w", name, err)
	}
	return count > 0, nil
}

// DeleteDocument removes the document's collection.
func (s *QdrantStore) DeleteDocument(ctx context.Context, docID int64) error {
	name := s.collection(docID)
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

// CleanupOrphans removes collections for documents no longer in the
// database.
func (s *QdrantStore) CleanupOrphans(ctx context.Context, valid map[int64]bool) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	var deleted []string
	for _, name := range names {
		docID, ok := docIDFromCollection(s.cfg.CollectionPrefix, name)
		if !ok || valid[docID] {
			continue
		}
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			slog.Warn("Failed to delete orphaned collection", "collection", name, "error", err)
			continue
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// CollectionMap maps document ids to their existing collection names.
func (s *QdrantStore) CollectionMap(ctx context.Context, docIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(docIDs))
	for _, docID := range docIDs {
		name := s.collection(docID)
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
		}
		if exists {
			out[docID] = name
		}
	}
	return out, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func resultFromPayload(payload map[string]*qdrant.Value) SearchResult {
	return SearchResult{
		DocID:        payload["doc_id"].GetIntegerValue(),
		ChunkID:      payload["chunk_id"].GetStringValue(),
		ParentID:     int(payload["parent_id"].GetIntegerValue()),
		Text:         payload["text"].GetStringValue(),
		DocumentName: payload["document_name"].GetStringValue(),
		Section:      payload["section"].GetStringValue(),
		Position:     payload["position"].GetStringValue(),
	}
}
