package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/embeddings"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "doc_42", CollectionName("doc_", 42))
	assert.Equal(t, "papers-7", CollectionName("papers-", 7))
}

func TestDocIDFromCollection(t *testing.T) {
	id, ok := docIDFromCollection("doc_", "doc_42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = docIDFromCollection("doc_", "other_42")
	assert.False(t, ok)

	_, ok = docIDFromCollection("doc_", "doc_backup")
	assert.False(t, ok)
}

func TestNewUnsupportedBackend(t *testing.T) {
	_, err := New(&config.VectorStoreConfig{Backend: "pinecone"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vector store backend")
}

// hashEmbedder produces deterministic unit vectors so chromem's cosine
// similarity behaves sensibly in tests.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()
		var norm float64
		for j := range vec {
			seed = seed*1664525 + 1013904223
			vec[j] = float32(seed%1000)/1000 - 0.5
			norm += float64(vec[j]) * float64(vec[j])
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (hashEmbedder) Dimension() int                 { return 8 }
func (hashEmbedder) Warmup(_ context.Context) error { return nil }

func newChromemTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	svc, err := embeddings.NewService(context.Background(), hashEmbedder{}, 100)
	require.NoError(t, err)

	store, err := NewChromemStore(&config.VectorStoreConfig{
		Backend:          "chromem",
		CollectionPrefix: "doc_",
	}, svc)
	require.NoError(t, err)
	return store
}

func testChunks(meta string) []chunking.Child {
	chunks := []chunking.Child{
		{Text: "neural retrieval systems", ParentID: 1, Section: chunking.SectionBody, Position: chunking.PositionMiddle},
		{Text: "sparse lexical matching", ParentID: 2, Section: chunking.SectionBody, Position: chunking.PositionMiddle},
	}
	if meta != "" {
		chunks = append([]chunking.Child{{
			Text:       meta,
			ParentID:   0,
			Section:    chunking.SectionMetadata,
			Position:   chunking.PositionMetadata,
			IsMetadata: true,
		}}, chunks...)
	}
	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

func TestChromemAddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 1))
	require.NoError(t, store.AddDocuments(ctx, 1, "paper.pdf", testChunks("")))

	exists, err := store.DocumentExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := store.Search(ctx, "neural retrieval systems", []int64{1}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].DocID)
	assert.Equal(t, "paper.pdf", results[0].DocumentName)
	assert.Equal(t, "neural retrieval systems", results[0].Text)
}

func TestChromemSearchEmptyDocIDs(t *testing.T) {
	store := newChromemTestStore(t)
	results, err := store.Search(context.Background(), "anything", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemSearchSkipsMissingCollections(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 1))
	require.NoError(t, store.AddDocuments(ctx, 1, "a.pdf", testChunks("")))

	results, err := store.Search(ctx, "sparse lexical matching", []int64{1, 99}, 4)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, int64(1), r.DocID)
	}
}

func TestChromemMetadataChunks(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	meta := "=== DOCUMENT METADATA ===\nFilename: a.pdf\n=== END METADATA ==="
	require.NoError(t, store.EnsureCollection(ctx, 5))
	require.NoError(t, store.AddDocuments(ctx, 5, "a.pdf", testChunks(meta)))

	results, err := store.MetadataChunks(ctx, []int64{5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, meta, results[0].Text)
	assert.True(t, results[0].IsMetadataInjection)
	assert.Zero(t, results[0].Score)
}

func TestChromemCleanupOrphans(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 1))
	require.NoError(t, store.EnsureCollection(ctx, 2))
	require.NoError(t, store.EnsureCollection(ctx, 3))

	deleted, err := store.CleanupOrphans(ctx, map[int64]bool{1: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_2", "doc_3"}, deleted)

	exists, err := store.DocumentExists(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemCollectionMap(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 7))

	m, err := store.CollectionMap(ctx, []int64{7, 8})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{7: "doc_7"}, m)
}

func TestChromemDeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := newChromemTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 9))
	require.NoError(t, store.AddDocuments(ctx, 9, "d.pdf", testChunks("")))
	require.NoError(t, store.DeleteDocument(ctx, 9))

	exists, err := store.DocumentExists(ctx, 9)
	require.NoError(t, err)
	assert.False(t, exists)
}
