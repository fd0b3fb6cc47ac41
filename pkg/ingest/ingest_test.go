package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/docmeta"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/extraction"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
)

type fakeVectorStore struct {
	added       map[int64][]chunking.Child
	deleted     []int64
	failAdd     bool
	failEnsure  bool
	ensureCalls int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{added: make(map[int64][]chunking.Child)}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, docID int64) error {
	f.ensureCalls++
	if f.failEnsure {
		return fmt.Errorf("ensure failed")
	}
	return nil
}

func (f *fakeVectorStore) ResetCollection(ctx context.Context, docID int64) error {
	f.added[docID] = nil
	return nil
}

func (f *fakeVectorStore) AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error {
	if f.failAdd {
		return fmt.Errorf("add failed")
	}
	f.added[docID] = append(f.added[docID], chunks...)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, query string, docIDs []int64, topK int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) MetadataChunks(ctx context.Context, docIDs []int64) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) DocumentExists(ctx context.Context, docID int64) (bool, error) {
	return len(f.added[docID]) > 0, nil
}

func (f *fakeVectorStore) DeleteDocument(ctx context.Context, docID int64) error {
	f.deleted = append(f.deleted, docID)
	delete(f.added, docID)
	return nil
}

func (f *fakeVectorStore) CleanupOrphans(ctx context.Context, valid map[int64]bool) ([]string, error) {
	return nil, nil
}

func (f *fakeVectorStore) CollectionMap(ctx context.Context, docIDs []int64) (map[int64]string, error) {
	return map[int64]string{}, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func newTestStorage(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewWithDB(context.Background(), db, "sqlite")
	require.NoError(t, err)
	return store
}

func newTestPipeline(t *testing.T, store *storage.Store, vectors *fakeVectorStore) *Pipeline {
	t.Helper()
	parents, err := chunking.NewParentStore(t.TempDir())
	require.NoError(t, err)

	extractor := extraction.New(nil)
	metaCfg := &config.MetadataConfig{UseLLM: false}
	chunker := chunking.New(&config.ChunkingConfig{
		ParentSize: 200, ParentOverlap: 40,
		ChildSize: 80, ChildOverlap: 16,
	})

	return NewPipeline(store, extractor, docmeta.New(metaCfg, nil, extractor),
		chunker, parents, vectors, NewProgressStore())
}

func writeUpload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipelineProcessSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	vectors := newFakeVectorStore()
	p := newTestPipeline(t, store, vectors)

	path := writeUpload(t, strings.Repeat("Hybrid retrieval combines dense and sparse signals. ", 20))
	doc, err := store.CreateDocument(ctx, "notes.txt", path)
	require.NoError(t, err)

	require.NoError(t, p.Process(ctx, doc))

	loaded, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Processed)
	assert.False(t, loaded.Failed())
	require.NotNil(t, loaded.NumChunks)
	assert.Equal(t, len(vectors.added[doc.ID]), *loaded.NumChunks)
	assert.NotEmpty(t, loaded.ParentsPath)

	// Metadata chunk leads the upserted chunks.
	require.NotEmpty(t, vectors.added[doc.ID])
	assert.True(t, vectors.added[doc.ID][0].IsMetadata)

	parents, err := p.parents.Load(doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, parents)

	status, ok := p.progress.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, StageComplete, status.Stage)
	assert.Equal(t, 1.0, status.Progress)
}

func TestPipelineProcessExtractionFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	vectors := newFakeVectorStore()
	p := newTestPipeline(t, store, vectors)

	doc, err := store.CreateDocument(ctx, "missing.txt", filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)

	err = p.Process(ctx, doc)
	require.Error(t, err)

	loaded, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Processed)
	assert.True(t, loaded.Failed())

	status, ok := p.progress.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, StageError, status.Stage)
	assert.Contains(t, status.Message, "Processing failed:")
	assert.Zero(t, status.Progress)
}

func TestPipelineProcessEmbedFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	vectors := newFakeVectorStore()
	vectors.failAdd = true
	p := newTestPipeline(t, store, vectors)

	path := writeUpload(t, strings.Repeat("content ", 50))
	doc, err := store.CreateDocument(ctx, "notes.txt", path)
	require.NoError(t, err)

	require.Error(t, p.Process(ctx, doc))

	assert.Contains(t, vectors.deleted, doc.ID)
	_, err = p.parents.Load(doc.ID)
	assert.Error(t, err)

	loaded, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Failed())

	// Failed documents do not come back as pending.
	pending, err := store.ListPendingDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorkerProcessesPendingAndSkipsFailed(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	vectors := newFakeVectorStore()
	p := newTestPipeline(t, store, vectors)
	w := NewWorker(store, p, &config.IngestConfig{CheckInterval: time.Hour})

	good, err := store.CreateDocument(ctx, "good.txt", writeUpload(t, strings.Repeat("usable text ", 40)))
	require.NoError(t, err)
	bad, err := store.CreateDocument(ctx, "gone.txt", filepath.Join(t.TempDir(), "gone.txt"))
	require.NoError(t, err)

	w.scan(ctx)

	loadedGood, err := store.GetDocument(ctx, good.ID)
	require.NoError(t, err)
	assert.True(t, loadedGood.Processed)
	assert.False(t, loadedGood.Failed())

	loadedBad, err := store.GetDocument(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, loadedBad.Failed())

	// A second scan finds nothing to do.
	before := vectors.ensureCalls
	w.scan(ctx)
	assert.Equal(t, before, vectors.ensureCalls)
}

func TestWorkerTriggerNeverBlocks(t *testing.T) {
	w := NewWorker(nil, nil, nil)
	for i := 0; i < 5; i++ {
		w.Trigger()
	}
}

func TestWorkerCurrentlyProcessing(t *testing.T) {
	w := NewWorker(nil, nil, nil)
	_, busy := w.CurrentlyProcessing()
	assert.False(t, busy)

	w.mu.Lock()
	w.currentID = 7
	w.busy = true
	w.mu.Unlock()

	id, busy := w.CurrentlyProcessing()
	assert.True(t, busy)
	assert.Equal(t, int64(7), id)
}

func TestProgressStore(t *testing.T) {
	ps := NewProgressStore()

	_, ok := ps.Get(1)
	assert.False(t, ok)

	ps.Set(1, StageEmbedding, 0.5, "Embedding chunk 5/10")
	status, ok := ps.Get(1)
	require.True(t, ok)
	assert.Equal(t, StageEmbedding, status.Stage)
	assert.Equal(t, 0.5, status.Progress)
	assert.False(t, status.UpdatedAt.IsZero())

	snapshot := ps.Snapshot()
	assert.Len(t, snapshot, 1)

	ps.Delete(1)
	_, ok = ps.Get(1)
	assert.False(t, ok)
}
