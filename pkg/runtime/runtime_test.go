package runtime

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
)

type reconcileVectors struct {
	existing map[int64]bool
	cleanup  map[int64]bool
	dropped  []string
}

func (f *reconcileVectors) EnsureCollection(ctx context.Context, docID int64) error { return nil }
func (f *reconcileVectors) ResetCollection(ctx context.Context, docID int64) error  { return nil }
func (f *reconcileVectors) AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error {
	return nil
}
func (f *reconcileVectors) Search(ctx context.Context, query string, docIDs []int64, topK int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *reconcileVectors) MetadataChunks(ctx context.Context, docIDs []int64) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *reconcileVectors) DocumentExists(ctx context.Context, docID int64) (bool, error) {
	return f.existing[docID], nil
}
func (f *reconcileVectors) DeleteDocument(ctx context.Context, docID int64) error { return nil }
func (f *reconcileVectors) CleanupOrphans(ctx context.Context, valid map[int64]bool) ([]string, error) {
	f.cleanup = valid
	return f.dropped, nil
}
func (f *reconcileVectors) CollectionMap(ctx context.Context, docIDs []int64) (map[int64]string, error) {
	return map[int64]string{}, nil
}
func (f *reconcileVectors) Close() error { return nil }

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewWithDB(context.Background(), db, "sqlite")
	require.NoError(t, err)
	return store
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	healthy, err := store.CreateDocument(ctx, "healthy.pdf", "/tmp/healthy.pdf")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, healthy.ID, 5, ""))

	lost, err := store.CreateDocument(ctx, "lost.pdf", "/tmp/lost.pdf")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, lost.ID, 5, ""))

	failed, err := store.CreateDocument(ctx, "failed.pdf", "/tmp/failed.pdf")
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, failed.ID))

	vectors := &reconcileVectors{
		existing: map[int64]bool{healthy.ID: true},
		dropped:  []string{"doc_99"},
	}
	r := &Runtime{store: store, vectors: vectors}
	require.NoError(t, r.reconcile(ctx))

	// The document with a live collection stays processed.
	doc, err := store.GetDocument(ctx, healthy.ID)
	require.NoError(t, err)
	assert.True(t, doc.Processed)

	// The one whose collection vanished goes back to pending.
	doc, err = store.GetDocument(ctx, lost.ID)
	require.NoError(t, err)
	assert.False(t, doc.Processed)
	require.NotNil(t, doc.NumChunks)
	assert.Equal(t, 0, *doc.NumChunks)

	// Terminal failures are left alone.
	doc, err = store.GetDocument(ctx, failed.ID)
	require.NoError(t, err)
	assert.True(t, doc.Processed)
	assert.True(t, doc.Failed())

	// Every row counts as valid for orphan cleanup, failed ones included.
	assert.Equal(t, map[int64]bool{healthy.ID: true, lost.ID: true, failed.ID: true}, vectors.cleanup)
}
