package zotero

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
)

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

// fakeLibrary serves the items list and attachment downloads.
func fakeLibrary(t *testing.T, items []Item) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/42/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Zotero-API-Key"))
		assert.Equal(t, "attachment", r.URL.Query().Get("itemType"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		page := items[start:end]

		w.Header().Set("Total-Results", strconv.Itoa(len(items)))
		json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/users/42/items/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.4 fake")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL string) *config.ZoteroConfig {
	cfg := &config.ZoteroConfig{
		Enabled: true,
		APIKey:  "secret",
		UserID:  "42",
		BaseURL: baseURL,
	}
	cfg.SetDefaults()
	cfg.BaseURL = baseURL
	return cfg
}

func attachment(key, filename, contentType string) Item {
	return Item{Key: key, Data: ItemData{
		ItemType:    "attachment",
		Filename:    filename,
		ContentType: contentType,
	}}
}

func TestSyncNewQueuesAndSkips(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	items := []Item{
		attachment("K1", "paper.pdf", "application/pdf"),
		attachment("K2", "scan.PDF", "application/octet-stream"),
		attachment("K3", "notes.txt", "text/plain"),
		attachment("K4", "", ""),
	}
	server := fakeLibrary(t, items)

	svc := NewSyncService(testConfig(server.URL), NewClient(testConfig(server.URL)), store, t.TempDir())

	result, err := svc.SyncNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.Failed)

	byKey := map[string]FileResult{}
	for _, f := range result.Files {
		byKey[f.Key] = f
	}
	assert.Equal(t, StatusQueued, byKey["K1"].Status)
	assert.Equal(t, StatusQueued, byKey["K2"].Status)
	assert.Equal(t, ReasonNotPDF, byKey["K3"].Reason)
	assert.Equal(t, ReasonNotAttachment, byKey["K4"].Reason)

	doc, err := store.GetDocumentByFilename(ctx, "paper.pdf")
	require.NoError(t, err)
	assert.False(t, doc.Processed)
	data, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF")

	// A second SyncNew skips everything already imported.
	result, err = svc.SyncNew(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Queued)
	assert.Equal(t, 4, result.Skipped)

	byKey = map[string]FileResult{}
	for _, f := range result.Files {
		byKey[f.Key] = f
	}
	assert.Equal(t, ReasonAlreadyExists, byKey["K1"].Reason)
}

func TestSyncAllRedownloadsExisting(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	server := fakeLibrary(t, []Item{attachment("K1", "paper.pdf", "application/pdf")})
	svc := NewSyncService(testConfig(server.URL), NewClient(testConfig(server.URL)), store, t.TempDir())

	result, err := svc.SyncNew(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Queued)

	doc, err := store.GetDocumentByFilename(ctx, "paper.pdf")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, doc.ID, 3, "/parents/doc.json"))

	result, err = svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)

	// The existing document is reset to pending, not duplicated.
	again, err := store.GetDocumentByFilename(ctx, "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
	assert.False(t, again.Processed)
}

func TestListAttachmentsPaginates(t *testing.T) {
	items := make([]Item, 150)
	for i := range items {
		items[i] = attachment(fmt.Sprintf("K%d", i), fmt.Sprintf("p%d.pdf", i), "application/pdf")
	}
	server := fakeLibrary(t, items)

	client := NewClient(testConfig(server.URL))
	got, err := client.ListAttachments(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 150)
	assert.Equal(t, "K149", got[149].Key)
}

func TestStatusCounts(t *testing.T) {
	server := fakeLibrary(t, []Item{
		attachment("K1", "a.pdf", "application/pdf"),
		attachment("K2", "b.txt", "text/plain"),
		attachment("K3", "", ""),
	})
	svc := NewSyncService(testConfig(server.URL), NewClient(testConfig(server.URL)), newTestStore(t), t.TempDir())

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, 3, status.TotalItems)
	assert.Equal(t, 1, status.PDFAttachments)
}

func TestStatusDisabled(t *testing.T) {
	cfg := &config.ZoteroConfig{Enabled: false}
	svc := NewSyncService(cfg, nil, nil, "")

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Zero(t, status.TotalItems)
}

type recordingTrigger struct{ calls int }

func (r *recordingTrigger) Trigger() { r.calls++ }

func TestPollerTriggersWorkerOnQueued(t *testing.T) {
	store := newTestStore(t)
	server := fakeLibrary(t, []Item{attachment("K1", "paper.pdf", "application/pdf")})
	cfg := testConfig(server.URL)
	cfg.PollInterval = time.Hour
	svc := NewSyncService(cfg, NewClient(cfg), store, t.TempDir())

	trigger := &recordingTrigger{}
	p := NewPoller(cfg, svc, trigger)

	p.poll(context.Background())
	assert.Equal(t, 1, trigger.calls)

	// Nothing new on the second poll, so no trigger.
	p.poll(context.Background())
	assert.Equal(t, 1, trigger.calls)
}
