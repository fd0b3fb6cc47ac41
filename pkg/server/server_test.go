package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/ingest"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/rag"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/zotero"
)

// ---- fakes ----

type fakeEngine struct {
	steps    []rag.Step
	contexts []string
	sources  []rag.Source
	retErr   error
	tokens   []string
	genErr   error

	gotQuery string
	gotDocs  []int64
}

func (f *fakeEngine) Retrieve(ctx context.Context, query string, activeDocs []int64, emit func(rag.Step)) ([]string, []rag.Source, []rag.Step, error) {
	f.gotQuery = query
	f.gotDocs = activeDocs
	for _, step := range f.steps {
		if emit != nil {
			emit(step)
		}
	}
	if f.retErr != nil {
		return nil, nil, f.steps, f.retErr
	}
	return f.contexts, f.sources, f.steps, nil
}

func (f *fakeEngine) GenerateStream(ctx context.Context, question string, contexts []string, history []llms.Message) (<-chan llms.StreamChunk, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	ch := make(chan llms.StreamChunk, len(f.tokens)+1)
	for _, tok := range f.tokens {
		ch <- llms.StreamChunk{Type: "text", Text: tok}
	}
	ch <- llms.StreamChunk{Type: "done"}
	close(ch)
	return ch, nil
}

type fakeWorker struct {
	triggers  int
	currentID int64
	busy      bool
}

func (f *fakeWorker) Trigger()                           { f.triggers++ }
func (f *fakeWorker) CurrentlyProcessing() (int64, bool) { return f.currentID, f.busy }

type fakeVectors struct {
	resets  []int64
	deletes []int64
}

func (f *fakeVectors) EnsureCollection(ctx context.Context, docID int64) error { return nil }
func (f *fakeVectors) ResetCollection(ctx context.Context, docID int64) error {
	f.resets = append(f.resets, docID)
	return nil
}
func (f *fakeVectors) AddDocuments(ctx context.Context, docID int64, documentName string, chunks []chunking.Child) error {
	return nil
}
func (f *fakeVectors) Search(ctx context.Context, query string, docIDs []int64, topK int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *fakeVectors) MetadataChunks(ctx context.Context, docIDs []int64) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *fakeVectors) DocumentExists(ctx context.Context, docID int64) (bool, error) {
	return true, nil
}
func (f *fakeVectors) DeleteDocument(ctx context.Context, docID int64) error {
	f.deletes = append(f.deletes, docID)
	return nil
}
func (f *fakeVectors) CleanupOrphans(ctx context.Context, valid map[int64]bool) ([]string, error) {
	return nil, nil
}
func (f *fakeVectors) CollectionMap(ctx context.Context, docIDs []int64) (map[int64]string, error) {
	return map[int64]string{}, nil
}
func (f *fakeVectors) Close() error { return nil }

type fakeZotero struct {
	result *zotero.Result
	status *zotero.LibraryStatus
	err    error
}

func (f *fakeZotero) SyncAll(ctx context.Context) (*zotero.Result, error) { return f.result, f.err }
func (f *fakeZotero) SyncNew(ctx context.Context) (*zotero.Result, error) { return f.result, f.err }
func (f *fakeZotero) Status(ctx context.Context) (*zotero.LibraryStatus, error) {
	return f.status, f.err
}

// ---- fixture ----

type fixture struct {
	server   *Server
	handler  http.Handler
	store    *storage.Store
	vectors  *fakeVectors
	worker   *fakeWorker
	engine   *fakeEngine
	progress *ingest.ProgressStore
	cfg      *config.Config
}

func newFixture(t *testing.T, zot ZoteroService) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewWithDB(context.Background(), db, "sqlite")
	require.NoError(t, err)

	parents, err := chunking.NewParentStore(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Paths.UploadDir = t.TempDir()

	f := &fixture{
		store:    store,
		vectors:  &fakeVectors{},
		worker:   &fakeWorker{},
		engine:   &fakeEngine{},
		progress: ingest.NewProgressStore(),
		cfg:      cfg,
	}
	f.server = New(Deps{
		Config:   cfg,
		Store:    store,
		Vectors:  f.vectors,
		Parents:  parents,
		Engine:   f.engine,
		Worker:   f.worker,
		Progress: f.progress,
		Zotero:   zot,
	})
	f.handler = f.server.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// sseFrames parses data: frames into JSON objects.
func sseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func frameTypes(frames []map[string]any) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		types = append(types, f["type"].(string))
	}
	return types
}

func addProcessedDoc(t *testing.T, f *fixture, filename string) *storage.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := f.store.CreateDocument(ctx, filename, filepath.Join(f.cfg.Paths.UploadDir, filename))
	require.NoError(t, err)
	require.NoError(t, f.store.MarkProcessed(ctx, doc.ID, 3, ""))
	doc, err = f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	return doc
}

// ---- tests ----

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSchemaEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/schema", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	schema := decodeJSON[map[string]any](t, rec)
	assert.NotEmpty(t, schema)
}

func TestChatLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/chats", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code)
	chat := decodeJSON[storage.Chat](t, rec)
	assert.Equal(t, "New Chat", chat.Title)

	rec = f.do(t, http.MethodPost, "/chats", map[string]string{"title": "Thesis notes"})
	require.Equal(t, http.StatusCreated, rec.Code)
	named := decodeJSON[storage.Chat](t, rec)
	assert.Equal(t, "Thesis notes", named.Title)

	rec = f.do(t, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decodeJSON[[]storage.Chat](t, rec)
	assert.Len(t, chats, 2)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%d", chat.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/chats/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Chat not found"}`, rec.Body.String())

	_, err := f.store.AddMessage(context.Background(), chat.ID, "user", "hello")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%d/messages", chat.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decodeJSON[[]storage.Message](t, rec)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/chats/%d", chat.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%d/messages", chat.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t, nil)

	buf, contentType := uploadRequest(t, "paper.pdf", "%PDF-1.4 content")
	req := httptest.NewRequest(http.MethodPost, "/documents", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeJSON[storage.Document](t, rec)
	assert.Equal(t, "paper.pdf", doc.Filename)
	assert.False(t, doc.Processed)
	assert.Equal(t, 1, f.worker.triggers)

	data, err := os.ReadFile(filepath.Join(f.cfg.Paths.UploadDir, "paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))

	// Same filename again is rejected.
	buf, contentType = uploadRequest(t, "paper.pdf", "other")
	req = httptest.NewRequest(http.MethodPost, "/documents", buf)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
	assert.Equal(t, 1, f.worker.triggers)
}

func TestListDocumentsProcessingFlag(t *testing.T) {
	f := newFixture(t, nil)
	doc := addProcessedDoc(t, f, "a.pdf")
	addProcessedDoc(t, f, "b.pdf")

	f.worker.currentID = doc.ID
	f.worker.busy = true

	rec := f.do(t, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, true, views[0]["is_actively_processing"])
	assert.Equal(t, false, views[1]["is_actively_processing"])
}

func TestDocumentPreferences(t *testing.T) {
	f := newFixture(t, nil)
	doc := addProcessedDoc(t, f, "a.pdf")

	rec := f.do(t, http.MethodPatch, fmt.Sprintf("/documents/%d/preferences", doc.ID),
		map[string]bool{"query_enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeJSON[storage.Document](t, rec)
	assert.False(t, updated.QueryEnabled)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/documents/%d/preferences", doc.ID),
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/documents/999/preferences",
		map[string]bool{"query_enabled": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReprocessDocument(t *testing.T) {
	f := newFixture(t, nil)
	doc := addProcessedDoc(t, f, "a.pdf")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/documents/%d/reprocess", doc.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeJSON[storage.Document](t, rec)
	assert.False(t, updated.Processed)
	assert.Equal(t, []int64{doc.ID}, f.vectors.resets)
	assert.Equal(t, 1, f.worker.triggers)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t, nil)
	doc := addProcessedDoc(t, f, "a.pdf")
	require.NoError(t, os.WriteFile(doc.FilePath, []byte("x"), 0o644))

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/documents/%d", doc.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{doc.ID}, f.vectors.deletes)

	_, err := os.Stat(doc.FilePath)
	assert.True(t, os.IsNotExist(err))

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/documents/%d", doc.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessingStreamComplete(t *testing.T) {
	f := newFixture(t, nil)
	doc := addProcessedDoc(t, f, "a.pdf")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/documents/%d/processing-stream", doc.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "complete", frames[0]["type"])
}

func TestProcessingStreamFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, err := f.store.CreateDocument(ctx, "bad.pdf", "/tmp/bad.pdf")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkFailed(ctx, doc.ID))
	f.progress.Set(doc.ID, ingest.StageError, 0, "Processing failed: boom")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/documents/%d/processing-stream", doc.ID), nil)
	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
	assert.Equal(t, "Processing failed: boom", frames[0]["message"])
}

func TestProcessingStreamNotFound(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/documents/999/processing-stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Document not found"}`, rec.Body.String())
}

func newChatWithDocs(t *testing.T, f *fixture) *storage.Chat {
	t.Helper()
	addProcessedDoc(t, f, "a.pdf")
	chat, err := f.store.CreateChat(context.Background(), "test")
	require.NoError(t, err)
	return chat
}

func TestQueryStreamHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	chat := newChatWithDocs(t, f)

	f.engine.steps = []rag.Step{
		{Type: "start", Message: "Starting iterative multi-query retrieval..."},
		{Type: "complete", Message: "Retrieved 1 contexts"},
	}
	f.engine.contexts = []string{"parent text"}
	f.engine.sources = []rag.Source{{Label: "a.pdf (Relevanz: 90%)", Content: "parent text", Document: "a.pdf", Score: "0.900"}}
	f.engine.tokens = []string{"Hel", "lo"}

	rec := f.do(t, http.MethodPost, "/query/stream",
		map[string]any{"chat_id": chat.ID, "question": "What is this about?"})
	require.Equal(t, http.StatusOK, rec.Code)

	frames := sseFrames(t, rec.Body.String())
	assert.Equal(t, []string{"thinking", "thinking", "chunk", "chunk", "end"}, frameTypes(frames))

	end := frames[len(frames)-1]
	assert.Equal(t, "Hello", end["content"])
	assert.NotNil(t, end["sources"])
	assert.Greater(t, end["message_id"].(float64), float64(0))

	messages, err := f.store.ListMessages(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "What is this about?", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "Hello", messages[1].Content)

	assert.Equal(t, []int64{1}, f.engine.gotDocs)
}

func TestQueryStreamNoActiveDocuments(t *testing.T) {
	f := newFixture(t, nil)
	chat, err := f.store.CreateChat(context.Background(), "test")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/query/stream",
		map[string]any{"chat_id": chat.ID, "question": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"No active documents selected for querying."}`, rec.Body.String())
}

func TestQueryStreamChatNotFound(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/query/stream",
		map[string]any{"chat_id": 42, "question": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryStreamRetrievalError(t *testing.T) {
	f := newFixture(t, nil)
	chat := newChatWithDocs(t, f)
	f.engine.retErr = fmt.Errorf("reranking failed: boom")

	rec := f.do(t, http.MethodPost, "/query/stream",
		map[string]any{"chat_id": chat.ID, "question": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	frames := sseFrames(t, rec.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last["type"])
	assert.Equal(t, "Error processing query", last["message"])
}

func TestQueryStreamNoContexts(t *testing.T) {
	f := newFixture(t, nil)
	chat := newChatWithDocs(t, f)
	f.engine.contexts = nil

	rec := f.do(t, http.MethodPost, "/query/stream",
		map[string]any{"chat_id": chat.ID, "question": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	frames := sseFrames(t, rec.Body.String())
	types := frameTypes(frames)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, "chunk", types[len(types)-2])
	assert.Equal(t, "end", types[len(types)-1])

	end := frames[len(frames)-1]
	assert.Equal(t, noAnswerMessage, end["content"])
	assert.Equal(t, []any{}, end["sources"])

	messages, err := f.store.ListMessages(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, noAnswerMessage, messages[1].Content)
}

func TestZoteroDisabled(t *testing.T) {
	f := newFixture(t, nil)
	for _, call := range []struct{ method, path string }{
		{http.MethodPost, "/zotero/sync"},
		{http.MethodPost, "/zotero/sync/new"},
		{http.MethodGet, "/zotero/status"},
	} {
		rec := f.do(t, call.method, call.path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"detail":"Zotero is not configured."}`, rec.Body.String())
	}
}

func TestZoteroSyncTriggersWorker(t *testing.T) {
	zot := &fakeZotero{
		result: &zotero.Result{Queued: 2},
		status: &zotero.LibraryStatus{Enabled: true, TotalItems: 5, PDFAttachments: 2},
	}
	f := newFixture(t, zot)

	rec := f.do(t, http.MethodPost, "/zotero/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeJSON[zotero.Result](t, rec)
	assert.Equal(t, 2, result.Queued)
	assert.Equal(t, 1, f.worker.triggers)

	rec = f.do(t, http.MethodGet, "/zotero/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeJSON[zotero.LibraryStatus](t, rec)
	assert.True(t, status.Enabled)
}
