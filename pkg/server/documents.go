package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/ingest"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
)

const (
	processingPollInterval = time.Second
	processingMaxPolls     = 120
)

// documentView is a document row plus whether the worker is on it right
// now.
type documentView struct {
	storage.Document
	IsActivelyProcessing bool `json:"is_actively_processing"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		writeDetail(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	_, err = s.store.GetDocumentByFilename(r.Context(), filename)
	if err == nil {
		writeDetail(w, http.StatusBadRequest, "A document with this filename already exists")
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusInternalServerError, "Failed to check for duplicates")
		return
	}

	uploadDir := s.cfg.Paths.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to prepare upload directory")
		return
	}
	destPath := filepath.Join(uploadDir, filename)
	dest, err := os.Create(destPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to save file")
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		writeDetail(w, http.StatusInternalServerError, "Failed to save file")
		return
	}
	if err := dest.Close(); err != nil {
		os.Remove(destPath)
		writeDetail(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	doc, err := s.store.CreateDocument(r.Context(), filename, destPath)
	if err != nil {
		os.Remove(destPath)
		writeDetail(w, http.StatusInternalServerError, "Failed to create document record")
		return
	}

	s.worker.Trigger()
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	currentID, busy := s.worker.CurrentlyProcessing()
	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, documentView{
			Document:             doc,
			IsActivelyProcessing: busy && doc.ID == currentID,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	if err := s.store.ResetForReprocess(r.Context(), doc.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to reset document")
		return
	}
	if err := s.vectors.ResetCollection(r.Context(), doc.ID); err != nil {
		slog.Warn("Failed to reset collection for reprocess", "doc_id", doc.ID, "error", err)
	}
	if err := s.parents.Delete(doc.ID); err != nil {
		slog.Warn("Failed to delete parent store for reprocess", "doc_id", doc.ID, "error", err)
	}
	s.progress.Delete(doc.ID)
	s.worker.Trigger()

	updated, err := s.store.GetDocument(r.Context(), doc.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type preferencesRequest struct {
	QueryEnabled *bool `json:"query_enabled"`
}

func (s *Server) handleDocumentPreferences(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid document id")
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QueryEnabled == nil {
		writeDetail(w, http.StatusBadRequest, "query_enabled is required")
		return
	}

	err = s.store.SetQueryEnabled(r.Context(), id, *req.QueryEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to update preferences")
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument removes the row first; everything after that is
// best effort so a dead vector backend cannot strand the record.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteDocument(r.Context(), doc.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	if err := s.vectors.DeleteDocument(r.Context(), doc.ID); err != nil {
		slog.Warn("Failed to delete collection", "doc_id", doc.ID, "error", err)
	}
	if err := s.parents.Delete(doc.ID); err != nil {
		slog.Warn("Failed to delete parent store", "doc_id", doc.ID, "error", err)
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to delete file", "path", doc.FilePath, "error", err)
	}
	s.progress.Delete(doc.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleProcessingStream streams ingest progress for one document until
// it completes, fails or the poll budget runs out.
func (s *Server) handleProcessingStream(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	ctx := r.Context()

	for i := 0; i < processingMaxPolls; i++ {
		current, err := s.store.GetDocument(ctx, doc.ID)
		if err != nil {
			sse.send(map[string]string{"type": "error", "message": "Document not found"})
			return
		}

		if current.Processed {
			if current.Failed() {
				message := "Processing failed"
				if status, ok := s.progress.Get(doc.ID); ok && status.Message != "" {
					message = status.Message
				}
				sse.send(map[string]string{"type": "error", "message": message})
			} else {
				sse.send(map[string]string{"type": "complete"})
			}
			return
		}

		if status, ok := s.progress.Get(doc.ID); ok {
			if status.Stage == ingest.StageError {
				sse.send(map[string]string{"type": "error", "message": status.Message})
				return
			}
			sse.send(map[string]any{
				"type":     "progress",
				"stage":    status.Stage,
				"progress": status.Progress,
				"message":  status.Message,
			})
		} else {
			sse.send(map[string]string{"type": "waiting"})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(processingPollInterval):
		}
	}

	sse.send(map[string]string{"type": "timeout"})
}

// loadDocument resolves {id} and writes the error response itself when
// the document cannot be loaded.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*storage.Document, bool) {
	id, err := idParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid document id")
		return nil, false
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return nil, false
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load document")
		return nil, false
	}
	return doc, true
}
