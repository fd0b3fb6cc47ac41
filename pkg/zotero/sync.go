package zotero

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
)

// Per-file sync outcomes.
const (
	StatusQueued  = "queued"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Skip reasons.
const (
	ReasonNotAttachment = "not_attachment"
	ReasonNotPDF        = "not_pdf"
	ReasonAlreadyExists = "already_exists"
)

// FileResult is the outcome for one library attachment.
type FileResult struct {
	Key      string `json:"key"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result summarizes one sync run.
type Result struct {
	Queued  int          `json:"queued"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Files   []FileResult `json:"files"`
}

// LibraryStatus is the read-only overview of the Zotero library.
type LibraryStatus struct {
	Enabled        bool `json:"enabled"`
	TotalItems     int  `json:"total_items"`
	PDFAttachments int  `json:"pdf_attachments"`
}

// SyncService downloads PDF attachments and queues them as documents.
type SyncService struct {
	cfg    *config.ZoteroConfig
	client *Client
	store  *storage.Store
	dir    string
}

// NewSyncService wires a sync service. dir is the download staging area.
func NewSyncService(cfg *config.ZoteroConfig, client *Client, store *storage.Store, dir string) *SyncService {
	return &SyncService{cfg: cfg, client: client, store: store, dir: dir}
}

// isPDF keeps attachments with a PDF content type or a .pdf filename.
func isPDF(data ItemData) bool {
	return data.ContentType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(data.Filename), ".pdf")
}

// SyncAll downloads every PDF attachment, re-downloading known filenames
// and resetting their documents to pending.
func (s *SyncService) SyncAll(ctx context.Context) (*Result, error) {
	return s.sync(ctx, false)
}

// SyncNew downloads only attachments whose filename is not yet a document.
func (s *SyncService) SyncNew(ctx context.Context) (*Result, error) {
	return s.sync(ctx, true)
}

func (s *SyncService) sync(ctx context.Context, skipExisting bool) (*Result, error) {
	items, err := s.client.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Files: make([]FileResult, 0, len(items))}
	for _, item := range items {
		result.Files = append(result.Files, s.syncOne(ctx, item, skipExisting))
	}
	for _, f := range result.Files {
		switch f.Status {
		case StatusQueued:
			result.Queued++
		case StatusSkipped:
			result.Skipped++
		case StatusFailed:
			result.Failed++
		}
	}
	slog.Info("Zotero sync finished",
		"queued", result.Queued, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *SyncService) syncOne(ctx context.Context, item Item, skipExisting bool) FileResult {
	res := FileResult{Key: item.Key, Filename: item.Data.Filename}

	if item.Data.Filename == "" {
		res.Status = StatusSkipped
		res.Reason = ReasonNotAttachment
		return res
	}
	if !isPDF(item.Data) {
		res.Status = StatusSkipped
		res.Reason = ReasonNotPDF
		return res
	}

	if skipExisting {
		_, err := s.store.GetDocumentByFilename(ctx, item.Data.Filename)
		if err == nil {
			res.Status = StatusSkipped
			res.Reason = ReasonAlreadyExists
			return res
		}
		if err != sql.ErrNoRows {
			res.Status = StatusFailed
			res.Error = err.Error()
			return res
		}
	}

	path, err := s.client.DownloadAttachment(ctx, item.Key, item.Data.Filename, s.dir)
	if err != nil {
		slog.Warn("Zotero download failed", "key", item.Key, "file", item.Data.Filename, "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	if _, err := s.store.UpsertDocumentByFilename(ctx, item.Data.Filename, path); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = StatusQueued
	return res
}

// Status counts the library's items and PDF attachments.
func (s *SyncService) Status(ctx context.Context) (*LibraryStatus, error) {
	status := &LibraryStatus{Enabled: s.cfg.Enabled}
	if !s.cfg.Enabled {
		return status, nil
	}

	items, err := s.client.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	status.TotalItems = len(items)
	for _, item := range items {
		if item.Data.Filename != "" && isPDF(item.Data) {
			status.PDFAttachments++
		}
	}
	return status, nil
}
