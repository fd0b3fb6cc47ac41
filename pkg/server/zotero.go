package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/zotero"
)

func (s *Server) handleZoteroSync(w http.ResponseWriter, r *http.Request) {
	s.runZoteroSync(w, r, func(ctx context.Context) (*zotero.Result, error) {
		return s.zotero.SyncAll(ctx)
	})
}

func (s *Server) handleZoteroSyncNew(w http.ResponseWriter, r *http.Request) {
	s.runZoteroSync(w, r, func(ctx context.Context) (*zotero.Result, error) {
		return s.zotero.SyncNew(ctx)
	})
}

func (s *Server) runZoteroSync(w http.ResponseWriter, r *http.Request, sync func(context.Context) (*zotero.Result, error)) {
	if s.zotero == nil {
		writeDetail(w, http.StatusBadRequest, "Zotero is not configured.")
		return
	}
	result, err := sync(r.Context())
	if err != nil {
		slog.Error("Zotero sync failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Zotero sync failed")
		return
	}
	if result.Queued > 0 {
		s.worker.Trigger()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleZoteroStatus(w http.ResponseWriter, r *http.Request) {
	if s.zotero == nil {
		writeDetail(w, http.StatusBadRequest, "Zotero is not configured.")
		return
	}
	status, err := s.zotero.Status(r.Context())
	if err != nil {
		slog.Error("Zotero status failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to fetch Zotero status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
