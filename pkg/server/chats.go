package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type createChatRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if r.Body != nil {
		// Empty or missing body is fine; the title defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Chat"
	}

	chat, err := s.store.CreateChat(r.Context(), title)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid chat id")
		return
	}
	chat, err := s.store.GetChat(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid chat id")
		return
	}
	err = s.store.DeleteChat(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid chat id")
		return
	}
	if _, err := s.store.GetChat(r.Context(), id); errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Chat not found")
		return
	} else if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load chat")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
