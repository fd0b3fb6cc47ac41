package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/rag"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/storage"
)

const (
	// noAnswerMessage is persisted and streamed when retrieval comes back
	// empty.
	noAnswerMessage = "I couldn't find relevant information in the documents to answer your question."

	// queryEventBuffer bounds the thinking-event queue between the
	// retrieval goroutine and the SSE writer.
	queryEventBuffer = 100

	// retrievalJoinTimeout caps how long a disconnected handler waits for
	// the retrieval goroutine to notice the cancellation.
	retrievalJoinTimeout = 60 * time.Second
)

type queryRequest struct {
	ChatID   int64  `json:"chat_id"`
	Question string `json:"question"`
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeDetail(w, http.StatusBadRequest, "Question is required")
		return
	}

	ctx := r.Context()

	if _, err := s.store.GetChat(ctx, req.ChatID); errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Chat not found")
		return
	} else if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load chat")
		return
	}

	messages, err := s.store.ListMessages(ctx, req.ChatID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	history := toHistory(messages)

	activeDocs, err := s.store.ListActiveDocIDs(ctx)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load documents")
		return
	}
	if len(activeDocs) == 0 {
		writeDetail(w, http.StatusBadRequest, "No active documents selected for querying.")
		return
	}

	if _, err := s.store.AddMessage(ctx, req.ChatID, "user", question); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to save message")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Retrieval runs in a sibling goroutine. Thinking events flow through
	// a bounded queue; the writer loop forwards them and drains whatever
	// is left once retrieval signals done.
	events := make(chan rag.Step, queryEventBuffer)
	done := make(chan struct{})
	var (
		contexts []string
		sources  []rag.Source
		retErr   error
	)
	start := time.Now()
	go func() {
		defer close(done)
		contexts, sources, _, retErr = s.engine.Retrieve(ctx, question, activeDocs, func(step rag.Step) {
			select {
			case events <- step:
			case <-ctx.Done():
			}
		})
	}()

forward:
	for {
		select {
		case step := <-events:
			sse.send(map[string]any{"type": "thinking", "step": step})
		case <-done:
			break forward
		case <-ctx.Done():
			select {
			case <-done:
			case <-time.After(retrievalJoinTimeout):
				slog.Warn("Retrieval did not stop after client disconnect", "chat_id", req.ChatID)
			}
			return
		}
	}
	for {
		select {
		case step := <-events:
			sse.send(map[string]any{"type": "thinking", "step": step})
			continue
		default:
		}
		break
	}

	if s.obs != nil {
		s.obs.Metrics().RecordQuery(ctx, time.Since(start), len(contexts), retErr)
	}

	if retErr != nil {
		slog.Error("Retrieval failed", "chat_id", req.ChatID, "error", retErr)
		sse.send(map[string]string{"type": "error", "message": "Error processing query"})
		return
	}

	if len(contexts) == 0 {
		s.finishAnswer(ctx, sse, req.ChatID, noAnswerMessage, []rag.Source{}, true)
		return
	}

	stream, err := s.engine.GenerateStream(ctx, question, contexts, history)
	if err != nil {
		slog.Error("Failed to start generation", "chat_id", req.ChatID, "error", err)
		sse.send(map[string]string{"type": "error", "message": "Error processing query"})
		return
	}

	var answer strings.Builder
	for chunk := range stream {
		switch chunk.Type {
		case "text":
			answer.WriteString(chunk.Text)
			sse.send(map[string]string{"type": "chunk", "content": chunk.Text})
		case "error":
			slog.Error("Generation failed", "chat_id", req.ChatID, "error", chunk.Error)
			sse.send(map[string]string{"type": "error", "message": "Error processing query"})
			return
		}
	}

	s.finishAnswer(ctx, sse, req.ChatID, answer.String(), sources, false)
}

// finishAnswer persists the assistant message and sends the terminal end
// frame. For the no-answer path the canned text is also emitted as a
// single chunk first.
func (s *Server) finishAnswer(ctx context.Context, sse *sseWriter, chatID int64, content string, sources []rag.Source, emitChunk bool) {
	msg, err := s.store.AddMessage(ctx, chatID, "assistant", content)
	if err != nil {
		slog.Error("Failed to save assistant message", "chat_id", chatID, "error", err)
		sse.send(map[string]string{"type": "error", "message": "Error processing query"})
		return
	}
	if emitChunk {
		sse.send(map[string]string{"type": "chunk", "content": content})
	}
	sse.send(map[string]any{
		"type":       "end",
		"content":    content,
		"sources":    sources,
		"message_id": msg.ID,
	})
}

// toHistory converts stored messages into model turns. Unknown roles are
// skipped.
func toHistory(messages []storage.Message) []llms.Message {
	history := make([]llms.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			history = append(history, llms.User(m.Content))
		case "assistant":
			history = append(history, llms.Assistant(m.Content))
		}
	}
	return history
}
