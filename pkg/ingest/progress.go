package ingest

import (
	"sync"
	"time"
)

// Status is one document's current processing state.
type Status struct {
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressStore tracks per-document processing status. One instance is
// shared between the pipeline (writer) and the SSE processing stream
// (reader).
type ProgressStore struct {
	mu       sync.Mutex
	statuses map[int64]Status
}

// NewProgressStore creates an empty progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{statuses: make(map[int64]Status)}
}

// Set records the document's current stage.
func (p *ProgressStore) Set(docID int64, stage string, progress float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[docID] = Status{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		UpdatedAt: time.Now(),
	}
}

// Get returns the document's status, if any.
func (p *ProgressStore) Get(docID int64) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.statuses[docID]
	return status, ok
}

// Delete drops the document's status entry.
func (p *ProgressStore) Delete(docID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.statuses, docID)
}

// Snapshot copies the full status map.
func (p *ProgressStore) Snapshot() map[int64]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int64]Status, len(p.statuses))
	for id, status := range p.statuses {
		out[id] = status
	}
	return out
}
