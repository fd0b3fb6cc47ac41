package storage

import "time"

// Chat is one conversation thread.
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn inside a chat. Role is "user" or "assistant".
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is one uploaded or synced file. NumChunks carries processing
// state beyond the count: -1 marks a terminal failure the worker never
// retries, NULL (legacy rows) counts as pending.
type Document struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"file_path"`
	ParentsPath  string    `json:"parents_path,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Processed    bool      `json:"processed"`
	NumChunks    *int      `json:"num_chunks"`
	QueryEnabled bool      `json:"query_enabled"`
}

// Failed reports whether processing ended in the terminal failure state.
func (d *Document) Failed() bool {
	return d.NumChunks != nil && *d.NumChunks < 0
}
