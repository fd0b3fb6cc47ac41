// Package storage persists chats, messages and document records over
// database/sql. SQLite is the default; PostgreSQL and MySQL work through
// the same store with dialect-specific DDL and placeholders.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Store is the SQL-backed persistence layer.
type Store struct {
	db      *sql.DB
	dialect string
}

// New opens the store through the shared connection pool and runs the
// idempotent migrations.
func New(ctx context.Context, pool *config.DBPool, cfg *config.DatabaseConfig) (*Store, error) {
	db, err := pool.Get(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: cfg.Dialect()}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(ctx context.Context, db *sql.DB, dialect string) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	autoPK := map[string]string{
		"sqlite":   "INTEGER PRIMARY KEY AUTOINCREMENT",
		"postgres": "BIGSERIAL PRIMARY KEY",
		"mysql":    "BIGINT AUTO_INCREMENT PRIMARY KEY",
	}[s.dialect]
	if autoPK == "" {
		return fmt.Errorf("unsupported dialect: %s", s.dialect)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
    id ` + autoPK + `,
    title VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS messages (
    id ` + autoPK + `,
    chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS documents (
    id ` + autoPK + `,
    filename VARCHAR(512) NOT NULL UNIQUE,
    file_path VARCHAR(1024) NOT NULL,
    parents_path VARCHAR(1024),
    uploaded_at TIMESTAMP NOT NULL,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    num_chunks INTEGER DEFAULT 0,
    query_enabled BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_processed ON documents(processed)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a duplicate-key
			// error on re-migration is fine there.
			if s.dialect == "mysql" && strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to the dialect's numbered form.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// insert runs an INSERT and returns the generated id. lib/pq has no
// LastInsertId, so postgres goes through RETURNING.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect == "postgres" {
		var id int64
		err := s.db.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Close() error { return s.db.Close() }

// ---- chats ----

// CreateChat inserts a chat with the given title.
func (s *Store) CreateChat(ctx context.Context, title string) (*Chat, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO chats (title, created_at, updated_at) VALUES (?, ?, ?)`,
		title, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &Chat{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetChat loads a chat by id. Missing chats return sql.ErrNoRows.
func (s *Store) GetChat(ctx context.Context, id int64) (*Chat, error) {
	var c Chat
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`), id).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat; messages cascade.
func (s *Store) DeleteChat(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chats WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchChat bumps the chat's updated_at.
func (s *Store) TouchChat(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE chats SET updated_at = ? WHERE id = ?`),
		time.Now().UTC(), id)
	return err
}

// ---- messages ----

// AddMessage appends a message to a chat and bumps the chat timestamp.
func (s *Store) AddMessage(ctx context.Context, chatID int64, role, content string) (*Message, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO messages (chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, role, content, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	if err := s.TouchChat(ctx, chatID); err != nil {
		return nil, err
	}
	return &Message{ID: id, ChatID: chatID, Role: role, Content: content, CreatedAt: now}, nil
}

// ListMessages returns a chat's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC`),
		chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
