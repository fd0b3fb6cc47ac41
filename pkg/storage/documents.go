package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `id, filename, file_path, parents_path, uploaded_at, processed, num_chunks, query_enabled`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	var parentsPath sql.NullString
	var numChunks sql.NullInt64
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &parentsPath, &d.UploadedAt, &d.Processed, &numChunks, &d.QueryEnabled)
	if err != nil {
		return nil, err
	}
	d.ParentsPath = parentsPath.String
	if numChunks.Valid {
		n := int(numChunks.Int64)
		d.NumChunks = &n
	}
	return &d, nil
}

// CreateDocument inserts a pending document row.
func (s *Store) CreateDocument(ctx context.Context, filename, filePath string) (*Document, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO documents (filename, file_path, uploaded_at, processed, num_chunks, query_enabled) VALUES (?, ?, ?, FALSE, 0, TRUE)`,
		filename, filePath, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	zero := 0
	return &Document{
		ID:           id,
		Filename:     filename,
		FilePath:     filePath,
		UploadedAt:   now,
		NumChunks:    &zero,
		QueryEnabled: true,
	}, nil
}

// UpsertDocumentByFilename inserts the document or, when the filename
// already exists, resets the existing row to pending with the new path.
func (s *Store) UpsertDocumentByFilename(ctx context.Context, filename, filePath string) (*Document, error) {
	existing, err := s.GetDocumentByFilename(ctx, filename)
	if err == sql.ErrNoRows {
		return s.CreateDocument(ctx, filename, filePath)
	}
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET file_path = ?, processed = FALSE, num_chunks = 0 WHERE id = ?`),
		filePath, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}
	return s.GetDocument(ctx, existing.ID)
}

// GetDocument loads a document by id. Missing rows return sql.ErrNoRows.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+documentColumns+` FROM documents WHERE id = ?`), id)
	return scanDocument(row)
}

// GetDocumentByFilename loads a document by its unique filename.
func (s *Store) GetDocumentByFilename(ctx context.Context, filename string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+documentColumns+` FROM documents WHERE filename = ?`), filename)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by id.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY id ASC`)
}

// ListPendingDocuments returns unprocessed documents that are not in the
// terminal failure state. NULL num_chunks counts as pending for rows
// written before the column existed.
func (s *Store) ListPendingDocuments(ctx context.Context) ([]Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE processed = FALSE AND (num_chunks >= 0 OR num_chunks IS NULL) ORDER BY id ASC`)
}

// ListActiveDocIDs returns the ids of processed, query-enabled documents.
func (s *Store) ListActiveDocIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE processed = TRUE AND query_enabled = TRUE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active documents: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkProcessed finalizes a successful ingest run.
func (s *Store) MarkProcessed(ctx context.Context, id int64, numChunks int, parentsPath string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET processed = TRUE, num_chunks = ?, parents_path = ? WHERE id = ?`),
		numChunks, parentsPath, id)
	if err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	return nil
}

// MarkFailed puts the document into the terminal failure state the worker
// never retries.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET processed = TRUE, num_chunks = -1 WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return nil
}

// ResetForReprocess puts the document back into the pending state.
func (s *Store) ResetForReprocess(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET processed = FALSE, num_chunks = 0, parents_path = NULL WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetQueryEnabled flips whether the document participates in retrieval.
func (s *Store) SetQueryEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE documents SET query_enabled = ? WHERE id = ?`), enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update document preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDocument removes the document row.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}
