package chunking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ParentStore persists parent chunks as JSON arrays, one file per document.
type ParentStore struct {
	dir string
}

// NewParentStore creates a store rooted at dir, creating it if needed.
func NewParentStore(dir string) (*ParentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parents directory: %w", err)
	}
	return &ParentStore{dir: dir}, nil
}

// Path returns the side-store file for a document.
func (s *ParentStore) Path(docID int64) string {
	return filepath.Join(s.dir, "doc_"+strconv.FormatInt(docID, 10)+".json")
}

// Save writes the parent slice for a document.
func (s *ParentStore) Save(docID int64, parents []string) error {
	data, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}
	if err := os.WriteFile(s.Path(docID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write parents file: %w", err)
	}
	return nil
}

// Load reads all parents for a document.
func (s *ParentStore) Load(docID int64) ([]string, error) {
	data, err := os.ReadFile(s.Path(docID))
	if err != nil {
		return nil, fmt.Errorf("failed to read parents file: %w", err)
	}
	var parents []string
	if err := json.Unmarshal(data, &parents); err != nil {
		return nil, fmt.Errorf("failed to parse parents file: %w", err)
	}
	return parents, nil
}

// LoadOne reads a single parent by index.
func (s *ParentStore) LoadOne(docID int64, index int) (string, error) {
	parents, err := s.Load(docID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(parents) {
		return "", fmt.Errorf("parent index %d out of range for document %d (%d parents)", index, docID, len(parents))
	}
	return parents[index], nil
}

// Delete removes the side-store file. Missing files are not an error.
func (s *ParentStore) Delete(docID int64) error {
	err := os.Remove(s.Path(docID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
