package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Exists reports whether raw content is already stored for hash.
// Callers use this before StoreRaw to treat "already present" as a no-op.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM raw_files WHERE content_hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check content exists: %w", err)
	}
	return true, nil
}

// StoreRaw inserts raw bytes under their content hash. The raw_files table
// is write-once: storing a hash that already exists returns
// *DuplicateContentError and leaves the stored row untouched.
func (s *Store) StoreRaw(ctx context.Context, hash string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_files (content_hash, raw_bytes, stored_at) VALUES (?, ?, ?)`,
		hash, data, time.Now().UTC())
	if isConstraintErr(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
		return &DuplicateContentError{Hash: hash}
	}
	if err != nil {
		return fmt.Errorf("store raw content: %w", err)
	}
	return nil
}

// GetRaw returns the stored bytes for hash, or ErrNotFound.
func (s *Store) GetRaw(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_bytes FROM raw_files WHERE content_hash = ?`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raw content %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get raw content: %w", err)
	}
	return data, nil
}
