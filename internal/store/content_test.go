package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	if a != b {
		t.Errorf("same bytes hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == ContentHash([]byte("hello!")) {
		t.Error("different bytes produced the same hash")
	}
}

func TestStoreRaw_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("col_a,col_b\n1,2\n")
	hash := ContentHash(data)

	exists, err := s.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("Exists() = true before StoreRaw")
	}

	if err := s.StoreRaw(ctx, hash, data); err != nil {
		t.Fatalf("StoreRaw() failed: %v", err)
	}

	exists, err = s.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !exists {
		t.Error("Exists() = false after StoreRaw")
	}

	got, err := s.GetRaw(ctx, hash)
	if err != nil {
		t.Fatalf("GetRaw() failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetRaw() = %q, want %q", got, data)
	}
}

func TestStoreRaw_DuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("payload")
	hash := ContentHash(data)

	if err := s.StoreRaw(ctx, hash, data); err != nil {
		t.Fatalf("first StoreRaw() failed: %v", err)
	}

	err := s.StoreRaw(ctx, hash, data)
	var dup *DuplicateContentError
	if !errors.As(err, &dup) {
		t.Fatalf("second StoreRaw() error = %v, want DuplicateContentError", err)
	}
	if dup.Hash != hash {
		t.Errorf("DuplicateContentError.Hash = %s, want %s", dup.Hash, hash)
	}

	// Exactly one row survives.
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM raw_files WHERE content_hash = ?`, hash).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("raw_files rows = %d, want 1", count)
	}
}

func TestGetRaw_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRaw(context.Background(), ContentHash([]byte("never stored")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRaw() error = %v, want ErrNotFound", err)
	}
}
