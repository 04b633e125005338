package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IndexEntry maps an (entity, date) pair to the source file that produced it.
// Entries are write-once: the first committed mapping for a key is kept and
// later attempts for the same key are silently ignored. First-wins is
// deliberate so that reprocessing never redirects an existing lookup to a
// different source file.
type IndexEntry struct {
	EntityKey   string `json:"entityKey"`
	LogicalDate string `json:"logicalDate"` // YYYY-MM-DD
	ContentHash string `json:"contentHash"`
}

// BatchRecord is one file's contribution to RegisterBatch: its manifest
// metadata plus zero or more index entries. RawBytes may be nil when the
// content is already stored.
type BatchRecord struct {
	Hash         string
	OriginalPath string
	SizeBytes    int64
	DiscoveredAt time.Time
	SourceSystem string
	RawBytes     []byte
	Entries      []IndexEntry
}

// RegisterBatch atomically registers a set of files and their index entries.
// For each record it stores raw bytes if missing, upserts the manifest row,
// and inserts index entries with conflict-do-nothing (first-wins) semantics.
// The whole batch commits as one transaction: any error rolls back every
// record, so no partial manifest or index rows become visible.
func (s *Store) RegisterBatch(ctx context.Context, records []BatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("register batch: begin: %w", err)
	}
	defer rollback(tx)

	for _, rec := range records {
		if err := s.registerOne(ctx, tx, rec); err != nil {
			return fmt.Errorf("register batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("register batch: commit: %w", err)
	}
	return nil
}

func (s *Store) registerOne(ctx context.Context, tx *sql.Tx, rec BatchRecord) error {
	if rec.Hash == "" {
		return fmt.Errorf("record %q: empty content hash", rec.OriginalPath)
	}

	if rec.RawBytes != nil {
		// Idempotent: identical content seen again is a no-op.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO raw_files (content_hash, raw_bytes, stored_at) VALUES (?, ?, ?)
			 ON CONFLICT(content_hash) DO NOTHING`,
			rec.Hash, rec.RawBytes, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("record %s: store raw: %w", rec.Hash, err)
		}
	}

	_, err := tx.ExecContext(ctx, upsertManifestSQL,
		rec.Hash, rec.OriginalPath, rec.SizeBytes, rec.DiscoveredAt.UTC(),
		time.Now().UTC(), string(StatusRawIngested), rec.SourceSystem)
	if err != nil {
		return fmt.Errorf("record %s: upsert manifest: %w", rec.Hash, err)
	}

	for _, entry := range rec.Entries {
		if entry.EntityKey == "" || entry.LogicalDate == "" {
			return fmt.Errorf("record %s: malformed index entry (%q, %q)",
				rec.Hash, entry.EntityKey, entry.LogicalDate)
		}
		hash := entry.ContentHash
		if hash == "" {
			hash = rec.Hash
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO data_map (entity_key, logical_date, content_hash) VALUES (?, ?, ?)
			 ON CONFLICT(entity_key, logical_date) DO NOTHING`,
			entry.EntityKey, entry.LogicalDate, hash)
		if err != nil {
			return fmt.Errorf("record %s: insert index entry: %w", rec.Hash, err)
		}
	}

	return nil
}

// LookupIndex returns the content hash mapped to (entityKey, logicalDate),
// or ErrNotFound.
func (s *Store) LookupIndex(ctx context.Context, entityKey, logicalDate string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM data_map WHERE entity_key = ? AND logical_date = ?`,
		entityKey, logicalDate).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index entry (%s, %s): %w", entityKey, logicalDate, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup index: %w", err)
	}
	return hash, nil
}

// QueryIndexByEntity returns all index entries for an entity, ordered by date.
func (s *Store) QueryIndexByEntity(ctx context.Context, entityKey string) ([]IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_key, logical_date, content_hash FROM data_map
		 WHERE entity_key = ? ORDER BY logical_date`, entityKey)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.EntityKey, &e.LogicalDate, &e.ContentHash); err != nil {
			return nil, fmt.Errorf("query index: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return entries, nil
}
