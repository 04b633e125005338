package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is a manifest lifecycle state.
type Status string

const (
	// StatusRawIngested is the initial state after a file's bytes are stored.
	StatusRawIngested Status = "RAW_INGESTED"
	// StatusTransformFailed marks a recoverable per-file failure; retryable.
	StatusTransformFailed Status = "TRANSFORMATION_FAILED"
	// StatusTransformSuccess is terminal.
	StatusTransformSuccess Status = "TRANSFORMED_SUCCESS"
	// StatusQuarantined is terminal; set when no recipe matches the file.
	StatusQuarantined Status = "QUARANTINED"
)

// transitions defines the forward-only lifecycle state machine.
// TRANSFORMATION_FAILED may re-enter itself so a failed retry can record a
// fresh error message. Terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusRawIngested:     {StatusTransformSuccess, StatusTransformFailed, StatusQuarantined},
	StatusTransformFailed: {StatusTransformSuccess, StatusTransformFailed, StatusQuarantined},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusRawIngested, StatusTransformFailed, StatusTransformSuccess, StatusQuarantined:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ManifestRecord is the durable lifecycle record for one distinct content hash.
type ManifestRecord struct {
	ContentHash        string
	OriginalPath       string
	SizeBytes          int64
	DiscoveredAt       time.Time
	IngestedAt         time.Time
	Status             Status
	SourceSystem       string
	Notes              string
	TransformStartedAt *time.Time
	TransformEndedAt   *time.Time
	TargetTable        string
	RecipeID           string
	ProcessedRows      int64
	ErrorMessage       string
}

// RegisterManifest inserts the initial manifest record for hash with
// status RAW_INGESTED. If a record already exists, the mutable discovery
// metadata (path, size, discovered_at, source system) is overwritten in
// place and status is left untouched.
func (s *Store) RegisterManifest(ctx context.Context, hash, originalPath string, sizeBytes int64, discoveredAt time.Time, sourceSystem string) error {
	_, err := s.db.ExecContext(ctx, upsertManifestSQL,
		hash, originalPath, sizeBytes, discoveredAt.UTC(), time.Now().UTC(),
		string(StatusRawIngested), sourceSystem)
	if err != nil {
		return fmt.Errorf("register manifest %s: %w", hash, err)
	}
	return nil
}

const upsertManifestSQL = `
	INSERT INTO manifest
	(content_hash, original_path, size_bytes, discovered_at, ingested_at, status, source_system)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(content_hash) DO UPDATE SET
		original_path = excluded.original_path,
		size_bytes    = excluded.size_bytes,
		discovered_at = excluded.discovered_at,
		source_system = excluded.source_system
`

// StatusField sets an optional manifest column alongside a status update.
type StatusField func(*statusUpdate)

type statusUpdate struct {
	errorMessage  *string
	processedRows *int64
	targetTable   *string
	recipeID      *string
	startedAt     *time.Time
	endedAt       *time.Time
}

// WithError records the failure message for the transition.
func WithError(msg string) StatusField {
	return func(u *statusUpdate) { u.errorMessage = &msg }
}

// WithProcessedRows records how many rows the transform produced.
func WithProcessedRows(n int64) StatusField {
	return func(u *statusUpdate) { u.processedRows = &n }
}

// WithTargetTable records the warehouse table the file was loaded into.
func WithTargetTable(name string) StatusField {
	return func(u *statusUpdate) { u.targetTable = &name }
}

// WithRecipe records the recipe that classified the file.
func WithRecipe(id string) StatusField {
	return func(u *statusUpdate) { u.recipeID = &id }
}

// WithTransformWindow records when the transform started and ended.
func WithTransformWindow(started, ended time.Time) StatusField {
	return func(u *statusUpdate) {
		s, e := started.UTC(), ended.UTC()
		u.startedAt = &s
		u.endedAt = &e
	}
}

// UpdateStatus applies a lifecycle transition for hash. The transition is
// validated against the state machine inside a transaction; updates from a
// terminal state return *InvalidTransitionError.
func (s *Store) UpdateStatus(ctx context.Context, hash string, next Status, fields ...StatusField) error {
	if !next.Valid() {
		return fmt.Errorf("update status %s: unknown status %q", hash, next)
	}

	var update statusUpdate
	for _, f := range fields {
		f(&update)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update status %s: begin: %w", hash, err)
	}
	defer rollback(tx)

	var current Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM manifest WHERE content_hash = ?`, hash).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update status: manifest %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update status %s: %w", hash, err)
	}

	if !current.CanTransitionTo(next) {
		return &InvalidTransitionError{Hash: hash, From: current, To: next}
	}

	query := `UPDATE manifest SET status = ?`
	args := []any{string(next)}
	if update.errorMessage != nil {
		query += `, error_message = ?`
		args = append(args, *update.errorMessage)
	}
	if update.processedRows != nil {
		query += `, processed_rows = ?`
		args = append(args, *update.processedRows)
	}
	if update.targetTable != nil {
		query += `, target_table = ?`
		args = append(args, *update.targetTable)
	}
	if update.recipeID != nil {
		query += `, recipe_id = ?`
		args = append(args, *update.recipeID)
	}
	if update.startedAt != nil {
		query += `, transform_started_at = ?, transform_ended_at = ?`
		args = append(args, *update.startedAt, *update.endedAt)
	}
	query += ` WHERE content_hash = ?`
	args = append(args, hash)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update status %s: %w", hash, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update status %s: commit: %w", hash, err)
	}
	return nil
}

// GetManifest returns the manifest record for hash, or ErrNotFound.
func (s *Store) GetManifest(ctx context.Context, hash string) (*ManifestRecord, error) {
	row := s.db.QueryRowContext(ctx, selectManifestSQL+` WHERE content_hash = ?`, hash)
	rec, err := scanManifest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	return rec, nil
}

// QueryByStatus returns all manifest records in the given status, ordered by
// discovery time. Drives transform and retry scheduling.
func (s *Store) QueryByStatus(ctx context.Context, status Status) ([]ManifestRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectManifestSQL+` WHERE status = ? ORDER BY discovered_at, content_hash`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query by status %s: %w", status, err)
	}
	defer rows.Close()

	var records []ManifestRecord
	for rows.Next() {
		rec, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("query by status %s: %w", status, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query by status %s: %w", status, err)
	}
	return records, nil
}

const selectManifestSQL = `
	SELECT content_hash, original_path, size_bytes, discovered_at, ingested_at,
	       status, source_system, notes, transform_started_at, transform_ended_at,
	       target_table, recipe_id, processed_rows, error_message
	FROM manifest`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (*ManifestRecord, error) {
	var rec ManifestRecord
	var started, ended sql.NullTime
	err := row.Scan(
		&rec.ContentHash, &rec.OriginalPath, &rec.SizeBytes, &rec.DiscoveredAt,
		&rec.IngestedAt, &rec.Status, &rec.SourceSystem, &rec.Notes,
		&started, &ended, &rec.TargetTable, &rec.RecipeID,
		&rec.ProcessedRows, &rec.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	if started.Valid {
		rec.TransformStartedAt = &started.Time
	}
	if ended.Valid {
		rec.TransformEndedAt = &ended.Time
	}
	return &rec, nil
}
