package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// registerTestFile stores raw bytes and a manifest row, returning the hash.
func registerTestFile(t *testing.T, s *Store, data []byte, path string) string {
	t.Helper()
	ctx := context.Background()

	hash := ContentHash(data)
	if err := s.StoreRaw(ctx, hash, data); err != nil {
		t.Fatalf("StoreRaw() failed: %v", err)
	}
	if err := s.RegisterManifest(ctx, hash, path, int64(len(data)), time.Now(), "test"); err != nil {
		t.Fatalf("RegisterManifest() failed: %v", err)
	}
	return hash
}

func TestRegisterManifest_InitialStatus(t *testing.T) {
	s := newTestStore(t)
	hash := registerTestFile(t, s, []byte("a,b\n1,2\n"), "/in/file.csv")

	rec, err := s.GetManifest(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetManifest() failed: %v", err)
	}
	if rec.Status != StatusRawIngested {
		t.Errorf("status = %s, want %s", rec.Status, StatusRawIngested)
	}
	if rec.OriginalPath != "/in/file.csv" {
		t.Errorf("original_path = %q, want %q", rec.OriginalPath, "/in/file.csv")
	}
	if rec.SourceSystem != "test" {
		t.Errorf("source_system = %q, want %q", rec.SourceSystem, "test")
	}
}

func TestRegisterManifest_SecondPathOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("a,b\n1,2\n")
	hash := registerTestFile(t, s, data, "/in/original.csv")

	// Move the file to a terminal state first to prove status survives.
	if err := s.UpdateStatus(ctx, hash, StatusTransformSuccess); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	// Same bytes rediscovered under a different path: path is overwritten,
	// status is untouched.
	if err := s.RegisterManifest(ctx, hash, "/in/renamed.csv", int64(len(data)), time.Now(), "test"); err != nil {
		t.Fatalf("re-RegisterManifest() failed: %v", err)
	}

	rec, err := s.GetManifest(ctx, hash)
	if err != nil {
		t.Fatalf("GetManifest() failed: %v", err)
	}
	if rec.OriginalPath != "/in/renamed.csv" {
		t.Errorf("original_path = %q, want overwritten path", rec.OriginalPath)
	}
	if rec.Status != StatusTransformSuccess {
		t.Errorf("status = %s, want %s untouched", rec.Status, StatusTransformSuccess)
	}
}

func TestUpdateStatus_AllowedTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"raw to success", StatusRawIngested, StatusTransformSuccess, true},
		{"raw to failed", StatusRawIngested, StatusTransformFailed, true},
		{"raw to quarantined", StatusRawIngested, StatusQuarantined, true},
		{"failed to success", StatusTransformFailed, StatusTransformSuccess, true},
		{"failed to failed", StatusTransformFailed, StatusTransformFailed, true},
		{"failed to quarantined", StatusTransformFailed, StatusQuarantined, true},
		{"success is terminal", StatusTransformSuccess, StatusTransformFailed, false},
		{"success to quarantined rejected", StatusTransformSuccess, StatusQuarantined, false},
		{"quarantined is terminal", StatusQuarantined, StatusTransformSuccess, false},
		{"no reverting to raw", StatusTransformFailed, StatusRawIngested, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestUpdateStatus_TerminalRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := registerTestFile(t, s, []byte("x"), "/in/x.csv")

	if err := s.UpdateStatus(ctx, hash, StatusQuarantined, WithError("no matching recipe")); err != nil {
		t.Fatalf("quarantine failed: %v", err)
	}

	err := s.UpdateStatus(ctx, hash, StatusTransformSuccess)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("UpdateStatus() from terminal = %v, want InvalidTransitionError", err)
	}
	if invalid.From != StatusQuarantined || invalid.To != StatusTransformSuccess {
		t.Errorf("InvalidTransitionError = %s -> %s, want %s -> %s",
			invalid.From, invalid.To, StatusQuarantined, StatusTransformSuccess)
	}

	// The failed update must not have changed anything.
	rec, err := s.GetManifest(ctx, hash)
	if err != nil {
		t.Fatalf("GetManifest() failed: %v", err)
	}
	if rec.Status != StatusQuarantined {
		t.Errorf("status = %s, want %s", rec.Status, StatusQuarantined)
	}
	if rec.ErrorMessage != "no matching recipe" {
		t.Errorf("error_message = %q, want preserved", rec.ErrorMessage)
	}
}

func TestUpdateStatus_RetryAfterFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := registerTestFile(t, s, []byte("y"), "/in/y.csv")

	if err := s.UpdateStatus(ctx, hash, StatusTransformFailed, WithError("parse: boom")); err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}

	started := time.Now().Add(-time.Second)
	err := s.UpdateStatus(ctx, hash, StatusTransformSuccess,
		WithProcessedRows(42),
		WithTargetTable("fut_daily_quotes"),
		WithRecipe("abc123"),
		WithTransformWindow(started, time.Now()),
	)
	if err != nil {
		t.Fatalf("retry transition failed: %v", err)
	}

	rec, err := s.GetManifest(ctx, hash)
	if err != nil {
		t.Fatalf("GetManifest() failed: %v", err)
	}
	if rec.Status != StatusTransformSuccess {
		t.Errorf("status = %s, want %s", rec.Status, StatusTransformSuccess)
	}
	if rec.ProcessedRows != 42 {
		t.Errorf("processed_rows = %d, want 42", rec.ProcessedRows)
	}
	if rec.TargetTable != "fut_daily_quotes" {
		t.Errorf("target_table = %q, want fut_daily_quotes", rec.TargetTable)
	}
	if rec.RecipeID != "abc123" {
		t.Errorf("recipe_id = %q, want abc123", rec.RecipeID)
	}
	if rec.TransformStartedAt == nil || rec.TransformEndedAt == nil {
		t.Error("transform window not recorded")
	}
}

func TestUpdateStatus_UnknownHash(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateStatus(context.Background(), "deadbeef", StatusTransformSuccess)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus() = %v, want ErrNotFound", err)
	}
}

func TestQueryByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h1 := registerTestFile(t, s, []byte("one"), "/in/1.csv")
	h2 := registerTestFile(t, s, []byte("two"), "/in/2.csv")
	h3 := registerTestFile(t, s, []byte("three"), "/in/3.csv")

	if err := s.UpdateStatus(ctx, h2, StatusTransformSuccess); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	raw, err := s.QueryByStatus(ctx, StatusRawIngested)
	if err != nil {
		t.Fatalf("QueryByStatus() failed: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("RAW_INGESTED rows = %d, want 2", len(raw))
	}
	got := map[string]bool{raw[0].ContentHash: true, raw[1].ContentHash: true}
	if !got[h1] || !got[h3] {
		t.Errorf("RAW_INGESTED rows = %v, want %s and %s", got, h1, h3)
	}

	done, err := s.QueryByStatus(ctx, StatusTransformSuccess)
	if err != nil {
		t.Fatalf("QueryByStatus() failed: %v", err)
	}
	if len(done) != 1 || done[0].ContentHash != h2 {
		t.Errorf("TRANSFORMED_SUCCESS rows = %v, want just %s", done, h2)
	}
}
