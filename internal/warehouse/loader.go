// Package warehouse loads cleaned tables into their target Postgres tables.
//
// Loads are idempotent: every target declares a business key and rows are
// written with INSERT ... ON CONFLICT DO UPDATE, so re-ingesting
// byte-identical source files never duplicates warehouse rows.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/quantmill/fexingest/internal/table"
)

// Loader is the pipeline's sink for cleaned tables.
type Loader interface {
	// Load upserts the table's rows into target and returns the row count.
	Load(ctx context.Context, target string, t *table.Table) (int64, error)
}

// DB is the subset of pgxpool.Pool the loader needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TargetTable declares a warehouse table: its columns and the business key
// that upserts conflict on. The key is the table's own primary key, not the
// source file's content hash.
type TargetTable struct {
	Name    string
	Columns []string
	Key     []string
}

// PGLoader loads tables into Postgres.
type PGLoader struct {
	db      DB
	targets map[string]TargetTable
}

// NewPGLoader creates a loader over the given targets.
// An invalid target declaration is a startup error.
func NewPGLoader(db DB, targets []TargetTable) (*PGLoader, error) {
	m := make(map[string]TargetTable, len(targets))
	for _, t := range targets {
		if t.Name == "" || len(t.Columns) == 0 || len(t.Key) == 0 {
			return nil, fmt.Errorf("target %q: name, columns and key are all required", t.Name)
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			cols[c] = true
		}
		for _, k := range t.Key {
			if !cols[k] {
				return nil, fmt.Errorf("target %q: key column %q not in columns", t.Name, k)
			}
		}
		if _, exists := m[t.Name]; exists {
			return nil, fmt.Errorf("target %q declared twice", t.Name)
		}
		m[t.Name] = t
	}
	return &PGLoader{db: db, targets: m}, nil
}

// Load writes all rows of t into target inside one transaction.
// An unknown target name is an error: the manifest row it came from should
// never have been routed here.
func (l *PGLoader) Load(ctx context.Context, target string, t *table.Table) (int64, error) {
	def, ok := l.targets[target]
	if !ok {
		return 0, fmt.Errorf("no schema for target table %q", target)
	}

	if t.IsEmpty() {
		return 0, nil
	}

	query := buildUpsert(def)
	idx := t.Index()

	// Positions of the target's columns within the incoming table;
	// -1 loads as NULL.
	positions := make([]int, len(def.Columns))
	for i, col := range def.Columns {
		if pos, ok := idx[col]; ok {
			positions[i] = pos
		} else {
			positions[i] = -1
		}
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: begin: %w", target, err)
	}
	defer tx.Rollback(ctx)

	var loaded int64
	for i, row := range t.Rows {
		args := make([]any, len(positions))
		for j, pos := range positions {
			if pos < 0 || pos >= len(row) || strings.TrimSpace(row[pos]) == "" {
				args[j] = nil
				continue
			}
			args[j] = table.CleanCell(row[pos])
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("load %s: row %d: %w", target, i+1, err)
		}
		loaded++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("load %s: commit: %w", target, err)
	}
	return loaded, nil
}

// buildUpsert renders the idempotent insert for a target:
// INSERT ... ON CONFLICT (key) DO UPDATE SET <non-key> = EXCLUDED.<non-key>.
// Targets whose columns are all key columns fall back to DO NOTHING.
func buildUpsert(def TargetTable) string {
	placeholders := make([]string, len(def.Columns))
	for i := range def.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	key := make(map[string]bool, len(def.Key))
	for _, k := range def.Key {
		key[k] = true
	}
	var updates []string
	for _, col := range def.Columns {
		if !key[col] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		def.Name,
		strings.Join(def.Columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(def.Key, ", "),
		conflict,
	)
}
