// Package scan re-indexes already-produced output files into the
// (entity, date) -> source file map.
//
// Index entries are first-wins: a rescan can add mappings for new files but
// never redirects an existing lookup to a different file. The whole scan
// registers as one atomic batch.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/quantmill/fexingest/internal/store"
)

// outputNameRe matches produced output files: <entity>_<YYYY-MM-DD>.csv
var outputNameRe = regexp.MustCompile(`^([A-Za-z0-9]+)_(\d{4}-\d{2}-\d{2})\.csv$`)

// Scanner walks an output directory and registers index entries.
type Scanner struct {
	store        *store.Store
	sourceSystem string
}

// New creates a scanner writing through the given store.
func New(st *store.Store, sourceSystem string) *Scanner {
	return &Scanner{store: st, sourceSystem: sourceSystem}
}

// Result summarizes a scan.
type Result struct {
	Scanned int // files visited
	Matched int // files with an extractable (entity, date)
	Skipped int // files whose name did not match the output pattern
}

// Scan walks dir recursively, extracts (entity_key, logical_date) from each
// output file's name plus its stat metadata, and registers everything in a
// single atomic batch. Any failure rolls the whole batch back.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	result := &Result{}
	var records []store.BatchRecord

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		result.Scanned++

		m := outputNameRe.FindStringSubmatch(d.Name())
		if m == nil {
			slog.Debug("skipping unrecognized output file", "path", path)
			result.Skipped++
			return nil
		}
		entity, date := m[1], m[2]

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		records = append(records, store.BatchRecord{
			Hash:         store.ContentHash(data),
			OriginalPath: path,
			SizeBytes:    info.Size(),
			DiscoveredAt: info.ModTime(),
			SourceSystem: s.sourceSystem,
			RawBytes:     data,
			Entries: []store.IndexEntry{
				{EntityKey: entity, LogicalDate: date},
			},
		})
		result.Matched++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	if len(records) > 0 {
		if err := s.store.RegisterBatch(ctx, records); err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}

	slog.Info("scan finished",
		"dir", dir,
		"scanned", result.Scanned,
		"matched", result.Matched,
		"skipped", result.Skipped,
	)
	return result, nil
}
