// Package pipeline wires discovery, hashing, content-addressable storage,
// format detection, parsing, cleaning, and warehouse loading into the two
// batch operations operators run: Ingest and Transform.
//
// Failure isolation is per file: one bad file is recorded on its manifest
// row and the run continues with the next file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantmill/fexingest/internal/catalog"
	"github.com/quantmill/fexingest/internal/clean"
	"github.com/quantmill/fexingest/internal/detect"
	"github.com/quantmill/fexingest/internal/parse"
	"github.com/quantmill/fexingest/internal/store"
	"github.com/quantmill/fexingest/internal/warehouse"
)

// Config carries the pipeline's tunables.
type Config struct {
	// SourceSystem is recorded on every manifest row this pipeline creates.
	SourceSystem string
	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64
	// MaxConcurrent bounds parallel file ingestion (min 1).
	MaxConcurrent int
}

// Pipeline is the ingestion orchestrator.
type Pipeline struct {
	store  *store.Store
	loader warehouse.Loader
	cfg    Config

	mu       sync.RWMutex
	detector *detect.Detector
}

// New creates a pipeline over the given store, loader, and catalog.
// Loader and catalog may be nil for ingest-only use; Transform requires both.
func New(st *store.Store, loader warehouse.Loader, cat *catalog.Catalog, cfg Config) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	p := &Pipeline{
		store:  st,
		loader: loader,
		cfg:    cfg,
	}
	if cat != nil {
		p.detector = detect.New(cat)
	}
	return p
}

// Reload swaps in a new catalog. In-flight files finish against the catalog
// they started with.
func (p *Pipeline) Reload(cat *catalog.Catalog) {
	p.mu.Lock()
	p.detector = detect.New(cat)
	p.mu.Unlock()
}

func (p *Pipeline) currentDetector() *detect.Detector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.detector
}

// FileFailure records one file that could not be ingested.
type FileFailure struct {
	Path   string
	Reason string
}

// IngestResult summarizes an Ingest run.
type IngestResult struct {
	Discovered int
	Stored     int
	Duplicates int
	Failures   []FileFailure
}

// Ingest discovers files in dir, stores each file's bytes under its content
// hash, and registers a manifest row. Byte-identical files seen before skip
// storage but still refresh the manifest's path bookkeeping. Files are fanned
// out across a bounded worker pool; ordering between files is not significant.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*IngestResult, error) {
	runID := uuid.New().String()
	logger := slog.With("run_id", runID, "dir", dir)

	files, oversize, err := Discover(dir, p.cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	result := &IngestResult{Discovered: len(files) + len(oversize)}
	for _, f := range oversize {
		result.Failures = append(result.Failures, FileFailure{
			Path:   f.Path,
			Reason: fmt.Sprintf("file size %d exceeds limit %d", f.Size, p.cfg.MaxFileSize),
		})
	}
	logger.Info("ingest started", "files", len(files), "oversize", len(oversize))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.cfg.MaxConcurrent)
	)

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f DiscoveredFile) {
			defer wg.Done()
			defer func() { <-sem }()

			stored, err := p.ingestOne(ctx, f)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, FileFailure{Path: f.Path, Reason: err.Error()})
			case stored:
				result.Stored++
			default:
				result.Duplicates++
			}
		}(f)
	}
	wg.Wait()

	logger.Info("ingest finished",
		"stored", result.Stored,
		"duplicates", result.Duplicates,
		"failed", len(result.Failures),
	)
	return result, ctx.Err()
}

// ingestOne hashes and stores a single file. Returns true when new content
// was stored, false when the bytes were already present.
func (p *Pipeline) ingestOne(ctx context.Context, f DiscoveredFile) (bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return false, fmt.Errorf("read file: %w", err)
	}

	hash := store.ContentHash(data)

	exists, err := p.store.Exists(ctx, hash)
	if err != nil {
		return false, err
	}

	stored := false
	if !exists {
		err := p.store.StoreRaw(ctx, hash, data)
		var dup *store.DuplicateContentError
		if errors.As(err, &dup) {
			// Another worker won the race; already done.
		} else if err != nil {
			return false, err
		} else {
			stored = true
		}
	}

	// Path bookkeeping happens either way: a duplicate seen under a new
	// path overwrites the stored path, status untouched.
	if err := p.store.RegisterManifest(ctx, hash, f.Path, f.Size, f.ModTime, p.cfg.SourceSystem); err != nil {
		return stored, err
	}

	slog.Debug("file ingested", "path", f.Path, "hash", hash, "new_content", stored)
	return stored, nil
}

// TransformResult summarizes a Transform run.
type TransformResult struct {
	Processed   int
	Succeeded   int
	Failed      int
	Quarantined int
}

// Transform classifies, parses, cleans, and loads every manifest row in
// RAW_INGESTED (plus TRANSFORMATION_FAILED when retry is set) and advances
// each row's status. A single file's failure never aborts the run.
func (p *Pipeline) Transform(ctx context.Context, retry bool) (*TransformResult, error) {
	runID := uuid.New().String()
	logger := slog.With("run_id", runID)

	if p.currentDetector() == nil || p.loader == nil {
		return nil, fmt.Errorf("transform: pipeline has no catalog or loader configured")
	}

	statuses := []store.Status{store.StatusRawIngested}
	if retry {
		statuses = append(statuses, store.StatusTransformFailed)
	}

	var pending []store.ManifestRecord
	for _, status := range statuses {
		records, err := p.store.QueryByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		pending = append(pending, records...)
	}

	result := &TransformResult{Processed: len(pending)}
	logger.Info("transform started", "pending", len(pending), "retry", retry)

	for _, rec := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		p.transformOne(ctx, logger, rec, result)
	}

	logger.Info("transform finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"quarantined", result.Quarantined,
	)
	return result, nil
}

func (p *Pipeline) transformOne(ctx context.Context, logger *slog.Logger, rec store.ManifestRecord, result *TransformResult) {
	data, err := p.store.GetRaw(ctx, rec.ContentHash)
	if err != nil {
		p.markFailed(ctx, logger, rec, "", err)
		result.Failed++
		return
	}

	match, ok := p.currentDetector().Detect(data, rec.OriginalPath)
	if !ok {
		logger.Warn("no matching recipe", "hash", rec.ContentHash, "path", rec.OriginalPath)
		err := p.store.UpdateStatus(ctx, rec.ContentHash, store.StatusQuarantined,
			store.WithError("no matching recipe"))
		if err != nil {
			logger.Error("quarantine failed", "hash", rec.ContentHash, "error", err)
		}
		result.Quarantined++
		return
	}

	recipe := match.Recipe
	started := time.Now().UTC()

	rows, err := p.runRecipe(ctx, data, recipe)
	if err != nil {
		p.markFailed(ctx, logger, rec, recipe.Fingerprint, err)
		result.Failed++
		return
	}

	err = p.store.UpdateStatus(ctx, rec.ContentHash, store.StatusTransformSuccess,
		store.WithProcessedRows(rows),
		store.WithTargetTable(recipe.TargetTable),
		store.WithRecipe(recipe.Fingerprint),
		store.WithTransformWindow(started, time.Now().UTC()),
	)
	if err != nil {
		logger.Error("status update failed", "hash", rec.ContentHash, "error", err)
		result.Failed++
		return
	}

	logger.Info("file transformed",
		"hash", rec.ContentHash,
		"recipe", recipe.Description,
		"target", recipe.TargetTable,
		"rows", rows,
	)
	result.Succeeded++
}

// runRecipe parses, cleans, validates, and loads one file under its recipe.
// With a chunked parser config, each batch moves through clean and load
// separately; the row count covers the whole input.
func (p *Pipeline) runRecipe(ctx context.Context, data []byte, recipe catalog.Recipe) (int64, error) {
	cleaner, ok := clean.Get(recipe.CleanerName)
	if !ok {
		// Catalog validation rejects unknown cleaners at load; reaching
		// this means the registry changed underneath us.
		return 0, fmt.Errorf("unknown cleaner %q", recipe.CleanerName)
	}

	if recipe.ParserConfig.ChunkSize > 0 {
		return p.runChunked(ctx, data, recipe, cleaner)
	}

	parsed, err := parse.Parse(data, recipe.ParserConfig)
	if err != nil {
		return 0, err
	}
	cleaned, err := cleaner(parsed)
	if err != nil {
		return 0, fmt.Errorf("clean %s: %w", recipe.CleanerName, err)
	}
	if missing := cleaned.MissingColumns(recipe.RequiredColumns); len(missing) > 0 {
		return 0, fmt.Errorf("missing required columns %v", missing)
	}
	return p.loader.Load(ctx, recipe.TargetTable, cleaned)
}

func (p *Pipeline) runChunked(ctx context.Context, data []byte, recipe catalog.Recipe, cleaner clean.Func) (int64, error) {
	chunks, err := parse.Chunks(data, recipe.ParserConfig)
	if err != nil {
		return 0, err
	}

	var total int64
	first := true
	for {
		batch, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		cleaned, err := cleaner(batch)
		if err != nil {
			return total, fmt.Errorf("clean %s: %w", recipe.CleanerName, err)
		}
		if first {
			if missing := cleaned.MissingColumns(recipe.RequiredColumns); len(missing) > 0 {
				return total, fmt.Errorf("missing required columns %v", missing)
			}
			first = false
		}

		rows, err := p.loader.Load(ctx, recipe.TargetTable, cleaned)
		if err != nil {
			return total, err
		}
		total += rows
	}
}

func (p *Pipeline) markFailed(ctx context.Context, logger *slog.Logger, rec store.ManifestRecord, recipeID string, cause error) {
	logger.Warn("transform failed",
		"hash", rec.ContentHash,
		"path", rec.OriginalPath,
		"error", cause,
	)
	fields := []store.StatusField{store.WithError(cause.Error())}
	if recipeID != "" {
		fields = append(fields, store.WithRecipe(recipeID))
	}
	if err := p.store.UpdateStatus(ctx, rec.ContentHash, store.StatusTransformFailed, fields...); err != nil {
		logger.Error("status update failed", "hash", rec.ContentHash, "error", err)
	}
}
