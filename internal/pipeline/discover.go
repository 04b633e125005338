package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiscoveredFile is one candidate file found in the inbox directory.
type DiscoveredFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Discover lists candidate CSV files in dir, skipping subdirectories.
// Files larger than maxSize are returned separately so the caller can record
// them as per-file failures instead of silently dropping them.
func Discover(dir string, maxSize int64) (files []DiscoveredFile, oversize []DiscoveredFile, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		f := DiscoveredFile{
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if maxSize > 0 && info.Size() > maxSize {
			oversize = append(oversize, f)
			continue
		}
		files = append(files, f)
	}

	return files, oversize, nil
}
