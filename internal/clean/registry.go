// Package clean provides the cleaner registry: named, pure table-to-table
// transforms applied after a file is classified and parsed.
//
// The registry is closed at startup: recipes referencing an unknown cleaner
// name fail catalog validation before any file is processed, never mid-run.
package clean

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantmill/fexingest/internal/table"
)

// Func is a cleaner: normalized table in, normalized table out.
// Cleaners must be pure; they may return the input or a new table.
type Func func(*table.Table) (*table.Table, error)

var (
	registry   = make(map[string]Func)
	registryMu sync.RWMutex
)

// Register adds a cleaner to the registry.
// Panics if a cleaner with the same name is already registered.
func Register(name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("cleaner already registered: %s", name))
	}
	registry[name] = fn
}

// Get returns a cleaner by name.
// Returns false if not found.
func Get(name string) (Func, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered cleaner names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
