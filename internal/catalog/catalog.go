// Package catalog loads and validates the recipe catalog: the mapping from
// header fingerprints to parsing recipes.
//
// A Catalog is an immutable value. Callers that need to pick up catalog
// changes construct a new Catalog and swap it in explicitly; there is no
// process-wide mutable cache.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/quantmill/fexingest/internal/clean"
	"github.com/quantmill/fexingest/internal/parse"
)

// Recipe describes how to parse and route files of one fingerprinted format.
type Recipe struct {
	// Fingerprint is the SHA-256 hex of the normalized header token set.
	Fingerprint string `json:"-"`
	// Description is operator-facing text identifying the format.
	Description string `json:"description"`
	// TargetTable is the warehouse table cleaned rows load into.
	TargetTable string `json:"target_table"`
	// ParserConfig is handed to the parser unchanged.
	ParserConfig parse.Options `json:"parser_config"`
	// CleanerName resolves against the cleaner registry at load time.
	CleanerName string `json:"cleaner_name"`
	// RequiredColumns must all be present in the cleaned table.
	RequiredColumns []string `json:"required_columns"`
}

// Catalog is an immutable fingerprint -> recipe lookup.
type Catalog struct {
	recipes map[string]Recipe
}

// Load reads and validates a JSON catalog file. A missing or malformed
// catalog, or a recipe referencing an unknown cleaner, is a startup error:
// no partial catalog is ever returned.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw JSON. See Load.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]Recipe
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	recipes := make(map[string]Recipe, len(raw))
	for fingerprint, recipe := range raw {
		recipe.Fingerprint = fingerprint
		if err := validate(recipe); err != nil {
			return nil, fmt.Errorf("catalog entry %s: %w", fingerprint, err)
		}
		recipes[fingerprint] = recipe
	}

	return &Catalog{recipes: recipes}, nil
}

func validate(r Recipe) error {
	if len(r.Fingerprint) != 64 {
		return fmt.Errorf("fingerprint must be 64 hex chars, got %d", len(r.Fingerprint))
	}
	for _, c := range r.Fingerprint {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("fingerprint is not lowercase hex: %q", r.Fingerprint)
		}
	}
	if r.TargetTable == "" {
		return fmt.Errorf("missing target_table")
	}
	if r.CleanerName == "" {
		return fmt.Errorf("missing cleaner_name")
	}
	if _, ok := clean.Get(r.CleanerName); !ok {
		return fmt.Errorf("unknown cleaner %q (registered: %v)", r.CleanerName, clean.Names())
	}
	if r.ParserConfig.Header.Mode == parse.HeaderNone && len(r.ParserConfig.ColumnNames) == 0 {
		return fmt.Errorf(`parser_config: header "none" requires column_names`)
	}
	return nil
}

// Lookup returns the recipe for a fingerprint.
// Returns false if no recipe matches.
func (c *Catalog) Lookup(fingerprint string) (Recipe, bool) {
	r, ok := c.recipes[fingerprint]
	return r, ok
}

// Len returns the number of recipes.
func (c *Catalog) Len() int {
	return len(c.recipes)
}

// Fingerprints returns all known fingerprints, sorted.
func (c *Catalog) Fingerprints() []string {
	fps := make([]string, 0, len(c.recipes))
	for fp := range c.recipes {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}
