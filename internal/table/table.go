// Package table defines the normalized tabular value passed between the
// parser, the cleaner registry, and the warehouse loader.
package table

import "strings"

// Table is a materialized tabular result: a header plus zero or more rows.
// Rows are stored as strings; type interpretation happens at load time.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns.
func New(columns []string) *Table {
	return &Table{Columns: columns}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return len(t.Rows) == 0
}

// HasColumn reports whether the table contains the named column,
// compared case-insensitively after cell cleaning.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Index()[strings.ToLower(CleanCell(name))]
	return ok
}

// MissingColumns returns the subset of required that is absent from the
// table's columns. Comparison is case-insensitive.
func (t *Table) MissingColumns(required []string) []string {
	idx := t.Index()
	var missing []string
	for _, col := range required {
		if _, ok := idx[strings.ToLower(CleanCell(col))]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Column returns the values of the named column in row order.
// Returns nil if the column does not exist.
func (t *Table) Column(name string) []string {
	pos, ok := t.Index()[strings.ToLower(CleanCell(name))]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if pos < len(row) {
			values = append(values, row[pos])
		} else {
			values = append(values, "")
		}
	}
	return values
}

// Index returns a HeaderIndex for the table's columns.
func (t *Table) Index() HeaderIndex {
	return MakeHeaderIndex(t.Columns)
}

// HeaderIndex maps column names (lowercase, cleaned) to their position.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}
	return idx
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return s
}

// IsEmptyRow reports whether every cell in the row is blank.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
