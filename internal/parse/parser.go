// Package parse turns raw file bytes plus a recipe's parser options into a
// normalized table, or a finite forward-only sequence of row batches.
package parse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/quantmill/fexingest/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseError reports a recoverable per-file parse failure: bad encoding,
// out-of-range header row, or inconsistent options.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrf(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Parse materializes the whole input as one table.
// Empty input yields an empty table, not an error.
func Parse(data []byte, opts Options) (*table.Table, error) {
	columns, rows, err := parseAll(data, opts)
	if err != nil {
		return nil, err
	}
	return &table.Table{Columns: columns, Rows: rows}, nil
}

// Chunks prepares a finite, forward-only sequence of row batches covering
// the input exactly once. With ChunkSize <= 0 the sequence is a single batch.
// The iterator is not restartable.
func Chunks(data []byte, opts Options) (*ChunkIterator, error) {
	columns, rows, err := parseAll(data, opts)
	if err != nil {
		return nil, err
	}
	return &ChunkIterator{columns: columns, rows: rows, size: opts.ChunkSize}, nil
}

// ChunkIterator yields successive row batches from a parsed input.
type ChunkIterator struct {
	columns []string
	rows    [][]string
	size    int
	done    bool
}

// Next returns the next batch, or io.EOF when the input is exhausted.
func (it *ChunkIterator) Next() (*table.Table, error) {
	if it.done {
		return nil, io.EOF
	}

	if it.size <= 0 || it.size >= len(it.rows) {
		it.done = true
		batch := &table.Table{Columns: it.columns, Rows: it.rows}
		it.rows = nil
		return batch, nil
	}

	batch := &table.Table{Columns: it.columns, Rows: it.rows[:it.size]}
	it.rows = it.rows[it.size:]
	if len(it.rows) == 0 {
		it.done = true
	}
	return batch, nil
}

func parseAll(data []byte, opts Options) (columns []string, rows [][]string, err error) {
	if opts.Header.Mode == HeaderNone && len(opts.ColumnNames) == 0 {
		return nil, nil, parseErrf(`header "none" requires explicit column names`)
	}

	sep, err := opts.separator()
	if err != nil {
		return nil, nil, &ParseError{Reason: "invalid separator", Err: err}
	}

	if len(data) == 0 {
		return opts.ColumnNames, nil, nil
	}

	text, err := decode(data, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, &ParseError{Reason: "read csv", Err: err}
	}

	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(records) {
			records = nil
		} else {
			records = records[opts.SkipRows:]
		}
	}

	switch opts.Header.Mode {
	case HeaderNone:
		return opts.ColumnNames, records, nil
	case HeaderRow:
		if opts.Header.Row >= len(records) {
			return nil, nil, parseErrf("header row %d out of range (%d records)",
				opts.Header.Row, len(records))
		}
		return cleanHeader(records[opts.Header.Row]), records[opts.Header.Row+1:], nil
	default: // HeaderInfer
		if len(records) == 0 {
			return nil, nil, nil
		}
		return cleanHeader(records[0]), records[1:], nil
	}
}

func cleanHeader(record []string) []string {
	cols := make([]string, len(record))
	for i, c := range record {
		cols[i] = table.CleanCell(c)
	}
	return cols
}

// decode converts data to UTF-8 text under the named encoding.
// Failure to decode is a ParseError, per-file recoverable.
func decode(data []byte, encodingName string) (string, error) {
	switch strings.ToLower(encodingName) {
	case "", "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", parseErrf("input is not valid UTF-8")
		}
		return string(bytes.TrimPrefix(data, utf8BOM)), nil

	case "utf-8-sig":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", parseErrf("input is not valid UTF-8")
		}
		return string(data), nil

	case "big5", "cp950":
		decoded, err := traditionalchinese.Big5.NewDecoder().Bytes(data)
		if err != nil {
			return "", &ParseError{Reason: "decode big5", Err: err}
		}
		// The decoder substitutes U+FFFD rather than failing; treat any
		// substitution as a decode failure.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			return "", parseErrf("input is not valid Big5")
		}
		return string(decoded), nil

	default:
		return "", parseErrf("unsupported encoding %q", encodingName)
	}
}
