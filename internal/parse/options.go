package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// HeaderMode selects how the parser finds column names.
type HeaderMode int

const (
	// HeaderInfer takes the first record after skip_rows as the header.
	HeaderInfer HeaderMode = iota
	// HeaderRow takes the record at an explicit index as the header.
	HeaderRow
	// HeaderNone treats every record as data; ColumnNames is required.
	HeaderNone
)

// HeaderSpec is the recipe's header option: "infer", "none", or a row index.
// The zero value is HeaderInfer.
type HeaderSpec struct {
	Mode HeaderMode
	Row  int
}

// UnmarshalJSON accepts "infer", "none", or a non-negative integer.
func (h *HeaderSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "infer", "":
			*h = HeaderSpec{Mode: HeaderInfer}
			return nil
		case "none":
			*h = HeaderSpec{Mode: HeaderNone}
			return nil
		default:
			return fmt.Errorf("invalid header option %q", s)
		}
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid header option %s", string(data))
	}
	if n < 0 {
		return fmt.Errorf("invalid header row index %d", n)
	}
	*h = HeaderSpec{Mode: HeaderRow, Row: n}
	return nil
}

// MarshalJSON renders the spec back to its catalog form.
func (h HeaderSpec) MarshalJSON() ([]byte, error) {
	switch h.Mode {
	case HeaderNone:
		return json.Marshal("none")
	case HeaderRow:
		return []byte(strconv.Itoa(h.Row)), nil
	default:
		return json.Marshal("infer")
	}
}

// Options is the fixed set of recognized parser settings carried by a
// recipe's parser_config.
type Options struct {
	// Separator is the field delimiter; defaults to ",".
	Separator string `json:"separator,omitempty"`
	// SkipRows drops this many records from the top before header handling.
	SkipRows int `json:"skip_rows,omitempty"`
	// Encoding names the byte encoding: "utf-8" (default), "utf-8-sig", "big5".
	Encoding string `json:"encoding,omitempty"`
	// Header selects header handling; see HeaderSpec.
	Header HeaderSpec `json:"header,omitempty"`
	// ColumnNames provides explicit columns; required when Header is "none".
	ColumnNames []string `json:"column_names,omitempty"`
	// ChunkSize, when > 0, makes Chunks yield row batches of this size.
	ChunkSize int `json:"chunk_size,omitempty"`
}

func (o Options) separator() (rune, error) {
	if o.Separator == "" {
		return ',', nil
	}
	runes := []rune(o.Separator)
	if len(runes) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", o.Separator)
	}
	return runes[0], nil
}
