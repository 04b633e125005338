package clean

// cleaners.go holds the concrete cleaners for the shipped recipe formats.
// Each cleaner renames the exchange's published headers to the canonical
// warehouse column names and normalizes cell values; none of them touch
// storage or any other external state.

import (
	"fmt"
	"strings"

	"github.com/quantmill/fexingest/internal/table"
)

func init() {
	Register("futures_daily", FuturesDaily)
	Register("options_daily", OptionsDaily)
	Register("identity", Identity)
}

// columnRenames maps exchange-published header names (both the Chinese
// originals and the English variants seen in later releases) to canonical
// warehouse columns.
var columnRenames = map[string]string{
	"交易日期":     "trade_date",
	"契約":       "contract",
	"到期月份(週別)": "delivery_month",
	"開盤價":      "open",
	"最高價":      "high",
	"最低價":      "low",
	"收盤價":      "close",
	"成交量":      "volume",
	"結算價":      "settlement",
	"未沖銷契約數":   "open_interest",
	"買賣權":      "option_side",
	"履約價":      "strike",

	"trade date":     "trade_date",
	"contract":       "contract",
	"contract month": "delivery_month",
	"open":           "open",
	"high":           "high",
	"low":            "low",
	"close":          "close",
	"last":           "close",
	"volume":         "volume",
	"settlement":     "settlement",
	"open interest":  "open_interest",
	"call/put":       "option_side",
	"strike price":   "strike",
}

// Identity returns the table unchanged.
func Identity(t *table.Table) (*table.Table, error) {
	return t, nil
}

// FuturesDaily normalizes a daily futures quote table: canonical column
// names, ISO dates, bare numerics, no blank rows.
func FuturesDaily(t *table.Table) (*table.Table, error) {
	out := renameColumns(t)
	out = dropEmptyRows(out)
	if err := normalizeDates(out, "trade_date"); err != nil {
		return nil, err
	}
	stripNumericArtifacts(out, "open", "high", "low", "close", "settlement", "volume", "open_interest")
	return out, nil
}

// OptionsDaily normalizes a daily options quote table. Same treatment as
// futures plus the call/put side column.
func OptionsDaily(t *table.Table) (*table.Table, error) {
	out := renameColumns(t)
	out = dropEmptyRows(out)
	if err := normalizeDates(out, "trade_date"); err != nil {
		return nil, err
	}
	stripNumericArtifacts(out, "open", "high", "low", "close", "settlement", "volume", "open_interest", "strike")
	normalizeOptionSide(out)
	return out, nil
}

// renameColumns returns a copy of t with headers mapped through
// columnRenames; unknown headers are kept, cleaned and lowercased.
func renameColumns(t *table.Table) *table.Table {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cleaned := table.CleanCell(col)
		if canonical, ok := columnRenames[strings.ToLower(cleaned)]; ok {
			cols[i] = canonical
		} else {
			cols[i] = strings.ToLower(cleaned)
		}
	}
	return &table.Table{Columns: cols, Rows: t.Rows}
}

func dropEmptyRows(t *table.Table) *table.Table {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !table.IsEmptyRow(row) {
			rows = append(rows, row)
		}
	}
	return &table.Table{Columns: t.Columns, Rows: rows}
}

// normalizeDates rewrites the named column from the exchange's Y/M/D form
// to ISO YYYY-MM-DD in place. Values already in ISO form pass through.
func normalizeDates(t *table.Table, column string) error {
	pos, ok := t.Index()[column]
	if !ok {
		return nil
	}
	for i, row := range t.Rows {
		if pos >= len(row) {
			continue
		}
		raw := table.CleanCell(row[pos])
		if raw == "" {
			continue
		}
		iso, err := toISODate(raw)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		row[pos] = iso
	}
	return nil
}

func toISODate(s string) (string, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return "", fmt.Errorf("unrecognized date %q", s)
	}
	y, m, d := parts[0], parts[1], parts[2]
	if len(y) != 4 {
		return "", fmt.Errorf("unrecognized date %q", s)
	}
	if len(m) == 1 {
		m = "0" + m
	}
	if len(d) == 1 {
		d = "0" + d
	}
	return y + "-" + m + "-" + d, nil
}

// stripNumericArtifacts removes thousands separators and placeholder dashes
// from the named columns in place.
func stripNumericArtifacts(t *table.Table, columns ...string) {
	idx := t.Index()
	for _, col := range columns {
		pos, ok := idx[col]
		if !ok {
			continue
		}
		for _, row := range t.Rows {
			if pos >= len(row) {
				continue
			}
			v := strings.ReplaceAll(table.CleanCell(row[pos]), ",", "")
			if v == "-" || v == "--" {
				v = ""
			}
			row[pos] = v
		}
	}
}

// normalizeOptionSide maps the exchange's call/put markers to "C"/"P".
func normalizeOptionSide(t *table.Table) {
	pos, ok := t.Index()["option_side"]
	if !ok {
		return
	}
	for _, row := range t.Rows {
		if pos >= len(row) {
			continue
		}
		switch strings.ToUpper(table.CleanCell(row[pos])) {
		case "買權", "CALL", "C":
			row[pos] = "C"
		case "賣權", "PUT", "P":
			row[pos] = "P"
		}
	}
}
