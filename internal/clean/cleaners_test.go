package clean

import (
	"testing"

	"github.com/quantmill/fexingest/internal/table"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"futures_daily", "options_daily", "identity"} {
		if _, ok := Get(name); !ok {
			t.Errorf("cleaner %q not registered", name)
		}
	}
	if _, ok := Get("nope"); ok {
		t.Error("Get() returned an unregistered cleaner")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register() did not panic")
		}
	}()
	Register("identity", Identity)
}

func TestFuturesDaily(t *testing.T) {
	in := &table.Table{
		Columns: []string{"交易日期", "契約", "到期月份(週別)", "開盤價", "收盤價", "成交量"},
		Rows: [][]string{
			{"2024/1/5", "TX", "202401", "17,890", "17,920", "125,634"},
			{"", "", "", "", "", ""},
			{"2024/01/15", "MTX", "202401", "-", "17,918", "98123"},
		},
	}

	out, err := FuturesDaily(in)
	if err != nil {
		t.Fatalf("FuturesDaily() failed: %v", err)
	}

	want := []string{"trade_date", "contract", "delivery_month", "open", "close", "volume"}
	for i, col := range want {
		if out.Columns[i] != col {
			t.Errorf("column %d = %q, want %q", i, out.Columns[i], col)
		}
	}
	if out.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2 (blank row dropped)", out.NumRows())
	}
	if out.Rows[0][0] != "2024-01-05" {
		t.Errorf("date = %q, want zero-padded ISO", out.Rows[0][0])
	}
	if out.Rows[0][3] != "17890" {
		t.Errorf("open = %q, want thousands separator stripped", out.Rows[0][3])
	}
	if out.Rows[1][3] != "" {
		t.Errorf("open = %q, want placeholder dash emptied", out.Rows[1][3])
	}
}

func TestFuturesDaily_BadDate(t *testing.T) {
	in := &table.Table{
		Columns: []string{"trade date", "close"},
		Rows:    [][]string{{"January 15th", "17920"}},
	}
	if _, err := FuturesDaily(in); err == nil {
		t.Error("FuturesDaily() accepted an unparseable date")
	}
}

func TestOptionsDaily(t *testing.T) {
	in := &table.Table{
		Columns: []string{"交易日期", "契約", "履約價", "買賣權", "收盤價"},
		Rows: [][]string{
			{"2024/01/15", "TXO", "17,800", "買權", "120"},
			{"2024/01/15", "TXO", "17,800", "賣權", "95"},
			{"2024/01/15", "TXO", "17800", "Call", "121"},
		},
	}

	out, err := OptionsDaily(in)
	if err != nil {
		t.Fatalf("OptionsDaily() failed: %v", err)
	}
	if !out.HasColumn("strike") || !out.HasColumn("option_side") {
		t.Fatalf("columns = %v, want strike and option_side", out.Columns)
	}

	side := out.Index()["option_side"]
	if out.Rows[0][side] != "C" || out.Rows[1][side] != "P" || out.Rows[2][side] != "C" {
		t.Errorf("option sides = %q %q %q, want C P C",
			out.Rows[0][side], out.Rows[1][side], out.Rows[2][side])
	}

	strike := out.Index()["strike"]
	if out.Rows[0][strike] != "17800" {
		t.Errorf("strike = %q, want separator stripped", out.Rows[0][strike])
	}
}

func TestIdentity(t *testing.T) {
	in := &table.Table{Columns: []string{"raw"}, Rows: [][]string{{"untouched"}}}
	out, err := Identity(in)
	if err != nil {
		t.Fatalf("Identity() failed: %v", err)
	}
	if out != in {
		t.Error("Identity() did not return its input")
	}
}

func TestRenameColumns_UnknownHeaderKeptLowercased(t *testing.T) {
	in := &table.Table{Columns: []string{"Mystery Column", "Close"}, Rows: nil}
	out := renameColumns(in)
	if out.Columns[0] != "mystery column" {
		t.Errorf("unknown header = %q, want lowercased passthrough", out.Columns[0])
	}
	if out.Columns[1] != "close" {
		t.Errorf("known header = %q, want canonical name", out.Columns[1])
	}
}
