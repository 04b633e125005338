package detect

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/quantmill/fexingest/internal/catalog"
)

const chineseHeader = "交易日期,契約,開盤價,最高價,最低價,收盤價,成交量"

func big5Bytes(t *testing.T, s string) []byte {
	t.Helper()
	out, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode big5: %v", err)
	}
	return out
}

func emptyCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return cat
}

func TestFingerprint_OrderCaseWhitespaceInvariant(t *testing.T) {
	base := Fingerprint([]string{"Trade Date", "Contract", "Open", "Close"})

	variants := [][]string{
		{"Contract", "Trade Date", "Close", "Open"},        // reordered
		{"trade date", "CONTRACT", "open", "CLOSE"},        // recased
		{" Trade  Date ", "Contract", "Open ", "  Close"},  // whitespace
		{"TradeDate", "Contract", "Open", "Close"},         // internal whitespace stripped
		{"Contract", "", "Close", "Open", "trade   date"},  // empties dropped
	}
	for i, tokens := range variants {
		if got := Fingerprint(tokens); got != base {
			t.Errorf("variant %d: fingerprint %s != base %s (tokens %v)", i, got, base, tokens)
		}
	}

	if Fingerprint([]string{"Trade Date", "Contract", "Open"}) == base {
		t.Error("different column set produced the same fingerprint")
	}
}

func TestSniff_Big5ChineseHeader(t *testing.T) {
	// Preamble lines the exchange puts above the header, then data rows.
	content := strings.Join([]string{
		"臺灣期貨交易所",
		"每日行情表",
		chineseHeader,
		"2024/01/15,TX,17890,17950,17855,17920,125634",
		"2024/01/15,MTX,17888,17952,17850,17918,98123",
	}, "\r\n")
	data := big5Bytes(t, content)

	d := New(emptyCatalog(t))
	header, ok := d.Sniff(data)
	if !ok {
		t.Fatal("Sniff() found no header")
	}
	if header.LineIndex != 2 {
		t.Errorf("header line index = %d, want 2", header.LineIndex)
	}
	if header.Encoding != "big5" {
		t.Errorf("encoding = %q, want big5", header.Encoding)
	}
	if len(header.Tokens) != 7 {
		t.Errorf("tokens = %v, want 7 columns", header.Tokens)
	}

	// Re-running on byte-identical input returns the same fingerprint.
	again, ok := d.Sniff(data)
	if !ok {
		t.Fatal("second Sniff() found no header")
	}
	if again.Fingerprint != header.Fingerprint {
		t.Errorf("fingerprint not stable: %s vs %s", again.Fingerprint, header.Fingerprint)
	}
}

func TestDetect_MatchesCatalogRecipe(t *testing.T) {
	fp := Fingerprint(strings.Split(chineseHeader, ","))
	cat, err := catalog.Parse([]byte(`{
		"` + fp + `": {
			"description": "daily futures quotes",
			"target_table": "fut_daily_quotes",
			"parser_config": {"encoding": "big5", "skip_rows": 2},
			"cleaner_name": "futures_daily",
			"required_columns": ["trade_date", "contract", "close"]
		}
	}`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	data := big5Bytes(t, "註記\n備註\n"+chineseHeader+"\n2024/01/15,TX,1,2,3,4,5\n")

	d := New(cat)
	match, ok := d.Detect(data, "daily.csv")
	if !ok {
		t.Fatal("Detect() found no match")
	}
	if match.Recipe.TargetTable != "fut_daily_quotes" {
		t.Errorf("target_table = %q, want fut_daily_quotes", match.Recipe.TargetTable)
	}
	if match.Header.Fingerprint != fp {
		t.Errorf("fingerprint = %s, want %s", match.Header.Fingerprint, fp)
	}

	// Same bytes, same recipe, deterministically.
	match2, ok := d.Detect(data, "daily.csv")
	if !ok || match2.Recipe.Fingerprint != match.Recipe.Fingerprint {
		t.Error("re-detection on identical bytes did not return the same recipe")
	}
}

func TestSniff_NoMatchCases(t *testing.T) {
	d := New(emptyCatalog(t))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"no qualifying line", []byte("just a sentence with no delimiters\nanother line\n")},
		{"single column", []byte("value\n1\n2\n")},
		{"undecodable", []byte{0xFF, 0xFE, 0xFF, 0x00, 0x81, 0x20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := d.Sniff(tt.data); ok {
				t.Error("Sniff() found a header, want no match")
			}
		})
	}
}

func TestSniff_HeaderBeyondLineLimitIgnored(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString("preamble text\n")
	}
	b.WriteString("trade date,contract,open,high,low,close,volume\n")

	d := New(emptyCatalog(t))
	if _, ok := d.Sniff([]byte(b.String())); ok {
		t.Error("Sniff() matched a header past the 20-line limit")
	}
}

func TestSniff_PrefersHeaderOverDataRows(t *testing.T) {
	content := "trade date,contract,open,high,low,close,volume\n" +
		"2024/01/15,TX,17890,17950,17855,17920,1256340001\n"

	d := New(emptyCatalog(t))
	header, ok := d.Sniff([]byte(content))
	if !ok {
		t.Fatal("Sniff() found no header")
	}
	if header.LineIndex != 0 {
		t.Errorf("picked line %d, want the header at 0", header.LineIndex)
	}
	if header.Encoding == "" {
		t.Error("encoding not reported")
	}
}

func TestSniff_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte("trade date,contract,open,close,volume\n1,2,3,4,5\n")...)

	d := New(emptyCatalog(t))
	header, ok := d.Sniff(data)
	if !ok {
		t.Fatal("Sniff() found no header")
	}
	if header.Encoding != "utf-8-sig" {
		t.Errorf("encoding = %q, want utf-8-sig", header.Encoding)
	}
	if header.Tokens[0] != "trade date" {
		t.Errorf("first token = %q, BOM not stripped", header.Tokens[0])
	}
}

func TestSniff_TruncatedPrefixBoundary(t *testing.T) {
	// Header near the top, then enough data that the 2048-byte prefix cuts
	// a multi-byte character mid-sequence.
	var b bytes.Buffer
	b.WriteString(chineseHeader + "\n")
	row := "2024/01/15,契約名稱比較長的一個例子,1,2,3,4,5\n"
	for b.Len() < DefaultPrefixSize+64 {
		b.WriteString(row)
	}
	data := big5Bytes(t, b.String())

	d := New(emptyCatalog(t))
	header, ok := d.Sniff(data)
	if !ok {
		t.Fatal("Sniff() found no header in truncated prefix")
	}
	if header.LineIndex != 0 {
		t.Errorf("header line index = %d, want 0", header.LineIndex)
	}
}
