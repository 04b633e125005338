// Package detect classifies raw file bytes by sniffing the most likely
// header line and matching its fingerprint against the recipe catalog.
//
// Detection never fails with an error: empty input, input undecodable under
// every candidate encoding, and input with no plausible header line all
// yield "no match". The filename is accepted for logging only and never
// influences classification.
package detect

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/quantmill/fexingest/internal/catalog"
)

// DefaultPrefixSize bounds how many bytes of the file are examined.
const DefaultPrefixSize = 2048

// maxHeaderLines bounds how many decoded lines are scored.
const maxHeaderLines = 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// headerKeywords are the domain terms a header line is expected to contain,
// in both the exchange's Chinese originals and the English variants.
var headerKeywords = []string{
	"日期", "契約", "價", "量", "月份", "買賣權", "履約", "未沖銷",
	"date", "contract", "price", "volume", "open", "high", "low", "close",
	"settlement", "interest", "strike", "call", "put", "month", "symbol", "code",
}

// digitRunRe finds long digit runs; runs of 6 or 8 digits are treated as
// date-like (YYYYMM, YYYYMMDD) and not penalized.
var digitRunRe = regexp.MustCompile(`[0-9]{5,}`)

// Header is the debug metadata for a sniffed header line.
type Header struct {
	Tokens      []string
	LineIndex   int
	Encoding    string
	Fingerprint string
}

// Match is a successful classification: the recipe plus how it was found.
type Match struct {
	Recipe catalog.Recipe
	Header Header
}

// Detector sniffs headers and resolves them against an immutable catalog.
type Detector struct {
	catalog    *catalog.Catalog
	prefixSize int
}

// New creates a detector over the given catalog.
func New(cat *catalog.Catalog) *Detector {
	return &Detector{catalog: cat, prefixSize: DefaultPrefixSize}
}

// Detect classifies raw bytes. filename is used for logging only.
// Returns false when no header is found or no recipe matches the fingerprint.
func (d *Detector) Detect(data []byte, filename string) (*Match, bool) {
	header, ok := d.Sniff(data)
	if !ok {
		slog.Debug("no header candidate", "file", filename)
		return nil, false
	}

	recipe, ok := d.catalog.Lookup(header.Fingerprint)
	if !ok {
		slog.Debug("no recipe for fingerprint",
			"file", filename,
			"fingerprint", header.Fingerprint,
			"header_line", header.LineIndex,
			"encoding", header.Encoding,
		)
		return nil, false
	}

	return &Match{Recipe: recipe, Header: *header}, true
}

// Sniff finds the most likely header line in data and fingerprints it.
// Returns false when nothing qualifies.
func (d *Detector) Sniff(data []byte) (*Header, bool) {
	if len(data) == 0 {
		return nil, false
	}

	text, encoding, ok := decodePrefix(data, d.prefixSize)
	if !ok {
		return nil, false
	}

	lines := strings.Split(text, "\n")
	if len(lines) > maxHeaderLines {
		lines = lines[:maxHeaderLines]
	}

	bestScore := 0
	bestIdx := -1
	var bestTokens []string

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		tokens, score, ok := scoreLine(line)
		if !ok {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
			bestTokens = tokens
		}
	}

	if bestIdx < 0 {
		return nil, false
	}

	return &Header{
		Tokens:      bestTokens,
		LineIndex:   bestIdx,
		Encoding:    encoding,
		Fingerprint: Fingerprint(bestTokens),
	}, true
}

// scoreLine tokenizes one line and decides whether it is a header candidate.
// Score = 2*delimiters + 5*keyword hits, minus a penalty for long non-date
// digit runs. Ties between candidates resolve to the earliest line because
// the caller only replaces the best on a strictly greater score.
func scoreLine(line string) (tokens []string, score int, ok bool) {
	delims := strings.Count(line, ",")

	raw := strings.Split(line, ",")
	tokens = make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) < 2 {
		return nil, 0, false
	}

	hits := 0
	for _, tok := range tokens {
		if containsKeyword(tok) {
			hits++
		}
	}

	isCandidate := (delims > 2 && hits >= 1) || (hits > 3 && digitRatio(line) < 0.5)
	if !isCandidate {
		return nil, 0, false
	}

	score = 2*delims + 5*hits
	if hasNonDateDigitRun(line) {
		score -= 10
	}
	if score <= 0 {
		return nil, 0, false
	}
	return tokens, score, true
}

func containsKeyword(token string) bool {
	lower := strings.ToLower(token)
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func digitRatio(line string) float64 {
	if line == "" {
		return 0
	}
	digits := 0
	total := 0
	for _, r := range line {
		total++
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(total)
}

func hasNonDateDigitRun(line string) bool {
	for _, run := range digitRunRe.FindAllString(line, -1) {
		if len(run) != 6 && len(run) != 8 {
			return true
		}
	}
	return false
}

// decodePrefix decodes a bounded prefix of data, trying each encoding in
// priority order (Big5, UTF-8, UTF-8 with BOM) and stopping at the first
// clean decode. A trailing partial line is dropped so a character split by
// the prefix boundary cannot fail an otherwise valid decode.
func decodePrefix(data []byte, limit int) (text, encoding string, ok bool) {
	prefix := data
	if len(prefix) > limit {
		prefix = prefix[:limit]
		if i := bytes.LastIndexByte(prefix, '\n'); i > 0 {
			prefix = prefix[:i]
		}
	}

	// A UTF-8 BOM can never open a Big5 file, but its bytes happen to
	// decode as Big5 garbage, so rule Big5 out up front.
	if !bytes.HasPrefix(prefix, utf8BOM) {
		if decoded, err := traditionalchinese.Big5.NewDecoder().Bytes(prefix); err == nil {
			if !bytes.ContainsRune(decoded, utf8.RuneError) {
				return string(decoded), "big5", true
			}
		}
	}

	if utf8.Valid(prefix) {
		if bytes.HasPrefix(prefix, utf8BOM) {
			return string(bytes.TrimPrefix(prefix, utf8BOM)), "utf-8-sig", true
		}
		return string(prefix), "utf-8", true
	}

	return "", "", false
}
