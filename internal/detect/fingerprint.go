package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint computes the order/case/whitespace-invariant identity of a
// header token set: tokens are stripped of all internal whitespace,
// lowercased, de-blanked, sorted, joined with "|", and SHA-256 hashed.
//
// Two header lines with the same semantic column set always produce the
// same fingerprint regardless of column order, casing, or incidental
// whitespace.
func Fingerprint(tokens []string) string {
	normalized := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		t := strings.ToLower(strings.Join(strings.Fields(tok), ""))
		if t == "" {
			continue
		}
		normalized = append(normalized, t)
	}
	sort.Strings(normalized)

	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}
