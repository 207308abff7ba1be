package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var punctReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-", "−", "-",
)

// Canonical lowercases s, applies NFKC, maps typographic quotes and dashes
// to ASCII and collapses all whitespace to single spaces.
func Canonical(s string) string {
	s = norm.NFKC.String(s)
	s = punctReplacer.Replace(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CacheKey is the hex SHA-256 of Canonical(s). Inputs that differ only in
// case, spacing or typographic punctuation share a key.
func CacheKey(s string) string {
	h := sha256.Sum256([]byte(Canonical(s)))
	return hex.EncodeToString(h[:])
}
