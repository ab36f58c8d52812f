package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize canonicalizes a prompt for hashing: NFC composition, Unicode
// lower-casing, trimmed, with whitespace runs collapsed to one space.
func Normalize(p string) string {
	p = norm.NFC.String(p)
	p = lower.String(p)
	return strings.Join(strings.Fields(p), " ")
}

// Hash returns the hex SHA-256 digest of the normalized prompt.
func Hash(p string) string {
	sum := sha256.Sum256([]byte(Normalize(p)))
	return hex.EncodeToString(sum[:])
}

// LockedSeed derives a stable seed in [0, 1e6) from the prompt hash.
func LockedSeed(p string) int64 {
	v, err := strconv.ParseUint(Hash(p)[:8], 16, 64)
	if err != nil {
		return 0
	}
	return int64(v % 1_000_000)
}
