package prompt

import (
	"strings"
	"unicode/utf8"
)

// ApplyDelta derives a regeneration prompt from original.
//
//	""           original unchanged
//	"+text"      original followed by text
//	"-text"      original with every case-insensitive occurrence of text removed
//	anything else replaces original
func ApplyDelta(original, delta string) string {
	d := strings.TrimSpace(delta)
	switch {
	case d == "":
		return original
	case strings.HasPrefix(d, "+"):
		add := strings.TrimSpace(d[1:])
		if add == "" {
			return original
		}
		return strings.TrimSpace(original) + " " + add
	case strings.HasPrefix(d, "-"):
		return collapse(removeFold(original, strings.TrimSpace(d[1:])))
	default:
		return d
	}
}

// removeFold deletes every case-insensitive occurrence of the literal needle.
func removeFold(s, needle string) string {
	if needle == "" {
		return s
	}
	var b strings.Builder
	n := utf8.RuneCountInString(needle)
	for i := 0; i < len(s); {
		if j, ok := matchFold(s[i:], needle, n); ok {
			i += j
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// matchFold reports whether s starts with needle (n runes) under simple
// case folding and returns the byte length consumed in s.
func matchFold(s, needle string, n int) (int, bool) {
	j := 0
	for k := 0; k < n; k++ {
		if j >= len(s) {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(s[j:])
		j += size
	}
	if !strings.EqualFold(s[:j], needle) {
		return 0, false
	}
	return j, true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
