package prompt

import "strings"

// DefaultDenyList is the built-in set of restricted terms.
var DefaultDenyList = []string{
	"nsfw", "nude", "naked", "sexual", "explicit", "porn", "adult",
	"violence", "blood", "gore", "weapon", "gun", "knife",
	"hate", "racist", "discrimination", "offensive",
	"illegal", "drug", "alcohol", "smoking",
	"copyright", "trademark", "brand", "logo",
}

// SafetyFilter screens text against a fixed deny list using case-insensitive
// substring matching.
type SafetyFilter struct {
	terms []string
}

// NewSafetyFilter builds a filter over terms, or over DefaultDenyList when
// none are given.
func NewSafetyFilter(terms ...string) *SafetyFilter {
	if len(terms) == 0 {
		terms = DefaultDenyList
	}
	f := &SafetyFilter{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.terms = append(f.terms, t)
		}
	}
	return f
}

// Check reports whether text is safe. When it is not, reason names the first
// matching term in deny-list order.
func (f *SafetyFilter) Check(text string) (safe bool, reason string) {
	lower := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			return false, "content contains restricted term: " + term
		}
	}
	return true, ""
}
