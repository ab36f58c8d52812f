package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stylize/internal/domain"
)

func TestAssembleGhibliWithSafety(t *testing.T) {
	a := NewAssembler(nil, nil)
	got, err := a.Assemble("a cat in a garden", "ghibli", true)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if !strings.HasPrefix(got, defaultBases[StyleGhibli]+" a cat in a garden") {
		t.Fatalf("prompt = %q, want ghibli base followed by user text", got)
	}
	if !strings.HasSuffix(got, positiveSuffix+" "+compositionSuffix) {
		t.Fatalf("prompt = %q, want safety suffix", got)
	}
}

func TestAssembleWithoutSafety(t *testing.T) {
	a := NewAssembler(nil, nil)
	got, err := a.Assemble("  a quiet lake  ", StyleAnime, false)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	want := defaultBases[StyleAnime] + " a quiet lake"
	if got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}

func TestAssembleRejectsUnsafeAndUnknownStyle(t *testing.T) {
	a := NewAssembler(nil, nil)
	_, err := a.Assemble("a NUDE figure", StyleGhibli, true)
	if !errors.Is(err, domain.ErrSafetyViolation) {
		t.Fatalf("err = %v, want safety violation", err)
	}
	_, err = a.Assemble("a cat", "cubism", true)
	if !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("err = %v, want invalid prompt", err)
	}
}

func TestBuiltInFragmentsPassSafetyFilter(t *testing.T) {
	f := NewSafetyFilter()
	tpl := DefaultTemplates()
	for name, base := range tpl.Bases {
		if ok, reason := f.Check(base); !ok {
			t.Fatalf("style %s base rejected: %s", name, reason)
		}
	}
	if ok, reason := f.Check(tpl.Positive + " " + tpl.Composition); !ok {
		t.Fatalf("safety suffix rejected: %s", reason)
	}
}

func TestSafetyFilterReason(t *testing.T) {
	f := NewSafetyFilter()
	ok, reason := f.Check("a Gun and a knife")
	if ok {
		t.Fatalf("Check returned safe for restricted text")
	}
	if reason != "content contains restricted term: gun" {
		t.Fatalf("reason = %q", reason)
	}
	if ok, _ := f.Check("a peaceful meadow"); !ok {
		t.Fatalf("Check rejected safe text")
	}
}

func TestNormalizeAndHash(t *testing.T) {
	if got := Normalize("  A   Cat\tIN the\nGarden "); got != "a cat in the garden" {
		t.Fatalf("Normalize = %q", got)
	}
	n := Normalize("Ünïcode  Prompt")
	if Normalize(n) != n {
		t.Fatalf("Normalize not idempotent: %q", n)
	}
	// Decomposed and precomposed forms hash the same.
	if Hash("Cafe\u0301 scene") != Hash("caf\u00e9 SCENE") {
		t.Fatalf("hash differs for canonically equivalent prompts")
	}
	h := Hash("a cat")
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h))
	}
	if h == Hash("a dog") {
		t.Fatalf("different prompts share a hash")
	}
}

func TestLockedSeedStable(t *testing.T) {
	a, b := LockedSeed("a cat"), LockedSeed("  A CAT ")
	if a != b {
		t.Fatalf("LockedSeed differs for equivalent prompts: %d vs %d", a, b)
	}
	if a < 0 || a >= 1_000_000 {
		t.Fatalf("LockedSeed = %d, want [0, 1e6)", a)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		ok     bool
	}{
		{"empty", "", false},
		{"whitespace", "   \t ", false},
		{"too short", "ab", false},
		{"min", "abc", true},
		{"max", strings.Repeat("a", MaxPromptLength), true},
		{"too long", strings.Repeat("a", MaxPromptLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.prompt)
			if (err == nil) != tt.ok {
				t.Fatalf("Validate(%q) = %v, want ok=%v", tt.prompt, err, tt.ok)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidPrompt) {
				t.Fatalf("Validate error kind = %v", err)
			}
		})
	}
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name, original, delta, want string
	}{
		{"empty", "a cat in a garden", "", "a cat in a garden"},
		{"blank", "a cat in a garden", "   ", "a cat in a garden"},
		{"append", "a cat in a garden", "+ wearing a hat", "a cat in a garden wearing a hat"},
		{"remove", "a cat in a garden", "-cat", "a in a garden"},
		{"remove case-insensitive", "A Cat and a CAT", "-cat", "A and a"},
		{"remove literal", "price (a+b) list", "-(a+b)", "price list"},
		{"remove dot literal", "a.b axb", "-a.b", "axb"},
		{"replace", "a cat in a garden", "a dog on a beach", "a dog on a beach"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyDelta(tt.original, tt.delta); got != tt.want {
				t.Fatalf("ApplyDelta(%q, %q) = %q, want %q", tt.original, tt.delta, got, tt.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	s, ok := ParseSize("768x768")
	if !ok || s.Width != 768 || s.Height != 768 {
		t.Fatalf("ParseSize = %+v %v", s, ok)
	}
	if _, ok := ParseSize("2048x2048"); ok {
		t.Fatalf("ParseSize accepted unsupported size")
	}
}

func TestLoadTemplatesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	body := "styles:\n  watercolor: \"Loose watercolor painting,\"\n  anime: \"Retro anime,\"\nnegative: \"blurry,\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if !tpl.HasStyle("watercolor") || !tpl.HasStyle(StyleGhibli) {
		t.Fatalf("styles = %v", tpl.Styles())
	}
	if tpl.Bases[StyleAnime] != "Retro anime," {
		t.Fatalf("anime base = %q", tpl.Bases[StyleAnime])
	}
	if tpl.Negative != "blurry," || tpl.Positive != positiveSuffix {
		t.Fatalf("fragments = %q / %q", tpl.Negative, tpl.Positive)
	}
	if defaultBases[StyleAnime] == "Retro anime," {
		t.Fatalf("override mutated built-in defaults")
	}
}

func TestLoadTemplatesEmptyPath(t *testing.T) {
	tpl, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if len(tpl.Styles()) != len(defaultBases) {
		t.Fatalf("styles = %v", tpl.Styles())
	}
}
