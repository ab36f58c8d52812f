package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in style identifiers.
const (
	StyleGhibli       = "ghibli"
	StyleStudioGhibli = "studio_ghibli"
	StyleAnime        = "anime"
	StyleFantasy      = "fantasy"
	StyleWhimsical    = "whimsical"
)

const (
	positiveSuffix    = "high quality, detailed, beautiful, artistic,"
	compositionSuffix = "well-composed, balanced, aesthetically pleasing,"
	negativePrompt    = "blurry, low quality, distorted, extra limbs, missing limbs, deformed, watermark, text, signature, nsfw, inappropriate content,"
)

var defaultBases = map[string]string{
	StyleGhibli:       "Studio Ghibli style, hand-drawn animation, soft watercolor textures, magical atmosphere, detailed backgrounds, warm lighting,",
	StyleStudioGhibli: "Studio Ghibli animation style, cel-shaded, vibrant colors, detailed character design, fantastical elements,",
	StyleAnime:        "Anime style, clean line art, vibrant colors, expressive characters, detailed backgrounds,",
	StyleFantasy:      "Fantasy art style, magical elements, ethereal lighting, detailed textures, whimsical atmosphere,",
	StyleWhimsical:    "Whimsical art style, playful colors, soft textures, magical elements, dreamy atmosphere,",
}

// Templates holds the style base prompts and the safety fragments appended
// to every assembled prompt.
type Templates struct {
	Bases       map[string]string `yaml:"styles"`
	Positive    string            `yaml:"positive"`
	Composition string            `yaml:"composition"`
	Negative    string            `yaml:"negative"`
}

// DefaultTemplates returns the built-in style set.
func DefaultTemplates() *Templates {
	bases := make(map[string]string, len(defaultBases))
	for k, v := range defaultBases {
		bases[k] = v
	}
	return &Templates{
		Bases:       bases,
		Positive:    positiveSuffix,
		Composition: compositionSuffix,
		Negative:    negativePrompt,
	}
}

// LoadTemplates reads a YAML override file and merges it over the defaults.
// Styles listed in the file replace or extend the built-in ones; empty
// fragments keep their default value.
func LoadTemplates(path string) (*Templates, error) {
	t := DefaultTemplates()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read templates: %w", err)
	}
	var override Templates
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("prompt: parse templates %s: %w", path, err)
	}
	for name, base := range override.Bases {
		name = strings.ToLower(strings.TrimSpace(name))
		base = strings.TrimSpace(base)
		if name == "" || base == "" {
			return nil, fmt.Errorf("prompt: style %q has an empty name or base prompt", name)
		}
		t.Bases[name] = base
	}
	if v := strings.TrimSpace(override.Positive); v != "" {
		t.Positive = v
	}
	if v := strings.TrimSpace(override.Composition); v != "" {
		t.Composition = v
	}
	if v := strings.TrimSpace(override.Negative); v != "" {
		t.Negative = v
	}
	return t, nil
}

// Styles lists the known style identifiers in sorted order.
func (t *Templates) Styles() []string {
	out := make([]string, 0, len(t.Bases))
	for k := range t.Bases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasStyle reports whether style is known.
func (t *Templates) HasStyle(style string) bool {
	_, ok := t.Bases[style]
	return ok
}

// Size is a supported output resolution.
type Size struct {
	Width  int
	Height int
}

var sizes = map[string]Size{
	"1024x1024": {Width: 1024, Height: 1024},
	"512x512":   {Width: 512, Height: 512},
	"768x768":   {Width: 768, Height: 768},
}

// ParseSize resolves a size token such as "1024x1024".
func ParseSize(token string) (Size, bool) {
	s, ok := sizes[strings.ToLower(strings.TrimSpace(token))]
	return s, ok
}
