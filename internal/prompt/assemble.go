package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stylize/internal/domain"
)

// Prompt length bounds, counted in characters after trimming.
const (
	MinPromptLength = 3
	MaxPromptLength = 1000
)

// Assembler builds final provider prompts from user text.
type Assembler struct {
	templates *Templates
	filter    *SafetyFilter
}

// NewAssembler wires templates and a safety filter. Nil arguments fall back
// to the built-in defaults.
func NewAssembler(t *Templates, f *SafetyFilter) *Assembler {
	if t == nil {
		t = DefaultTemplates()
	}
	if f == nil {
		f = NewSafetyFilter()
	}
	return &Assembler{templates: t, filter: f}
}

// Templates exposes the style set in use.
func (a *Assembler) Templates() *Templates { return a.templates }

// Filter exposes the safety filter in use.
func (a *Assembler) Filter() *SafetyFilter { return a.filter }

// NegativePrompt returns the fixed negative prompt passed to providers.
func (a *Assembler) NegativePrompt() string { return a.templates.Negative }

// Assemble screens userPrompt and returns "<base> <prompt>[ <positive> <composition>]".
// The error is a *domain.Error of kind SafetyViolation or InvalidPrompt.
func (a *Assembler) Assemble(userPrompt, style string, includeSafety bool) (string, error) {
	if safe, reason := a.filter.Check(userPrompt); !safe {
		return "", domain.NewError(domain.KindSafetyViolation, reason)
	}
	if style == "" {
		style = domain.DefaultStyle
	}
	base, ok := a.templates.Bases[style]
	if !ok {
		return "", domain.NewError(domain.KindInvalidPrompt, fmt.Sprintf("invalid style %q", style))
	}
	parts := []string{base, strings.TrimSpace(userPrompt)}
	if includeSafety {
		parts = append(parts, a.templates.Positive, a.templates.Composition)
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Validate checks prompt length bounds.
func Validate(p string) error {
	trimmed := strings.TrimSpace(p)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return domain.NewError(domain.KindInvalidPrompt, "prompt cannot be empty")
	case n < MinPromptLength:
		return domain.NewError(domain.KindInvalidPrompt, fmt.Sprintf("prompt too short (min %d characters)", MinPromptLength))
	case n > MaxPromptLength:
		return domain.NewError(domain.KindInvalidPrompt, fmt.Sprintf("prompt too long (max %d characters)", MaxPromptLength))
	}
	return nil
}
