package types

import "strings"

// MinPromptLen and MaxPromptLen bound a trimmed prompt's length (spec §3).
const (
	MinPromptLen = 1
	MaxPromptLen = 5000
)

// NormalizeText trims surrounding whitespace. The core only ever sees
// already-trimmed text, but callers inside the module (cache key
// derivation, technique application) normalize defensively.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// ValidatePromptText enforces the §3 Prompt invariant: trimmed length
// between 1 and 5000 characters inclusive.
func ValidatePromptText(text string) error {
	trimmed := NormalizeText(text)
	if len(trimmed) < MinPromptLen {
		return NewValidationError("prompt text must not be empty")
	}
	if len([]rune(trimmed)) > MaxPromptLen {
		return NewValidationError("prompt text exceeds maximum length of 5000 characters")
	}
	return nil
}
