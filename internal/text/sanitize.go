// Package text provides request text sanitation for the synthesis pipeline.
//
// Sanitation runs before any engine is invoked: no external engine ever sees
// input that failed validation here.
package text

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Static errors.
var (
	// ErrTextEmpty indicates the input contained no speakable content.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrTextTooLong indicates the input exceeded the configured maximum length.
	ErrTextTooLong = errors.New("text exceeds maximum length")
	// ErrControlCharacter indicates the input carried a disallowed control character.
	ErrControlCharacter = errors.New("text contains disallowed control character")
	// ErrInvalidUTF8 indicates the input was not valid UTF-8.
	ErrInvalidUTF8 = errors.New("text is not valid UTF-8")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Sanitizer validates and normalizes synthesis input text.
type Sanitizer struct {
	maxLength int
}

// NewSanitizer creates a sanitizer enforcing the given maximum rune length.
func NewSanitizer(maxLength int) *Sanitizer {
	return &Sanitizer{maxLength: maxLength}
}

// Sanitize validates the input and returns a normalized copy with whitespace
// runs collapsed to single spaces. Length is counted in runes so multi-byte
// Portuguese text is not penalized.
func (s *Sanitizer) Sanitize(input string) (string, error) {
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	length := utf8.RuneCountInString(input)
	if length > s.maxLength {
		return "", fmt.Errorf("%w: %d runes, maximum %d", ErrTextTooLong, length, s.maxLength)
	}

	controlErr := checkControlCharacters(input)
	if controlErr != nil {
		return "", controlErr
	}

	normalized := whitespacePattern.ReplaceAllString(input, " ")

	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return "", ErrTextEmpty
	}

	return normalized, nil
}

// checkControlCharacters rejects Cc characters except the whitespace forms
// the normalizer collapses anyway.
func checkControlCharacters(input string) error {
	for _, r := range input {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}

		if unicode.IsControl(r) {
			return fmt.Errorf("%w: U+%04X", ErrControlCharacter, r)
		}
	}

	return nil
}
