// Package text_test tests synthesis input sanitation.
package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbr/tts-gateway/internal/text"
)

func TestSanitizeNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(100)

	out, err := sanitizer.Sanitize("  Olá!\n\tTeste   de  voz. ")
	require.NoError(t, err)
	assert.Equal(t, "Olá! Teste de voz.", out)
}

func TestSanitizeRejectsEmpty(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(100)

	_, err := sanitizer.Sanitize("")
	require.ErrorIs(t, err, text.ErrTextEmpty)

	_, err = sanitizer.Sanitize("   \n\t  ")
	require.ErrorIs(t, err, text.ErrTextEmpty)
}

func TestSanitizeRejectsOverlongText(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(10)

	_, err := sanitizer.Sanitize(strings.Repeat("a", 11))
	require.ErrorIs(t, err, text.ErrTextTooLong)

	// Exactly at the limit is fine.
	out, err := sanitizer.Sanitize(strings.Repeat("a", 10))
	require.NoError(t, err)
	assert.Len(t, out, 10)
}

func TestSanitizeCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(4)

	// Four two-byte runes: 8 bytes, 4 runes.
	out, err := sanitizer.Sanitize("áéíó")
	require.NoError(t, err)
	assert.Equal(t, "áéíó", out)
}

func TestSanitizeRejectsControlCharacters(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(100)

	_, err := sanitizer.Sanitize("hello\x00world")
	require.ErrorIs(t, err, text.ErrControlCharacter)

	_, err = sanitizer.Sanitize("bell\x07")
	require.ErrorIs(t, err, text.ErrControlCharacter)
}

func TestSanitizeRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(100)

	_, err := sanitizer.Sanitize(string([]byte{0xff, 0xfe}))
	require.ErrorIs(t, err, text.ErrInvalidUTF8)
}
