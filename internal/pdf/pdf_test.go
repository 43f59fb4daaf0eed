package pdf

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClipStaysOnRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", clip("short", 100))
	assert.Equal(t, "ab", clip("abcdef", 2))

	// A cut landing inside a multibyte rune backs up to its start.
	text := strings.Repeat("a", 1999) + "§ more text"
	got := clip(text, 2000)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 1999), got)
}
