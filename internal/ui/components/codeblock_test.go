// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCodeBlocksPassThrough(t *testing.T) {
	text := "plain line one\nplain line two"
	assert.Equal(t, text, ParseCodeBlocks(text, 80))
}

func TestParseCodeBlocksRendersFence(t *testing.T) {
	text := "before\n```go\nfmt.Println(\"hi\")\n```\nafter"
	out := ParseCodeBlocks(text, 80)

	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
	// Fence markers are consumed, the code itself survives.
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "Println")
}

func TestParseCodeBlocksUnclosedFence(t *testing.T) {
	text := "```python\nprint(1)"
	out := ParseCodeBlocks(text, 80)
	assert.Contains(t, out, "print")
	assert.NotContains(t, out, "```")
}

func TestHighlightCodeFallsBackOnUnknownLanguage(t *testing.T) {
	code := "some opaque text"
	out := highlightCode(code, "no-such-language-xyz")
	// chroma's fallback lexer still emits the raw text.
	assert.Contains(t, stripANSI(out), "some opaque text")
}

func TestWordWrap(t *testing.T) {
	wrapped := wordWrap("one two three four", 9)
	lines := strings.Split(wrapped, "\n")
	assert.True(t, len(lines) >= 2)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 9)
	}
}

// stripANSI removes escape sequences so content assertions see plain text.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
