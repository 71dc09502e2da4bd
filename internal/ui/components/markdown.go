// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// markdownRenderer caches a glamour renderer per wrap width. Building a
// TermRenderer is expensive so we only rebuild on resize.
var (
	markdownMu    sync.Mutex
	markdownWidth int
	markdownR     *glamour.TermRenderer
)

func rendererFor(width int) (*glamour.TermRenderer, error) {
	markdownMu.Lock()
	defer markdownMu.Unlock()

	if markdownR != nil && markdownWidth == width {
		return markdownR, nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	markdownR = r
	markdownWidth = width
	return r, nil
}

// RenderMarkdown renders markdown text for terminal display, word-wrapped
// at the given width. Falls back to the raw text if rendering fails.
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := rendererFor(width)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
