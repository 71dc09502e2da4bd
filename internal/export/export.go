// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders chat sessions to shareable files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// Format selects the output representation.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Session renders one session in the requested format.
func Session(s *model.ChatSession, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(s), nil
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile renders the session and writes it next to the given directory,
// deriving a filename from the session name. Returns the written path.
func WriteFile(s *model.ChatSession, format Format, dir string) (string, error) {
	data, err := Session(s, format)
	if err != nil {
		return "", err
	}

	ext := ".md"
	if format == FormatJSON {
		ext = ".json"
	}
	name := slugify(s.Name)
	if name == "" {
		name = s.ID
	}
	path := filepath.Join(dir, name+ext)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// renderMarkdown produces a readable transcript with per-message metadata.
func renderMarkdown(s *model.ChatSession) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	fmt.Fprintf(&b, "Created: %s  \n", s.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total cost: %s\n", util.Dollars(s.TotalCost))
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(s.Tags, ", "))
	}
	b.WriteString("\n---\n\n")

	for _, msg := range s.Messages {
		fmt.Fprintf(&b, "## %s (%s)\n\n", msg.Sender.DisplayName(), msg.Timestamp.Format(time.Kitchen))
		if msg.IsError {
			fmt.Fprintf(&b, "> Error: %s\n\n", msg.Text)
			continue
		}
		b.WriteString(msg.Text)
		b.WriteString("\n\n")
		if msg.File != nil {
			fmt.Fprintf(&b, "*Attachment: %s (%s)*\n\n", msg.File.Name, msg.File.MimeType)
		}
		if msg.Sender == model.SenderAI && msg.Cost > 0 {
			fmt.Fprintf(&b, "*%s, estimated %s*\n\n", msg.ModelID, util.Dollars(msg.Cost))
		}
	}

	return []byte(b.String())
}

// slugify converts a session name into a safe filename stem.
func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
