// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/parley/internal/model"
)

func exportableSession() *model.ChatSession {
	s := model.NewChatSession()
	s.Name = "Trip planning"
	s.Tags = []string{"travel"}
	s.Messages = append(s.Messages, model.NewUserMessage("Where should I go in May?", nil))
	reply := model.NewPlaceholderMessage("googleai/gemini-2.0-flash")
	reply.Text = "Consider Portugal."
	reply.Cost = 0.0002
	reply.ThinkingSteps = nil
	s.Messages = append(s.Messages, reply)
	s.TotalCost = 0.0002
	return s
}

func TestMarkdownExport(t *testing.T) {
	data, err := Session(exportableSession(), FormatMarkdown)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"# Trip planning",
		"Tags: travel",
		"Where should I go in May?",
		"Consider Portugal.",
		"googleai/gemini-2.0-flash",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExportErrorTurn(t *testing.T) {
	s := exportableSession()
	failed := model.NewPlaceholderMessage("openrouter/a/b")
	failed.Text = "model unavailable"
	failed.IsError = true
	failed.ThinkingSteps = nil
	s.Messages = append(s.Messages, failed)

	data, err := Session(s, FormatMarkdown)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), "> Error: model unavailable") {
		t.Error("error turn not marked in transcript")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	s := exportableSession()
	data, err := Session(s, FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var got model.ChatSession
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != s.ID || got.TotalCost != s.TotalCost || len(got.Messages) != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := Session(exportableSession(), Format("pdf")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(exportableSession(), FormatMarkdown, dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "trip-planning.md" {
		t.Errorf("filename = %q", filepath.Base(path))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Trip planning", "trip-planning"},
		{"Hello world, this i...", "hello-world-this-i"},
		{"  ---  ", ""},
		{"Numbers 123", "numbers-123"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
