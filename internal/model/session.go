// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultSessionName is used until the first user message names the
	// session.
	DefaultSessionName = "New Chat"

	// derivedNameRunes bounds names derived from the first user message.
	derivedNameRunes = 22

	// MaxNameLength bounds explicit renames.
	MaxNameLength = 60

	// MaxTagLength bounds a single tag after normalization.
	MaxTagLength = 24
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// ChatSession is a single conversation thread.
type ChatSession struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Messages []*Message `json:"messages"`

	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`

	// TotalCost accumulates the estimated dollar cost of successful AI
	// turns in this session.
	TotalCost float64 `json:"total_cost"`

	Tags         []string `json:"tags,omitempty"`
	IsBookmarked bool     `json:"is_bookmarked,omitempty"`
	// FolderID is empty for unfiled sessions.
	FolderID string `json:"folder_id,omitempty"`
}

// NewChatSession creates an empty session with the default name.
func NewChatSession() *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:           "sess_" + uuid.NewString(),
		Name:         DefaultSessionName,
		Messages:     []*Message{},
		CreatedAt:    now,
		LastModified: now,
	}
}

// Touch updates the last-modified timestamp.
func (s *ChatSession) Touch() {
	s.LastModified = time.Now()
}

// IsUnnamed reports whether the session still carries the default name.
func (s *ChatSession) IsUnnamed() bool {
	return s.Name == DefaultSessionName
}

// MessageByID returns the message with the given ID, or nil.
func (s *ChatSession) MessageByID(id string) *Message {
	for _, m := range s.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil for an empty session.
func (s *ChatSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// HasPendingTurn reports whether the session has an unresolved AI
// placeholder. At most one turn may be outstanding per session.
func (s *ChatSession) HasPendingTurn() bool {
	for _, m := range s.Messages {
		if m.IsPending() {
			return true
		}
	}
	return false
}

// =============================================================================
// NAMING AND TAGS
// =============================================================================

// DeriveName produces a session name from the first user message: whitespace
// collapsed, rune-safe truncation with a trailing ellipsis.
func DeriveName(text string) string {
	name := strings.TrimSpace(util.CollapseNewlines(text))
	if name == "" {
		return DefaultSessionName
	}
	return util.TruncateRunes(name, derivedNameRunes)
}

// NormalizeRename validates and trims an explicit rename. Returns the
// default name for blank input.
func NormalizeRename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSessionName
	}
	return util.TruncateRunesNoEllipsis(name, MaxNameLength)
}

// NormalizeTags lowercases, trims, length-caps and deduplicates tags,
// preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		t = util.TruncateRunesNoEllipsis(t, MaxTagLength)
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// =============================================================================
// FOLDER TYPE
// =============================================================================

// Folder groups sessions in the history view.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFolder creates a folder with the given display name.
func NewFolder(name string) *Folder {
	return &Folder{
		ID:        "fold_" + uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}
}
