// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "Assistant"
	default:
		return string(s)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is an inline file attached to a user message. Content is
// carried base64-encoded so the whole message serializes as plain JSON.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	// Data is the base64-encoded file content.
	Data string `json:"data"`
}

// NewAttachment encodes raw file content into an Attachment.
func NewAttachment(name, mimeType string, content []byte) *Attachment {
	return &Attachment{
		Name:     name,
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(content),
	}
}

// DataURI returns the attachment as a data: URI ("data:<mime>;base64,<data>"),
// the form the first-party API accepts as an inline content part.
func (a *Attachment) DataURI() string {
	return "data:" + a.MimeType + ";base64," + a.Data
}

// ParseDataURI splits a "data:<mime>;base64,<data>" URI into mime type and
// base64 payload.
func ParseDataURI(uri string) (mimeType, data string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", fmt.Errorf("not a data URI")
	}
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", "", fmt.Errorf("malformed data URI: no payload separator")
	}
	header, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("unsupported data URI encoding %q", header)
	}
	return strings.TrimSuffix(header, ";base64"), payload, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a session.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Text string `json:"text"`
	// File is an optional attachment; user messages only.
	File *Attachment `json:"file,omitempty"`

	// AI response metadata
	// Cost is the estimated dollar cost; set only on successful AI turns.
	Cost    float64 `json:"cost,omitempty"`
	ModelID string  `json:"model_id,omitempty"`
	// IsError marks a surfaced failure rather than a real model response.
	IsError bool `json:"is_error,omitempty"`

	// ThinkingSteps holds progress lines shown while a response is
	// pending. Non-empty exactly while the message is a placeholder;
	// cleared when the turn resolves.
	ThinkingSteps []string `json:"thinking_steps,omitempty"`
}

// NewUserMessage creates a user message, optionally with an attachment.
func NewUserMessage(text string, file *Attachment) *Message {
	return &Message{
		ID:        generateMessageID(),
		Sender:    SenderUser,
		Text:      text,
		File:      file,
		Timestamp: time.Now(),
	}
}

// NewPlaceholderMessage creates the pending AI message inserted alongside
// each user turn. Its ThinkingSteps start non-empty so the UI always has a
// progress line to show.
func NewPlaceholderMessage(modelID string) *Message {
	return &Message{
		ID:            generateMessageID(),
		Sender:        SenderAI,
		ModelID:       modelID,
		Timestamp:     time.Now(),
		ThinkingSteps: []string{"Contacting " + modelID + "..."},
	}
}

// IsPending reports whether the message is still an unresolved placeholder.
func (m *Message) IsPending() bool {
	return m.Sender == SenderAI && len(m.ThinkingSteps) > 0
}

// AddThinkingStep appends a progress line to a pending message. No-op once
// the message has resolved.
func (m *Message) AddThinkingStep(step string) {
	if m.IsPending() {
		m.ThinkingSteps = append(m.ThinkingSteps, step)
	}
}

// Preview returns a single-line rune-safe preview of the message text.
func (m *Message) Preview(maxRunes int) string {
	text := strings.TrimSpace(m.Text)
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// generateMessageID creates a unique message ID.
func generateMessageID() string {
	return "msg_" + uuid.NewString()
}
