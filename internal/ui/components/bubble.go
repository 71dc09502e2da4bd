// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders one transcript message as a styled bubble.
type MessageBubble struct {
	Message       *model.Message
	Width         int
	ShowTimestamp bool
	ShowCost      bool
	theme         *styles.Theme
}

// NewMessageBubble creates a bubble for the given message.
func NewMessageBubble(msg *model.Message, theme *styles.Theme) *MessageBubble {
	if msg == nil {
		msg = &model.Message{Sender: model.SenderAI}
	}
	return &MessageBubble{
		Message:       msg,
		Width:         80,
		ShowTimestamp: true,
		ShowCost:      true,
		theme:         theme,
	}
}

// SetWidth sets the bubble width.
func (b *MessageBubble) SetWidth(width int) {
	b.Width = width
}

// View renders the message bubble.
func (b *MessageBubble) View() string {
	switch {
	case b.Message.Sender == model.SenderUser:
		return b.renderUserBubble()
	case b.Message.IsPending():
		return b.renderPendingBubble()
	case b.Message.IsError:
		return b.renderErrorBubble()
	default:
		return b.renderAssistantBubble()
	}
}

// ==========================================================================
// USER BUBBLE - blue tones, right-aligned
// ==========================================================================

func (b *MessageBubble) renderUserBubble() string {
	content := b.Message.Text
	if b.Message.File != nil {
		content += "\n📎 " + b.Message.File.Name
	}
	if content == "" {
		content = "..."
	}

	maxContentWidth := b.Width - 12
	if maxContentWidth < 20 {
		maxContentWidth = 20
	}
	wrapped := wordWrap(content, maxContentWidth)
	contentWidth := minInt(maxLineWidth(wrapped)+4, b.Width-8)

	bubble := lipgloss.NewStyle().
		Foreground(styles.UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.UserBubbleBorder).
		Padding(0, 2).
		Width(contentWidth).
		Render(wrapped)

	header := b.senderLabel("you")
	if ts := b.renderTimestamp(); ts != "" {
		header += " " + ts
	}

	leftMargin := b.Width - contentWidth - 4
	if leftMargin < 0 {
		leftMargin = 0
	}
	marginStyle := lipgloss.NewStyle().MarginLeft(leftMargin)

	return lipgloss.JoinVertical(lipgloss.Right,
		marginStyle.Render(header),
		marginStyle.Render(bubble),
	)
}

// ==========================================================================
// ASSISTANT BUBBLE - indigo tones, left-aligned, markdown rendered
// ==========================================================================

func (b *MessageBubble) renderAssistantBubble() string {
	maxContentWidth := b.Width - 12
	if maxContentWidth < 20 {
		maxContentWidth = 20
	}

	content := RenderMarkdown(b.Message.Text, maxContentWidth)
	if content == "" {
		content = "..."
	}

	contentWidth := minInt(maxLineWidth(content)+4, b.Width-8)

	bubble := lipgloss.NewStyle().
		Foreground(styles.AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.AssistantBubbleBorder).
		Padding(0, 2).
		Width(contentWidth).
		MarginRight(4).
		Render(content)

	header := b.senderLabel(b.Message.ModelID)
	if ts := b.renderTimestamp(); ts != "" {
		header += " " + ts
	}

	result := lipgloss.JoinVertical(lipgloss.Left, header, bubble)

	if b.ShowCost && b.Message.Cost > 0 {
		costLine := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			PaddingLeft(2).
			Render("cost " + util.Dollars(b.Message.Cost))
		result = lipgloss.JoinVertical(lipgloss.Left, result, costLine)
	}

	return result
}

// ==========================================================================
// PENDING BUBBLE - thinking steps while a turn is in flight
// ==========================================================================

func (b *MessageBubble) renderPendingBubble() string {
	steps := b.Message.ThinkingSteps
	content := strings.Join(steps, "\n")
	if content == "" {
		content = "..."
	}

	bubble := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayDim).
		Padding(0, 2).
		Render(content)

	header := b.senderLabel(b.Message.ModelID)
	return lipgloss.JoinVertical(lipgloss.Left, header, bubble)
}

// ==========================================================================
// ERROR BUBBLE - rose left border, failed turn
// ==========================================================================

func (b *MessageBubble) renderErrorBubble() string {
	maxContentWidth := b.Width - 10
	if maxContentWidth < 30 {
		maxContentWidth = 30
	}
	wrapped := wordWrap(b.Message.Text, maxContentWidth)

	bubble := lipgloss.NewStyle().
		Foreground(styles.Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Rose).
		BorderLeft(true).
		BorderTop(false).
		BorderRight(false).
		BorderBottom(false).
		PaddingLeft(2).
		Render(wrapped)

	iconStyle := lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	header := iconStyle.Render("✗") + " " + b.senderLabel(b.Message.ModelID)
	if ts := b.renderTimestamp(); ts != "" {
		header += " " + ts
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, bubble)
}

// ==========================================================================
// HELPER METHODS
// ==========================================================================

func (b *MessageBubble) senderLabel(label string) string {
	if label == "" {
		label = b.Message.Sender.DisplayName()
	}
	return lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		Render(label)
}

func (b *MessageBubble) renderTimestamp() string {
	ts := b.Message.Timestamp
	if !b.ShowTimestamp || ts.IsZero() {
		return ""
	}

	var formatted string
	now := time.Now()
	if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
		formatted = ts.Format("3:04 PM")
	} else {
		formatted = ts.Format("Jan 2, 3:04 PM")
	}

	return lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		Render(formatted)
}

// ==========================================================================
// UTILITY FUNCTIONS
// ==========================================================================

// wordWrap wraps text to fit within the specified width.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for lineIdx, line := range strings.Split(text, "\n") {
		if lineIdx > 0 {
			result.WriteString("\n")
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			if util.StringWidth(current)+1+util.StringWidth(word) <= width {
				current += " " + word
			} else {
				result.WriteString(current)
				result.WriteString("\n")
				current = word
			}
		}
		result.WriteString(current)
	}

	return result.String()
}

// maxLineWidth returns the display width of the widest line.
func maxLineWidth(text string) int {
	maxWidth := 0
	for _, line := range strings.Split(text, "\n") {
		if w := lipgloss.Width(line); w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// =============================================================================
// MESSAGE LIST COMPONENT
// =============================================================================

// MessageList renders a session transcript as stacked bubbles.
type MessageList struct {
	Messages       []*model.Message
	Width          int
	ShowTimestamps bool
	ShowCosts      bool
	theme          *styles.Theme
}

// NewMessageList creates an empty message list.
func NewMessageList(theme *styles.Theme) *MessageList {
	return &MessageList{
		Width:          80,
		ShowTimestamps: true,
		ShowCosts:      true,
		theme:          theme,
	}
}

// SetMessages sets the messages to display.
func (ml *MessageList) SetMessages(messages []*model.Message) {
	ml.Messages = messages
}

// SetWidth sets the list width.
func (ml *MessageList) SetWidth(width int) {
	ml.Width = width
}

// View renders all messages.
func (ml *MessageList) View() string {
	if len(ml.Messages) == 0 {
		return lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Width(ml.Width).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("No messages yet. Type below to start the conversation.")
	}

	var bubbles []string
	for _, msg := range ml.Messages {
		bubble := NewMessageBubble(msg, ml.theme)
		bubble.SetWidth(ml.Width)
		bubble.ShowTimestamp = ml.ShowTimestamps
		bubble.ShowCost = ml.ShowCosts
		bubbles = append(bubbles, bubble.View())
	}

	return strings.Join(bubbles, "\n")
}
