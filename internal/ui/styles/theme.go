// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Shell
	App    lipgloss.Style
	Header lipgloss.Style
	Title  lipgloss.Style

	// Tab bar
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabBar      lipgloss.Style

	// Message bubbles
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	Thinking        lipgloss.Style
	CostLine        lipgloss.Style
	Sender          lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputDisabled  lipgloss.Style

	// History list
	SessionRow       lipgloss.Style
	SessionRowActive lipgloss.Style
	SessionMeta      lipgloss.Style
	Bookmark         lipgloss.Style
	Tag              lipgloss.Style
	FolderName       lipgloss.Style

	// Settings and analyse
	Label     lipgloss.Style
	Value     lipgloss.Style
	MutedText lipgloss.Style
	GoodText  lipgloss.Style
	BadText   lipgloss.Style

	// Model picker
	PickerItem     lipgloss.Style
	PickerSelected lipgloss.Style
	PickerCursor   lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme builds the theme for the current terminal.
func NewTheme(width, height int) *Theme {
	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
		Width:        width,
		Height:       height,
	}

	t.App = lipgloss.NewStyle().Background(Surface)
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1).
		Width(width)
	t.Title = lipgloss.NewStyle().Foreground(Indigo).Bold(true)

	t.TabActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Padding(0, 2).
		Bold(true)
	t.TabInactive = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)
	t.TabBar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Width(width)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.Thinking = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.CostLine = lipgloss.NewStyle().Foreground(Emerald)
	t.Sender = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(0, 1)
	t.InputDisabled = t.InputContainer.
		BorderForeground(OverlayDim).
		Foreground(TextMuted)

	t.SessionRow = lipgloss.NewStyle().Foreground(TextPrimary).Padding(0, 1)
	t.SessionRowActive = t.SessionRow.
		Background(IndigoDeep).
		Foreground(TextInverse).
		Bold(true)
	t.SessionMeta = lipgloss.NewStyle().Foreground(TextMuted)
	t.Bookmark = lipgloss.NewStyle().Foreground(Amber)
	t.Tag = lipgloss.NewStyle().
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)
	t.FolderName = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true)

	t.Label = lipgloss.NewStyle().Foreground(TextSecondary).Width(22)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary)
	t.MutedText = lipgloss.NewStyle().Foreground(TextMuted)
	t.GoodText = lipgloss.NewStyle().Foreground(Emerald)
	t.BadText = lipgloss.NewStyle().Foreground(Rose)

	t.PickerItem = lipgloss.NewStyle().Foreground(TextPrimary).Padding(0, 1)
	t.PickerSelected = lipgloss.NewStyle().Foreground(Emerald).Padding(0, 1)
	t.PickerCursor = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1).
		Width(width)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	return t
}

// Resize updates the width-dependent styles.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
	t.Header = t.Header.Width(width)
	t.TabBar = t.TabBar.Width(width)
	t.StatusBar = t.StatusBar.Width(width)
}
