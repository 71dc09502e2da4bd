// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MODEL PICKER
// =============================================================================

// PickerToggleMsg asks the app to toggle selection of a catalog model.
type PickerToggleMsg struct {
	ModelID string
}

// PickerClosedMsg is emitted when the picker is dismissed.
type PickerClosedMsg struct{}

// ModelPicker is an overlay for browsing the aggregator catalog and
// toggling which models appear in the active list.
type ModelPicker struct {
	input textinput.Model

	catalog  []model.ModelInfo
	filtered []model.ModelInfo
	selected map[string]bool

	cursor   int
	width    int
	height   int
	visible  bool
	maxItems int

	theme *styles.Theme
}

// NewModelPicker creates a model picker.
func NewModelPicker(theme *styles.Theme) *ModelPicker {
	ti := textinput.New()
	ti.Placeholder = "Filter models..."
	ti.Prompt = "> "
	ti.CharLimit = 100
	ti.Width = 50
	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	return &ModelPicker{
		input:    ti,
		selected: make(map[string]bool),
		maxItems: 12,
		theme:    theme,
	}
}

// SetCatalog replaces the catalog entries shown by the picker.
func (p *ModelPicker) SetCatalog(catalog []model.ModelInfo, selected []string) {
	p.catalog = catalog
	p.selected = make(map[string]bool, len(selected))
	for _, id := range selected {
		p.selected[id] = true
	}
	p.updateFiltered()
	if p.cursor >= len(p.filtered) {
		p.cursor = 0
	}
}

// SetSize updates the picker dimensions.
func (p *ModelPicker) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Show opens the picker and focuses the filter input.
func (p *ModelPicker) Show() tea.Cmd {
	p.visible = true
	p.cursor = 0
	p.input.SetValue("")
	p.updateFiltered()
	return p.input.Focus()
}

// Hide dismisses the picker.
func (p *ModelPicker) Hide() {
	p.visible = false
	p.input.Blur()
}

// Visible reports whether the picker overlay is open.
func (p *ModelPicker) Visible() bool {
	return p.visible
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles picker key events. Returned commands carry toggle and
// close messages for the app to act on.
func (p *ModelPicker) Update(msg tea.Msg) (*ModelPicker, tea.Cmd) {
	if !p.visible {
		return p, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			p.Hide()
			return p, func() tea.Msg { return PickerClosedMsg{} }

		case "up", "ctrl+p":
			if len(p.filtered) == 0 {
				return p, nil
			}
			p.cursor--
			if p.cursor < 0 {
				p.cursor = len(p.filtered) - 1
			}
			return p, nil

		case "down", "ctrl+n", "tab":
			if len(p.filtered) == 0 {
				return p, nil
			}
			p.cursor++
			if p.cursor >= len(p.filtered) {
				p.cursor = 0
			}
			return p, nil

		case "enter":
			if p.cursor >= 0 && p.cursor < len(p.filtered) {
				id := p.filtered[p.cursor].ID
				return p, func() tea.Msg { return PickerToggleMsg{ModelID: id} }
			}
			return p, nil
		}
	}

	previous := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != previous {
		p.updateFiltered()
		p.cursor = 0
	}
	return p, cmd
}

// View renders the picker overlay.
func (p *ModelPicker) View() string {
	if !p.visible {
		return ""
	}

	boxWidth := 64
	if p.width > 0 && p.width < boxWidth+10 {
		boxWidth = p.width - 10
	}
	if boxWidth < 40 {
		boxWidth = 40
	}

	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.filtered) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Render("No models match. Refresh the catalog from Settings."))
	} else {
		limit := minInt(len(p.filtered), p.maxItems)
		for i := 0; i < limit; i++ {
			entry := p.filtered[i]

			check := "  "
			if p.selected[entry.ID] {
				check = lipgloss.NewStyle().Foreground(styles.Emerald).Render("✓ ")
			}

			line := check + util.TruncateWidth(entry.ID, boxWidth-12)
			if entry.ContextLength > 0 {
				line += lipgloss.NewStyle().
					Foreground(styles.TextMuted).
					Render(" (" + util.IntToString(entry.ContextLength/1024) + "k)")
			}

			if i == p.cursor {
				line = p.theme.PickerSelected.Render("▸ " + line)
			} else {
				line = p.theme.PickerItem.Render("  " + line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(p.filtered) > limit {
			b.WriteString(lipgloss.NewStyle().
				Foreground(styles.TextMuted).
				Render("  ... and " + util.IntToString(len(p.filtered)-limit) + " more"))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render("enter toggle · esc close"))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Indigo).
		Padding(1, 2).
		Width(boxWidth).
		Render(b.String())
}

// updateFiltered recomputes the visible catalog subset for the filter text.
func (p *ModelPicker) updateFiltered() {
	query := strings.ToLower(strings.TrimSpace(p.input.Value()))
	if query == "" {
		p.filtered = p.catalog
		return
	}

	var matched []model.ModelInfo
	for _, entry := range p.catalog {
		if strings.Contains(strings.ToLower(entry.ID), query) ||
			strings.Contains(strings.ToLower(entry.Name), query) {
			matched = append(matched, entry)
		}
	}
	p.filtered = matched
}
