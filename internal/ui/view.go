// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// ROOT VIEW
// =============================================================================

// View renders the application.
func (a *App) View() string {
	var body string
	switch a.tab {
	case TabChat:
		body = a.viewChat()
	case TabHistory:
		body = a.viewHistory()
	case TabAnalyse:
		body = a.viewAnalyse()
	case TabSettings:
		body = a.viewSettings()
	}

	sections := []string{
		a.viewTabBar(),
		body,
		a.viewStatusBar(),
	}

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if a.picker.Visible() {
		overlay := lipgloss.Place(a.width, a.height,
			lipgloss.Center, lipgloss.Center, a.picker.View())
		return overlay
	}

	if a.toasts.HasToasts() {
		toastView := components.RenderToasts(a.toasts.Toasts(), a.width)
		view = lipgloss.JoinVertical(lipgloss.Left, view, toastView)
	}

	return view
}

// viewTabBar renders the tab strip with the active model badge.
func (a *App) viewTabBar() string {
	var tabs []string
	for i, name := range tabNames {
		if Tab(i) == a.tab {
			tabs = append(tabs, a.theme.TabActive.Render(name))
		} else {
			tabs = append(tabs, a.theme.TabInactive.Render(name))
		}
	}

	bar := strings.Join(tabs, " ")
	badge := a.theme.MutedText.Render(util.TruncateWidth(a.activeModelID, 40))

	gap := a.width - lipgloss.Width(bar) - lipgloss.Width(badge) - 4
	if gap < 1 {
		gap = 1
	}
	return a.theme.TabBar.Render(bar + strings.Repeat(" ", gap) + badge)
}

// viewStatusBar renders the bottom shortcut line.
func (a *App) viewStatusBar() string {
	shortcut := func(k, desc string) string {
		return a.theme.ShortcutKey.Render(k) + a.theme.ShortcutDesc.Render(" "+desc)
	}

	parts := []string{
		shortcut("ctrl+t", "tabs"),
		shortcut("ctrl+n", "new"),
		shortcut("ctrl+k", "models"),
		shortcut("ctrl+e", "export"),
		shortcut("ctrl+c", "quit"),
	}
	return a.theme.StatusBar.Render(strings.Join(parts, "  "))
}

// =============================================================================
// CHAT TAB
// =============================================================================

func (a *App) viewChat() string {
	var b strings.Builder

	active := a.sessions.Active()
	title := "New Chat"
	if active != nil {
		title = active.Name
	}
	b.WriteString(a.theme.Title.Render(title))
	b.WriteString("\n")

	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if a.sendDisabled() {
		line := a.spinner.View() + " " + a.theme.Thinking.Render(a.latestThinkingStep())
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(a.theme.InputDisabled.Render(a.input.View()))
	} else {
		if a.pendingFile != nil {
			b.WriteString(a.theme.MutedText.Render("📎 " + a.pendingFile.Name + " (/detach to remove)"))
			b.WriteString("\n")
		}
		b.WriteString(a.theme.InputContainer.Render(a.input.View()))
	}

	return b.String()
}

// latestThinkingStep returns the most recent thinking step of the pending
// turn in the active session.
func (a *App) latestThinkingStep() string {
	active := a.sessions.Active()
	if active == nil {
		return ""
	}
	last := active.LastMessage()
	if last == nil || !last.IsPending() || len(last.ThinkingSteps) == 0 {
		return "Working..."
	}
	return last.ThinkingSteps[len(last.ThinkingSteps)-1]
}

// =============================================================================
// HISTORY TAB
// =============================================================================

func (a *App) viewHistory() string {
	var b strings.Builder

	b.WriteString(a.theme.Title.Render("History"))
	b.WriteString("\n")

	if a.searching {
		b.WriteString(a.searchInput.View())
		b.WriteString("\n\n")
	}

	if len(a.historyRows) == 0 {
		b.WriteString(a.theme.MutedText.Render("No sessions."))
		return b.String()
	}

	folders := make(map[string]string)
	for _, f := range a.sessions.Folders() {
		folders[f.ID] = f.Name
	}

	visible := a.height - 10
	if visible < 3 {
		visible = 3
	}
	start := 0
	if a.historyCursor >= visible {
		start = a.historyCursor - visible + 1
	}

	activeID := a.sessions.ActiveID()
	for i := start; i < len(a.historyRows) && i < start+visible; i++ {
		s := a.historyRows[i]
		b.WriteString(a.renderHistoryRow(s, i == a.historyCursor, s.ID == activeID, folders))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.MutedText.Render("enter open · dd delete · b bookmark · e export md · J export json · / search"))
	return b.String()
}

func (a *App) renderHistoryRow(s *model.ChatSession, cursor, active bool, folders map[string]string) string {
	marker := "  "
	if cursor {
		marker = a.theme.PickerCursor.Render("▸ ")
	}

	name := util.TruncateWidth(s.Name, a.contentWidth()/2)
	rowStyle := a.theme.SessionRow
	if active {
		rowStyle = a.theme.SessionRowActive
	}

	var extras []string
	if s.IsBookmarked {
		extras = append(extras, a.theme.Bookmark.Render("★"))
	}
	for _, t := range s.Tags {
		extras = append(extras, a.theme.Tag.Render("#"+t))
	}
	if fname, ok := folders[s.FolderID]; ok && s.FolderID != "" {
		extras = append(extras, a.theme.FolderName.Render("▸"+fname))
	}

	meta := a.theme.SessionMeta.Render(
		s.LastModified.Format("Jan 2 15:04") +
			" · " + util.IntToString(len(s.Messages)) + " msgs" +
			" · " + util.Dollars(s.TotalCost))

	line := marker + rowStyle.Render(name)
	if len(extras) > 0 {
		line += " " + strings.Join(extras, " ")
	}
	return line + "  " + meta
}

// =============================================================================
// ANALYSE TAB
// =============================================================================

func (a *App) viewAnalyse() string {
	var b strings.Builder

	b.WriteString(a.theme.Title.Render("Usage"))
	b.WriteString("\n\n")

	if !a.usage.loaded {
		b.WriteString(a.theme.MutedText.Render("Loading..."))
		return b.String()
	}
	if a.usage.err != nil {
		b.WriteString(a.theme.BadText.Render("Usage data unavailable: " + a.usage.err.Error()))
		return b.String()
	}

	b.WriteString(a.theme.Label.Render("Total spend  "))
	b.WriteString(a.theme.Value.Render(util.Dollars(a.usage.total)))
	b.WriteString("\n\n")

	b.WriteString(a.theme.Label.Render("By model"))
	b.WriteString("\n")
	if len(a.usage.byModel) == 0 {
		b.WriteString(a.theme.MutedText.Render("  no recorded turns"))
		b.WriteString("\n")
	}
	for _, mu := range a.usage.byModel {
		line := "  " + util.PadRight(util.TruncateWidth(mu.ModelID, 44), 46) +
			util.PadRight(util.Dollars(mu.TotalCost), 12) +
			util.IntToString(mu.Turns) + " turns"
		if mu.Errors > 0 {
			line += a.theme.BadText.Render(" (" + util.IntToString(mu.Errors) + " failed)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.Label.Render("Last 7 days"))
	b.WriteString("\n")
	for _, day := range a.usage.byDay {
		b.WriteString("  " + day.Day + "  " + util.Dollars(day.TotalCost) + "\n")
	}

	return b.String()
}

// =============================================================================
// SETTINGS TAB
// =============================================================================

func (a *App) viewSettings() string {
	cfg := config.Global()
	var b strings.Builder

	b.WriteString(a.theme.Title.Render("Settings"))
	b.WriteString("\n\n")

	b.WriteString(a.theme.Label.Render("OpenRouter key  "))
	if a.registry.ClientConfigured() {
		b.WriteString(a.theme.GoodText.Render("configured (" + a.registry.KeyFingerprint() + ")"))
	} else {
		b.WriteString(a.theme.BadText.Render("not set"))
	}
	b.WriteString("\n")

	b.WriteString(a.theme.Label.Render("Gemini key      "))
	if cfg.Providers.GeminiKey != "" {
		b.WriteString(a.theme.GoodText.Render("configured"))
	} else {
		b.WriteString(a.theme.BadText.Render("not set (config.toml or PARLEY_GEMINI_KEY)"))
	}
	b.WriteString("\n\n")

	if a.keyFocused {
		b.WriteString(a.theme.Label.Render("Paste OpenRouter key (enter to save, esc to cancel)"))
		b.WriteString("\n")
		b.WriteString(a.keyInput.View())
		b.WriteString("\n\n")
	}

	b.WriteString(a.theme.Label.Render("Default model   "))
	b.WriteString(a.theme.Value.Render(cfg.DefaultModel))
	b.WriteString("\n")
	b.WriteString(a.theme.Label.Render("Fallback model  "))
	b.WriteString(a.theme.Value.Render(cfg.FallbackModel))
	b.WriteString("\n")
	b.WriteString(a.theme.Label.Render("Log level       "))
	b.WriteString(a.theme.Value.Render(cfg.Logging.Level))
	b.WriteString("\n\n")

	b.WriteString(a.theme.Label.Render("Active models"))
	b.WriteString("\n")
	for _, m := range a.registry.ActiveModels() {
		mark := "  "
		if m.ID == a.activeModelID {
			mark = a.theme.GoodText.Render("● ")
		}
		b.WriteString("  " + mark + m.ID + "\n")
	}

	if !a.registry.LastFetch().IsZero() {
		b.WriteString("\n")
		b.WriteString(a.theme.MutedText.Render(
			"Catalog refreshed " + a.registry.LastFetch().Format("15:04:05")))
	}

	b.WriteString("\n\n")
	b.WriteString(a.theme.MutedText.Render("o set key · x clear key · m pick models · r refresh catalog"))
	return b.String()
}
