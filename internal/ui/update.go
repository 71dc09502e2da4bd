// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/openrouter"
	"github.com/jeranaias/parley/internal/registry"
	"github.com/jeranaias/parley/internal/router"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/telemetry"
	"github.com/jeranaias/parley/internal/ui/components"
)

// =============================================================================
// MESSAGES
// =============================================================================

// turnResultMsg carries the settled provider call back to the update loop.
type turnResultMsg struct {
	sessionID     string
	placeholderID string
	modelID       string
	text          string
	promptLen     int
	hasFile       bool
	err           error
}

// thinkingStepMsg appends a checkpoint step to a pending placeholder.
type thinkingStepMsg struct {
	sessionID     string
	placeholderID string
	step          string
}

// catalogMsg reports a finished catalog refresh.
type catalogMsg struct {
	err error
}

// usageLoadedMsg carries the analyse tab data.
type usageLoadedMsg struct {
	snapshot usageSnapshot
}

// ConfigReloadedMsg is injected by the config watcher via Program.Send.
type ConfigReloadedMsg struct{}

// =============================================================================
// COMMANDS
// =============================================================================

// sendTurnCmd issues the provider call off the update loop. The placeholder
// stays pending until the returned message resolves it.
func sendTurnCmd(rt *router.Router, req router.Request, sessionID, placeholderID string) tea.Cmd {
	return func() tea.Msg {
		timeout := time.Duration(config.Global().Network.TimeoutSecs) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply, err := rt.Send(ctx, req)
		msg := turnResultMsg{
			sessionID:     sessionID,
			placeholderID: placeholderID,
			modelID:       req.ModelID,
			promptLen:     len(req.Prompt),
			hasFile:       req.Attachment != nil,
			err:           err,
		}
		if reply != nil {
			msg.text = reply.Text
		}
		return msg
	}
}

// thinkingStepCmd schedules a checkpoint step while the turn is in flight.
func thinkingStepCmd(sessionID, placeholderID, step string, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return thinkingStepMsg{
			sessionID:     sessionID,
			placeholderID: placeholderID,
			step:          step,
		}
	})
}

// refreshCatalogCmd fetches the aggregator catalog.
func refreshCatalogCmd(reg *registry.Registry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return catalogMsg{err: reg.RefreshCatalog(ctx)}
	}
}

// loadUsageCmd reads the analyse tab aggregates from the ledger.
func loadUsageCmd(ledger *telemetry.Ledger) tea.Cmd {
	return func() tea.Msg {
		snap := usageSnapshot{loaded: true}
		if ledger == nil {
			snap.err = errors.New("usage ledger unavailable")
			return usageLoadedMsg{snapshot: snap}
		}

		var err error
		if snap.total, err = ledger.TotalCost(); err != nil {
			snap.err = err
			return usageLoadedMsg{snapshot: snap}
		}
		if snap.byModel, err = ledger.ByModel(); err != nil {
			snap.err = err
			return usageLoadedMsg{snapshot: snap}
		}
		if snap.byDay, err = ledger.ByDay(7); err != nil {
			snap.err = err
		}
		return usageLoadedMsg{snapshot: snap}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case turnResultMsg:
		return a.handleTurnResult(msg)

	case thinkingStepMsg:
		a.sessions.AddThinkingStep(msg.sessionID, msg.placeholderID, msg.step)
		if a.sessions.ActiveID() == msg.sessionID {
			a.refreshTranscript()
		}
		return a, nil

	case catalogMsg:
		if msg.err != nil {
			if errors.Is(msg.err, registry.ErrNoAPIKey) {
				a.toasts.AddStatus("OpenRouter key not set; showing Google models only")
			} else {
				a.toasts.AddError("Catalog refresh failed: " + msg.err.Error())
				logging.WithError(msg.err).Warn("catalog refresh failed")
			}
		}
		a.picker.SetCatalog(a.registry.Catalog(), a.registry.Selected())
		a.revalidateActiveModel()
		return a, nil

	case usageLoadedMsg:
		a.usage = msg.snapshot
		return a, nil

	case ConfigReloadedMsg:
		a.toasts.AddStatus("Configuration reloaded")
		return a, nil

	case components.PickerToggleMsg:
		return a.handlePickerToggle(msg)

	case components.PickerClosedMsg:
		return a, a.input.Focus()

	case components.ToastTickMsg:
		a.toasts.Tick()
		return a, components.ToastTickCmd()
	}

	// Component-internal messages (spinner frames, cursor blinks).
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	cmds = append(cmds, cmd)
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// handleKey routes keyboard input by overlay and tab.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The picker overlay swallows keys while open.
	if a.picker.Visible() {
		var cmd tea.Cmd
		a.picker, cmd = a.picker.Update(msg)
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.NextTab):
		a.tab = Tab((int(a.tab) + 1) % len(tabNames))
		var cmd tea.Cmd
		switch a.tab {
		case TabChat:
			cmd = a.input.Focus()
		case TabHistory:
			a.input.Blur()
			a.refreshHistoryRows()
		case TabAnalyse:
			a.input.Blur()
			cmd = loadUsageCmd(a.ledger)
		case TabSettings:
			a.input.Blur()
		}
		return a, cmd

	case key.Matches(msg, a.keys.NewSession):
		a.sessions.Create()
		a.tab = TabChat
		a.refreshTranscript()
		a.refreshHistoryRows()
		return a, a.input.Focus()

	case key.Matches(msg, a.keys.Picker):
		return a, a.openPicker()

	case key.Matches(msg, a.keys.Refresh):
		a.toasts.AddStatus("Refreshing model catalog...")
		return a, refreshCatalogCmd(a.registry)

	case key.Matches(msg, a.keys.Export):
		return a.exportSession(a.sessions.Active(), export.FormatMarkdown)
	}

	switch a.tab {
	case TabChat:
		return a.handleChatKey(msg)
	case TabHistory:
		return a.handleHistoryKey(msg)
	case TabAnalyse:
		return a, nil
	case TabSettings:
		return a.handleSettingsKey(msg)
	}
	return a, nil
}

// =============================================================================
// CHAT TAB
// =============================================================================

func (a *App) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return a.submitInput()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submitInput dispatches the typed prompt, or a slash command.
func (a *App) submitInput() (tea.Model, tea.Cmd) {
	text := a.input.Value()
	trimmed := trimInput(text)
	if trimmed == "" {
		return a, nil
	}

	if isCommand(trimmed) {
		a.input.Reset()
		return a.handleCommand(trimmed)
	}

	if a.sendDisabled() {
		a.toasts.AddStatus("Waiting for the current reply to finish")
		return a, nil
	}
	if a.activeModelID == "" {
		a.toasts.AddError("No model selected")
		return a, nil
	}

	active := a.sessions.Active()
	if active == nil {
		active = a.sessions.Create()
	}

	// History snapshot excludes the turn being appended.
	history := make([]*model.Message, len(active.Messages))
	copy(history, active.Messages)

	file := a.pendingFile
	a.pendingFile = nil

	placeholder, err := a.sessions.AppendUserTurn(active.ID, trimmed, file, a.activeModelID)
	if err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}

	a.input.Reset()
	a.refreshTranscript()

	req := router.Request{
		ModelID:    a.activeModelID,
		Prompt:     trimmed,
		History:    history,
		Attachment: file,
	}
	return a, tea.Batch(
		sendTurnCmd(a.router, req, active.ID, placeholder.ID),
		thinkingStepCmd(active.ID, placeholder.ID, "Waiting for response...", thinkingCheckpoint),
		a.spinner.Tick,
	)
}

// handleTurnResult resolves the placeholder and records usage.
func (a *App) handleTurnResult(msg turnResultMsg) (tea.Model, tea.Cmd) {
	isErr := msg.err != nil

	cost := 0.0
	var outcome session.Outcome
	if isErr {
		outcome = session.FailureOutcome(describeSendError(msg.err), msg.modelID)
		a.toasts.AddError(describeSendError(msg.err))
		logging.WithError(msg.err).WithField("model", msg.modelID).Error("send failed")
	} else {
		cost = router.EstimateCost(msg.modelID, msg.promptLen, len(msg.text), msg.hasFile)
		outcome = session.SuccessOutcome(msg.text, cost, msg.modelID)
	}

	if err := a.sessions.ResolveTurn(msg.sessionID, msg.placeholderID, outcome); err != nil {
		logging.WithError(err).Warn("resolve turn failed")
	}

	if a.ledger != nil {
		rec := telemetry.TurnRecord{
			Timestamp:   time.Now(),
			SessionID:   msg.sessionID,
			ModelID:     msg.modelID,
			InputChars:  msg.promptLen,
			OutputChars: len(msg.text),
			Cost:        cost,
			IsError:     isErr,
		}
		if err := a.ledger.Record(rec); err != nil {
			logging.WithError(err).Warn("usage record failed")
		}
	}

	if a.sessions.ActiveID() == msg.sessionID {
		a.refreshTranscript()
	}
	a.refreshHistoryRows()
	return a, nil
}

// describeSendError maps router errors to a user-facing line.
func describeSendError(err error) string {
	var provErr *router.ProviderError
	var parseErr *router.ParseError

	switch {
	case errors.Is(err, router.ErrNotConfigured):
		return "API key missing for this provider. Set it in Settings."
	case errors.Is(err, router.ErrUnsupportedProvider):
		return "Unknown model provider."
	case errors.Is(err, router.ErrUnsupportedInput):
		return "File attachments are only supported on Google models."
	case errors.As(err, &provErr):
		return "Provider error: " + provErr.Message
	case errors.As(err, &parseErr):
		return "The provider returned an unreadable response."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	default:
		return "Send failed: " + err.Error()
	}
}

// =============================================================================
// MODEL PICKER
// =============================================================================

func (a *App) openPicker() tea.Cmd {
	a.input.Blur()
	a.picker.SetCatalog(a.registry.Catalog(), a.registry.Selected())
	return a.picker.Show()
}

func (a *App) handlePickerToggle(msg components.PickerToggleMsg) (tea.Model, tea.Cmd) {
	var err error
	if a.registry.IsSelected(msg.ModelID) {
		err = a.registry.Deselect(msg.ModelID)
	} else {
		err = a.registry.Select(msg.ModelID)
	}

	switch {
	case errors.Is(err, registry.ErrSelectionFull):
		a.toasts.AddError("Selection limit reached; deselect a model first")
	case errors.Is(err, registry.ErrNotInCatalog):
		a.toasts.AddError("That model is no longer in the catalog")
	case err != nil:
		a.toasts.AddError(err.Error())
	}

	a.picker.SetCatalog(a.registry.Catalog(), a.registry.Selected())
	a.revalidateActiveModel()
	return a, nil
}

// =============================================================================
// HISTORY TAB
// =============================================================================

func (a *App) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.searching {
		switch msg.String() {
		case "esc":
			a.searching = false
			a.searchInput.Blur()
			a.searchInput.SetValue("")
			a.refreshHistoryRows()
			return a, nil
		case "enter":
			a.searching = false
			a.searchInput.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(msg)
		a.refreshHistoryRows()
		return a, cmd
	}

	// Any key other than a repeated d disarms a pending delete.
	if msg.String() != "d" {
		a.confirmDeleteID = ""
	}

	switch msg.String() {
	case "up", "k":
		if a.historyCursor > 0 {
			a.historyCursor--
		}
		return a, nil

	case "down", "j":
		if a.historyCursor < len(a.historyRows)-1 {
			a.historyCursor++
		}
		return a, nil

	case "enter":
		if s := a.historyAt(a.historyCursor); s != nil {
			if err := a.sessions.SwitchActive(s.ID); err != nil {
				a.toasts.AddError(err.Error())
				return a, nil
			}
			a.tab = TabChat
			a.refreshTranscript()
			return a, a.input.Focus()
		}
		return a, nil

	case "d":
		if s := a.historyAt(a.historyCursor); s != nil {
			if a.confirmDeleteID != s.ID {
				a.confirmDeleteID = s.ID
				a.toasts.AddStatus("Press d again to delete \"" + s.Name + "\"")
				return a, nil
			}
			a.confirmDeleteID = ""
			if err := a.sessions.Delete(s.ID); err != nil {
				a.toasts.AddError(err.Error())
			} else {
				a.toasts.AddStatus("Session deleted")
			}
			a.refreshHistoryRows()
			a.refreshTranscript()
		}
		return a, nil

	case "b":
		if s := a.historyAt(a.historyCursor); s != nil {
			if err := a.sessions.ToggleBookmark(s.ID); err != nil {
				a.toasts.AddError(err.Error())
			}
			a.refreshHistoryRows()
		}
		return a, nil

	case "e":
		return a.exportSession(a.historyAt(a.historyCursor), export.FormatMarkdown)

	case "J":
		return a.exportSession(a.historyAt(a.historyCursor), export.FormatJSON)

	case "/":
		a.searching = true
		return a, a.searchInput.Focus()

	case "esc":
		a.tab = TabChat
		return a, a.input.Focus()
	}
	return a, nil
}

func (a *App) historyAt(i int) *model.ChatSession {
	if i < 0 || i >= len(a.historyRows) {
		return nil
	}
	return a.historyRows[i]
}

// exportSession writes a session to the export directory.
func (a *App) exportSession(s *model.ChatSession, format export.Format) (tea.Model, tea.Cmd) {
	if s == nil {
		return a, nil
	}
	path, err := export.WriteFile(s, format, a.exportDir)
	if err != nil {
		a.toasts.AddError("Export failed: " + err.Error())
		logging.WithError(err).Warn("export failed")
		return a, nil
	}
	a.toasts.AddSuccess("Exported to " + path)
	return a, nil
}

// =============================================================================
// SETTINGS TAB
// =============================================================================

func (a *App) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.keyFocused {
		switch msg.String() {
		case "esc":
			a.keyFocused = false
			a.keyInput.Blur()
			a.keyInput.SetValue("")
			return a, nil
		case "enter":
			return a.saveAPIKey()
		}
		var cmd tea.Cmd
		a.keyInput, cmd = a.keyInput.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "o":
		a.keyFocused = true
		return a, a.keyInput.Focus()
	case "x":
		return a.clearAPIKey()
	case "m":
		return a, a.openPicker()
	case "r":
		a.toasts.AddStatus("Refreshing model catalog...")
		return a, refreshCatalogCmd(a.registry)
	case "esc":
		a.tab = TabChat
		return a, a.input.Focus()
	}
	return a, nil
}

// saveAPIKey stores the typed OpenRouter key and rewires the clients.
func (a *App) saveAPIKey() (tea.Model, tea.Cmd) {
	keyValue := trimInput(a.keyInput.Value())
	a.keyFocused = false
	a.keyInput.Blur()
	a.keyInput.SetValue("")
	if keyValue == "" {
		return a, nil
	}

	client := openrouter.NewClient(keyValue)
	a.registry.SetClient(client)
	a.router.SetOpenRouterClient(client)
	if err := a.registry.SaveAPIKey(keyValue); err != nil {
		a.toasts.AddError("Key saved in memory only: " + err.Error())
		logging.WithError(err).Warn("api key persist failed")
	} else {
		a.toasts.AddSuccess("OpenRouter key saved")
	}
	return a, refreshCatalogCmd(a.registry)
}

// clearAPIKey removes the stored OpenRouter key.
func (a *App) clearAPIKey() (tea.Model, tea.Cmd) {
	client := openrouter.NewClient("")
	a.registry.SetClient(client)
	a.router.SetOpenRouterClient(client)
	if err := a.registry.DeleteAPIKey(); err != nil {
		a.toasts.AddError("Could not delete stored key: " + err.Error())
		return a, nil
	}
	a.toasts.AddStatus("OpenRouter key removed")
	return a, nil
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// trimInput strips the surrounding whitespace the textarea keeps around
// the typed value, including the newline from the enter key.
func trimInput(s string) string {
	return strings.TrimSpace(s)
}

func isCommand(s string) bool {
	return len(s) > 1 && s[0] == '/'
}
