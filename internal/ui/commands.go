// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

// This file implements the slash command handlers for the chat input,
// using a handler registry so each command stays individually testable.

import (
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// commandHandler handles one slash command with its arguments.
type commandHandler func(a *App, args []string) (tea.Model, tea.Cmd)

var commandHandlers = map[string]commandHandler{
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,
	"quit": handleQuitCommand,
	"q":    handleQuitCommand,
	"exit": handleQuitCommand,

	"new":      handleNewCommand,
	"n":        handleNewCommand,
	"rename":   handleRenameCommand,
	"tag":      handleTagCommand,
	"tags":     handleTagCommand,
	"bookmark": handleBookmarkCommand,
	"bm":       handleBookmarkCommand,
	"folder":   handleFolderCommand,
	"delete":   handleDeleteCommand,
	"del":      handleDeleteCommand,

	"attach": handleAttachCommand,
	"detach": handleDetachCommand,

	"model":  handleModelCommand,
	"m":      handleModelCommand,
	"models": handleModelsCommand,

	"export": handleExportCommand,
	"e":      handleExportCommand,
}

// handleCommand dispatches a typed slash command.
func (a *App) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return a, nil
	}

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if name != "delete" && name != "del" {
		a.confirmDeleteID = ""
	}
	if handler, ok := commandHandlers[name]; ok {
		return handler(a, parts[1:])
	}

	a.toasts.AddError("Unknown command '" + parts[0] + "'. Type /help.")
	return a, nil
}

// =============================================================================
// META
// =============================================================================

func handleHelpCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	a.toasts.AddStatus("Commands: /new /rename /tag /bookmark /folder /attach /detach /model /export /delete /quit")
	return a, nil
}

func handleQuitCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	return a, tea.Quit
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

func handleNewCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	a.sessions.Create()
	a.refreshTranscript()
	a.refreshHistoryRows()
	return a, nil
}

func handleRenameCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		a.toasts.AddError("Usage: /rename <name>")
		return a, nil
	}
	name := strings.Join(args, " ")
	if err := a.sessions.Rename(a.sessions.ActiveID(), name); err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}
	a.refreshHistoryRows()
	return a, nil
}

func handleTagCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		a.toasts.AddError("Usage: /tag <tag,tag,...> (empty list clears)")
		return a, nil
	}
	tags := strings.Split(strings.Join(args, " "), ",")
	if err := a.sessions.SetTags(a.sessions.ActiveID(), tags); err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}
	a.toasts.AddSuccess("Tags updated")
	a.refreshHistoryRows()
	return a, nil
}

func handleBookmarkCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	if err := a.sessions.ToggleBookmark(a.sessions.ActiveID()); err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}
	a.refreshHistoryRows()
	return a, nil
}

// handleFolderCommand files the active session, creating the folder when
// it does not exist yet. "/folder" alone unfiles the session.
func handleFolderCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	activeID := a.sessions.ActiveID()

	if len(args) == 0 {
		if err := a.sessions.MoveToFolder(activeID, ""); err != nil {
			a.toasts.AddError(err.Error())
		}
		return a, nil
	}

	name := strings.Join(args, " ")
	var folderID string
	for _, f := range a.sessions.Folders() {
		if strings.EqualFold(f.Name, name) {
			folderID = f.ID
			break
		}
	}
	if folderID == "" {
		folderID = a.sessions.CreateFolder(name).ID
	}

	if err := a.sessions.MoveToFolder(activeID, folderID); err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}
	a.toasts.AddSuccess("Moved to " + name)
	a.refreshHistoryRows()
	return a, nil
}

func handleDeleteCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	id := a.sessions.ActiveID()
	if a.confirmDeleteID != id {
		a.confirmDeleteID = id
		a.toasts.AddStatus("Type /delete again to delete this session")
		return a, nil
	}
	a.confirmDeleteID = ""
	if err := a.sessions.Delete(id); err != nil {
		a.toasts.AddError(err.Error())
		return a, nil
	}
	a.toasts.AddStatus("Session deleted")
	a.refreshTranscript()
	a.refreshHistoryRows()
	return a, nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// maxAttachmentBytes bounds files staged for inline upload. Gemini inline
// data is limited well below this; keep the client side stricter.
const maxAttachmentBytes = 4 << 20

func handleAttachCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		a.toasts.AddError("Usage: /attach <path>")
		return a, nil
	}
	path := strings.Join(args, " ")

	info, err := os.Stat(path)
	if err != nil {
		a.toasts.AddError("Cannot read " + path)
		return a, nil
	}
	if info.Size() > maxAttachmentBytes {
		a.toasts.AddError("File too large (4MB limit)")
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		a.toasts.AddError("Cannot read " + path)
		return a, nil
	}

	a.pendingFile = model.NewAttachment(filepath.Base(path), mimeTypeFor(path), data)
	a.toasts.AddSuccess("Attached " + filepath.Base(path) + " to the next message")
	return a, nil
}

func handleDetachCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	a.pendingFile = nil
	a.toasts.AddStatus("Attachment cleared")
	return a, nil
}

// mimeTypeFor maps common extensions; everything else is sent as a binary
// blob and left to the provider.
func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", ".go", ".py", ".js", ".json", ".toml", ".yaml", ".yml":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// =============================================================================
// MODELS
// =============================================================================

func handleModelCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		a.toasts.AddStatus("Current model: " + a.activeModelID)
		return a, nil
	}

	id := args[0]
	for _, m := range a.registry.ActiveModels() {
		if m.ID == id {
			a.activeModelID = id
			a.toasts.AddSuccess("Switched to " + id)
			return a, nil
		}
	}
	a.toasts.AddError("'" + id + "' is not in the active model list (ctrl+k to pick models)")
	return a, nil
}

func handleModelsCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	return a, a.openPicker()
}

// =============================================================================
// EXPORT
// =============================================================================

func handleExportCommand(a *App, args []string) (tea.Model, tea.Cmd) {
	format := export.FormatMarkdown
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "md", "markdown":
			format = export.FormatMarkdown
		case "json":
			format = export.FormatJSON
		default:
			a.toasts.AddError("Usage: /export [markdown|json]")
			return a, nil
		}
	}
	return a.exportSession(a.sessions.Active(), format)
}
