// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the parley terminal interface: a tabbed bubbletea
// application with a chat transcript, session history, usage analysis and
// settings. The ui layer owns no business rules; it drives the session
// manager, model registry, prompt router and usage ledger.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/registry"
	"github.com/jeranaias/parley/internal/router"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/telemetry"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// TABS
// =============================================================================

// Tab identifies one of the top-level views.
type Tab int

const (
	TabChat Tab = iota
	TabHistory
	TabAnalyse
	TabSettings
)

var tabNames = []string{"Chat", "History", "Analyse", "Settings"}

// String returns the tab label.
func (t Tab) String() string {
	if int(t) < len(tabNames) {
		return tabNames[t]
	}
	return "?"
}

// =============================================================================
// APP MODEL
// =============================================================================

// usageSnapshot holds the analyse tab data loaded from the ledger.
type usageSnapshot struct {
	total   float64
	byModel []telemetry.ModelUsage
	byDay   []telemetry.DailyUsage
	err     error
	loaded  bool
}

// App is the root Bubble Tea model.
type App struct {
	// Backend services
	sessions *session.Manager
	registry *registry.Registry
	router   *router.Router
	ledger   *telemetry.Ledger

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Current tab
	tab Tab

	// Chat components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	// Model selection
	activeModelID string
	picker        *components.ModelPicker

	// Attachment staged for the next send
	pendingFile *model.Attachment

	// History tab state
	historyCursor int
	historyRows   []*model.ChatSession
	searchInput   textinput.Model
	searching     bool

	// Deletion is armed on the first request and only performed when the
	// same session is named again.
	confirmDeleteID string

	// Settings tab state
	keyInput   textinput.Model
	keyFocused bool

	// Analyse tab state
	usage usageSnapshot

	// Toasts
	toasts *components.ToastManager

	// Key bindings
	keys KeyMap

	// Export destination
	exportDir string
}

// Options carries the services the app is built from.
type Options struct {
	Sessions  *session.Manager
	Registry  *registry.Registry
	Router    *router.Router
	Ledger    *telemetry.Ledger
	ExportDir string
}

// New creates the root application model.
func New(opts Options) *App {
	theme := styles.NewTheme(80, 24)

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "┃ "
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Indigo)

	si := textinput.New()
	si.Placeholder = "Search sessions..."
	si.Prompt = "/ "
	si.CharLimit = 100

	ki := textinput.New()
	ki.Placeholder = "sk-or-..."
	ki.Prompt = "> "
	ki.CharLimit = 200
	ki.EchoMode = textinput.EchoPassword
	ki.EchoCharacter = '*'

	app := &App{
		sessions:    opts.Sessions,
		registry:    opts.Registry,
		router:      opts.Router,
		ledger:      opts.Ledger,
		theme:       theme,
		tab:         TabChat,
		viewport:    vp,
		input:       ta,
		spinner:     sp,
		picker:      components.NewModelPicker(theme),
		searchInput: si,
		keyInput:    ki,
		toasts:      components.NewToastManager(),
		keys:        DefaultKeyMap(),
		exportDir:   opts.ExportDir,
	}

	app.revalidateActiveModel()
	app.refreshHistoryRows()
	app.refreshTranscript()
	return app
}

// Init starts the background tickers and the initial catalog fetch.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		components.ToastTickCmd(),
		textarea.Blink,
		refreshCatalogCmd(a.registry),
	)
}

// revalidateActiveModel keeps activeModelID pointing at a member of the
// active list. A deselect or a catalog refresh can drop the routed model;
// when that happens the choice falls back to the configured default if it
// is active, else the first active entry (the Google defaults are always
// present).
func (a *App) revalidateActiveModel() {
	active := a.registry.ActiveModels()
	for _, m := range active {
		if m.ID == a.activeModelID {
			return
		}
	}

	a.activeModelID = ""
	if len(active) == 0 {
		return
	}
	a.activeModelID = active[0].ID
	for _, m := range active {
		if m.ID == config.Global().DefaultModel {
			a.activeModelID = m.ID
			break
		}
	}
}

// refreshHistoryRows recomputes the session list shown in the history tab.
func (a *App) refreshHistoryRows() {
	query := a.searchInput.Value()
	if a.searching && query != "" {
		a.historyRows = a.sessions.Search(query)
	} else {
		a.historyRows = a.sessions.Sessions()
	}
	if a.historyCursor >= len(a.historyRows) {
		a.historyCursor = 0
	}
}

// refreshTranscript re-renders the active session into the viewport and
// keeps it pinned to the bottom.
func (a *App) refreshTranscript() {
	active := a.sessions.Active()
	if active == nil {
		a.viewport.SetContent("")
		return
	}

	list := components.NewMessageList(a.theme)
	list.SetWidth(a.contentWidth())
	list.SetMessages(active.Messages)
	a.viewport.SetContent(list.View())
	a.viewport.GotoBottom()
}

// contentWidth returns the usable width inside the app frame.
func (a *App) contentWidth() int {
	w := a.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

// sendDisabled reports whether the send affordance is off. One turn may be
// outstanding per session.
func (a *App) sendDisabled() bool {
	active := a.sessions.Active()
	return active != nil && active.HasPendingTurn()
}

// =============================================================================
// LAYOUT
// =============================================================================

// resize propagates a terminal size change to every component.
func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	a.theme.Resize(width, height)

	contentHeight := height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}
	a.viewport.Width = a.contentWidth()
	a.viewport.Height = contentHeight
	a.input.SetWidth(a.contentWidth())
	a.picker.SetSize(width, height)
	a.refreshTranscript()
}

// thinkingCheckpoint is how long after dispatch the second thinking step
// is appended to the placeholder.
const thinkingCheckpoint = 2 * time.Second
