// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the in-memory session collection and mirrors every
// mutation to the storage layer.
//
// The manager owns three pieces of state: the session list, the active
// session ID, and the folder list. All mutating operations write the full
// snapshot back to storage; a failed write is logged and surfaced as a
// best-effort condition, never a blocked mutation, so the UI keeps working
// from memory.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// SessionError represents a session-related error.
// It implements the error interface and can be compared using errors.Is.
type SessionError struct {
	Message string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing session errors.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = &SessionError{Message: "session not found"}

	// ErrMessageNotFound is returned when a placeholder ID is unknown.
	ErrMessageNotFound = &SessionError{Message: "message not found"}

	// ErrFolderNotFound is returned when a folder ID is unknown.
	ErrFolderNotFound = &SessionError{Message: "folder not found"}

	// ErrTurnOutstanding is returned when a session already has an
	// unresolved placeholder.
	ErrTurnOutstanding = &SessionError{Message: "a turn is already outstanding"}
)

// =============================================================================
// TURN OUTCOME
// =============================================================================

// Outcome is the result of a routed turn, either a response or a failure.
type Outcome struct {
	Text      string
	Cost      float64
	ModelID   string
	IsError   bool
	ErrorText string
}

// SuccessOutcome builds the outcome for a completed response.
func SuccessOutcome(text string, cost float64, modelID string) Outcome {
	return Outcome{Text: text, Cost: cost, ModelID: modelID}
}

// FailureOutcome builds the outcome for a failed turn.
func FailureOutcome(errorText, modelID string) Outcome {
	return Outcome{IsError: true, ErrorText: errorText, ModelID: modelID}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the session collection.
type Manager struct {
	mu sync.Mutex

	store    *storage.Store
	sessions []*model.ChatSession
	folders  []*model.Folder
	activeID string
}

// NewManager loads persisted state and guarantees an active session
// exists: boot with zero sessions creates one.
func NewManager(store *storage.Store) (*Manager, error) {
	sessions, err := store.LoadSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	folders, err := store.LoadFolders()
	if err != nil {
		return nil, fmt.Errorf("failed to load folders: %w", err)
	}
	activeID, err := store.LoadActiveSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}

	m := &Manager{
		store:    store,
		sessions: sessions,
		folders:  folders,
		activeID: activeID,
	}

	if m.byID(activeID) == nil {
		if len(m.sessions) > 0 {
			// The stored active ID points nowhere; fall back to the
			// most recently touched session.
			m.activeID = m.mostRecent().ID
			m.persistActive()
		} else {
			m.createLocked()
		}
	}

	return m, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create allocates a new empty session, makes it active, and returns it.
func (m *Manager) Create() *model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked()
}

func (m *Manager) createLocked() *model.ChatSession {
	s := model.NewChatSession()
	m.sessions = append(m.sessions, s)
	m.activeID = s.ID
	m.persistSessions()
	m.persistActive()
	return s
}

// Active returns the active session. The manager maintains the invariant
// that one always exists.
func (m *Manager) Active() *model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.byID(m.activeID); s != nil {
		return s
	}
	return m.createLocked()
}

// ActiveID returns the active session's ID.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// SwitchActive makes the named session active. Switching to the already
// active session is a no-op.
func (m *Manager) SwitchActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.activeID {
		return nil
	}
	if m.byID(id) == nil {
		return ErrSessionNotFound
	}
	m.activeID = id
	m.persistActive()
	return nil
}

// Delete removes a session. If it was active, activation falls over to the
// most recently modified remaining session; deleting the last session
// creates a fresh empty one.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, s := range m.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSessionNotFound
	}

	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)

	if m.activeID == id {
		if len(m.sessions) > 0 {
			m.activeID = m.mostRecent().ID
			m.persistSessions()
			m.persistActive()
		} else {
			m.createLocked()
		}
		return nil
	}

	m.persistSessions()
	return nil
}

// Sessions returns all sessions. Bookmarked sessions sort first, then
// most recently modified.
func (m *Manager) Sessions() []*model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.ChatSession, len(m.sessions))
	copy(out, m.sessions)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsBookmarked != out[j].IsBookmarked {
			return out[i].IsBookmarked
		}
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out
}

// =============================================================================
// TURNS
// =============================================================================

// AppendUserTurn appends the user's message and, atomically with it, the
// placeholder AI message the router outcome will replace. The first turn
// names the session from the message text. Returns the placeholder so the
// caller can resolve it later.
func (m *Manager) AppendUserTurn(sessionID, text string, file *model.Attachment, modelID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byID(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if s.HasPendingTurn() {
		return nil, ErrTurnOutstanding
	}

	userMsg := model.NewUserMessage(text, file)
	placeholder := model.NewPlaceholderMessage(modelID)
	s.Messages = append(s.Messages, userMsg, placeholder)

	if s.IsUnnamed() {
		s.Name = model.DeriveName(text)
	}
	s.Touch()

	m.persistSessions()
	return placeholder, nil
}

// AddThinkingStep appends a progress line to a pending placeholder.
// Purely in-memory; thinking steps are transient UI state.
func (m *Manager) AddThinkingStep(sessionID, placeholderID, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byID(sessionID)
	if s == nil {
		return
	}
	if msg := s.MessageByID(placeholderID); msg != nil {
		msg.AddThinkingStep(step)
	}
}

// ResolveTurn replaces the placeholder in place with the final message.
// Success adds the outcome's cost to the session total; failure adds
// nothing and marks the message as an error. Callers must resolve each
// placeholder at most once.
func (m *Manager) ResolveTurn(sessionID, placeholderID string, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byID(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	msg := s.MessageByID(placeholderID)
	if msg == nil {
		return ErrMessageNotFound
	}

	msg.ThinkingSteps = nil
	msg.ModelID = outcome.ModelID
	if outcome.IsError {
		msg.Text = outcome.ErrorText
		msg.IsError = true
	} else {
		msg.Text = outcome.Text
		msg.Cost = outcome.Cost
		s.TotalCost += outcome.Cost
	}
	s.Touch()

	m.persistSessions()
	return nil
}

// =============================================================================
// METADATA
// =============================================================================

// Rename sets a session's display name.
func (m *Manager) Rename(id, name string) error {
	return m.mutate(id, func(s *model.ChatSession) {
		s.Name = model.NormalizeRename(name)
	})
}

// ToggleBookmark flips a session's bookmark flag.
func (m *Manager) ToggleBookmark(id string) error {
	return m.mutate(id, func(s *model.ChatSession) {
		s.IsBookmarked = !s.IsBookmarked
	})
}

// SetTags replaces a session's tags after normalization.
func (m *Manager) SetTags(id string, tags []string) error {
	return m.mutate(id, func(s *model.ChatSession) {
		s.Tags = model.NormalizeTags(tags)
	})
}

// MoveToFolder files a session under a folder; an empty folder ID unfiles
// it.
func (m *Manager) MoveToFolder(id, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if folderID != "" && m.folderByID(folderID) == nil {
		return ErrFolderNotFound
	}
	s := m.byID(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.FolderID = folderID
	s.Touch()
	m.persistSessions()
	return nil
}

// mutate applies fn to the named session under the lock and persists.
func (m *Manager) mutate(id string, fn func(*model.ChatSession)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byID(id)
	if s == nil {
		return ErrSessionNotFound
	}
	fn(s)
	s.Touch()
	m.persistSessions()
	return nil
}

// =============================================================================
// FOLDERS
// =============================================================================

// Folders returns all folders in creation order.
func (m *Manager) Folders() []*model.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Folder, len(m.folders))
	copy(out, m.folders)
	return out
}

// CreateFolder adds a folder and returns it.
func (m *Manager) CreateFolder(name string) *model.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := model.NewFolder(name)
	m.folders = append(m.folders, f)
	m.persistFolders()
	return f
}

// RenameFolder sets a folder's display name.
func (m *Manager) RenameFolder(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.folderByID(id)
	if f == nil {
		return ErrFolderNotFound
	}
	f.Name = strings.TrimSpace(name)
	m.persistFolders()
	return nil
}

// DeleteFolder removes a folder. Sessions filed under it become unfiled;
// the sessions themselves are untouched.
func (m *Manager) DeleteFolder(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, f := range m.folders {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrFolderNotFound
	}
	m.folders = append(m.folders[:idx], m.folders[idx+1:]...)

	changed := false
	for _, s := range m.sessions {
		if s.FolderID == id {
			s.FolderID = ""
			changed = true
		}
	}

	m.persistFolders()
	if changed {
		m.persistSessions()
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns sessions whose name, tags, or message text contain the
// query, case-insensitive, in the same order as Sessions. An empty query
// returns everything.
func (m *Manager) Search(query string) []*model.ChatSession {
	query = strings.ToLower(strings.TrimSpace(query))
	all := m.Sessions()
	if query == "" {
		return all
	}

	out := make([]*model.ChatSession, 0, len(all))
	for _, s := range all {
		if sessionMatches(s, query) {
			out = append(out, s)
		}
	}
	return out
}

func sessionMatches(s *model.ChatSession, query string) bool {
	if strings.Contains(strings.ToLower(s.Name), query) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(tag, query) {
			return true
		}
	}
	for _, msg := range s.Messages {
		if strings.Contains(strings.ToLower(msg.Text), query) {
			return true
		}
	}
	return false
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (m *Manager) byID(id string) *model.ChatSession {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) folderByID(id string) *model.Folder {
	for _, f := range m.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (m *Manager) mostRecent() *model.ChatSession {
	best := m.sessions[0]
	for _, s := range m.sessions[1:] {
		if s.LastModified.After(best.LastModified) {
			best = s
		}
	}
	return best
}

// Persistence failures are logged, never propagated: the in-memory state
// already moved on and the UI should keep working.

func (m *Manager) persistSessions() {
	if err := m.store.SaveSessions(m.sessions); err != nil {
		logging.WithError(err).Error("failed to persist sessions")
	}
}

func (m *Manager) persistActive() {
	if err := m.store.SaveActiveSessionID(m.activeID); err != nil {
		logging.WithError(err).Error("failed to persist active session")
	}
}

func (m *Manager) persistFolders() {
	if err := m.store.SaveFolders(m.folders); err != nil {
		logging.WithError(err).Error("failed to persist folders")
	}
}
