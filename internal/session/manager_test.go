// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

const testModel = "googleai/gemini-2.0-flash"

func newTestManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m, err := NewManager(store)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m, store
}

func TestBootCreatesSession(t *testing.T) {
	m, _ := newTestManager(t)

	active := m.Active()
	if active == nil {
		t.Fatal("no active session after boot")
	}
	if active.Name != model.DefaultSessionName {
		t.Errorf("name = %q", active.Name)
	}
	if len(m.Sessions()) != 1 {
		t.Errorf("sessions = %d, want 1", len(m.Sessions()))
	}
}

func TestBootRestoresPersistedState(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStoreWithDir(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m1, err := NewManager(store)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	first := m1.Active()
	second := m1.Create()
	if err := m1.Rename(first.ID, "Kept around"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := m1.SwitchActive(second.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}

	// A second manager over the same directory sees the same state.
	store2, err := storage.NewStoreWithDir(dir)
	if err != nil {
		t.Fatalf("store2: %v", err)
	}
	m2, err := NewManager(store2)
	if err != nil {
		t.Fatalf("manager2: %v", err)
	}
	if m2.ActiveID() != second.ID {
		t.Errorf("active = %q, want %q", m2.ActiveID(), second.ID)
	}
	if len(m2.Sessions()) != 2 {
		t.Errorf("sessions = %d, want 2", len(m2.Sessions()))
	}
}

func TestSwitchActive(t *testing.T) {
	m, _ := newTestManager(t)

	first := m.Active()
	second := m.Create()
	if m.ActiveID() != second.ID {
		t.Fatalf("create should activate the new session")
	}

	if err := m.SwitchActive(first.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if m.ActiveID() != first.ID {
		t.Errorf("active = %q", m.ActiveID())
	}

	// Switching to the current session is a no-op.
	if err := m.SwitchActive(first.ID); err != nil {
		t.Errorf("self switch: %v", err)
	}

	if err := m.SwitchActive("sess_ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestAppendUserTurnNamesSession(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	placeholder, err := m.AppendUserTurn(s.ID, "Hello world, this is my first message", nil, testModel)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !placeholder.IsPending() {
		t.Error("placeholder should start pending")
	}

	if s.Name != "Hello world, this i..." {
		t.Errorf("name = %q", s.Name)
	}
	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d, want user + placeholder", len(s.Messages))
	}
	if s.Messages[0].Sender != model.SenderUser || s.Messages[1].ID != placeholder.ID {
		t.Errorf("message pair out of order")
	}

	// A second turn does not rename.
	if err := m.ResolveTurn(s.ID, placeholder.ID, SuccessOutcome("hi", 0.0001, testModel)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := m.AppendUserTurn(s.ID, "Another direction entirely", nil, testModel); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if s.Name != "Hello world, this i..." {
		t.Errorf("name changed on second turn: %q", s.Name)
	}
}

func TestAppendUserTurnBlocksOverlappingSends(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	if _, err := m.AppendUserTurn(s.ID, "first", nil, testModel); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := m.AppendUserTurn(s.ID, "second", nil, testModel); !errors.Is(err, ErrTurnOutstanding) {
		t.Errorf("err = %v, want ErrTurnOutstanding", err)
	}
}

func TestResolveTurnSuccess(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	placeholder, err := m.AppendUserTurn(s.ID, "question", nil, testModel)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	countBefore := len(s.Messages)
	costBefore := s.TotalCost

	if err := m.ResolveTurn(s.ID, placeholder.ID, SuccessOutcome("answer", 0.0003, testModel)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(s.Messages) != countBefore {
		t.Errorf("message count changed: %d -> %d", countBefore, len(s.Messages))
	}
	if s.TotalCost != costBefore+0.0003 {
		t.Errorf("total cost = %v, want %v", s.TotalCost, costBefore+0.0003)
	}

	final := s.MessageByID(placeholder.ID)
	if final == nil {
		t.Fatal("placeholder id should survive as the final message")
	}
	if final.Text != "answer" || final.Cost != 0.0003 || final.IsError {
		t.Errorf("final = %+v", final)
	}
	if final.IsPending() {
		t.Error("resolved message still pending")
	}
	if s.HasPendingTurn() {
		t.Error("session still reports a pending turn")
	}
}

func TestResolveTurnFailure(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	placeholder, err := m.AppendUserTurn(s.ID, "question", nil, testModel)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := m.ResolveTurn(s.ID, placeholder.ID, FailureOutcome("model unavailable", testModel)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if s.TotalCost != 0 {
		t.Errorf("failed turn changed total cost: %v", s.TotalCost)
	}
	final := s.MessageByID(placeholder.ID)
	if !final.IsError || final.Text != "model unavailable" {
		t.Errorf("final = %+v", final)
	}
	if final.Cost != 0 {
		t.Errorf("failed turn carries cost %v", final.Cost)
	}
}

func TestResolveTurnUnknownIDs(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	if err := m.ResolveTurn("sess_ghost", "msg_x", SuccessOutcome("", 0, testModel)); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if err := m.ResolveTurn(s.ID, "msg_ghost", SuccessOutcome("", 0, testModel)); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestDeleteActiveFallsOver(t *testing.T) {
	m, _ := newTestManager(t)

	first := m.Active()
	second := m.Create()
	// Touch first so it is the most recently modified non-active session.
	time.Sleep(time.Millisecond)
	if err := m.Rename(first.ID, "recent"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if err := m.Delete(second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.ActiveID() != first.ID {
		t.Errorf("active = %q, want fallover to %q", m.ActiveID(), first.ID)
	}

	// Deleting the last session creates exactly one fresh session.
	if err := m.Delete(first.ID); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	sessions := m.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want exactly 1", len(sessions))
	}
	if sessions[0].ID == first.ID || len(sessions[0].Messages) != 0 {
		t.Errorf("expected a fresh empty session, got %+v", sessions[0])
	}
	if m.ActiveID() != sessions[0].ID {
		t.Errorf("new session should be active")
	}
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	m, _ := newTestManager(t)

	first := m.Active()
	second := m.Create()

	if err := m.Delete(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.ActiveID() != second.ID {
		t.Errorf("active changed to %q", m.ActiveID())
	}
	if err := m.Delete("sess_ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMetadataMutations(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	if err := m.Rename(s.ID, "  My Research  "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if s.Name != "My Research" {
		t.Errorf("name = %q", s.Name)
	}

	if err := m.ToggleBookmark(s.ID); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if !s.IsBookmarked {
		t.Error("bookmark not set")
	}
	if err := m.ToggleBookmark(s.ID); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if s.IsBookmarked {
		t.Error("bookmark not cleared")
	}

	if err := m.SetTags(s.ID, []string{" Work ", "WORK", "ideas"}); err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(s.Tags) != 2 || s.Tags[0] != "work" || s.Tags[1] != "ideas" {
		t.Errorf("tags = %v", s.Tags)
	}
}

func TestSessionsSortBookmarkedFirst(t *testing.T) {
	m, _ := newTestManager(t)

	older := m.Active()
	newer := m.Create()
	if err := m.ToggleBookmark(older.ID); err != nil {
		t.Fatalf("bookmark: %v", err)
	}

	// Backdate the bookmarked session so recency alone would sort it last.
	older.LastModified = time.Now().Add(-time.Hour)
	newer.LastModified = time.Now()

	got := m.Sessions()
	if len(got) != 2 {
		t.Fatalf("sessions = %d, want 2", len(got))
	}
	if got[0].ID != older.ID {
		t.Errorf("first = %q, want bookmarked session %q", got[0].ID, older.ID)
	}
	if got[1].ID != newer.ID {
		t.Errorf("second = %q, want %q", got[1].ID, newer.ID)
	}

	// With the bookmark cleared, recency ordering takes over again.
	if err := m.ToggleBookmark(older.ID); err != nil {
		t.Fatalf("unbookmark: %v", err)
	}
	older.LastModified = time.Now().Add(-time.Hour)
	if got := m.Sessions(); got[0].ID != newer.ID {
		t.Errorf("first after unbookmark = %q, want %q", got[0].ID, newer.ID)
	}
}

func TestFolders(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Active()

	f := m.CreateFolder("Projects")
	if err := m.MoveToFolder(s.ID, f.ID); err != nil {
		t.Fatalf("move: %v", err)
	}
	if s.FolderID != f.ID {
		t.Errorf("folder id = %q", s.FolderID)
	}

	if err := m.MoveToFolder(s.ID, "fold_ghost"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("err = %v, want ErrFolderNotFound", err)
	}

	// Deleting the folder unfiles the session but keeps it.
	if err := m.DeleteFolder(f.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if s.FolderID != "" {
		t.Errorf("session still filed under %q", s.FolderID)
	}
	if len(m.Sessions()) != 1 {
		t.Error("session was deleted with its folder")
	}
}

func TestSearch(t *testing.T) {
	m, _ := newTestManager(t)

	s1 := m.Active()
	if _, err := m.AppendUserTurn(s1.ID, "How do goroutines work?", nil, testModel); err != nil {
		t.Fatalf("append: %v", err)
	}
	s2 := m.Create()
	if err := m.SetTags(s2.ID, []string{"cooking"}); err != nil {
		t.Fatalf("tags: %v", err)
	}

	if got := m.Search("goroutines"); len(got) != 1 || got[0].ID != s1.ID {
		t.Errorf("search by message text = %v", got)
	}
	if got := m.Search("COOKING"); len(got) != 1 || got[0].ID != s2.ID {
		t.Errorf("search by tag = %v", got)
	}
	if got := m.Search(""); len(got) != 2 {
		t.Errorf("empty query = %d sessions, want 2", len(got))
	}
	if got := m.Search("zebra"); len(got) != 0 {
		t.Errorf("no-match query = %d sessions, want 0", len(got))
	}
}
