// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local persistence for parley state.
//
// Each piece of state lives in its own JSON file under the state
// directory (default ~/.parley/state/). Writes replace the whole file
// atomically, so a crash mid-write never leaves a torn file behind.
// Missing files read back as empty state, which is what a first run
// looks like.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// STATE KEYS
// =============================================================================

const (
	sessionsFile       = "sessions.json"
	activeSessionFile  = "active_session.json"
	apiKeyFile         = "openrouter_api_key.json"
	selectedModelsFile = "selected_models.json"
	foldersFile        = "folders.json"
)

// =============================================================================
// STORE TYPE
// =============================================================================

// Store persists application state as JSON files in a single directory.
type Store struct {
	// BaseDir is the state directory.
	// Default: ~/.parley/state/
	BaseDir string
}

// NewStore creates a store rooted at the default state directory.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".parley", "state"))
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Store{BaseDir: baseDir}, nil
}

// =============================================================================
// GENERIC JSON ACCESS
// =============================================================================

// saveJSON atomically writes v to the named state file.
func (s *Store) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Error{Op: "save", Key: name, Err: err}
	}
	if err := util.AtomicWriteFile(filepath.Join(s.BaseDir, name), data, 0644); err != nil {
		return &Error{Op: "save", Key: name, Err: err}
	}
	return nil
}

// loadJSON reads the named state file into v. Returns ErrNotFound when the
// file does not exist.
func (s *Store) loadJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return &Error{Op: "load", Key: name, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: "load", Key: name, Err: err}
	}
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// SaveSessions persists the full session list.
func (s *Store) SaveSessions(sessions []*model.ChatSession) error {
	return s.saveJSON(sessionsFile, sessions)
}

// LoadSessions reads the session list. A missing file yields an empty list.
func (s *Store) LoadSessions() ([]*model.ChatSession, error) {
	var sessions []*model.ChatSession
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		if err == ErrNotFound {
			return []*model.ChatSession{}, nil
		}
		return nil, err
	}
	if sessions == nil {
		sessions = []*model.ChatSession{}
	}
	return sessions, nil
}

// SaveActiveSessionID records which session is active.
func (s *Store) SaveActiveSessionID(id string) error {
	return s.saveJSON(activeSessionFile, id)
}

// LoadActiveSessionID reads the active session ID, or "" when unset.
func (s *Store) LoadActiveSessionID() (string, error) {
	var id string
	if err := s.loadJSON(activeSessionFile, &id); err != nil {
		if err == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// =============================================================================
// API KEY
// =============================================================================

// SaveAPIKey persists the aggregator API key.
func (s *Store) SaveAPIKey(key string) error {
	return s.saveJSON(apiKeyFile, key)
}

// LoadAPIKey reads the stored aggregator API key. Older versions wrote the
// key as raw text rather than a JSON string; both forms are accepted.
func (s *Store) LoadAPIKey() (string, error) {
	path := filepath.Join(s.BaseDir, apiKeyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &Error{Op: "load", Key: apiKeyFile, Err: err}
	}

	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		return key, nil
	}

	// Legacy format: the bare key with no JSON quoting.
	return strings.TrimSpace(string(data)), nil
}

// DeleteAPIKey removes the stored key. A missing file is not an error.
func (s *Store) DeleteAPIKey() error {
	err := os.Remove(filepath.Join(s.BaseDir, apiKeyFile))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Key: apiKeyFile, Err: err}
	}
	return nil
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// SaveSelectedModels persists the user's aggregator model selection.
func (s *Store) SaveSelectedModels(ids []string) error {
	return s.saveJSON(selectedModelsFile, ids)
}

// LoadSelectedModels reads the stored selection. A missing file yields an
// empty list.
func (s *Store) LoadSelectedModels() ([]string, error) {
	var ids []string
	if err := s.loadJSON(selectedModelsFile, &ids); err != nil {
		if err == ErrNotFound {
			return []string{}, nil
		}
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// =============================================================================
// FOLDERS
// =============================================================================

// SaveFolders persists the folder list.
func (s *Store) SaveFolders(folders []*model.Folder) error {
	return s.saveJSON(foldersFile, folders)
}

// LoadFolders reads the folder list. A missing file yields an empty list.
func (s *Store) LoadFolders() ([]*model.Folder, error) {
	var folders []*model.Folder
	if err := s.loadJSON(foldersFile, &folders); err != nil {
		if err == ErrNotFound {
			return []*model.Folder{}, nil
		}
		return nil, err
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	return folders, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a state file does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &Error{Op: "load", Key: "", Err: nil}

// Error represents a storage failure for a specific state key.
type Error struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == ErrNotFound {
		return "state not found"
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
}

// Is implements errors.Is support.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Op == t.Op && e.Key == t.Key
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
