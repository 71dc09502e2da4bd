// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the parley TUI.
//
// This file implements non-blocking toasts. Errors from a routed turn
// already land in the transcript as error messages; toasts cover the
// transient conditions around them (persistence hiccups, catalog refresh
// failures, saved-key confirmations) without stealing input focus.
package components

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastKindStatus is an informational toast
	ToastKindStatus ToastKind = iota
	// ToastKindError is an error toast
	ToastKindError
	// ToastKindSuccess is a success toast
	ToastKindSuccess
)

// DefaultToastDuration is the auto-dismiss duration for status toasts.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is the auto-dismiss duration for error toasts
// (longer to read).
const ErrorToastDuration = 8 * time.Second

// Toast is a non-blocking corner notification.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the toast should be dismissed.
func (t *Toast) IsExpired() bool {
	return time.Since(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the visible toasts, newest first.
type ToastManager struct {
	mu        sync.Mutex
	toasts    []Toast
	nextID    int
	maxToasts int
}

// NewToastManager creates a toast manager.
func NewToastManager() *ToastManager {
	return &ToastManager{
		nextID:    1,
		maxToasts: 5,
	}
}

func (m *ToastManager) add(message string, kind ToastKind, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	toast := Toast{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  duration,
	}
	m.nextID++

	m.toasts = append([]Toast{toast}, m.toasts...)
	if len(m.toasts) > m.maxToasts {
		m.toasts = m.toasts[:m.maxToasts]
	}
}

// AddError shows an error toast.
func (m *ToastManager) AddError(message string) {
	m.add(message, ToastKindError, ErrorToastDuration)
}

// AddStatus shows an informational toast.
func (m *ToastManager) AddStatus(message string) {
	m.add(message, ToastKindStatus, DefaultToastDuration)
}

// AddSuccess shows a success toast.
func (m *ToastManager) AddSuccess(message string) {
	m.add(message, ToastKindSuccess, DefaultToastDuration)
}

// Tick drops expired toasts and returns the remainder.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.toasts[:0:0]
	for _, t := range m.toasts {
		if !t.IsExpired() {
			active = append(active, t)
		}
	}
	m.toasts = active
	return m.toasts
}

// Toasts returns the visible toasts without mutating state.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// HasToasts returns true if any toast is visible.
func (m *ToastManager) HasToasts() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts) > 0
}

// Clear removes all toasts.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// =============================================================================
// TICK MESSAGE
// =============================================================================

// ToastTickMsg drives toast expiry from the update loop.
type ToastTickMsg time.Time

// ToastTickCmd schedules the next toast tick.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg(t)
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderToasts renders the toast stack for the given width.
func RenderToasts(toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}

	var rendered []string
	for _, t := range toasts {
		var border lipgloss.AdaptiveColor
		var icon string
		switch t.Kind {
		case ToastKindError:
			border, icon = styles.Rose, "✗"
		case ToastKindSuccess:
			border, icon = styles.Emerald, "✓"
		default:
			border, icon = styles.Cyan, "•"
		}

		style := lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Foreground(styles.TextPrimary).
			Padding(0, 1).
			MaxWidth(width - 2)
		rendered = append(rendered, style.Render(icon+" "+t.Message))
	}

	return strings.Join(rendered, "\n")
}
