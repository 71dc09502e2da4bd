// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions, messages,
// folders and selectable models.
package model

import "strings"

// =============================================================================
// PROVIDERS
// =============================================================================

// Provider identifies the backend that serves a model. The provider tag is
// the leading path segment of a model id and is the dispatch key for the
// prompt router.
type Provider string

const (
	// ProviderGoogle is the first-party path: Google-hosted Gemini models
	// reached through the Generative Language API.
	ProviderGoogle Provider = "googleai"

	// ProviderOpenRouter is the aggregator path: any model served through
	// the OpenRouter chat-completions API.
	ProviderOpenRouter Provider = "openrouter"
)

// String returns the provider tag as used in model ids.
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns a human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google AI"
	case ProviderOpenRouter:
		return "OpenRouter"
	default:
		return string(p)
	}
}

// SplitModelID splits a provider-prefixed model id ("googleai/gemini-2.0-flash")
// into its provider tag and the wire-level model identifier. ok is false
// when the id carries no provider prefix.
func SplitModelID(id string) (provider Provider, rest string, ok bool) {
	i := strings.Index(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return Provider(id[:i]), id[i+1:], true
}

// =============================================================================
// MODEL INFO
// =============================================================================

// ModelInfo describes one selectable model.
type ModelInfo struct {
	// ID is the provider-prefixed identifier, e.g. "openrouter/mistralai/mistral-7b-instruct".
	ID string `json:"id"`
	// Name is the display label.
	Name string `json:"name"`
	// Provider is the backend serving this model.
	Provider Provider `json:"provider"`
	// ContextLength is the advertised context window in tokens (0 = unknown).
	ContextLength int `json:"context_length,omitempty"`
}

// WireID returns the identifier the provider expects on the wire, i.e. the
// id with the provider tag stripped. Falls back to the full id when the
// prefix is missing.
func (m ModelInfo) WireID() string {
	if _, rest, ok := SplitModelID(m.ID); ok {
		return rest
	}
	return m.ID
}
