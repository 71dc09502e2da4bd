// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions, messages,
// folders and selectable models.
//
// Sessions are persisted as JSON; every type here round-trips through
// encoding/json without loss. Identity fields are immutable after
// creation. Mutation helpers touch LastModified so callers can sort by
// recency without tracking that themselves.
package model
