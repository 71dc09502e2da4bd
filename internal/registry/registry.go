// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry manages the set of models available in the picker.
//
// Two first-party defaults are always present and always listed first.
// The rest of the active set is the user's hand-picked selection from the
// aggregator catalog, listed in catalog order. The catalog itself is
// fetched lazily and rate limited so repeated picker openings do not
// hammer the aggregator.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/openrouter"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// MaxSelected caps how many aggregator models can be active at once.
const MaxSelected = 8

var (
	// ErrNoAPIKey indicates the aggregator key is missing. Distinct from
	// fetch failures so the UI can point the user at settings instead of
	// suggesting a retry.
	ErrNoAPIKey = errors.New("no aggregator API key configured")

	// ErrSelectionFull indicates the selection already holds MaxSelected
	// models.
	ErrSelectionFull = errors.New("model selection is full")

	// ErrNotInCatalog indicates an attempt to select a model the catalog
	// does not list.
	ErrNotInCatalog = errors.New("model not in catalog")
)

// =============================================================================
// REGISTRY TYPE
// =============================================================================

// Registry tracks the aggregator catalog and the user's model selection.
type Registry struct {
	mu sync.RWMutex

	store  *storage.Store
	client *openrouter.Client

	defaults []model.ModelInfo
	catalog  []model.ModelInfo
	selected []string

	limiter   *rate.Limiter
	lastFetch time.Time
}

// New creates a registry. defaults are the first-party models that are
// always active; refreshInterval is the minimum time between catalog
// fetches.
func New(store *storage.Store, client *openrouter.Client, defaults []model.ModelInfo, refreshInterval time.Duration) (*Registry, error) {
	selected, err := store.LoadSelectedModels()
	if err != nil {
		return nil, fmt.Errorf("failed to load model selection: %w", err)
	}

	return &Registry{
		store:    store,
		client:   client,
		defaults: defaults,
		selected: selected,
		limiter:  rate.NewLimiter(rate.Every(refreshInterval), 1),
	}, nil
}

// SetClient swaps the aggregator client, e.g. after the user saves a new
// API key. The catalog is cleared so the next refresh uses the new key.
func (r *Registry) SetClient(client *openrouter.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = client
	r.catalog = nil
	r.lastFetch = time.Time{}
	// Allow an immediate fetch with the new credentials.
	r.limiter = rate.NewLimiter(r.limiter.Limit(), 1)
}

// ClientConfigured reports whether the aggregator client carries a key.
func (r *Registry) ClientConfigured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil && r.client.IsConfigured()
}

// KeyFingerprint returns a short fingerprint of the configured key for
// display.
func (r *Registry) KeyFingerprint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return "none"
	}
	return r.client.KeyFingerprint()
}

// SaveAPIKey persists the aggregator API key.
func (r *Registry) SaveAPIKey(key string) error {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()
	return store.SaveAPIKey(key)
}

// DeleteAPIKey removes the persisted aggregator API key.
func (r *Registry) DeleteAPIKey() error {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()
	return store.DeleteAPIKey()
}

// =============================================================================
// CATALOG
// =============================================================================

// RefreshCatalog fetches the aggregator catalog if the rate limiter allows
// it, trimming the stored selection to models the fresh catalog still
// lists. Returns ErrNoAPIKey when no key is configured.
func (r *Registry) RefreshCatalog(ctx context.Context) error {
	r.mu.Lock()
	client := r.client
	haveCatalog := len(r.catalog) > 0
	r.mu.Unlock()

	if client == nil || !client.IsConfigured() {
		return ErrNoAPIKey
	}

	// Serve the cached catalog inside the refresh window. A failed fetch
	// leaves the catalog empty, so the next call retries regardless.
	if !r.limiter.Allow() && haveCatalog {
		return nil
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		// A failed fetch clears the catalog so the active list collapses
		// to the defaults instead of offering stale aggregator entries.
		r.mu.Lock()
		r.catalog = nil
		r.mu.Unlock()
		if errors.Is(err, openrouter.ErrNotConfigured) {
			return ErrNoAPIKey
		}
		return fmt.Errorf("catalog fetch failed: %w", err)
	}

	catalog := make([]model.ModelInfo, 0, len(models))
	inCatalog := make(map[string]bool, len(models))
	for _, m := range models {
		id := string(model.ProviderOpenRouter) + "/" + m.ID
		catalog = append(catalog, model.ModelInfo{
			ID:            id,
			Name:          m.Name,
			Provider:      model.ProviderOpenRouter,
			ContextLength: m.ContextLength,
		})
		inCatalog[id] = true
	}

	r.mu.Lock()
	r.catalog = catalog
	r.lastFetch = time.Now()

	// Models can disappear from the aggregator between fetches; drop them
	// from the selection rather than offering a model that cannot serve.
	trimmed := r.selected[:0:0]
	for _, id := range r.selected {
		if inCatalog[id] {
			trimmed = append(trimmed, id)
		}
	}
	changed := len(trimmed) != len(r.selected)
	r.selected = trimmed
	r.mu.Unlock()

	if changed {
		if err := r.store.SaveSelectedModels(trimmed); err != nil {
			logging.WithError(err).Warn("failed to persist trimmed model selection")
		}
	}

	logging.WithField("models", len(catalog)).Debug("refreshed aggregator catalog")
	return nil
}

// Catalog returns the last fetched catalog.
func (r *Registry) Catalog() []model.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ModelInfo, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// LastFetch returns when the catalog was last fetched.
func (r *Registry) LastFetch() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastFetch
}

// =============================================================================
// SELECTION
// =============================================================================

// Selected returns the current aggregator selection in pick order.
func (r *Registry) Selected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.selected))
	copy(out, r.selected)
	return out
}

// IsSelected reports whether the model is in the selection.
func (r *Registry) IsSelected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.selected {
		if s == id {
			return true
		}
	}
	return false
}

// Select adds an aggregator model to the selection. The model must appear
// in the current catalog; a full selection returns ErrSelectionFull.
// Selecting an already selected model is a no-op.
func (r *Registry) Select(id string) error {
	r.mu.Lock()

	for _, s := range r.selected {
		if s == id {
			r.mu.Unlock()
			return nil
		}
	}
	if len(r.selected) >= MaxSelected {
		r.mu.Unlock()
		return ErrSelectionFull
	}

	found := false
	for _, m := range r.catalog {
		if m.ID == id {
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInCatalog, id)
	}

	r.selected = append(r.selected, id)
	snapshot := make([]string, len(r.selected))
	copy(snapshot, r.selected)
	r.mu.Unlock()

	return r.store.SaveSelectedModels(snapshot)
}

// Deselect removes a model from the selection. Unknown IDs are a no-op.
func (r *Registry) Deselect(id string) error {
	r.mu.Lock()
	kept := r.selected[:0:0]
	for _, s := range r.selected {
		if s != id {
			kept = append(kept, s)
		}
	}
	changed := len(kept) != len(r.selected)
	r.selected = kept
	snapshot := make([]string, len(kept))
	copy(snapshot, kept)
	r.mu.Unlock()

	if !changed {
		return nil
	}
	return r.store.SaveSelectedModels(snapshot)
}

// =============================================================================
// ACTIVE SET
// =============================================================================

// ActiveModels returns the models offered in the picker: the first-party
// defaults first, then the aggregator selection in catalog order.
func (r *Registry) ActiveModels() []model.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ComputeActiveModels(r.defaults, r.selected, r.catalog)
}

// ComputeActiveModels builds the active model list. Defaults always come
// first and cannot be displaced by the selection; selected models follow
// in catalog order, truncated to MaxSelected. Pure function: same inputs
// always yield the same output.
func ComputeActiveModels(defaults []model.ModelInfo, selected []string, catalog []model.ModelInfo) []model.ModelInfo {
	inSelection := make(map[string]bool, len(selected))
	for _, id := range selected {
		inSelection[id] = true
	}

	active := make([]model.ModelInfo, 0, len(defaults)+len(selected))
	seen := make(map[string]bool, len(defaults)+len(selected))

	for _, d := range defaults {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		active = append(active, d)
	}

	added := 0
	for _, m := range catalog {
		if added >= MaxSelected {
			break
		}
		if !inSelection[m.ID] || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		active = append(active, m)
		added++
	}

	return active
}
