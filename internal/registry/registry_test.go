// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/openrouter"
	"github.com/jeranaias/parley/internal/storage"
)

var testDefaults = []model.ModelInfo{
	{ID: "googleai/gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: model.ProviderGoogle},
	{ID: "googleai/gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: model.ProviderGoogle},
}

// catalogServer serves a models endpoint with the given IDs and counts calls.
func catalogServer(t *testing.T, calls *atomic.Int32, ids ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		fmt.Fprint(w, `{"data":[`)
		for i, id := range ids {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%q,"name":"Model %d","context_length":8192}`, id, i)
		}
		fmt.Fprint(w, `]}`)
	}))
}

func newTestRegistry(t *testing.T, server *httptest.Server) (*Registry, *storage.Store) {
	t.Helper()
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	client := openrouter.NewClient("sk-or-test").WithBaseURL(server.URL)
	reg, err := New(store, client, testDefaults, time.Minute)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg, store
}

func TestRefreshCatalogNoKey(t *testing.T) {
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	reg, err := New(store, openrouter.NewClient(""), testDefaults, time.Minute)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if err := reg.RefreshCatalog(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	// Defaults remain usable with no key and no catalog.
	active := reg.ActiveModels()
	if len(active) != 2 || active[0].ID != "googleai/gemini-2.0-flash" {
		t.Errorf("active = %+v", active)
	}
}

func TestRefreshCatalogPrefixesIDs(t *testing.T) {
	server := catalogServer(t, nil, "mistralai/mistral-7b-instruct")
	defer server.Close()

	reg, _ := newTestRegistry(t, server)
	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	catalog := reg.Catalog()
	if len(catalog) != 1 {
		t.Fatalf("catalog = %d entries", len(catalog))
	}
	if catalog[0].ID != "openrouter/mistralai/mistral-7b-instruct" {
		t.Errorf("id = %q, want openrouter/ prefix", catalog[0].ID)
	}
	if catalog[0].Provider != model.ProviderOpenRouter {
		t.Errorf("provider = %q", catalog[0].Provider)
	}
}

func TestRefreshCatalogRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := catalogServer(t, &calls, "a/b")
	defer server.Close()

	reg, _ := newTestRegistry(t, server)
	for i := 0; i < 5; i++ {
		if err := reg.RefreshCatalog(context.Background()); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	// First call populates the catalog; the rest fall in the refresh
	// window and are served from cache.
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestSelectionOrderAndDefaultsFirst(t *testing.T) {
	server := catalogServer(t, nil, "z/model-z", "a/model-a")
	defer server.Close()

	reg, _ := newTestRegistry(t, server)
	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Pick in reverse catalog order; the active list still follows the
	// catalog.
	if err := reg.Select("openrouter/a/model-a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := reg.Select("openrouter/z/model-z"); err != nil {
		t.Fatalf("select: %v", err)
	}

	active := reg.ActiveModels()
	wantOrder := []string{
		"googleai/gemini-2.0-flash",
		"googleai/gemini-1.5-flash",
		"openrouter/z/model-z",
		"openrouter/a/model-a",
	}
	if len(active) != len(wantOrder) {
		t.Fatalf("active = %d entries, want %d", len(active), len(wantOrder))
	}
	for i, want := range wantOrder {
		if active[i].ID != want {
			t.Errorf("active[%d] = %q, want %q", i, active[i].ID, want)
		}
	}
}

func TestSelectValidation(t *testing.T) {
	server := catalogServer(t, nil, "a/model-a")
	defer server.Close()

	reg, _ := newTestRegistry(t, server)
	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := reg.Select("openrouter/ghost/model"); !errors.Is(err, ErrNotInCatalog) {
		t.Errorf("err = %v, want ErrNotInCatalog", err)
	}

	// Selecting twice is a no-op, not an error.
	if err := reg.Select("openrouter/a/model-a"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if err := reg.Select("openrouter/a/model-a"); err != nil {
		t.Errorf("duplicate select: %v", err)
	}
	if got := len(reg.Selected()); got != 1 {
		t.Errorf("selected = %d, want 1", got)
	}
}

func TestSelectionCap(t *testing.T) {
	ids := make([]string, MaxSelected+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("vendor/model-%d", i)
	}
	server := catalogServer(t, nil, ids...)
	defer server.Close()

	reg, _ := newTestRegistry(t, server)
	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for i := 0; i < MaxSelected; i++ {
		if err := reg.Select("openrouter/" + ids[i]); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
	}
	err := reg.Select("openrouter/" + ids[MaxSelected])
	if !errors.Is(err, ErrSelectionFull) {
		t.Errorf("err = %v, want ErrSelectionFull", err)
	}

	// Deselecting frees a slot.
	if err := reg.Deselect("openrouter/" + ids[0]); err != nil {
		t.Fatalf("deselect: %v", err)
	}
	if err := reg.Select("openrouter/" + ids[MaxSelected]); err != nil {
		t.Errorf("select after deselect: %v", err)
	}
}

func TestRefreshTrimsVanishedSelection(t *testing.T) {
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	// A previously stored selection includes a model the catalog no
	// longer lists.
	stored := []string{"openrouter/kept/model", "openrouter/gone/model"}
	if err := store.SaveSelectedModels(stored); err != nil {
		t.Fatalf("seed selection: %v", err)
	}

	server := catalogServer(t, nil, "kept/model")
	defer server.Close()

	client := openrouter.NewClient("sk-or-test").WithBaseURL(server.URL)
	reg, err := New(store, client, testDefaults, time.Minute)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	selected := reg.Selected()
	if len(selected) != 1 || selected[0] != "openrouter/kept/model" {
		t.Errorf("selected = %v, want only kept/model", selected)
	}

	// The trim is persisted.
	persisted, err := store.LoadSelectedModels()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != "openrouter/kept/model" {
		t.Errorf("persisted = %v", persisted)
	}
}

func TestRefreshFailureClearsCatalog(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"acme/model-a","name":"Model A","context_length":8192}]}`)
	}))
	defer server.Close()

	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	client := openrouter.NewClient("sk-or-test").WithBaseURL(server.URL)
	// A tiny refresh interval keeps the rate limiter out of the way.
	reg, err := New(store, client, testDefaults, time.Nanosecond)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if err := reg.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := reg.Select("openrouter/acme/model-a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := len(reg.ActiveModels()); got != len(testDefaults)+1 {
		t.Fatalf("active = %d, want %d", got, len(testDefaults)+1)
	}

	// A failed fetch drops the stale catalog; the active list collapses
	// to the defaults.
	fail.Store(true)
	if err := reg.RefreshCatalog(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if got := len(reg.Catalog()); got != 0 {
		t.Errorf("catalog = %d entries after failed fetch, want 0", got)
	}
	if got := len(reg.ActiveModels()); got != len(testDefaults) {
		t.Errorf("active = %d, want %d defaults", got, len(testDefaults))
	}
}

func TestComputeActiveModelsPure(t *testing.T) {
	catalog := []model.ModelInfo{
		{ID: "openrouter/a/one", Name: "One", Provider: model.ProviderOpenRouter},
		{ID: "openrouter/b/two", Name: "Two", Provider: model.ProviderOpenRouter},
	}
	selected := []string{"openrouter/b/two"}

	first := ComputeActiveModels(testDefaults, selected, catalog)
	second := ComputeActiveModels(testDefaults, selected, catalog)
	if len(first) != len(second) {
		t.Fatalf("length differs across calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("output differs at %d: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}

	// Defaults are never excluded, whatever the selection holds.
	active := ComputeActiveModels(testDefaults, nil, catalog)
	if len(active) != len(testDefaults) || active[0].ID != testDefaults[0].ID {
		t.Errorf("defaults missing: %+v", active)
	}

	// Before the first catalog fetch there is nothing to resolve the
	// selection against; only the defaults remain.
	active = ComputeActiveModels(testDefaults, selected, nil)
	if len(active) != len(testDefaults) {
		t.Errorf("active = %d entries, want defaults only", len(active))
	}
}
