// parley - a terminal chat client for Gemini and OpenRouter models.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/gemini"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/openrouter"
	"github.com/jeranaias/parley/internal/registry"
	"github.com/jeranaias/parley/internal/router"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/telemetry"
	"github.com/jeranaias/parley/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// googleDefaults are the first-party models that are always active.
var googleDefaults = []model.ModelInfo{
	{ID: "googleai/gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: model.ProviderGoogle},
	{ID: "googleai/gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: model.ProviderGoogle},
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	exportDir := flag.String("export-dir", "", "directory for session exports (default: current directory)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("parley %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "parley is an interactive application and needs a terminal")
		os.Exit(1)
	}

	if err := run(*exportDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(exportDir string) error {
	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("failed to prepare state directory: %w", err)
	}
	cfg := config.Global()

	stateDir, err := config.Dir()
	if err != nil {
		return err
	}

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(stateDir, "parley.log")
	}
	if err := logging.Init(cfg.Logging.Level, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	logging.Infof("parley %s starting", Version)

	store, err := storage.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	sessions, err := session.NewManager(store)
	if err != nil {
		return fmt.Errorf("failed to restore sessions: %w", err)
	}

	// The stored key wins over the config file so a key saved from the
	// settings tab survives config edits.
	orKey, err := store.LoadAPIKey()
	if err != nil {
		logging.WithError(err).Warn("stored api key unreadable")
	}
	if orKey == "" {
		orKey = cfg.Providers.OpenRouterKey
	}

	orClient := openrouter.NewClient(orKey).
		WithTimeout(time.Duration(cfg.Network.TimeoutSecs) * time.Second).
		WithMaxRetries(cfg.Network.MaxRetries)
	geminiClient := gemini.NewClient(cfg.Providers.GeminiKey)

	refresh := time.Duration(cfg.Network.CatalogRefreshMins) * time.Minute
	reg, err := registry.New(store, orClient, googleDefaults, refresh)
	if err != nil {
		return fmt.Errorf("failed to build model registry: %w", err)
	}

	rt := router.New(geminiClient, orClient)

	ledger, err := telemetry.Open(filepath.Join(stateDir, "usage.db"))
	if err != nil {
		// The analyse tab degrades; everything else still works.
		logging.WithError(err).Warn("usage ledger unavailable")
		ledger = nil
	} else {
		defer ledger.Close()
	}

	if exportDir == "" {
		exportDir, _ = os.Getwd()
	}

	app := ui.New(ui.Options{
		Sessions:  sessions,
		Registry:  reg,
		Router:    rt,
		Ledger:    ledger,
		ExportDir: exportDir,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())

	// Hot-reload config.toml edits into the running app.
	cfgPath, err := config.Path()
	if err == nil {
		watcher, werr := config.NewWatcher(cfgPath, func(newCfg *config.Config) {
			logging.Infof("configuration reloaded")
			program.Send(ui.ConfigReloadedMsg{})
		})
		if werr != nil {
			logging.WithError(werr).Warn("config watcher disabled")
		} else {
			defer watcher.Close()
		}
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal error: %w", err)
	}
	logging.Infof("parley exiting")
	return nil
}
