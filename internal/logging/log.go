// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the application log file.
//
// The TUI owns the terminal, so nothing may write to stdout or stderr
// while it runs. All logging goes to a file (default ~/.parley/parley.log).
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// Init configures the package logger. level is one of "debug", "info",
// "warn", "error"; unknown levels fall back to info. An empty path routes
// logs to the default file under ~/.parley.
func Init(level, path string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.SetOutput(io.Discard)
			return err
		}
		path = filepath.Join(homeDir, ".parley", "parley.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.SetOutput(io.Discard)
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.SetOutput(io.Discard)
		return err
	}
	logger.SetOutput(file)

	return nil
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return logger
}

// WithField returns an entry with a single field attached.
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

// WithError returns an entry with the error attached.
func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}

// Convenience forwarders.

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
