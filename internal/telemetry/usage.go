// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-turn usage in a local SQLite ledger.
//
// The ledger backs the analyse tab: cost and volume per model and per
// day. Recording is best-effort; a ledger failure never blocks a turn.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// =============================================================================
// TYPES
// =============================================================================

// TurnRecord is one completed AI turn.
type TurnRecord struct {
	Timestamp   time.Time
	SessionID   string
	ModelID     string
	InputChars  int
	OutputChars int
	Cost        float64
	IsError     bool
}

// ModelUsage aggregates turns for one model.
type ModelUsage struct {
	ModelID   string
	Turns     int
	Errors    int
	TotalCost float64
}

// DailyUsage aggregates turns for one calendar day.
type DailyUsage struct {
	Day       string // "2006-01-02"
	Turns     int
	TotalCost float64
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the SQLite-backed usage store.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at dbPath.
func Open(dbPath string) (*Ledger, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("usage db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	l := &Ledger{db: db, path: dbPath}
	if err := l.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		ts           TEXT NOT NULL,
		session_id   TEXT NOT NULL,
		model_id     TEXT NOT NULL,
		input_chars  INTEGER NOT NULL DEFAULT 0,
		output_chars INTEGER NOT NULL DEFAULT 0,
		cost         REAL NOT NULL DEFAULT 0,
		is_error     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_turns_model ON turns(model_id);
	CREATE INDEX IF NOT EXISTS idx_turns_ts ON turns(ts);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// =============================================================================
// RECORDING
// =============================================================================

// Record appends one turn to the ledger.
func (l *Ledger) Record(rec TurnRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	isError := 0
	if rec.IsError {
		isError = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO turns (ts, session_id, model_id, input_chars, output_chars, cost, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339), rec.SessionID, rec.ModelID,
		rec.InputChars, rec.OutputChars, rec.Cost, isError,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// TotalCost returns the summed cost of all successful turns.
func (l *Ledger) TotalCost() (float64, error) {
	var total sql.NullFloat64
	err := l.db.QueryRow(`SELECT SUM(cost) FROM turns WHERE is_error = 0`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total cost: %w", err)
	}
	return total.Float64, nil
}

// ByModel aggregates usage per model, most expensive first.
func (l *Ledger) ByModel() ([]ModelUsage, error) {
	rows, err := l.db.Query(`
		SELECT model_id,
		       COUNT(*),
		       SUM(is_error),
		       SUM(CASE WHEN is_error = 0 THEN cost ELSE 0 END)
		FROM turns
		GROUP BY model_id
		ORDER BY 4 DESC`)
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	defer rows.Close()

	var out []ModelUsage
	for rows.Next() {
		var u ModelUsage
		var cost sql.NullFloat64
		var errs sql.NullInt64
		if err := rows.Scan(&u.ModelID, &u.Turns, &errs, &cost); err != nil {
			return nil, err
		}
		u.Errors = int(errs.Int64)
		u.TotalCost = cost.Float64
		out = append(out, u)
	}
	return out, rows.Err()
}

// ByDay aggregates usage per calendar day over the most recent days,
// newest first.
func (l *Ledger) ByDay(days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := l.db.Query(`
		SELECT substr(ts, 1, 10),
		       COUNT(*),
		       SUM(CASE WHEN is_error = 0 THEN cost ELSE 0 END)
		FROM turns
		WHERE ts >= ?
		GROUP BY 1
		ORDER BY 1 DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("usage by day: %w", err)
	}
	defer rows.Close()

	var out []DailyUsage
	for rows.Next() {
		var u DailyUsage
		var cost sql.NullFloat64
		if err := rows.Scan(&u.Day, &u.Turns, &cost); err != nil {
			return nil, err
		}
		u.TotalCost = cost.Float64
		out = append(out, u)
	}
	return out, rows.Err()
}

// SessionCost returns the summed successful-turn cost for one session.
func (l *Ledger) SessionCost(sessionID string) (float64, error) {
	var total sql.NullFloat64
	err := l.db.QueryRow(
		`SELECT SUM(cost) FROM turns WHERE session_id = ? AND is_error = 0`,
		sessionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("session cost: %w", err)
	}
	return total.Float64, nil
}
