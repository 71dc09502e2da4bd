// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordAndTotals(t *testing.T) {
	l := newTestLedger(t)

	records := []TurnRecord{
		{SessionID: "s1", ModelID: "googleai/gemini-2.0-flash", InputChars: 10, OutputChars: 40, Cost: 0.0001},
		{SessionID: "s1", ModelID: "googleai/gemini-2.0-flash", InputChars: 20, OutputChars: 80, Cost: 0.0002},
		{SessionID: "s2", ModelID: "openrouter/mistralai/mistral-7b-instruct", InputChars: 5, OutputChars: 5, Cost: 0.00005},
		{SessionID: "s2", ModelID: "openrouter/mistralai/mistral-7b-instruct", IsError: true},
	}
	for _, rec := range records {
		if err := l.Record(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	total, err := l.TotalCost()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !almostEqual(total, 0.00035) {
		t.Errorf("total = %v, want 0.00035", total)
	}

	s1, err := l.SessionCost("s1")
	if err != nil {
		t.Fatalf("session cost: %v", err)
	}
	if !almostEqual(s1, 0.0003) {
		t.Errorf("s1 cost = %v, want 0.0003", s1)
	}
}

func TestByModelExcludesErrorCosts(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Record(TurnRecord{SessionID: "s1", ModelID: "m1", Cost: 0.001}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(TurnRecord{SessionID: "s1", ModelID: "m1", Cost: 0.5, IsError: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(TurnRecord{SessionID: "s1", ModelID: "m2", Cost: 0.002}); err != nil {
		t.Fatalf("record: %v", err)
	}

	usage, err := l.ByModel()
	if err != nil {
		t.Fatalf("by model: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("models = %d, want 2", len(usage))
	}
	// Ordered by cost descending: m2 first.
	if usage[0].ModelID != "m2" || !almostEqual(usage[0].TotalCost, 0.002) {
		t.Errorf("usage[0] = %+v", usage[0])
	}
	if usage[1].ModelID != "m1" || usage[1].Turns != 2 || usage[1].Errors != 1 {
		t.Errorf("usage[1] = %+v", usage[1])
	}
	if !almostEqual(usage[1].TotalCost, 0.001) {
		t.Errorf("error turn leaked into cost: %v", usage[1].TotalCost)
	}
}

func TestByDay(t *testing.T) {
	l := newTestLedger(t)

	now := time.Now().UTC()
	if err := l.Record(TurnRecord{Timestamp: now, SessionID: "s1", ModelID: "m", Cost: 0.001}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(TurnRecord{Timestamp: now.AddDate(0, 0, -1), SessionID: "s1", ModelID: "m", Cost: 0.002}); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Outside the window.
	if err := l.Record(TurnRecord{Timestamp: now.AddDate(0, 0, -30), SessionID: "s1", ModelID: "m", Cost: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}

	daily, err := l.ByDay(7)
	if err != nil {
		t.Fatalf("by day: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("days = %d, want 2", len(daily))
	}
	if daily[0].Day != now.Format("2006-01-02") {
		t.Errorf("daily[0].Day = %q", daily[0].Day)
	}
	if !almostEqual(daily[0].TotalCost, 0.001) || !almostEqual(daily[1].TotalCost, 0.002) {
		t.Errorf("daily costs = %v / %v", daily[0].TotalCost, daily[1].TotalCost)
	}
}

func TestEmptyLedger(t *testing.T) {
	l := newTestLedger(t)

	total, err := l.TotalCost()
	if err != nil || total != 0 {
		t.Errorf("empty total = (%v, %v), want (0, nil)", total, err)
	}
	usage, err := l.ByModel()
	if err != nil || len(usage) != 0 {
		t.Errorf("empty by model = (%v, %v)", usage, err)
	}
}
