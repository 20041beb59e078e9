package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cadence/internal/ir"
)

const testUser = "user-1"

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// createTestStandard creates a weekly standard with minimum 60.
func createTestStandard(id string) ir.Standard {
	return ir.Standard{
		ID:            id,
		ActivityID:    "act-" + id,
		Minimum:       60,
		Unit:          "min",
		Cadence:       ir.Cadence{Interval: 1, Unit: ir.CadenceWeek},
		State:         ir.StateActive,
		SessionConfig: ir.SessionConfig{SessionsPerCadence: 3, VolumePerSession: 20},
		CreatedAtMs:   1000,
		UpdatedAtMs:   1000,
	}
}

func testLog(id, standardID string, value float64, occurredAtMs int64) ir.LogEntry {
	return ir.LogEntry{
		ID:           id,
		StandardID:   standardID,
		Value:        value,
		OccurredAtMs: occurredAtMs,
	}
}

func testRollup(std ir.Standard, startMs, endMs int64, total float64) ir.Rollup {
	return ir.Rollup{
		ID:            ir.RollupID(std.ActivityID, std.ID, startMs),
		ActivityID:    std.ActivityID,
		StandardID:    std.ID,
		PeriodStartMs: startMs,
		PeriodEndMs:   endMs,
		PeriodLabel:   "label",
		PeriodKey:     "key",
		StandardSnapshot: ir.StandardSnapshot{
			Minimum:       std.Minimum,
			Unit:          std.Unit,
			Cadence:       std.Cadence,
			SessionConfig: std.SessionConfig,
			Summary:       std.Summary(),
		},
		Total:           total,
		CurrentSessions: 1,
		TargetSessions:  3,
		Status:          ir.StatusMissed,
		ProgressPercent: 50,
		GeneratedAtMs:   endMs,
		Source:          ir.SourceBoundary,
	}
}
