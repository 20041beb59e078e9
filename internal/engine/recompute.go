package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
)

// HandleMutation recomputes the single window containing the mutated log
// entry and overwrites its rollup with source log-edit. When an update
// moved the entry across a boundary, the window it left is recomputed too.
//
// Errors are returned to the publisher so the user-facing edit fails
// loudly.
func (e *Engine) HandleMutation(ctx context.Context, m ir.LogMutation) error {
	userID, err := e.currentUser()
	if err != nil {
		return err
	}

	std, err := retryValue(ctx, e.retrier, "get standard", func() (ir.Standard, error) {
		return e.store.GetStandard(ctx, userID, m.StandardID)
	})
	if err != nil {
		return fmt.Errorf("recompute: get standard %s: %w", m.StandardID, err)
	}
	if !std.IsActive() {
		return newArchivedError(std.ID)
	}

	windows := []ir.Window{period.ComputeWindow(m.OccurredAtMs, std.Cadence, e.loc, std.PeriodStartPreference)}
	if m.PreviousOccurredAtMs != nil {
		prev := period.ComputeWindow(*m.PreviousOccurredAtMs, std.Cadence, e.loc, std.PeriodStartPreference)
		if prev.StartMs != windows[0].StartMs {
			windows = append(windows, prev)
		}
	}

	nowMs := e.nowMs()

	// Record the frontier before writing, so a window recomputed ahead of
	// it cannot be mistaken for catch-up progress.
	if _, err := e.frontier(ctx, userID, std, nowMs); err != nil {
		return &EngineError{
			Code:       ErrCodeRecomputeFailed,
			Message:    "record frontier",
			StandardID: std.ID,
			Err:        err,
		}
	}

	for _, w := range windows {
		if err := e.writeWindow(ctx, userID, std, w, nowMs, ir.SourceLogEdit); err != nil {
			return &EngineError{
				Code:       ErrCodeRecomputeFailed,
				Message:    fmt.Sprintf("recompute %s", w.PeriodKey),
				StandardID: std.ID,
				Err:        err,
			}
		}
	}

	e.logger.Debug("log mutation recomputed",
		"type", m.Type,
		"standard_id", std.ID,
		"log_entry_id", m.LogEntryID,
		"windows", len(windows))
	return nil
}

// HandleStandardChange reschedules the boundary timer whenever the set of
// active standards or one of their cadences changes. A created or updated
// standard gets its frontier recorded now, so the period it was created
// (or re-cadenced) in is rolled up once it elapses.
func (e *Engine) HandleStandardChange(ctx context.Context, c ir.StandardChange) error {
	e.logger.Debug("standard changed, rescheduling",
		"type", c.Type,
		"standard_id", c.StandardID)

	if c.Type == ir.StandardCreated || c.Type == ir.StandardUpdated {
		if err := e.ensureBaseline(ctx, c.StandardID); err != nil {
			return err
		}
	}
	return e.Schedule(ctx)
}

func (e *Engine) ensureBaseline(ctx context.Context, standardID string) error {
	userID, err := e.currentUser()
	if err != nil {
		return err
	}
	std, err := retryValue(ctx, e.retrier, "get standard", func() (ir.Standard, error) {
		return e.store.GetStandard(ctx, userID, standardID)
	})
	if err != nil {
		return fmt.Errorf("get standard %s: %w", standardID, err)
	}
	if !std.IsActive() {
		return nil
	}
	if _, err := e.frontier(ctx, userID, std, e.nowMs()); err != nil {
		return fmt.Errorf("baseline %s: %w", standardID, err)
	}
	return nil
}
