package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
	"github.com/roach88/cadence/internal/rollup"
)

// CatchUpReport summarizes one catch-up invocation.
type CatchUpReport struct {
	RunSeq    int64     `json:"run_seq"`
	Source    ir.Source `json:"source"`
	Skipped   bool      `json:"skipped"`
	Standards int       `json:"standards"`
	Written   int       `json:"written"`
	Failed    int       `json:"failed"`
}

// CatchUp generates a rollup for every fully elapsed period of every active
// standard since its last rollup.
//
// Returns immediately with Skipped set when another run holds the guard;
// nothing is read or written in that case. Per-standard failures are
// logged and counted in the report, never returned. The error return is
// reserved for a missing user and for failing to list standards.
func (e *Engine) CatchUp(ctx context.Context, source ir.Source) (CatchUpReport, error) {
	report := CatchUpReport{Source: source}

	userID, err := e.currentUser()
	if err != nil {
		return report, err
	}

	if !e.running.CompareAndSwap(false, true) {
		e.logger.Info("catch-up already running, dropping trigger", "source", source)
		e.metrics.CatchUpRuns.WithLabelValues(string(source), "skipped").Inc()
		report.Skipped = true
		return report, nil
	}
	defer e.running.Store(false)

	report.RunSeq = e.runs.Next()
	started := e.clock.Now()
	defer func() {
		e.metrics.CatchUpDuration.Observe(e.clock.Since(started).Seconds())
	}()

	standards, err := e.activeStandards(ctx, userID)
	if err != nil {
		return report, err
	}
	if len(standards) == 0 {
		e.logger.Debug("no active standards", "run", report.RunSeq)
		e.metrics.CatchUpRuns.WithLabelValues(string(source), "completed").Inc()
		return report, nil
	}

	nowMs := ir.Millis(started)
	for _, std := range standards {
		written, err := e.walk(ctx, userID, std, source, nowMs)
		report.Written += written
		if err != nil {
			walkErr := newWalkError(std.ID, err)
			e.metrics.WalkFailures.WithLabelValues(string(walkErr.Code)).Inc()
			e.logger.Error("catch-up walk failed",
				"run", report.RunSeq,
				"standard_id", std.ID,
				"written", written,
				"error", walkErr)
			report.Failed++
			continue
		}
		report.Standards++
	}

	e.metrics.CatchUpRuns.WithLabelValues(string(source), "completed").Inc()
	e.logger.Info("catch-up complete",
		"run", report.RunSeq,
		"source", source,
		"standards", report.Standards,
		"written", report.Written,
		"failed", report.Failed)
	return report, nil
}

// walk writes rollups for one standard from its frontier up to, not
// including, the period containing nowMs. The frontier is persisted after
// every write, so an interrupted walk resumes where it stopped.
func (e *Engine) walk(ctx context.Context, userID string, std ir.Standard, source ir.Source, nowMs int64) (int, error) {
	frontier, err := e.frontier(ctx, userID, std, nowMs)
	if err != nil {
		return 0, err
	}

	quota := NewQuotaEnforcer(e.maxSteps)
	ref := frontier.StartMs
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		w := period.ComputeWindow(ref, std.Cadence, e.loc, std.PeriodStartPreference)
		if w.StartMs < ref {
			// History ends mid-window (timezone moved under it). Skip to
			// the next aligned boundary rather than overlap the last rollup.
			e.logger.Warn("rollup history misaligned with cadence, skipping partial period",
				"standard_id", std.ID,
				"reference", ir.FromMillis(ref).Format(time.RFC3339),
				"period_key", w.PeriodKey)
			ref = w.EndMs
			continue
		}

		switch {
		case w.Contains(nowMs):
			return written, nil
		case w.Elapsed(nowMs):
			if err := quota.Check(std.ID); err != nil {
				return written, err
			}
			if err := e.writeWindow(ctx, userID, std, w, nowMs, source); err != nil {
				return written, err
			}
			written++
			ref = w.EndMs

			frontier.StartMs = ref
			if err := e.retrier.Do(ctx, "advance frontier", func() error {
				return e.store.PutBaseline(ctx, userID, frontier)
			}); err != nil {
				return written, fmt.Errorf("advance frontier: %w", err)
			}
		default:
			// Window lies in the future; only reachable if the clock moved
			// backwards.
			return written, nil
		}
	}
}

// frontier returns the start of the next period catch-up must write for a
// standard, recording one when the standard has none under its current
// cadence:
//   - a stored frontier with the standard's cadence fingerprint is used as is
//   - with no stored frontier, rollup history under the same cadence seeds
//     it: the latest rollup's end, or its start when it was written while
//     its period was still open
//   - otherwise (new standard, changed cadence) the current period's start
//
// Rollups written ahead of the frontier by log edits never move it.
func (e *Engine) frontier(ctx context.Context, userID string, std ir.Standard, nowMs int64) (ir.Baseline, error) {
	fingerprint, err := std.Fingerprint()
	if err != nil {
		return ir.Baseline{}, fmt.Errorf("fingerprint standard: %w", err)
	}

	stored, err := retryValue(ctx, e.retrier, "get frontier", func() (*ir.Baseline, error) {
		return e.store.GetBaseline(ctx, userID, std.ID)
	})
	if err != nil {
		return ir.Baseline{}, fmt.Errorf("get frontier: %w", err)
	}
	if stored != nil && stored.Fingerprint == fingerprint {
		return *stored, nil
	}

	current := period.ComputeWindow(nowMs, std.Cadence, e.loc, std.PeriodStartPreference)
	b := ir.Baseline{
		StandardID:  std.ID,
		StartMs:     current.StartMs,
		Fingerprint: fingerprint,
		CreatedAtMs: nowMs,
	}

	if stored == nil {
		latest, err := retryValue(ctx, e.retrier, "latest rollup", func() (*ir.Rollup, error) {
			return e.store.LatestRollup(ctx, userID, std.ID)
		})
		if err != nil {
			return ir.Baseline{}, fmt.Errorf("latest rollup: %w", err)
		}
		seeded := false
		if latest != nil {
			snapFingerprint, err := latest.StandardSnapshot.Fingerprint()
			if err != nil {
				return ir.Baseline{}, fmt.Errorf("fingerprint snapshot: %w", err)
			}
			if snapFingerprint == fingerprint {
				b.StartMs = latest.PeriodEndMs
				if !latest.Finalized() {
					b.StartMs = latest.PeriodStartMs
				}
				seeded = true
			}
		}
		if seeded {
			e.logger.Debug("frontier seeded from rollup history",
				"standard_id", std.ID,
				"frontier", ir.FromMillis(b.StartMs).Format(time.RFC3339))
		} else if latest != nil {
			e.logger.Info("cadence differs from rollup history, starting fresh baseline",
				"standard_id", std.ID,
				"last_period_key", latest.PeriodKey,
				"period_key", current.PeriodKey)
		}
	} else {
		e.logger.Info("cadence changed, starting fresh baseline",
			"standard_id", std.ID,
			"period_key", current.PeriodKey)
	}

	if err := e.retrier.Do(ctx, "put frontier", func() error {
		return e.store.PutBaseline(ctx, userID, b)
	}); err != nil {
		return ir.Baseline{}, fmt.Errorf("put frontier: %w", err)
	}
	return b, nil
}

// writeWindow queries the window's live logs, builds the rollup and
// upserts it.
func (e *Engine) writeWindow(ctx context.Context, userID string, std ir.Standard, w ir.Window, nowMs int64, source ir.Source) error {
	logs, err := retryValue(ctx, e.retrier, "query logs", func() ([]ir.LogEntry, error) {
		return e.store.QueryLogs(ctx, userID, std.ID, w.StartMs, w.EndMs)
	})
	if err != nil {
		return fmt.Errorf("query logs %s: %w", w.PeriodKey, err)
	}

	r := rollup.Build(std, w, logs, nowMs, source)
	if err := e.retrier.Do(ctx, "upsert rollup", func() error {
		return e.store.UpsertRollup(ctx, userID, r)
	}); err != nil {
		return fmt.Errorf("upsert rollup %s: %w", r.ID, err)
	}

	e.metrics.RollupsWritten.WithLabelValues(string(source)).Inc()
	e.logger.Debug("rollup written",
		"standard_id", std.ID,
		"period_key", w.PeriodKey,
		"total", r.Total,
		"status", r.Status,
		"source", source)
	return nil
}
