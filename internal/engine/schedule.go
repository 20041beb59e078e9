package engine

import (
	"context"
	"time"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
)

// NextBoundary returns the earliest end, across active standards, of the
// window containing now. ok is false when there are no active standards.
func (e *Engine) NextBoundary(ctx context.Context) (next time.Time, ok bool, err error) {
	userID, err := e.currentUser()
	if err != nil {
		return time.Time{}, false, err
	}
	standards, err := e.activeStandards(ctx, userID)
	if err != nil {
		return time.Time{}, false, err
	}
	return e.earliestBoundary(standards, e.nowMs())
}

func (e *Engine) earliestBoundary(standards []ir.Standard, nowMs int64) (time.Time, bool, error) {
	if len(standards) == 0 {
		return time.Time{}, false, nil
	}
	var earliest int64
	for i, std := range standards {
		end := period.NextBoundary(nowMs, std.Cadence, e.loc, std.PeriodStartPreference)
		if i == 0 || end < earliest {
			earliest = end
		}
	}
	return ir.FromMillis(earliest), true, nil
}

// Schedule cancels any armed boundary timer and arms a new one for the
// next boundary. If that boundary has already passed it runs catch-up
// first, a bounded number of times.
func (e *Engine) Schedule(ctx context.Context) error {
	for i := 0; ; i++ {
		next, ok, err := e.NextBoundary(ctx)
		if err != nil {
			e.disarm()
			return err
		}
		if !ok {
			e.logger.Debug("no active standards, boundary timer disarmed")
			e.disarm()
			return nil
		}

		d := e.clock.Until(next, timerTagEngine, timerTagBoundary)
		if d > 0 {
			e.arm(next, d)
			return nil
		}
		if i >= maxImmediateCatchUps {
			e.logger.Warn("next boundary keeps slipping into the past, leaving timer disarmed",
				"next", next.Format(time.RFC3339))
			e.disarm()
			return nil
		}

		e.logger.Info("boundary already passed, catching up now",
			"next", next.Format(time.RFC3339))
		if _, err := e.CatchUp(ctx, ir.SourceBoundary); err != nil {
			e.logger.Error("catch-up failed", "error", err)
		}
	}
}

// Next returns the instant the boundary timer is armed for. ok is false
// when no timer is armed.
func (e *Engine) Next() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next, e.timer != nil
}

// arm replaces the live timer. Exactly one timer is live at a time.
func (e *Engine) arm(next time.Time, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.next = next
	e.timer = e.clock.AfterFunc(d, e.onBoundary, timerTagEngine, timerTagBoundary)
	e.metrics.TimerArmed.Inc()

	e.logger.Debug("boundary timer armed",
		"next", next.Format(time.RFC3339),
		"in", d.String())
}

func (e *Engine) disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.next = time.Time{}
}

// onBoundary is the timer callback: catch up, then re-arm.
func (e *Engine) onBoundary() {
	ctx := e.context()
	if ctx.Err() != nil {
		return
	}

	if _, err := e.CatchUp(ctx, ir.SourceBoundary); err != nil {
		e.logger.Error("boundary catch-up failed", "error", err)
	}
	if err := e.Schedule(ctx); err != nil {
		e.logger.Error("reschedule failed", "error", err)
	}
}
