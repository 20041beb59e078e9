package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/bus"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
	"github.com/roach88/cadence/internal/tracker"
)

// harnessUser is the identity every scenario runs as.
const harnessUser = "harness-user"

// Harness is the scenario execution engine.
// It runs scenarios with a frozen clock and scenario-supplied ids.
type Harness struct {
	store   *recordingStore
	engine  *engine.Engine
	tracker *tracker.Service
	clock   *testutil.FrozenClock
	ids     *testutil.QueueGenerator
	logger  *slog.Logger
	result  *Result
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger used by the engine and tracker.
// Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database, engine and tracker
// 2. Create standards through the tracker, insert logs directly
// 3. Execute steps, checking declared errors
// 4. Evaluate expectations against the persisted rollups
//
// The returned error is reserved for setup failures; step and expectation
// failures are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	loc, err := period.LoadLocation(scenario.Timezone)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		clock:  testutil.NewFrozenClock(scenario.Now.In(loc)),
		ids:    testutil.NewQueueGenerator("id"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}
	st.SetLogger(h.logger)
	h.store = &recordingStore{Store: st, result: h.result}

	users := auth.Static(harnessUser)
	mutations := bus.New[ir.LogMutation]()
	changes := bus.New[ir.StandardChange]()
	defer mutations.Close()
	defer changes.Close()

	h.engine = engine.New(h.store, users,
		engine.WithClock(h.clock),
		engine.WithLocation(loc),
		engine.WithLogger(h.logger),
		engine.WithMutations(mutations),
		engine.WithStandardChanges(changes),
	)
	defer h.engine.Close()

	h.tracker = tracker.New(st, users,
		tracker.WithClock(h.clock),
		tracker.WithIDGenerator(h.ids),
		tracker.WithLogger(h.logger),
		tracker.WithMutations(mutations),
		tracker.WithStandardChanges(changes),
	)

	if err := h.engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		h.store.setStep(i + 1)
		err := h.executeStep(ctx, step)
		checkStepError(h.result, i+1, step, err)
	}

	for _, std := range scenario.Standards {
		rollups, err := st.ListRollups(ctx, harnessUser, std.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list rollups: %w", err)
		}
		h.result.Rollups = append(h.result.Rollups, rollups...)
	}
	for _, msg := range EvaluateExpectations(h.result.Rollups, scenario.Expect) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	for _, fixture := range scenario.Standards {
		in, err := standardInput(fixture)
		if err != nil {
			return err
		}
		h.ids.Push(fixture.ID)
		if _, err := h.tracker.CreateStandard(ctx, in); err != nil {
			return fmt.Errorf("create standard %s: %w", fixture.ID, err)
		}
		if fixture.Archived {
			if err := h.tracker.ArchiveStandard(ctx, fixture.ID); err != nil {
				return fmt.Errorf("archive standard %s: %w", fixture.ID, err)
			}
		}
	}

	for _, l := range scenario.Logs {
		entry := ir.LogEntry{
			ID:           l.ID,
			StandardID:   l.Standard,
			Value:        l.Value,
			OccurredAtMs: ir.Millis(l.At),
			Note:         l.Note,
		}
		if err := h.store.InsertLog(ctx, harnessUser, entry); err != nil {
			return fmt.Errorf("insert log %s: %w", l.ID, err)
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.CatchUp != "":
		source, err := ir.ParseSource(step.CatchUp)
		if err != nil {
			return err
		}
		report, err := h.engine.CatchUp(ctx, source)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("catch-up: %d standard(s) failed", report.Failed)
		}
		return nil

	case step.Advance != 0:
		h.clock.Advance(step.Advance)
		return nil

	case step.AddLog != nil:
		h.ids.Push(step.AddLog.ID)
		_, err := h.tracker.AddLog(ctx, tracker.LogInput{
			StandardID:   step.AddLog.Standard,
			Value:        step.AddLog.Value,
			OccurredAtMs: ir.Millis(step.AddLog.At),
			Note:         step.AddLog.Note,
		})
		return err

	case step.EditLog != nil:
		edit := tracker.LogEdit{Value: step.EditLog.Value}
		if step.EditLog.At != nil {
			edit.OccurredAtMs = ir.Int64Ptr(ir.Millis(*step.EditLog.At))
		}
		_, err := h.tracker.EditLog(ctx, step.EditLog.ID, edit)
		return err

	case step.DeleteLog != "":
		return h.tracker.DeleteLog(ctx, step.DeleteLog)

	case step.RestoreLog != "":
		return h.tracker.RestoreLog(ctx, step.RestoreLog)

	case step.UpdateStandard != nil:
		in, err := standardInput(*step.UpdateStandard)
		if err != nil {
			return err
		}
		_, err = h.tracker.UpdateStandard(ctx, step.UpdateStandard.ID, in)
		return err

	case step.ArchiveStandard != "":
		return h.tracker.ArchiveStandard(ctx, step.ArchiveStandard)
	}
	return fmt.Errorf("step has no action")
}

func checkStepError(result *Result, n int, step Step, err error) {
	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", n, step.Action(), err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got none",
			n, step.Action(), step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got: %v",
			n, step.Action(), step.ExpectError, err))
	}
}

func standardInput(f StandardFixture) (tracker.StandardInput, error) {
	cadence, err := period.ParseCadence(f.Cadence)
	if err != nil {
		return tracker.StandardInput{}, err
	}
	pref, err := period.ParseWeekStart(f.WeekStart)
	if err != nil {
		return tracker.StandardInput{}, err
	}
	return tracker.StandardInput{
		ActivityID:            f.ActivityID,
		Minimum:               f.Minimum,
		Unit:                  f.Unit,
		Cadence:               cadence,
		PeriodStartPreference: pref,
		SessionConfig: ir.SessionConfig{
			SessionsPerCadence: f.Sessions,
			VolumePerSession:   f.Volume,
		},
	}, nil
}

// recordingStore traces every successful rollup write.
type recordingStore struct {
	*store.Store

	mu     sync.Mutex
	step   int
	result *Result
}

func (r *recordingStore) setStep(step int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.step = step
}

func (r *recordingStore) UpsertRollup(ctx context.Context, userID string, roll ir.Rollup) error {
	if err := r.Store.UpsertRollup(ctx, userID, roll); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.AddTrace(r.step, roll)
	return nil
}
