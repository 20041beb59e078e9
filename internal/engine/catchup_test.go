package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/ir"
)

// A standard first seen during week W-1 with 30 logged on Monday of W-1
// and 40 on Tuesday of W. On Wednesday of W, catch-up writes exactly one
// rollup: W-1, total 30, Missed. W is still open and nothing includes the
// 40.
func TestCatchUp_ElapsedWeekMissed(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	// First seen on Monday morning of W-1.
	mClock := newMockClock(t, weekPrev.Add(8*time.Hour))
	e := newTestEngine(t, st, mClock)
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	require.Equal(t, 0, report.Written)

	seedLog(t, st, "log-1", std.ID, 30, weekPrev.Add(10*time.Hour))
	seedLog(t, st, "log-2", std.ID, 40, weekCur.Add(24*time.Hour+10*time.Hour))

	mClock.Set(wedCur).MustWait(ctx)
	report, err = e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Standards)
	assert.Equal(t, 0, report.Failed)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 1)
	r := rollups[0]
	assert.Equal(t, ir.RollupID(std.ActivityID, std.ID, ir.Millis(weekPrev)), r.ID)
	assert.Equal(t, ir.Millis(weekPrev), r.PeriodStartMs)
	assert.Equal(t, ir.Millis(weekCur), r.PeriodEndMs)
	assert.Equal(t, 30.0, r.Total)
	assert.Equal(t, 1, r.CurrentSessions)
	assert.Equal(t, 3, r.TargetSessions)
	assert.Equal(t, ir.StatusMissed, r.Status)
	assert.Equal(t, 50.0, r.ProgressPercent)
	assert.Equal(t, ir.SourceResume, r.Source)
	assert.Equal(t, ir.Millis(wedCur), r.GeneratedAtMs)
	assert.Equal(t, "2024-03-04", r.PeriodKey)
	assert.Equal(t, "60 min / week", r.StandardSnapshot.Summary)
}

func TestCatchUp_FirstRunDoesNotBackfill(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1") // created in 2020
	seedStandard(t, st, std)
	seedLog(t, st, "old", std.ID, 500, weekPrev.Add(time.Hour))

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Written)
	assert.Empty(t, listRollups(t, st, std.ID))

	baseline, err := st.GetBaseline(ctx, testUser, std.ID)
	require.NoError(t, err)
	require.NotNil(t, baseline)
	assert.Equal(t, ir.Millis(weekCur), baseline.StartMs)
}

func TestCatchUp_NoGapBackfill(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	// Latest rollup covers [Feb 12, Feb 19); E = Feb 19.
	feb12 := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	e0 := time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)
	seedRollup(t, st, std, feb12, e0, ir.SourceBoundary)
	seedLog(t, st, "log-1", std.ID, 60, e0.Add(time.Hour))

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 4)

	// Contiguous, non-overlapping, covering [E, E + 3 weeks).
	week := 7 * 24 * time.Hour
	for i, r := range rollups[1:] {
		assert.Equal(t, ir.Millis(e0.Add(time.Duration(i)*week)), r.PeriodStartMs)
		assert.Equal(t, rollups[i].PeriodEndMs, r.PeriodStartMs, "gap before rollup %d", i+1)
		assert.Equal(t, ir.SourceResume, r.Source)
	}
	assert.Equal(t, ir.Millis(weekCur), rollups[3].PeriodEndMs, "open week must not be generated")
	assert.Equal(t, ir.StatusMet, rollups[1].Status)
	assert.Equal(t, ir.StatusMissed, rollups[2].Status)

	// A second run with no elapsed period writes nothing.
	report, err = e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Written)
	assert.Len(t, listRollups(t, st, std.ID), 4)
}

func TestCatchUp_RefinalizesProvisionalRollup(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	// Written mid-period by a log edit: still In Progress.
	provisional := seedRollup(t, st, std, weekPrev, weekPrev.Add(48*time.Hour), ir.SourceLogEdit)
	require.Equal(t, ir.StatusInProgress, provisional.Status)
	seedLog(t, st, "log-1", std.ID, 30, weekPrev.Add(24*time.Hour))
	seedLog(t, st, "log-2", std.ID, 40, weekPrev.Add(96*time.Hour))

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	report, err := e.CatchUp(ctx, ir.SourceBoundary)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 1)
	assert.Equal(t, provisional.ID, rollups[0].ID)
	assert.Equal(t, 70.0, rollups[0].Total)
	assert.Equal(t, ir.StatusMet, rollups[0].Status)
	assert.Equal(t, ir.SourceBoundary, rollups[0].Source)
	assert.True(t, rollups[0].Finalized())
}

func TestCatchUp_CadenceChangeStartsFreshBaseline(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)
	seedRollup(t, st, std, weekPrev, weekCur, ir.SourceBoundary)

	std.Cadence = ir.Cadence{Interval: 1, Unit: ir.CadenceDay}
	require.NoError(t, st.UpdateStandard(ctx, testUser, std))

	mClock := newMockClock(t, wedCur)
	e := newTestEngine(t, st, mClock)

	// Nothing from the old cadence is reconciled.
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Written)

	seedLog(t, st, "log-1", std.ID, 15, wedCur.Add(time.Hour))
	mClock.Set(wedCur.Add(24 * time.Hour)).MustWait(ctx)

	report, err = e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 2)
	day := rollups[1]
	assert.Equal(t, ir.Millis(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)), day.PeriodStartMs)
	assert.Equal(t, ir.CadenceDay, day.StandardSnapshot.Cadence.Unit)
	assert.Equal(t, 15.0, day.Total)
	assert.Equal(t, "2024-03-13", day.PeriodKey)

	// The old weekly rollup is untouched.
	assert.Equal(t, ir.CadenceWeek, rollups[0].StandardSnapshot.Cadence.Unit)
}

func TestCatchUp_StepCeilingAbortsOnlyThatStandard(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	far := weeklyStandard("far")
	near := weeklyStandard("near")
	seedStandard(t, st, far)
	seedStandard(t, st, near)

	// far is 10 weeks behind, near is 1 week behind.
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRollup(t, st, far, jan1, jan1.Add(7*24*time.Hour), ir.SourceBoundary)
	seedRollup(t, st, near, weekPrev.Add(-7*24*time.Hour), weekPrev, ir.SourceBoundary)

	e := newTestEngine(t, st, newMockClock(t, wedCur), WithMaxSteps(3))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Standards)
	assert.Equal(t, 3+1, report.Written)
	assert.Len(t, listRollups(t, st, far.ID), 1+3)
	assert.Len(t, listRollups(t, st, near.ID), 2)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(e.Metrics().WalkFailures.WithLabelValues(string(ErrCodeStepsExceeded))))
}

func TestCatchUp_FailureIsolatedPerStandard(t *testing.T) {
	base := createTestStore(t)
	st := newCountingStore(base)
	ctx := testCtx(t)

	for _, id := range []string{"a", "bad", "c"} {
		std := weeklyStandard(id)
		seedStandard(t, base, std)
		seedRollup(t, base, std, weekPrev.Add(-7*24*time.Hour), weekPrev, ir.SourceBoundary)
	}
	st.failQueryLogs("bad", errQueryFailed)

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Standards)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Written)
	assert.Len(t, listRollups(t, base, "a"), 2)
	assert.Len(t, listRollups(t, base, "bad"), 1)
	assert.Len(t, listRollups(t, base, "c"), 2)

	// The guard was released despite the failure.
	report, err = e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
}

func TestCatchUp_SecondTriggerDroppedWhileRunning(t *testing.T) {
	base := createTestStore(t)
	st := newCountingStore(base)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, base, std)
	seedRollup(t, base, std, weekPrev.Add(-7*24*time.Hour), weekPrev, ir.SourceBoundary)

	e := newTestEngine(t, st, newMockClock(t, wedCur))

	entered, release := st.blockNextList()
	var (
		wg     sync.WaitGroup
		first  CatchUpReport
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, runErr = e.CatchUp(ctx, ir.SourceBoundary)
	}()

	select {
	case <-entered:
	case <-ctx.Done():
		t.Fatal("first catch-up never queried standards")
	}
	callsBefore := st.calls.Load()

	second, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, callsBefore, st.calls.Load(), "dropped trigger must not touch the store")

	release()
	wg.Wait()
	require.NoError(t, runErr)
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Written)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(e.Metrics().CatchUpRuns.WithLabelValues("resume", "skipped")))
}

func TestCatchUp_Unauthenticated(t *testing.T) {
	st := createTestStore(t)
	e := New(st, auth.Static(""), WithLogger(quietLogger()), WithClock(newMockClock(t, wedCur)))
	t.Cleanup(e.Close)

	_, err := e.CatchUp(testCtx(t), ir.SourceResume)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, ErrCodeUnauthenticated, CodeOf(err))
}

func TestCatchUp_NoActiveStandards(t *testing.T) {
	st := createTestStore(t)
	archived := weeklyStandard("old")
	archived.State = ir.StateArchived
	seedStandard(t, st, archived)
	seedRollup(t, st, archived, weekPrev.Add(-7*24*time.Hour), weekPrev, ir.SourceBoundary)

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	report, err := e.CatchUp(testCtx(t), ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Standards)
	assert.Equal(t, 0, report.Written)
	assert.Len(t, listRollups(t, st, archived.ID), 1, "archived history stays, nothing new")
}

func TestCatchUp_CanceledContextEndsWalk(t *testing.T) {
	st := createTestStore(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	ctx, cancel := context.WithCancel(testCtx(t))
	cancel()

	_, err := e.CatchUp(ctx, ir.SourceResume)
	assert.Error(t, err)
}

func requireContiguous(t *testing.T, rollups []ir.Rollup) {
	t.Helper()
	for i := 1; i < len(rollups); i++ {
		require.Equal(t, rollups[i-1].PeriodEndMs, rollups[i].PeriodStartMs,
			"gap before %s", rollups[i].PeriodKey)
	}
}

// A log dated in a future week is recomputed into a rollup ahead of the
// frontier. The weeks in between are still written once they elapse.
func TestCatchUp_FutureLogDoesNotSkipPeriods(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	mClock := newMockClock(t, weekPrev.Add(8*time.Hour))
	e := newTestEngine(t, st, mClock)
	_, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)

	mClock.Set(wedCur).MustWait(ctx)
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	require.Equal(t, 1, report.Written)

	future := seedLog(t, st, "log-1", std.ID, 25, weekNext.Add(24*time.Hour))
	require.NoError(t, e.HandleMutation(ctx, ir.LogMutation{
		Type:         ir.MutationCreate,
		StandardID:   std.ID,
		LogEntryID:   future.ID,
		OccurredAtMs: future.OccurredAtMs,
	}))

	mClock.Set(wedCur.Add(14 * 24 * time.Hour)).MustWait(ctx)
	report, err = e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 3)
	requireContiguous(t, rollups)
	assert.Equal(t, []string{"2024-03-04", "2024-03-11", "2024-03-18"},
		[]string{rollups[0].PeriodKey, rollups[1].PeriodKey, rollups[2].PeriodKey})
	assert.Equal(t, 25.0, rollups[2].Total)
	assert.Equal(t, ir.SourceResume, rollups[2].Source)
}

// A backdated log lands in a week after the last rollup but before now.
// Recomputing it must not let catch-up skip the weeks before it.
func TestCatchUp_RecomputeAheadOfFrontierDoesNotSkipPeriods(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	feb12 := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	seedRollup(t, st, std, feb12, feb12.Add(7*24*time.Hour), ir.SourceBoundary)

	e := newTestEngine(t, st, newMockClock(t, wedCur))
	entry := seedLog(t, st, "log-1", std.ID, 45, weekPrev.Add(time.Hour))
	require.NoError(t, e.HandleMutation(ctx, ir.LogMutation{
		Type:         ir.MutationCreate,
		StandardID:   std.ID,
		LogEntryID:   entry.ID,
		OccurredAtMs: entry.OccurredAtMs,
	}))

	frontier, err := st.GetBaseline(ctx, testUser, std.ID)
	require.NoError(t, err)
	require.NotNil(t, frontier)
	assert.Equal(t, ir.Millis(feb12.Add(7*24*time.Hour)), frontier.StartMs)

	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)

	rollups := listRollups(t, st, std.ID)
	require.Len(t, rollups, 4)
	requireContiguous(t, rollups)
	assert.Equal(t, "2024-02-19", rollups[1].PeriodKey)
	assert.Equal(t, "2024-02-26", rollups[2].PeriodKey)
	assert.Equal(t, "2024-03-04", rollups[3].PeriodKey)
	assert.Equal(t, 45.0, rollups[3].Total)
	assert.Equal(t, ir.Millis(weekCur), rollups[3].PeriodEndMs)
}

func TestCatchUp_FrontierAdvancesWithEachWrite(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)

	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRollup(t, st, std, jan1, jan1.Add(7*24*time.Hour), ir.SourceBoundary)

	e := newTestEngine(t, st, newMockClock(t, wedCur), WithMaxSteps(2))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 2, report.Written)

	frontier, err := st.GetBaseline(ctx, testUser, std.ID)
	require.NoError(t, err)
	require.NotNil(t, frontier)
	assert.Equal(t, ir.Millis(jan1.Add(3*7*24*time.Hour)), frontier.StartMs)
}

func TestCatchUp_StepCeilingCountsWrites(t *testing.T) {
	st := createTestStore(t)
	ctx := testCtx(t)
	std := weeklyStandard("std-1")
	seedStandard(t, st, std)
	seedRollup(t, st, std, weekPrev.Add(-7*24*time.Hour), weekPrev, ir.SourceBoundary)

	// One elapsed week, then the open week: a ceiling of one suffices.
	e := newTestEngine(t, st, newMockClock(t, wedCur), WithMaxSteps(1))
	report, err := e.CatchUp(ctx, ir.SourceResume)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Standards)
	assert.Equal(t, 1, report.Written)
}
