package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
	"github.com/roach88/cadence/internal/rollup"
	"github.com/roach88/cadence/internal/store"
)

const testUser = "user-1"

// Week W-1 is [Mar 4, Mar 11) and week W is [Mar 11, Mar 18), Monday aligned.
var (
	weekPrev = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	weekCur  = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	weekNext = time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	wedCur   = time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMockClock(t *testing.T, now time.Time) *quartz.Mock {
	t.Helper()
	mClock := quartz.NewMock(t)
	mClock.Set(now).MustWait(testCtx(t))
	return mClock
}

func fastRetrier() *Retrier {
	return &Retrier{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxAttempts:     3,
		IsTransient:     store.IsTransient,
	}
}

func newTestEngine(t *testing.T, st Store, clock quartz.Clock, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithClock(clock),
		WithLogger(quietLogger()),
		WithRetrier(fastRetrier()),
	}
	e := New(st, auth.Static(testUser), append(base, opts...)...)
	t.Cleanup(e.Close)
	return e
}

// weeklyStandard is 60 minutes a week in three sessions.
func weeklyStandard(id string) ir.Standard {
	return ir.Standard{
		ID:            id,
		ActivityID:    "act-" + id,
		Minimum:       60,
		Unit:          "min",
		Cadence:       ir.Cadence{Interval: 1, Unit: ir.CadenceWeek},
		State:         ir.StateActive,
		SessionConfig: ir.SessionConfig{SessionsPerCadence: 3, VolumePerSession: 20},
		CreatedAtMs:   ir.Millis(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		UpdatedAtMs:   ir.Millis(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func seedStandard(t *testing.T, st *store.Store, std ir.Standard) {
	t.Helper()
	require.NoError(t, st.CreateStandard(testCtx(t), testUser, std))
}

func seedLog(t *testing.T, st *store.Store, id, standardID string, value float64, at time.Time) ir.LogEntry {
	t.Helper()
	entry := ir.LogEntry{ID: id, StandardID: standardID, Value: value, OccurredAtMs: ir.Millis(at)}
	require.NoError(t, st.InsertLog(testCtx(t), testUser, entry))
	return entry
}

// seedRollup writes the rollup of the window containing ref, generated at
// generatedAt.
func seedRollup(t *testing.T, st *store.Store, std ir.Standard, ref, generatedAt time.Time, source ir.Source) ir.Rollup {
	t.Helper()
	w := period.ComputeWindow(ir.Millis(ref), std.Cadence, time.UTC, std.PeriodStartPreference)
	r := rollup.Build(std, w, nil, ir.Millis(generatedAt), source)
	require.NoError(t, st.UpsertRollup(testCtx(t), testUser, r))
	return r
}

func listRollups(t *testing.T, st *store.Store, standardID string) []ir.Rollup {
	t.Helper()
	rollups, err := st.ListRollups(testCtx(t), testUser, standardID)
	require.NoError(t, err)
	return rollups
}

// countingStore records every store call the engine makes and can block
// ActiveStandards or fail calls for chosen standards.
type countingStore struct {
	*store.Store

	calls atomic.Int64

	mu       sync.Mutex
	block    chan struct{}
	entered  chan struct{}
	failLogs map[string]error
}

func newCountingStore(s *store.Store) *countingStore {
	return &countingStore{Store: s, failLogs: map[string]error{}}
}

// blockNextList makes the next ActiveStandards call signal entered and
// wait for release to be closed.
func (c *countingStore) blockNextList() (entered <-chan struct{}, release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = make(chan struct{})
	c.entered = make(chan struct{})
	block := c.block
	return c.entered, func() { close(block) }
}

func (c *countingStore) ActiveStandards(ctx context.Context, userID string) ([]ir.Standard, error) {
	c.calls.Add(1)
	c.mu.Lock()
	block, entered := c.block, c.entered
	c.block, c.entered = nil, nil
	c.mu.Unlock()

	if block != nil {
		close(entered)
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.Store.ActiveStandards(ctx, userID)
}

func (c *countingStore) LatestRollup(ctx context.Context, userID, standardID string) (*ir.Rollup, error) {
	c.calls.Add(1)
	return c.Store.LatestRollup(ctx, userID, standardID)
}

func (c *countingStore) QueryLogs(ctx context.Context, userID, standardID string, startMs, endMs int64) ([]ir.LogEntry, error) {
	c.calls.Add(1)
	c.mu.Lock()
	err := c.failLogs[standardID]
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Store.QueryLogs(ctx, userID, standardID, startMs, endMs)
}

func (c *countingStore) UpsertRollup(ctx context.Context, userID string, r ir.Rollup) error {
	c.calls.Add(1)
	return c.Store.UpsertRollup(ctx, userID, r)
}

func (c *countingStore) failQueryLogs(standardID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLogs[standardID] = err
}

var errQueryFailed = errors.New("query failed")

// fakeLifecycle lets tests trigger a foreground transition.
type fakeLifecycle struct {
	mu  sync.Mutex
	fns map[int]func()
	id  int
}

func (f *fakeLifecycle) OnForeground(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fns == nil {
		f.fns = map[int]func(){}
	}
	f.id++
	id := f.id
	f.fns[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.fns, id)
	}
}

func (f *fakeLifecycle) foreground() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeLifecycle) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fns)
}
