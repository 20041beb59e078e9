package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/bus"
	"github.com/roach88/cadence/internal/ir"
)

// LogReader queries live log entries of one standard in [startMs, endMs).
type LogReader interface {
	QueryLogs(ctx context.Context, userID, standardID string, startMs, endMs int64) ([]ir.LogEntry, error)
}

// RollupStore reads and merge-writes rollups.
type RollupStore interface {
	// LatestRollup returns nil, nil when there is no usable rollup.
	LatestRollup(ctx context.Context, userID, standardID string) (*ir.Rollup, error)
	UpsertRollup(ctx context.Context, userID string, r ir.Rollup) error
}

// StandardSource lists and fetches standards.
type StandardSource interface {
	ActiveStandards(ctx context.Context, userID string) ([]ir.Standard, error)
	GetStandard(ctx context.Context, userID, id string) (ir.Standard, error)
}

// BaselineStore persists each standard's catch-up frontier.
type BaselineStore interface {
	// GetBaseline returns nil, nil when none is recorded.
	GetBaseline(ctx context.Context, userID, standardID string) (*ir.Baseline, error)
	PutBaseline(ctx context.Context, userID string, b ir.Baseline) error
}

// Store is everything the engine reads and writes.
// Implemented by *store.Store.
type Store interface {
	LogReader
	RollupStore
	StandardSource
	BaselineStore
}

// Lifecycle reports host foreground transitions.
type Lifecycle interface {
	// OnForeground registers fn and returns a function that removes it.
	OnForeground(fn func()) (unsubscribe func())
}

// Timer tags used with the clock, so tests can trap the boundary timer.
const (
	timerTagEngine   = "engine"
	timerTagBoundary = "boundary"
)

// maxImmediateCatchUps bounds back-to-back catch-ups when the next boundary
// is already in the past by the time it is computed.
const maxImmediateCatchUps = 3

// Engine owns the catch-up run guard and the boundary timer for one user
// session.
//
// Thread-safety model:
//   - CatchUp, Resume, Schedule, HandleMutation: safe from any goroutine
//   - the boundary timer callback runs on the clock's goroutine
//   - Start once, Close once; Close is idempotent
type Engine struct {
	store     Store
	users     auth.Provider
	clock     quartz.Clock
	loc       *time.Location
	logger    *slog.Logger
	retrier   *Retrier
	metrics   *Metrics
	runs      *Sequence
	maxSteps  int
	lifecycle Lifecycle
	mutations *bus.Bus[ir.LogMutation]
	changes   *bus.Bus[ir.StandardChange]

	// running is the run guard.
	running atomic.Bool

	mu      sync.Mutex
	timer   *quartz.Timer
	next    time.Time
	unsubs  []func()
	baseCtx context.Context
	cancel  context.CancelFunc
	started bool
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock used for "now" and the boundary timer.
// Default: quartz.NewReal().
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLocation sets the timezone boundaries are placed in. Default: UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithMaxSteps sets the per-standard walk ceiling.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(3) for testing the ceiling.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithRetrier sets the retry policy around store calls.
func WithRetrier(r *Retrier) Option {
	return func(e *Engine) {
		if r != nil {
			e.retrier = r
		}
	}
}

// WithMetrics sets the metrics sink. Default: unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLifecycle subscribes the engine to host foreground transitions.
func WithLifecycle(l Lifecycle) Option {
	return func(e *Engine) {
		e.lifecycle = l
	}
}

// WithMutations subscribes the engine to log mutation events on Start.
func WithMutations(b *bus.Bus[ir.LogMutation]) Option {
	return func(e *Engine) {
		e.mutations = b
	}
}

// WithStandardChanges subscribes the engine to standard change events on
// Start. Each change reschedules the boundary timer.
func WithStandardChanges(b *bus.Bus[ir.StandardChange]) Option {
	return func(e *Engine) {
		e.changes = b
	}
}

// New creates an Engine. It does nothing until Start or an explicit
// CatchUp.
func New(st Store, users auth.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		users:    users,
		clock:    quartz.NewReal(),
		loc:      time.UTC,
		logger:   slog.Default(),
		retrier:  NewRetrier(),
		metrics:  NewMetrics(nil),
		runs:     NewSequence(),
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.retrier.logger = e.logger
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Start subscribes to mutation, standard-change and lifecycle events, runs
// catch-up with source resume and arms the boundary timer.
//
// Returns auth.ErrUnauthenticated (wrapped) when no user is signed in; the
// subscriptions stay in place until Close.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	e.cancel()
	e.baseCtx, e.cancel = context.WithCancel(ctx)

	if e.mutations != nil {
		e.unsubs = append(e.unsubs, e.mutations.Subscribe(e.HandleMutation))
	}
	if e.changes != nil {
		e.unsubs = append(e.unsubs, e.changes.Subscribe(e.HandleStandardChange))
	}
	if e.lifecycle != nil {
		e.unsubs = append(e.unsubs, e.lifecycle.OnForeground(e.onForeground))
	}
	base := e.baseCtx
	e.mu.Unlock()

	e.logger.Info("engine starting", "location", e.loc.String())
	return e.Resume(base)
}

// Resume runs catch-up with source resume and then reschedules. Hosts call
// it on every background-to-foreground transition.
func (e *Engine) Resume(ctx context.Context) error {
	if _, err := e.CatchUp(ctx, ir.SourceResume); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return err
		}
		e.logger.Error("resume catch-up failed", "error", err)
	}
	return e.Schedule(ctx)
}

func (e *Engine) onForeground() {
	ctx := e.context()
	if ctx.Err() != nil {
		return
	}
	if err := e.Resume(ctx); err != nil {
		e.logger.Warn("foreground resume failed", "error", err)
	}
}

// Close stops the boundary timer, drops every subscription and cancels
// in-flight timer work. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.next = time.Time{}
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	e.cancel()

	e.logger.Info("engine stopped")
}

// Metrics returns the engine's metrics sink.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func (e *Engine) context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseCtx
}

func (e *Engine) nowMs() int64 {
	return ir.Millis(e.clock.Now())
}

func (e *Engine) currentUser() (string, error) {
	id, err := auth.Require(e.users)
	if err != nil {
		return "", &EngineError{
			Code:    ErrCodeUnauthenticated,
			Message: "no signed-in user",
			Err:     err,
		}
	}
	return id, nil
}

func (e *Engine) activeStandards(ctx context.Context, userID string) ([]ir.Standard, error) {
	standards, err := retryValue(ctx, e.retrier, "active standards", func() ([]ir.Standard, error) {
		return e.store.ActiveStandards(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list active standards: %w", err)
	}
	return standards, nil
}
