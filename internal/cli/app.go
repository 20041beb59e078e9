package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/bus"
	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/tracker"
)

// app is one CLI session: an open store with the tracker and engine wired
// to the same event buses.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	tracker  *tracker.Service
	engine   *engine.Engine
	registry *prometheus.Registry

	mutations *bus.Bus[ir.LogMutation]
	changes   *bus.Bus[ir.StandardChange]
	unsubs    []func()
}

// openApp loads config, opens the database and builds the tracker and
// engine. extra options are applied to the engine after the defaults.
func openApp(opts *RootOptions, cmd *cobra.Command, extra ...engine.Option) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid timezone", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st.SetLogger(logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		registry:  prometheus.NewRegistry(),
		mutations: bus.New[ir.LogMutation](),
		changes:   bus.New[ir.StandardChange](),
	}
	users := auth.Static(cfg.User)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithLocation(loc),
		engine.WithMaxSteps(cfg.Engine.MaxSteps),
		engine.WithRetrier(newRetrier(cfg.Retry)),
		engine.WithMetrics(engine.NewMetrics(a.registry)),
		engine.WithMutations(a.mutations),
		engine.WithStandardChanges(a.changes),
	}
	a.engine = engine.New(st, users, append(engineOpts, extra...)...)
	a.tracker = tracker.New(st, users,
		tracker.WithLogger(logger),
		tracker.WithMutations(a.mutations),
		tracker.WithStandardChanges(a.changes),
	)
	return a, nil
}

// newRetrier builds the engine retry policy from the retry section.
func newRetrier(c config.RetryConfig) *engine.Retrier {
	r := engine.NewRetrier()
	r.InitialInterval = c.InitialInterval
	r.MaxInterval = c.MaxInterval
	r.MaxAttempts = c.MaxAttempts
	return r
}

// listen routes tracker events to the engine without starting it, so
// one-shot commands recompute edited windows and record baselines without
// a resume catch-up.
func (a *app) listen() {
	a.unsubs = append(a.unsubs,
		a.mutations.Subscribe(a.engine.HandleMutation),
		a.changes.Subscribe(a.engine.HandleStandardChange),
	)
}

// close releases the engine, buses and store in reverse order of creation.
func (a *app) close() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.engine.Close()
	a.mutations.Close()
	a.changes.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// withApp runs fn in a listening app session and reports its result or
// error through the command's formatter.
func withApp(opts *RootOptions, cmd *cobra.Command, op string, fn func(ctx context.Context, a *app) (any, error)) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.listen()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts, cmd)

	out, err := fn(ctx, a)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return fail(f, op+" failed", err)
	}
	return f.Success(out)
}
