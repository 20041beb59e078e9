package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	MetricsAddress string

	// ready, when set, is called once the engine has started (for testing).
	ready func(addr net.Addr)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine and keep rollups current",
		Long: `Start the cadence engine for the configured user.

The engine runs catch-up with source "resume", then arms a timer for the
next period boundary and catches up again each time it fires. Sending
SIGUSR1 simulates the host returning to the foreground (resume catch-up).
SIGINT or SIGTERM stop the engine.

Example:
  cadence run --db ./cadence.db --user me --tz Europe/Paris
  cadence run -c cadence.yaml --metrics :9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddress, "metrics", "", "address to serve /metrics on (overrides config)")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	lifecycle := newSignalLifecycle()
	a, err := openApp(opts.RootOptions, cmd, engine.WithLifecycle(lifecycle))
	if err != nil {
		return err
	}
	defer a.close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGUSR1 {
					a.logger.Info("foreground signal received")
					lifecycle.foreground()
					continue
				}
				a.logger.Info("received signal, shutting down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	address := a.cfg.Metrics.Address
	if opts.MetricsAddress != "" {
		address = opts.MetricsAddress
	}
	var metricsAddr net.Addr
	if address != "" {
		srv, err := serveMetrics(a.registry, address, a.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer srv.close()
		metricsAddr = srv.addr
	}

	if err := a.engine.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "engine failed to start", err)
	}

	out := cmd.OutOrStdout()
	if next, ok := a.engine.Next(); ok {
		fmt.Fprintf(out, "Engine started. Next boundary at %s.\n", next.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Engine started. No active standards.")
	}
	fmt.Fprintln(out, "Press Ctrl-C to stop.")
	if opts.ready != nil {
		opts.ready(metricsAddr)
	}

	<-ctx.Done()
	a.logger.Info("engine stopped gracefully")
	return nil
}

// signalLifecycle is an engine.Lifecycle driven by SIGUSR1.
type signalLifecycle struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

func newSignalLifecycle() *signalLifecycle {
	return &signalLifecycle{fns: make(map[int]func())}
}

// OnForeground implements engine.Lifecycle.
func (l *signalLifecycle) OnForeground(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *signalLifecycle) foreground() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type metricsServer struct {
	srv    *http.Server
	addr   net.Addr
	logger *slog.Logger
	done   chan struct{}
}

// serveMetrics exposes reg on /metrics at address until close.
func serveMetrics(reg *prometheus.Registry, address string, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m := &metricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   ln.Addr(),
		logger: logger,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", m.addr.String())
	return m, nil
}

func (m *metricsServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", "error", err)
	}
	<-m.done
}
