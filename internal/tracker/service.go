package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coder/quartz"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/bus"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
)

// ErrStandardArchived is returned when a log operation targets an archived
// or deleted standard. It is the same sentinel the engine uses.
var ErrStandardArchived = engine.ErrStandardArchived

// ErrLogDeleted is returned when editing a soft-deleted log entry.
var ErrLogDeleted = errors.New("log entry is deleted")

// Store is the persistence the tracker writes through.
// Implemented by *store.Store.
type Store interface {
	CreateStandard(ctx context.Context, userID string, std ir.Standard) error
	UpdateStandard(ctx context.Context, userID string, std ir.Standard) error
	GetStandard(ctx context.Context, userID, id string) (ir.Standard, error)
	ListStandards(ctx context.Context, userID string, all bool) ([]ir.Standard, error)

	InsertLog(ctx context.Context, userID string, entry ir.LogEntry) error
	UpdateLog(ctx context.Context, userID string, entry ir.LogEntry) error
	SetLogDeleted(ctx context.Context, userID, id string, deletedAtMs *int64) error
	GetLog(ctx context.Context, userID, id string) (ir.LogEntry, error)
	ListLogs(ctx context.Context, userID, standardID string, all bool) ([]ir.LogEntry, error)
}

// Service performs standard and log mutations for the signed-in user.
type Service struct {
	store     Store
	users     auth.Provider
	clock     quartz.Clock
	ids       ir.IDGenerator
	logger    *slog.Logger
	mutations *bus.Bus[ir.LogMutation]
	changes   *bus.Bus[ir.StandardChange]
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock stamping created, edited and deleted times.
func WithClock(clock quartz.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithIDGenerator sets the id source. Default: UUIDv7.
func WithIDGenerator(ids ir.IDGenerator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMutations sets the bus log mutations are published on.
func WithMutations(b *bus.Bus[ir.LogMutation]) Option {
	return func(s *Service) {
		s.mutations = b
	}
}

// WithStandardChanges sets the bus standard changes are published on.
func WithStandardChanges(b *bus.Bus[ir.StandardChange]) Option {
	return func(s *Service) {
		s.changes = b
	}
}

// New creates a Service.
func New(st Store, users auth.Provider, opts ...Option) *Service {
	s := &Service{
		store:  st,
		users:  users,
		clock:  quartz.NewReal(),
		ids:    ir.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) nowMs() int64 {
	return ir.Millis(s.clock.Now())
}

func (s *Service) publishMutation(ctx context.Context, m ir.LogMutation) error {
	if s.mutations == nil {
		return nil
	}
	if err := s.mutations.Publish(ctx, m); err != nil {
		s.logger.Warn("log mutation handler failed",
			"type", m.Type,
			"standard_id", m.StandardID,
			"log_entry_id", m.LogEntryID,
			"error", err)
		return fmt.Errorf("%s log %s: recompute: %w", m.Type, m.LogEntryID, err)
	}
	return nil
}

func (s *Service) publishChange(ctx context.Context, c ir.StandardChange) error {
	if s.changes == nil {
		return nil
	}
	if err := s.changes.Publish(ctx, c); err != nil {
		s.logger.Warn("standard change handler failed",
			"type", c.Type,
			"standard_id", c.StandardID,
			"error", err)
		return fmt.Errorf("%s standard %s: reschedule: %w", c.Type, c.StandardID, err)
	}
	return nil
}
