package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/cadence/internal/store"
)

// Retry defaults: roughly 100ms, 200ms, 400ms, 800ms between five attempts.
const (
	DefaultRetryInitialInterval = 100 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
	DefaultRetryMaxAttempts     = 5
)

// Retrier wraps individual store reads and writes with capped exponential
// backoff. Only errors the classifier reports as transient are retried;
// everything else returns on the first attempt.
type Retrier struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int

	// IsTransient classifies errors. Defaults to store.IsTransient.
	IsTransient func(error) bool

	logger *slog.Logger
}

// NewRetrier creates a Retrier with the default policy.
func NewRetrier() *Retrier {
	return &Retrier{
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
		MaxAttempts:     DefaultRetryMaxAttempts,
		IsTransient:     store.IsTransient,
	}
}

func (r *Retrier) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	b.MaxElapsedTime = 0

	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, fails permanently, exhausts the attempt
// budget or ctx is done.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	_, err := retryValue(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// retryValue is Do for operations that return a value.
func retryValue[T any](ctx context.Context, r *Retrier, op string, fn func() (T, error)) (T, error) {
	classify := r.IsTransient
	if classify == nil {
		classify = store.IsTransient
	}
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !classify(err) {
			return v, backoff.Permanent(err)
		}
		logger.Debug("transient store error",
			"op", op,
			"attempt", attempt,
			"error", err)
		return v, err
	}, r.backoff(ctx))
}
