package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the per-standard ceiling on rollups written by one walk.
// It guarantees termination under a corrupt or extreme cadence.
const DefaultMaxSteps = 1000

// QuotaEnforcer counts the rollups one standard's walk writes and enforces
// a maximum.
//
// Each walk gets its own QuotaEnforcer. Check is called once per elapsed
// window, before its logs are read. Finding the open window that ends a
// walk does not count, so a ceiling of N allows exactly N writes.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
// Returns StepsExceededError once the limit is passed.
func (q *QuotaEnforcer) Check(standardID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			StandardID: standardID,
			Steps:      q.current,
			Limit:      q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError aborts one standard's walk. Other standards in the
// same run are unaffected.
type StepsExceededError struct {
	StandardID string
	Steps      int
	Limit      int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("standard %s exceeded max steps: %d steps > %d limit",
		e.StandardID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
