package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cadence/internal/ir"
)

// ExpectationError is returned when an expectation fails.
// It includes the persisted rollups to help debug the failure.
type ExpectationError struct {
	Expected string
	Actual   string
	Rollups  []ir.Rollup
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nPersisted rollups:\n")
	for i, r := range e.Rollups {
		fmt.Fprintf(&buf, "  [%d] %s %s total=%s status=%q source=%s\n",
			i+1, r.StandardID, r.PeriodKey, ir.FormatQuantity(r.Total), r.Status, r.Source)
	}
	return buf.String()
}

// EvaluateExpectations checks the persisted rollups against expect and
// returns one message per failed expectation.
func EvaluateExpectations(rollups []ir.Rollup, expect Expect) []string {
	var errs []string

	if expect.RollupCount != nil && len(rollups) != *expect.RollupCount {
		errs = append(errs, (&ExpectationError{
			Expected: fmt.Sprintf("%d rollup(s)", *expect.RollupCount),
			Actual:   fmt.Sprintf("%d rollup(s)", len(rollups)),
			Rollups:  rollups,
		}).Error())
	}

	for _, want := range expect.Rollups {
		if err := matchRollup(rollups, want); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func matchRollup(rollups []ir.Rollup, want RollupExpect) error {
	var found *ir.Rollup
	for i := range rollups {
		if rollups[i].StandardID == want.Standard && rollups[i].PeriodKey == want.PeriodKey {
			found = &rollups[i]
			break
		}
	}
	if found == nil {
		return &ExpectationError{
			Expected: fmt.Sprintf("rollup %s %s", want.Standard, want.PeriodKey),
			Actual:   "not found",
			Rollups:  rollups,
		}
	}

	var diffs []string
	if want.Total != nil && found.Total != *want.Total {
		diffs = append(diffs, fmt.Sprintf("total: want %s, got %s",
			ir.FormatQuantity(*want.Total), ir.FormatQuantity(found.Total)))
	}
	if want.CurrentSessions != nil && found.CurrentSessions != *want.CurrentSessions {
		diffs = append(diffs, fmt.Sprintf("current_sessions: want %d, got %d",
			*want.CurrentSessions, found.CurrentSessions))
	}
	if want.Status != "" && string(found.Status) != want.Status {
		diffs = append(diffs, fmt.Sprintf("status: want %q, got %q", want.Status, found.Status))
	}
	if want.ProgressPercent != nil && found.ProgressPercent != *want.ProgressPercent {
		diffs = append(diffs, fmt.Sprintf("progress_percent: want %s, got %s",
			ir.FormatQuantity(*want.ProgressPercent), ir.FormatQuantity(found.ProgressPercent)))
	}
	if want.Source != "" && string(found.Source) != want.Source {
		diffs = append(diffs, fmt.Sprintf("source: want %s, got %s", want.Source, found.Source))
	}
	if want.Finalized != nil && found.Finalized() != *want.Finalized {
		diffs = append(diffs, fmt.Sprintf("finalized: want %t, got %t", *want.Finalized, found.Finalized()))
	}

	if len(diffs) == 0 {
		return nil
	}
	return &ExpectationError{
		Expected: fmt.Sprintf("rollup %s %s to match", want.Standard, want.PeriodKey),
		Actual:   strings.Join(diffs, "; "),
		Rollups:  rollups,
	}
}
