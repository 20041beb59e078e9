package harness

import (
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// TraceEvent is one rollup write observed during a run.
type TraceEvent struct {
	Seq             int64     `json:"seq"`
	Step            int       `json:"step"` // 0 is setup
	StandardID      string    `json:"standard_id"`
	PeriodKey       string    `json:"period_key"`
	Total           float64   `json:"total"`
	CurrentSessions int       `json:"current_sessions"`
	Status          ir.Status `json:"status"`
	ProgressPercent float64   `json:"progress_percent"`
	Source          ir.Source `json:"source"`
	GeneratedAtMs   int64     `json:"generated_at_ms"`
}

// String renders the event as a single trace line.
func (e TraceEvent) String() string {
	return fmt.Sprintf("[%d] step=%d %s %s total=%s sessions=%d status=%q progress=%s source=%s at=%s",
		e.Seq, e.Step, e.StandardID, e.PeriodKey,
		ir.FormatQuantity(e.Total), e.CurrentSessions, e.Status,
		ir.FormatQuantity(e.ProgressPercent), e.Source,
		ir.FromMillis(e.GeneratedAtMs).Format(time.RFC3339))
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as declared and every
	// expectation matched.
	Pass bool `json:"pass"`

	// Trace contains all rollup writes in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Rollups is the final persisted state, per standard in period order.
	Rollups []ir.Rollup `json:"rollups,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a rollup write to the trace.
func (r *Result) AddTrace(step int, roll ir.Rollup) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:             int64(len(r.Trace) + 1),
		Step:            step,
		StandardID:      roll.StandardID,
		PeriodKey:       roll.PeriodKey,
		Total:           roll.Total,
		CurrentSessions: roll.CurrentSessions,
		Status:          roll.Status,
		ProgressPercent: roll.ProgressPercent,
		Source:          roll.Source,
		GeneratedAtMs:   roll.GeneratedAtMs,
	})
}
