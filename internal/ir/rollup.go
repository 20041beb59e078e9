package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the completion status of a period against its standard.
type Status string

const (
	StatusMet        Status = "Met"
	StatusInProgress Status = "In Progress"
	StatusMissed     Status = "Missed"
)

// Source records which trigger generated a rollup.
type Source string

const (
	SourceBoundary Source = "boundary"
	SourceResume   Source = "resume"
	SourceLogEdit  Source = "log-edit"
)

// ValidSources enumerates the recognised rollup sources.
var ValidSources = map[Source]bool{
	SourceBoundary: true,
	SourceResume:   true,
	SourceLogEdit:  true,
}

// ParseSource parses a trigger reason.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !ValidSources[src] {
		return "", fmt.Errorf("invalid source %q: must be one of boundary, resume, log-edit", s)
	}
	return src, nil
}

// StandardSnapshot is the standard's configuration frozen at generation time.
// Later edits to the standard never alter existing rollups.
type StandardSnapshot struct {
	Minimum               float64                `json:"minimum"`
	Unit                  string                 `json:"unit"`
	Cadence               Cadence                `json:"cadence"`
	SessionConfig         SessionConfig          `json:"session_config"`
	Summary               string                 `json:"summary"`
	PeriodStartPreference *PeriodStartPreference `json:"period_start_preference,omitempty"`
}

// Rollup is the durable record of one period of one standard.
type Rollup struct {
	ID               string           `json:"id"`
	ActivityID       string           `json:"activity_id"`
	StandardID       string           `json:"standard_id"`
	PeriodStartMs    int64            `json:"period_start_ms"`
	PeriodEndMs      int64            `json:"period_end_ms"`
	PeriodLabel      string           `json:"period_label"`
	PeriodKey        string           `json:"period_key"`
	StandardSnapshot StandardSnapshot `json:"standard_snapshot"`
	Total            float64          `json:"total"`
	CurrentSessions  int              `json:"current_sessions"`
	TargetSessions   int              `json:"target_sessions"`
	Status           Status           `json:"status"`
	ProgressPercent  float64          `json:"progress_percent"`
	GeneratedAtMs    int64            `json:"generated_at_ms"`
	Source           Source           `json:"source"`
}

// Window returns the period window the rollup covers.
func (r Rollup) Window() Window {
	return Window{
		StartMs:   r.PeriodStartMs,
		EndMs:     r.PeriodEndMs,
		Label:     r.PeriodLabel,
		PeriodKey: r.PeriodKey,
	}
}

// Finalized reports whether the rollup was generated after its period
// closed. A rollup written while its period was still open carries a
// provisional status.
func (r Rollup) Finalized() bool {
	return r.GeneratedAtMs >= r.PeriodEndMs
}

// RollupIDSeparator joins the components of a rollup id.
const RollupIDSeparator = "__"

// RollupID builds the deterministic rollup document id. It is the sole
// deduplication mechanism: one id per standard per period.
func RollupID(activityID, standardID string, periodStartMs int64) string {
	return fmt.Sprintf("%s%s%s%s%d", activityID, RollupIDSeparator, standardID, RollupIDSeparator, periodStartMs)
}

// ErrMalformedRollup is returned by Validate for documents missing
// required fields.
var ErrMalformedRollup = errors.New("malformed rollup")

// Validate checks that the fields catch-up depends on are present.
func (r Rollup) Validate() error {
	var missing []string
	if r.ID == "" {
		missing = append(missing, "id")
	}
	if r.StandardID == "" {
		missing = append(missing, "standard_id")
	}
	if r.PeriodEndMs == 0 {
		missing = append(missing, "period_end_ms")
	}
	if r.StandardSnapshot.Cadence.Unit == "" {
		missing = append(missing, "standard_snapshot.cadence")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedRollup, strings.Join(missing, ", "))
	}
	if r.PeriodEndMs <= r.PeriodStartMs {
		return fmt.Errorf("%w: period_end_ms %d <= period_start_ms %d", ErrMalformedRollup, r.PeriodEndMs, r.PeriodStartMs)
	}
	return nil
}
