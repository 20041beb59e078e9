// Package rollup aggregates log entries into period figures and assembles
// rollup documents. Everything here is pure: no I/O, no clock, no mutation
// of inputs.
package rollup

import (
	"math"

	"github.com/roach88/cadence/internal/ir"
)

// Figures are the computed fields of a rollup.
type Figures struct {
	Total           float64   `json:"total"`
	CurrentSessions int       `json:"current_sessions"`
	TargetSessions  int       `json:"target_sessions"`
	Status          ir.Status `json:"status"`
	ProgressPercent float64   `json:"progress_percent"`
}

// Compute sums the live entries it is given against the standard's target.
// The caller is responsible for scoping logs to the window; soft-deleted
// entries are skipped here.
func Compute(logs []ir.LogEntry, standard ir.Standard, windowEndMs, nowMs int64) Figures {
	var total float64
	var sessions int
	for _, l := range logs {
		if !l.IsLive() {
			continue
		}
		total += l.Value
		sessions++
	}

	return Figures{
		Total:           total,
		CurrentSessions: sessions,
		TargetSessions:  standard.SessionConfig.SessionsPerCadence,
		Status:          DeriveStatus(total, standard.Minimum, nowMs, windowEndMs),
		ProgressPercent: ProgressPercent(total, standard.Minimum),
	}
}

// DeriveStatus returns Met when the minimum is reached, Missed once the
// period is over without reaching it, and In Progress otherwise.
func DeriveStatus(total, minimum float64, nowMs, windowEndMs int64) ir.Status {
	switch {
	case total >= minimum:
		return ir.StatusMet
	case nowMs >= windowEndMs:
		return ir.StatusMissed
	default:
		return ir.StatusInProgress
	}
}

// ProgressPercent is min(total/minimum, 1) * 100 rounded to two decimals,
// clamped to [0, 100]. A zero or negative minimum cannot be under-shot and
// yields 100.
func ProgressPercent(total, minimum float64) float64 {
	if minimum <= 0 {
		return 100
	}
	ratio := math.Min(total/minimum, 1)
	if ratio < 0 || math.IsNaN(ratio) {
		ratio = 0
	}
	return Round2(ratio * 100)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Snapshot freezes the standard's configuration for a rollup.
func Snapshot(s ir.Standard) ir.StandardSnapshot {
	snap := ir.StandardSnapshot{
		Minimum:       s.Minimum,
		Unit:          s.Unit,
		Cadence:       s.Cadence,
		SessionConfig: s.SessionConfig,
		Summary:       s.Summary(),
	}
	if s.PeriodStartPreference != nil {
		pref := *s.PeriodStartPreference
		snap.PeriodStartPreference = &pref
	}
	return snap
}

// Build assembles the full rollup document for one window.
func Build(s ir.Standard, w ir.Window, logs []ir.LogEntry, nowMs int64, source ir.Source) ir.Rollup {
	f := Compute(logs, s, w.EndMs, nowMs)
	return ir.Rollup{
		ID:               ir.RollupID(s.ActivityID, s.ID, w.StartMs),
		ActivityID:       s.ActivityID,
		StandardID:       s.ID,
		PeriodStartMs:    w.StartMs,
		PeriodEndMs:      w.EndMs,
		PeriodLabel:      w.Label,
		PeriodKey:        w.PeriodKey,
		StandardSnapshot: Snapshot(s),
		Total:            f.Total,
		CurrentSessions:  f.CurrentSessions,
		TargetSessions:   f.TargetSessions,
		Status:           f.Status,
		ProgressPercent:  f.ProgressPercent,
		GeneratedAtMs:    nowMs,
		Source:           source,
	}
}
