// Package engine turns logged activity into period rollups.
//
// An Engine is owned by one signed-in user session. It is constructed on
// sign-in, started, and closed on sign-out; nothing it holds is global.
//
// Triggers:
//   - resume: Start and every host foreground transition run catch-up
//   - boundary: a single one-shot timer fires at the earliest period end
//     across active standards and runs catch-up
//   - log-edit: a LogMutation recomputes exactly the affected window
//
// CATCH-UP:
//
// For each active standard the walk starts at its persisted frontier (the
// period after the last one catch-up wrote, or the period current when the
// standard was first seen) and writes one rollup per fully elapsed period
// until it reaches the open period. The frontier advances with every write.
// Log-edit recomputes may write rollups ahead of it; they never move it,
// so periods between the frontier and such a rollup are still written. Walks are sequential per standard and isolated across standards:
// a failure ends that standard's walk, is logged, and the run continues.
//
// A run guard (atomic flag) admits one run at a time. A trigger that
// arrives while a run is in flight is dropped, not queued.
//
// Every walk is bounded by a step ceiling (DefaultMaxSteps) so a corrupt
// cadence can never spin forever.
//
// WRITES:
//
// Rollups are keyed by ir.RollupID and written with merge semantics, so a
// catch-up run and a log-edit recompute racing on the same period converge
// on last-writer-wins with identical inputs.
package engine
