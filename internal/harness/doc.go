// Package harness runs end-to-end scenarios against a fresh store, the
// tracker and the engine, with a frozen clock.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: missed_week
//	description: "An elapsed week below the minimum is Missed"
//	timezone: UTC
//	now: 2024-03-04T08:00:00Z
//	standards:
//	  - id: walk
//	    minimum: 60
//	    unit: min
//	    cadence: 1w
//	    sessions: 3
//	logs:
//	  - id: walk-1
//	    standard: walk
//	    value: 30
//	    at: 2024-03-05T10:00:00Z
//	steps:
//	  - advance: 52h
//	  - catch_up: resume
//	expect:
//	  rollup_count: 1
//	  rollups:
//	    - standard: walk
//	      period_key: "2024-03-04"
//	      status: Missed
//
// Standards are created through the tracker at "now", so the engine records
// their baseline exactly as it would for a user. Logs are inserted directly
// and publish nothing.
//
// # Steps
//
// Each step names exactly one action:
//
//   - catch_up: run catch-up with the given source (boundary or resume)
//   - advance: move the frozen clock forward
//   - add_log, edit_log, delete_log, restore_log: log mutations
//   - update_standard, archive_standard: standard changes
//
// A step with expect_error must fail with an error containing that text.
//
// # Trace
//
// Every rollup write is recorded in order with the step that caused it.
// The trace is what golden files compare.
package harness
