// Package store provides SQLite-backed persistence for standards, log
// entries and rollups.
//
// Every table is scoped by user id. The store plays the document database
// the engine talks to:
//   - QueryLogs: live log entries of one standard inside a half-open window
//   - LatestRollup: the most recent rollup of a standard, or nil
//   - UpsertRollup: merge write keyed by the deterministic rollup id
//   - GetBaseline/PutBaseline: a standard's catch-up frontier, the start
//     of the next period catch-up will write
//
// # Idempotency
//
// Rollups are written with INSERT ... ON CONFLICT(user_id, id) DO UPDATE, so
// writing the same period twice yields one row. Writers racing on the same
// id converge on last-writer-wins.
//
// # Malformed data
//
// A rollup row missing fields catch-up depends on is reported as absent by
// LatestRollup and logged, never returned as an error.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
