// Package ir provides the canonical domain types for cadence.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// data model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - All instants are absolute milliseconds since the Unix epoch (int64).
//     Timezones only affect where period boundaries are placed.
//   - Rollup identity is deterministic: {activityId}__{standardId}__{periodStartMs}.
//   - Rollups carry a snapshot of the standard taken at generation time and
//     never reference the live standard.
//   - All JSON tags use snake_case.
package ir
