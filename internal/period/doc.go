// Package period computes the time window of the period containing an instant.
//
// ComputeWindow is pure and total: identical inputs always produce identical
// windows and no finite instant or cadence makes it fail. Timezones affect
// only where boundaries fall; all inputs and outputs are absolute
// milliseconds since the Unix epoch.
//
// Windows of a cadence partition time. Multi-interval cadences ("every 2
// weeks", "every 3 months") are aligned to a fixed epoch, so the window that
// contains an instant is the same window a walk from any earlier boundary
// arrives at:
//   - day:   groups of Interval local days counted from 1970-01-01
//   - week:  groups of Interval weeks, each week starting on the configured
//     weekday (Monday by default)
//   - month: groups of Interval calendar months counted from year 0
//
// With Interval = 1 this reduces to local midnight, week start and first of
// month respectively.
package period
