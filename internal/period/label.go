package period

import (
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// Key returns the canonical short key of a window start: the local start
// date for day and week cadences, the local year-month for month cadences.
// Stable and unique per window of a given cadence.
func Key(start time.Time, unit ir.CadenceUnit) string {
	if unit == ir.CadenceMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

// Label returns a human-readable range for the window [start, end).
//
//	day:    "Mar 13, 2024"
//	range:  "Mar 11 - Mar 17, 2024", "Dec 30, 2024 - Jan 5, 2025"
//	month:  "March 2024", "Apr - Jun 2024", "Nov 2024 - Jan 2025"
func Label(start, end time.Time, unit ir.CadenceUnit) string {
	if unit == ir.CadenceMonth {
		return monthLabel(start, end)
	}

	y, m, d := end.Date()
	last := time.Date(y, m, d-1, 0, 0, 0, 0, end.Location())
	if sameDay(start, last) || last.Before(start) {
		return start.Format("Jan 2, 2006")
	}
	if start.Year() == last.Year() {
		return start.Format("Jan 2") + " - " + last.Format("Jan 2, 2006")
	}
	return start.Format("Jan 2, 2006") + " - " + last.Format("Jan 2, 2006")
}

func monthLabel(start, end time.Time) string {
	y, m, _ := end.Date()
	last := time.Date(y, m-1, 1, 0, 0, 0, 0, end.Location())
	if !last.After(start) {
		return start.Format("January 2006")
	}
	if start.Year() == last.Year() {
		return start.Format("Jan") + " - " + last.Format("Jan 2006")
	}
	return start.Format("Jan 2006") + " - " + last.Format("Jan 2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
