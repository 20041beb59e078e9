package period

import (
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// DefaultWeekStart is the weekday weekly windows start on when no
// preference is configured (ISO 8601).
const DefaultWeekStart = time.Monday

// ComputeWindow returns the window of the period containing referenceMs.
//
// A nil location means UTC. Intervals below 1 are treated as 1 and unknown
// units as days, so the function never fails; callers validate cadences at
// the edges (see tracker).
func ComputeWindow(referenceMs int64, c ir.Cadence, loc *time.Location, pref *ir.PeriodStartPreference) ir.Window {
	if loc == nil {
		loc = time.UTC
	}
	interval := c.Interval
	if interval < 1 {
		interval = 1
	}
	unit := c.Unit
	if !ir.ValidCadenceUnits[unit] {
		unit = ir.CadenceDay
	}

	ref := time.UnixMilli(referenceMs).In(loc)
	var start, end time.Time
	switch unit {
	case ir.CadenceWeek:
		start, end = weekWindow(ref, interval, WeekStart(pref), loc)
	case ir.CadenceMonth:
		start, end = monthWindow(ref, interval, loc)
	default:
		start, end = dayWindow(ref, interval, loc)
	}

	return ir.Window{
		StartMs:   start.UnixMilli(),
		EndMs:     end.UnixMilli(),
		Label:     Label(start, end, unit),
		PeriodKey: Key(start, unit),
	}
}

// NextBoundary returns the instant at which the period containing nowMs ends.
func NextBoundary(nowMs int64, c ir.Cadence, loc *time.Location, pref *ir.PeriodStartPreference) int64 {
	return ComputeWindow(nowMs, c, loc, pref).EndMs
}

// WeekStart resolves the weekday weekly windows start on.
func WeekStart(pref *ir.PeriodStartPreference) time.Weekday {
	if pref == nil || pref.Mode != ir.PeriodStartWeekDay {
		return DefaultWeekStart
	}
	if pref.WeekDay < time.Sunday || pref.WeekDay > time.Saturday {
		return DefaultWeekStart
	}
	return pref.WeekDay
}

func dayWindow(ref time.Time, interval int, loc *time.Location) (time.Time, time.Time) {
	y, m, d := ref.Date()
	offset := int(floorMod(dayNumber(y, m, d), int64(interval)))
	start := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d-offset+interval, 0, 0, 0, 0, loc)
	return start, end
}

func weekWindow(ref time.Time, interval int, weekStart time.Weekday, loc *time.Location) (time.Time, time.Time) {
	y, m, d := ref.Date()
	back := int(floorMod(int64(ref.Weekday())-int64(weekStart), 7))

	// Every candidate week start falls on the same weekday, so their day
	// numbers differ by multiples of 7 and floorDiv numbers weeks consecutively.
	week := floorDiv(dayNumber(y, m, d-back), 7)
	back += int(floorMod(week, int64(interval))) * 7

	start := time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d-back+7*interval, 0, 0, 0, 0, loc)
	return start, end
}

func monthWindow(ref time.Time, interval int, loc *time.Location) (time.Time, time.Time) {
	y, m, _ := ref.Date()
	index := int64(y)*12 + int64(m) - 1
	index -= floorMod(index, int64(interval))

	sy := int(floorDiv(index, 12))
	sm := time.Month(floorMod(index, 12) + 1)
	start := time.Date(sy, sm, 1, 0, 0, 0, 0, loc)
	end := time.Date(sy, sm+time.Month(interval), 1, 0, 0, 0, 0, loc)
	return start, end
}

// dayNumber returns the civil day count since 1970-01-01 for a calendar
// date. Out-of-range days are normalized the way time.Date does.
func dayNumber(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func floorDiv(a, n int64) int64 {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

func floorMod(a, n int64) int64 {
	return ((a % n) + n) % n
}
