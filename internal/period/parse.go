package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/roach88/cadence/internal/ir"
)

// ParseCadence parses a compact cadence: "1d", "2w", "3m", or a bare unit
// name ("day", "week", "month").
func ParseCadence(s string) (ir.Cadence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch ir.CadenceUnit(s) {
	case ir.CadenceDay, ir.CadenceWeek, ir.CadenceMonth:
		return ir.Cadence{Interval: 1, Unit: ir.CadenceUnit(s)}, nil
	}
	if len(s) < 2 {
		return ir.Cadence{}, fmt.Errorf("invalid cadence %q: expected <n>d, <n>w or <n>m", s)
	}

	var unit ir.CadenceUnit
	switch s[len(s)-1] {
	case 'd':
		unit = ir.CadenceDay
	case 'w':
		unit = ir.CadenceWeek
	case 'm':
		unit = ir.CadenceMonth
	default:
		return ir.Cadence{}, fmt.Errorf("invalid cadence %q: unknown unit %q", s, s[len(s)-1:])
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 {
		return ir.Cadence{}, fmt.Errorf("invalid cadence %q: interval must be a positive integer", s)
	}
	return ir.Cadence{Interval: n, Unit: unit}, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekStart parses a weekday name into a period-start preference.
// An empty string or "default" yields nil (Monday alignment).
func ParseWeekStart(s string) (*ir.PeriodStartPreference, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(ir.PeriodStartDefault) {
		return nil, nil
	}
	wd, ok := weekdays[s]
	if !ok {
		return nil, fmt.Errorf("invalid week start %q", s)
	}
	return &ir.PeriodStartPreference{Mode: ir.PeriodStartWeekDay, WeekDay: wd}, nil
}

// LoadLocation resolves an IANA timezone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
