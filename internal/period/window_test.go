package period

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

var (
	daily     = ir.Cadence{Interval: 1, Unit: ir.CadenceDay}
	weekly    = ir.Cadence{Interval: 1, Unit: ir.CadenceWeek}
	monthly   = ir.Cadence{Interval: 1, Unit: ir.CadenceMonth}
	biweekly  = ir.Cadence{Interval: 2, Unit: ir.CadenceWeek}
	threeDays = ir.Cadence{Interval: 3, Unit: ir.CadenceDay}
	quarterly = ir.Cadence{Interval: 3, Unit: ir.CadenceMonth}
)

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestComputeWindow_Day(t *testing.T) {
	w := ComputeWindow(ms("2024-03-13T15:30:00Z"), daily, time.UTC, nil)

	assert.Equal(t, ms("2024-03-13T00:00:00Z"), w.StartMs)
	assert.Equal(t, ms("2024-03-14T00:00:00Z"), w.EndMs)
	assert.Equal(t, "2024-03-13", w.PeriodKey)
	assert.Equal(t, "Mar 13, 2024", w.Label)
}

func TestComputeWindow_WeekDefaultsToMonday(t *testing.T) {
	// 2024-03-13 is a Wednesday.
	w := ComputeWindow(ms("2024-03-13T12:00:00Z"), weekly, time.UTC, nil)

	assert.Equal(t, ms("2024-03-11T00:00:00Z"), w.StartMs)
	assert.Equal(t, ms("2024-03-18T00:00:00Z"), w.EndMs)
	assert.Equal(t, "2024-03-11", w.PeriodKey)
	assert.Equal(t, "Mar 11 - Mar 17, 2024", w.Label)
}

func TestComputeWindow_WeekDayPreference(t *testing.T) {
	sunday := &ir.PeriodStartPreference{Mode: ir.PeriodStartWeekDay, WeekDay: time.Sunday}
	w := ComputeWindow(ms("2024-03-13T12:00:00Z"), weekly, time.UTC, sunday)

	assert.Equal(t, ms("2024-03-10T00:00:00Z"), w.StartMs)
	assert.Equal(t, ms("2024-03-17T00:00:00Z"), w.EndMs)
}

func TestComputeWindow_WeekDayPreferenceOnTheDay(t *testing.T) {
	wednesday := &ir.PeriodStartPreference{Mode: ir.PeriodStartWeekDay, WeekDay: time.Wednesday}
	w := ComputeWindow(ms("2024-03-13T00:00:00Z"), weekly, time.UTC, wednesday)

	assert.Equal(t, ms("2024-03-13T00:00:00Z"), w.StartMs)
	assert.Equal(t, ms("2024-03-20T00:00:00Z"), w.EndMs)
}

func TestComputeWindow_DefaultModeIgnoresWeekDay(t *testing.T) {
	pref := &ir.PeriodStartPreference{Mode: ir.PeriodStartDefault, WeekDay: time.Friday}
	w := ComputeWindow(ms("2024-03-13T12:00:00Z"), weekly, time.UTC, pref)

	assert.Equal(t, ms("2024-03-11T00:00:00Z"), w.StartMs)
}

func TestComputeWindow_Month(t *testing.T) {
	w := ComputeWindow(ms("2024-02-29T23:00:00Z"), monthly, time.UTC, nil)

	assert.Equal(t, ms("2024-02-01T00:00:00Z"), w.StartMs)
	assert.Equal(t, ms("2024-03-01T00:00:00Z"), w.EndMs)
	assert.Equal(t, "2024-02", w.PeriodKey)
	assert.Equal(t, "February 2024", w.Label)
}

func TestComputeWindow_TimezoneMovesBoundaryOnly(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00Z on Monday 2024-03-11 is still Sunday evening in New York, one
	// day after the DST switch.
	w := ComputeWindow(ms("2024-03-11T03:00:00Z"), weekly, ny, nil)

	assert.Equal(t, ms("2024-03-04T05:00:00Z"), w.StartMs, "Monday midnight EST")
	assert.Equal(t, ms("2024-03-11T04:00:00Z"), w.EndMs, "Monday midnight EDT")
	assert.Equal(t, 167*time.Hour, time.Duration(w.EndMs-w.StartMs)*time.Millisecond)

	utc := ComputeWindow(ms("2024-03-11T03:00:00Z"), weekly, time.UTC, nil)
	assert.Equal(t, ms("2024-03-11T00:00:00Z"), utc.StartMs)
}

func TestComputeWindow_MultiIntervalAlignment(t *testing.T) {
	tests := []struct {
		name      string
		cadence   ir.Cadence
		ref       string
		wantStart string
		wantEnd   string
		wantLabel string
	}{
		{"two weeks", biweekly, "2024-03-13T12:00:00Z", "2024-03-04T00:00:00Z", "2024-03-18T00:00:00Z", "Mar 4 - Mar 17, 2024"},
		{"two weeks earlier ref", biweekly, "2024-03-05T08:00:00Z", "2024-03-04T00:00:00Z", "2024-03-18T00:00:00Z", "Mar 4 - Mar 17, 2024"},
		{"three days", threeDays, "2024-03-13T12:00:00Z", "2024-03-12T00:00:00Z", "2024-03-15T00:00:00Z", "Mar 12 - Mar 14, 2024"},
		{"quarter", quarterly, "2024-05-15T12:00:00Z", "2024-04-01T00:00:00Z", "2024-07-01T00:00:00Z", "Apr - Jun 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindow(ms(tt.ref), tt.cadence, time.UTC, nil)
			assert.Equal(t, ms(tt.wantStart), w.StartMs)
			assert.Equal(t, ms(tt.wantEnd), w.EndMs)
			assert.Equal(t, tt.wantLabel, w.Label)
		})
	}
}

func TestComputeWindow_LabelsAcrossYears(t *testing.T) {
	week := ComputeWindow(ms("2024-12-31T12:00:00Z"), weekly, time.UTC, nil)
	assert.Equal(t, "Dec 30, 2024 - Jan 5, 2025", week.Label)

	months := ComputeWindow(ms("2024-12-15T12:00:00Z"), ir.Cadence{Interval: 2, Unit: ir.CadenceMonth}, time.UTC, nil)
	assert.Equal(t, "Nov - Dec 2024", months.Label)
	assert.Equal(t, "2024-11", months.PeriodKey)

	spanning := ComputeWindow(ms("2024-12-15T12:00:00Z"), ir.Cadence{Interval: 7, Unit: ir.CadenceMonth}, time.UTC, nil)
	assert.Equal(t, ms("2024-10-01T00:00:00Z"), spanning.StartMs)
	assert.Equal(t, ms("2025-05-01T00:00:00Z"), spanning.EndMs)
	assert.Equal(t, "Oct 2024 - Apr 2025", spanning.Label)
}

func TestComputeWindow_Pure(t *testing.T) {
	ref := ms("2024-03-13T12:00:00Z")
	for _, c := range []ir.Cadence{daily, weekly, monthly, biweekly, threeDays, quarterly} {
		assert.Equal(t, ComputeWindow(ref, c, time.UTC, nil), ComputeWindow(ref, c, time.UTC, nil), c.String())
	}
}

// Walking from each window's end must produce contiguous windows that each
// contain their reference and agree with the window computed from inside.
func TestComputeWindow_WalkIsContiguous(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	saturday := &ir.PeriodStartPreference{Mode: ir.PeriodStartWeekDay, WeekDay: time.Saturday}

	cadences := []ir.Cadence{daily, weekly, monthly, biweekly, threeDays, quarterly}
	for _, c := range cadences {
		for _, pref := range []*ir.PeriodStartPreference{nil, saturday} {
			t.Run(c.String(), func(t *testing.T) {
				ref := ms("2023-10-17T09:00:00Z")
				prev := ComputeWindow(ref, c, ny, pref)
				require.True(t, prev.Contains(ref))

				for i := 0; i < 60; i++ {
					next := ComputeWindow(prev.EndMs, c, ny, pref)
					require.Equal(t, prev.EndMs, next.StartMs, "window %d", i)
					require.Greater(t, next.EndMs, next.StartMs)

					mid := next.StartMs + (next.EndMs-next.StartMs)/2
					require.Equal(t, next, ComputeWindow(mid, c, ny, pref))
					require.Equal(t, next, ComputeWindow(next.EndMs-1, c, ny, pref))
					prev = next
				}
			})
		}
	}
}

func TestComputeWindow_Total(t *testing.T) {
	ref := ms("2024-03-13T12:00:00Z")

	zero := ComputeWindow(ref, ir.Cadence{Interval: 0, Unit: ir.CadenceWeek}, nil, nil)
	assert.Equal(t, ComputeWindow(ref, weekly, time.UTC, nil), zero)

	unknown := ComputeWindow(ref, ir.Cadence{Interval: 1, Unit: "fortnight"}, time.UTC, nil)
	assert.Equal(t, ms("2024-03-13T00:00:00Z"), unknown.StartMs)

	badDay := &ir.PeriodStartPreference{Mode: ir.PeriodStartWeekDay, WeekDay: time.Weekday(9)}
	assert.Equal(t, ms("2024-03-11T00:00:00Z"), ComputeWindow(ref, weekly, time.UTC, badDay).StartMs)

	early := ComputeWindow(ms("1969-12-30T12:00:00Z"), biweekly, time.UTC, nil)
	assert.True(t, early.Contains(ms("1969-12-30T12:00:00Z")))
}

func TestNextBoundary(t *testing.T) {
	got := NextBoundary(ms("2024-03-13T12:00:00Z"), weekly, time.UTC, nil)
	assert.Equal(t, ms("2024-03-18T00:00:00Z"), got)
}
