package ir

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupID_Deterministic(t *testing.T) {
	assert.Equal(t, "act-1__std-1__1709510400000", RollupID("act-1", "std-1", 1709510400000))
	assert.Equal(t, RollupID("a", "s", 42), RollupID("a", "s", 42))
	assert.NotEqual(t, RollupID("a", "s", 42), RollupID("a", "s", 43))
}

func TestMarshalCanonical_SortsKeysAndNormalizes(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"unit":     "week",
		"interval": 2,
		"label":    "café <&>",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"interval":2,"label":"café <&>","unit":"week"}`, string(got))
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestCadenceFingerprint(t *testing.T) {
	weekly := Cadence{Interval: 1, Unit: CadenceWeek}

	base, err := CadenceFingerprint(weekly, nil)
	require.NoError(t, err)
	assert.Len(t, base, 64)

	explicitDefault, err := CadenceFingerprint(weekly, &PeriodStartPreference{Mode: PeriodStartDefault, WeekDay: time.Friday})
	require.NoError(t, err)
	assert.Equal(t, base, explicitDefault)

	sunday, err := CadenceFingerprint(weekly, &PeriodStartPreference{Mode: PeriodStartWeekDay, WeekDay: time.Sunday})
	require.NoError(t, err)
	assert.NotEqual(t, base, sunday)

	biweekly, err := CadenceFingerprint(Cadence{Interval: 2, Unit: CadenceWeek}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base, biweekly)

	// Week-day preferences only shape weekly windows.
	monthly, err := CadenceFingerprint(Cadence{Interval: 1, Unit: CadenceMonth}, nil)
	require.NoError(t, err)
	monthlySunday, err := CadenceFingerprint(Cadence{Interval: 1, Unit: CadenceMonth}, &PeriodStartPreference{Mode: PeriodStartWeekDay})
	require.NoError(t, err)
	assert.Equal(t, monthly, monthlySunday)
}

func TestRollupValidate(t *testing.T) {
	valid := Rollup{
		ID:               "a__s__100",
		StandardID:       "s",
		PeriodStartMs:    100,
		PeriodEndMs:      200,
		StandardSnapshot: StandardSnapshot{Cadence: Cadence{Interval: 1, Unit: CadenceDay}},
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.StandardID = ""
	missing.StandardSnapshot = StandardSnapshot{}
	err := missing.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRollup))
	assert.Contains(t, err.Error(), "standard_id")
	assert.Contains(t, err.Error(), "standard_snapshot.cadence")

	inverted := valid
	inverted.PeriodEndMs = 50
	assert.ErrorIs(t, inverted.Validate(), ErrMalformedRollup)
}

func TestStandardSummaryAndActivity(t *testing.T) {
	s := Standard{Minimum: 2.5, Unit: "km", Cadence: Cadence{Interval: 2, Unit: CadenceWeek}, State: StateActive}
	assert.Equal(t, "2.5 km / 2 weeks", s.Summary())
	assert.True(t, s.IsActive())

	s.State = StateArchived
	assert.False(t, s.IsActive())

	s.State = StateActive
	s.DeletedAtMs = Int64Ptr(1)
	assert.False(t, s.IsActive())
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("boundary")
	require.NoError(t, err)
	assert.Equal(t, SourceBoundary, src)

	_, err = ParseSource("manual")
	assert.Error(t, err)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
