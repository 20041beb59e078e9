package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong_expectations
now: 2024-03-04T08:00:00Z
standards:
  - id: walk
    minimum: 60
    unit: min
    cadence: 1w
steps:
  - advance: 220h
  - catch_up: resume
expect:
  rollup_count: 3
  rollups:
    - standard: walk
      period_key: "2024-03-04"
      status: Met
    - standard: walk
      period_key: "2024-02-26"
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Expected: 3 rollup(s)")
	assert.Contains(t, result.Errors[1], `status: want "Met", got "Missed"`)
	assert.Contains(t, result.Errors[2], "not found")
	assert.Len(t, result.Trace, 1)
}

func TestRun_StepErrors(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: step_errors
now: 2024-03-13T12:00:00Z
standards:
  - id: walk
    minimum: 60
    unit: min
    cadence: 1w
steps:
  - delete_log: missing
  - catch_up: resume
    expect_error: boom
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "step 1 (delete_log): unexpected error")
	assert.Contains(t, result.Errors[1], `step 2 (catch_up): expected error containing "boom", got none`)
}

func TestRun_TraceRecordsStep(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: trace_steps
now: 2024-03-11T08:00:00Z
standards:
  - id: walk
    minimum: 60
    unit: min
    cadence: 1w
steps:
  - add_log:
      id: walk-1
      standard: walk
      value: 60
      at: 2024-03-11T07:00:00Z
  - delete_log: walk-1
  - restore_log: walk-1
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{result.Trace[0].Step, result.Trace[1].Step, result.Trace[2].Step})
	assert.Equal(t, ir.StatusMet, result.Trace[0].Status)
	assert.Equal(t, ir.StatusInProgress, result.Trace[1].Status)
	assert.Equal(t, ir.StatusMet, result.Trace[2].Status)
	assert.Equal(t, ir.SourceLogEdit, result.Trace[2].Source)
	assert.Equal(t, ir.Millis(time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)), result.Trace[2].GeneratedAtMs)
}

func TestFormatTrace(t *testing.T) {
	trace := []TraceEvent{{
		Seq:             1,
		Step:            2,
		StandardID:      "walk",
		PeriodKey:       "2024-03-11",
		Total:           20,
		CurrentSessions: 1,
		Status:          ir.StatusInProgress,
		ProgressPercent: 33.33,
		Source:          ir.SourceLogEdit,
		GeneratedAtMs:   ir.Millis(time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)),
	}}

	assert.Equal(t,
		"scenario: demo\n"+
			`[1] step=2 walk 2024-03-11 total=20 sessions=1 status="In Progress" progress=33.33 source=log-edit at=2024-03-12T12:00:00Z`+"\n",
		string(FormatTrace("demo", trace)))
}
