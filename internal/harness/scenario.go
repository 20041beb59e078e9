package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
)

// Scenario defines an end-to-end run: standards and logs to start from,
// steps to apply, and the rollups expected at the end.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone is the IANA zone boundaries are placed in. Default UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Now is the frozen clock's starting instant.
	Now time.Time `yaml:"now"`

	Standards []StandardFixture `yaml:"standards"`
	Logs      []LogFixture      `yaml:"logs,omitempty"`
	Steps     []Step            `yaml:"steps"`
	Expect    Expect            `yaml:"expect"`
}

// StandardFixture declares a standard.
type StandardFixture struct {
	ID         string  `yaml:"id"`
	ActivityID string  `yaml:"activity_id,omitempty"`
	Minimum    float64 `yaml:"minimum"`
	Unit       string  `yaml:"unit"`

	// Cadence is compact: "1d", "2w", "1m".
	Cadence string `yaml:"cadence"`

	// WeekStart overrides Monday alignment for weekly cadences.
	WeekStart string `yaml:"week_start,omitempty"`

	Sessions int     `yaml:"sessions,omitempty"`
	Volume   float64 `yaml:"volume,omitempty"`

	// Archived standards are created, then archived.
	Archived bool `yaml:"archived,omitempty"`
}

// LogFixture declares a log entry.
type LogFixture struct {
	ID       string    `yaml:"id"`
	Standard string    `yaml:"standard"`
	Value    float64   `yaml:"value"`
	At       time.Time `yaml:"at"`
	Note     string    `yaml:"note,omitempty"`
}

// LogEditStep changes fields of an existing log entry.
type LogEditStep struct {
	ID    string     `yaml:"id"`
	Value *float64   `yaml:"value,omitempty"`
	At    *time.Time `yaml:"at,omitempty"`
}

// Step is one action. Exactly one action field must be set.
type Step struct {
	CatchUp         string           `yaml:"catch_up,omitempty"`
	Advance         time.Duration    `yaml:"advance,omitempty"`
	AddLog          *LogFixture      `yaml:"add_log,omitempty"`
	EditLog         *LogEditStep     `yaml:"edit_log,omitempty"`
	DeleteLog       string           `yaml:"delete_log,omitempty"`
	RestoreLog      string           `yaml:"restore_log,omitempty"`
	UpdateStandard  *StandardFixture `yaml:"update_standard,omitempty"`
	ArchiveStandard string           `yaml:"archive_standard,omitempty"`

	// ExpectError is a substring the step's error must contain.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Action names the step's action, for messages and validation.
func (s Step) Action() string {
	var names []string
	if s.CatchUp != "" {
		names = append(names, "catch_up")
	}
	if s.Advance != 0 {
		names = append(names, "advance")
	}
	if s.AddLog != nil {
		names = append(names, "add_log")
	}
	if s.EditLog != nil {
		names = append(names, "edit_log")
	}
	if s.DeleteLog != "" {
		names = append(names, "delete_log")
	}
	if s.RestoreLog != "" {
		names = append(names, "restore_log")
	}
	if s.UpdateStandard != nil {
		names = append(names, "update_standard")
	}
	if s.ArchiveStandard != "" {
		names = append(names, "archive_standard")
	}
	return strings.Join(names, "+")
}

// Expect holds the assertions evaluated after the last step.
type Expect struct {
	// RollupCount is the total number of persisted rollups, if set.
	RollupCount *int `yaml:"rollup_count,omitempty"`

	// Rollups must each match one persisted rollup (subset match).
	Rollups []RollupExpect `yaml:"rollups,omitempty"`
}

// RollupExpect matches a rollup by standard and period key. Unset fields
// are not compared.
type RollupExpect struct {
	Standard        string   `yaml:"standard"`
	PeriodKey       string   `yaml:"period_key"`
	Total           *float64 `yaml:"total,omitempty"`
	CurrentSessions *int     `yaml:"current_sessions,omitempty"`
	Status          string   `yaml:"status,omitempty"`
	ProgressPercent *float64 `yaml:"progress_percent,omitempty"`
	Source          string   `yaml:"source,omitempty"`
	Finalized       *bool    `yaml:"finalized,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Now.IsZero() {
		errs = append(errs, errors.New("now is required"))
	}
	if _, err := period.LoadLocation(s.Timezone); err != nil {
		errs = append(errs, err)
	}

	standards := make(map[string]bool, len(s.Standards))
	for i, std := range s.Standards {
		if err := validateStandardFixture(std); err != nil {
			errs = append(errs, fmt.Errorf("standards[%d]: %w", i, err))
		}
		if standards[std.ID] {
			errs = append(errs, fmt.Errorf("standards[%d]: duplicate id %q", i, std.ID))
		}
		standards[std.ID] = true
	}

	for i, l := range s.Logs {
		if err := validateLogFixture(l, standards); err != nil {
			errs = append(errs, fmt.Errorf("logs[%d]: %w", i, err))
		}
	}

	for i, step := range s.Steps {
		action := step.Action()
		if action == "" {
			errs = append(errs, fmt.Errorf("steps[%d]: no action", i))
			continue
		}
		if strings.Contains(action, "+") {
			errs = append(errs, fmt.Errorf("steps[%d]: multiple actions %s", i, action))
			continue
		}
		if step.CatchUp != "" {
			if _, err := ir.ParseSource(step.CatchUp); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
			}
		}
		if step.Advance < 0 {
			errs = append(errs, fmt.Errorf("steps[%d]: advance must be positive", i))
		}
		if step.AddLog != nil {
			if err := validateLogFixture(*step.AddLog, standards); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
			}
		}
		if step.UpdateStandard != nil {
			if err := validateStandardFixture(*step.UpdateStandard); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
			}
		}
	}

	for i, r := range s.Expect.Rollups {
		if r.Standard == "" || r.PeriodKey == "" {
			errs = append(errs, fmt.Errorf("expect.rollups[%d]: standard and period_key are required", i))
		}
	}

	return errors.Join(errs...)
}

func validateStandardFixture(std StandardFixture) error {
	if std.ID == "" {
		return errors.New("id is required")
	}
	if _, err := period.ParseCadence(std.Cadence); err != nil {
		return err
	}
	if _, err := period.ParseWeekStart(std.WeekStart); err != nil {
		return err
	}
	return nil
}

func validateLogFixture(l LogFixture, standards map[string]bool) error {
	if l.ID == "" {
		return errors.New("log id is required")
	}
	if !standards[l.Standard] {
		return fmt.Errorf("log %s: unknown standard %q", l.ID, l.Standard)
	}
	if l.At.IsZero() {
		return fmt.Errorf("log %s: at is required", l.ID)
	}
	return nil
}
