package ir

import (
	"fmt"
	"strconv"
	"time"
)

// CadenceUnit is the period unit of a cadence.
type CadenceUnit string

const (
	CadenceDay   CadenceUnit = "day"
	CadenceWeek  CadenceUnit = "week"
	CadenceMonth CadenceUnit = "month"
)

// ValidCadenceUnits enumerates the recognised cadence units.
var ValidCadenceUnits = map[CadenceUnit]bool{
	CadenceDay:   true,
	CadenceWeek:  true,
	CadenceMonth: true,
}

// Cadence is the recurrence rule: every Interval Units.
type Cadence struct {
	Interval int         `json:"interval" yaml:"interval" validate:"gte=1,lte=366"`
	Unit     CadenceUnit `json:"unit" yaml:"unit" validate:"oneof=day week month"`
}

// String renders the cadence as "week", "2 weeks", "month".
func (c Cadence) String() string {
	if c.Interval <= 1 {
		return string(c.Unit)
	}
	return fmt.Sprintf("%d %ss", c.Interval, c.Unit)
}

// PeriodStartMode selects how weekly windows are aligned.
type PeriodStartMode string

const (
	// PeriodStartDefault aligns weeks to Monday (ISO 8601).
	PeriodStartDefault PeriodStartMode = "default"
	// PeriodStartWeekDay aligns weeks to PeriodStartPreference.WeekDay.
	PeriodStartWeekDay PeriodStartMode = "weekDay"
)

// PeriodStartPreference optionally overrides the default period alignment.
// Only weekly cadences honour it.
type PeriodStartPreference struct {
	Mode    PeriodStartMode `json:"mode" yaml:"mode" validate:"oneof=default weekDay"`
	WeekDay time.Weekday    `json:"week_day" yaml:"week_day" validate:"gte=0,lte=6"`
}

// LifecycleState is the lifecycle of a standard.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateArchived LifecycleState = "archived"
)

// SessionConfig describes how a standard's target splits into sessions.
type SessionConfig struct {
	SessionsPerCadence int     `json:"sessions_per_cadence" yaml:"sessions_per_cadence" validate:"gte=0"`
	VolumePerSession   float64 `json:"volume_per_session" yaml:"volume_per_session" validate:"gte=0"`
}

// Standard is a recurring quantitative target owned by a user.
type Standard struct {
	ID                    string                 `json:"id"`
	ActivityID            string                 `json:"activity_id"`
	Minimum               float64                `json:"minimum"`
	Unit                  string                 `json:"unit"`
	Cadence               Cadence                `json:"cadence"`
	PeriodStartPreference *PeriodStartPreference `json:"period_start_preference,omitempty"`
	State                 LifecycleState         `json:"state"`
	SessionConfig         SessionConfig          `json:"session_config"`
	CreatedAtMs           int64                  `json:"created_at_ms"`
	UpdatedAtMs           int64                  `json:"updated_at_ms"`
	DeletedAtMs           *int64                 `json:"deleted_at_ms,omitempty"`
}

// IsActive reports whether the standard takes part in catch-up and new
// rollup generation.
func (s Standard) IsActive() bool {
	return s.State != StateArchived && s.DeletedAtMs == nil
}

// Summary renders the target as "100 calls / week".
func (s Standard) Summary() string {
	return fmt.Sprintf("%s %s / %s", FormatQuantity(s.Minimum), s.Unit, s.Cadence)
}

// LogEntry is a single logged occurrence of activity against a standard.
type LogEntry struct {
	ID           string  `json:"id"`
	StandardID   string  `json:"standard_id"`
	Value        float64 `json:"value"`
	OccurredAtMs int64   `json:"occurred_at_ms"`
	Note         string  `json:"note,omitempty"`
	EditedAtMs   *int64  `json:"edited_at_ms,omitempty"`
	DeletedAtMs  *int64  `json:"deleted_at_ms,omitempty"`
}

// IsLive reports whether the entry is not soft-deleted.
func (l LogEntry) IsLive() bool {
	return l.DeletedAtMs == nil
}

// FormatQuantity renders a float without trailing zeros ("100", "2.5").
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts milliseconds since the Unix epoch to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
