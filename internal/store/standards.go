package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/ir"
)

const standardColumns = `id, activity_id, minimum, unit, cadence_interval, cadence_unit,
	period_start_mode, period_start_week_day, state, sessions_per_cadence,
	volume_per_session, created_at_ms, updated_at_ms, deleted_at_ms`

// CreateStandard inserts a new standard for userID.
// Returns ErrAlreadyExists if the id is taken.
func (s *Store) CreateStandard(ctx context.Context, userID string, std ir.Standard) error {
	mode, weekDay := prefColumns(std.PeriodStartPreference)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO standards
		(user_id, id, activity_id, minimum, unit, cadence_interval, cadence_unit,
		 period_start_mode, period_start_week_day, state, sessions_per_cadence,
		 volume_per_session, created_at_ms, updated_at_ms, deleted_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		userID,
		std.ID,
		std.ActivityID,
		std.Minimum,
		std.Unit,
		std.Cadence.Interval,
		string(std.Cadence.Unit),
		mode,
		weekDay,
		string(std.State),
		std.SessionConfig.SessionsPerCadence,
		std.SessionConfig.VolumePerSession,
		std.CreatedAtMs,
		std.UpdatedAtMs,
		nullableInt64(std.DeletedAtMs),
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("create standard %s: %w", std.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create standard: %w", err)
	}
	return nil
}

// UpdateStandard overwrites every mutable field of an existing standard.
// Returns ErrNotFound if the standard does not exist for userID.
func (s *Store) UpdateStandard(ctx context.Context, userID string, std ir.Standard) error {
	mode, weekDay := prefColumns(std.PeriodStartPreference)
	res, err := s.db.ExecContext(ctx, `
		UPDATE standards SET
			activity_id = ?, minimum = ?, unit = ?, cadence_interval = ?, cadence_unit = ?,
			period_start_mode = ?, period_start_week_day = ?, state = ?,
			sessions_per_cadence = ?, volume_per_session = ?, updated_at_ms = ?,
			deleted_at_ms = ?
		WHERE user_id = ? AND id = ?
	`,
		std.ActivityID,
		std.Minimum,
		std.Unit,
		std.Cadence.Interval,
		string(std.Cadence.Unit),
		mode,
		weekDay,
		string(std.State),
		std.SessionConfig.SessionsPerCadence,
		std.SessionConfig.VolumePerSession,
		std.UpdatedAtMs,
		nullableInt64(std.DeletedAtMs),
		userID,
		std.ID,
	)
	if err != nil {
		return fmt.Errorf("update standard: %w", err)
	}
	return requireAffected(res, "update standard", std.ID)
}

// GetStandard returns one standard, including archived and deleted ones.
func (s *Store) GetStandard(ctx context.Context, userID, id string) (ir.Standard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+standardColumns+`
		FROM standards
		WHERE user_id = ? AND id = ?
	`, userID, id)

	std, err := scanStandard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Standard{}, fmt.Errorf("get standard %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Standard{}, fmt.Errorf("get standard: %w", err)
	}
	return std, nil
}

// ListStandards returns the user's standards ordered by creation.
// Archived and soft-deleted standards are included only when all is true.
func (s *Store) ListStandards(ctx context.Context, userID string, all bool) ([]ir.Standard, error) {
	query := `
		SELECT ` + standardColumns + `
		FROM standards
		WHERE user_id = ?`
	if !all {
		query += ` AND state = 'active' AND deleted_at_ms IS NULL`
	}
	query += `
		ORDER BY created_at_ms ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query standards: %w", err)
	}
	defer rows.Close()

	standards := []ir.Standard{}
	for rows.Next() {
		std, err := scanStandard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan standard: %w", err)
		}
		standards = append(standards, std)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate standards: %w", err)
	}
	return standards, nil
}

// ActiveStandards returns the standards that take part in catch-up.
func (s *Store) ActiveStandards(ctx context.Context, userID string) ([]ir.Standard, error) {
	return s.ListStandards(ctx, userID, false)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStandard(row rowScanner) (ir.Standard, error) {
	var (
		std       ir.Standard
		cadUnit   string
		state     string
		mode      sql.NullString
		weekDay   sql.NullInt64
		deletedAt sql.NullInt64
	)
	if err := row.Scan(
		&std.ID, &std.ActivityID, &std.Minimum, &std.Unit,
		&std.Cadence.Interval, &cadUnit, &mode, &weekDay, &state,
		&std.SessionConfig.SessionsPerCadence, &std.SessionConfig.VolumePerSession,
		&std.CreatedAtMs, &std.UpdatedAtMs, &deletedAt,
	); err != nil {
		return ir.Standard{}, err
	}
	std.Cadence.Unit = ir.CadenceUnit(cadUnit)
	std.State = ir.LifecycleState(state)
	if mode.Valid {
		std.PeriodStartPreference = &ir.PeriodStartPreference{
			Mode:    ir.PeriodStartMode(mode.String),
			WeekDay: time.Weekday(weekDay.Int64),
		}
	}
	if deletedAt.Valid {
		std.DeletedAtMs = ir.Int64Ptr(deletedAt.Int64)
	}
	return std, nil
}

func prefColumns(pref *ir.PeriodStartPreference) (any, any) {
	if pref == nil {
		return nil, nil
	}
	return string(pref.Mode), int(pref.WeekDay)
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}
