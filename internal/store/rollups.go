package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

const rollupColumns = `id, activity_id, standard_id, period_start_ms, period_end_ms,
	period_label, period_key, standard_snapshot, total, current_sessions,
	target_sessions, status, progress_percent, generated_at_ms, source`

// UpsertRollup writes a rollup with merge semantics keyed by its
// deterministic id. A second write for the same period overwrites every
// field; it never adds a row.
func (s *Store) UpsertRollup(ctx context.Context, userID string, r ir.Rollup) error {
	snapJSON, err := marshalSnapshot(r.StandardSnapshot)
	if err != nil {
		return fmt.Errorf("upsert rollup: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rollups
		(user_id, id, activity_id, standard_id, period_start_ms, period_end_ms,
		 period_label, period_key, standard_snapshot, total, current_sessions,
		 target_sessions, status, progress_percent, generated_at_ms, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			activity_id = excluded.activity_id,
			standard_id = excluded.standard_id,
			period_start_ms = excluded.period_start_ms,
			period_end_ms = excluded.period_end_ms,
			period_label = excluded.period_label,
			period_key = excluded.period_key,
			standard_snapshot = excluded.standard_snapshot,
			total = excluded.total,
			current_sessions = excluded.current_sessions,
			target_sessions = excluded.target_sessions,
			status = excluded.status,
			progress_percent = excluded.progress_percent,
			generated_at_ms = excluded.generated_at_ms,
			source = excluded.source
	`,
		userID,
		r.ID,
		r.ActivityID,
		r.StandardID,
		r.PeriodStartMs,
		r.PeriodEndMs,
		r.PeriodLabel,
		r.PeriodKey,
		snapJSON,
		r.Total,
		r.CurrentSessions,
		r.TargetSessions,
		string(r.Status),
		r.ProgressPercent,
		r.GeneratedAtMs,
		string(r.Source),
	)
	if err != nil {
		return fmt.Errorf("upsert rollup: %w", err)
	}
	return nil
}

// GetRollup returns one rollup by id. A malformed row is an error wrapping
// ir.ErrMalformedRollup.
func (s *Store) GetRollup(ctx context.Context, userID, id string) (ir.Rollup, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+rollupColumns+`
		FROM rollups
		WHERE user_id = ? AND id = ?
	`, userID, id)

	r, err := scanRollup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Rollup{}, fmt.Errorf("get rollup %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Rollup{}, fmt.Errorf("get rollup: %w", err)
	}
	return r, nil
}

// LatestRollup returns the rollup with the greatest period start for a
// standard, or nil when none exists.
//
// A malformed latest row is treated as absence: it is logged and nil is
// returned, so catch-up restarts from the current period.
func (s *Store) LatestRollup(ctx context.Context, userID, standardID string) (*ir.Rollup, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+rollupColumns+`
		FROM rollups
		WHERE user_id = ? AND standard_id = ?
		ORDER BY period_start_ms DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, userID, standardID)

	r, err := scanRollup(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case errors.Is(err, ir.ErrMalformedRollup):
		s.logger.Warn("ignoring malformed rollup",
			"standard_id", standardID,
			"error", err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("latest rollup: %w", err)
	}
	return &r, nil
}

// ListRollups returns a standard's rollups in period order. Malformed rows
// are logged and skipped.
func (s *Store) ListRollups(ctx context.Context, userID, standardID string) ([]ir.Rollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rollupColumns+`
		FROM rollups
		WHERE user_id = ? AND standard_id = ?
		ORDER BY period_start_ms ASC, id COLLATE BINARY ASC
	`, userID, standardID)
	if err != nil {
		return nil, fmt.Errorf("list rollups: %w", err)
	}
	defer rows.Close()

	rollups := []ir.Rollup{}
	for rows.Next() {
		r, err := scanRollup(rows)
		if errors.Is(err, ir.ErrMalformedRollup) {
			s.logger.Warn("skipping malformed rollup",
				"standard_id", standardID,
				"error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		rollups = append(rollups, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollups: %w", err)
	}
	return rollups, nil
}

// scanRollup reads one row. NULL columns decode to zero values; the result
// is then checked with ir.Rollup.Validate.
func scanRollup(row rowScanner) (ir.Rollup, error) {
	var (
		r         ir.Rollup
		activity  sql.NullString
		standard  sql.NullString
		startMs   sql.NullInt64
		endMs     sql.NullInt64
		label     sql.NullString
		key       sql.NullString
		snapshot  sql.NullString
		total     sql.NullFloat64
		current   sql.NullInt64
		target    sql.NullInt64
		status    sql.NullString
		progress  sql.NullFloat64
		generated sql.NullInt64
		source    sql.NullString
	)
	if err := row.Scan(
		&r.ID, &activity, &standard, &startMs, &endMs, &label, &key, &snapshot,
		&total, &current, &target, &status, &progress, &generated, &source,
	); err != nil {
		return ir.Rollup{}, err
	}

	r.ActivityID = activity.String
	r.StandardID = standard.String
	r.PeriodStartMs = startMs.Int64
	r.PeriodEndMs = endMs.Int64
	r.PeriodLabel = label.String
	r.PeriodKey = key.String
	r.Total = total.Float64
	r.CurrentSessions = int(current.Int64)
	r.TargetSessions = int(target.Int64)
	r.Status = ir.Status(status.String)
	r.ProgressPercent = progress.Float64
	r.GeneratedAtMs = generated.Int64
	r.Source = ir.Source(source.String)

	snap, err := unmarshalSnapshot(snapshot.String)
	if err != nil {
		return ir.Rollup{}, fmt.Errorf("rollup %s: %w", r.ID, err)
	}
	r.StandardSnapshot = snap

	if !startMs.Valid {
		return ir.Rollup{}, fmt.Errorf("rollup %s: %w: missing period_start_ms", r.ID, ir.ErrMalformedRollup)
	}
	if err := r.Validate(); err != nil {
		return ir.Rollup{}, fmt.Errorf("rollup %s: %w", r.ID, err)
	}
	return r, nil
}
