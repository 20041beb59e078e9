package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

const logColumns = `id, standard_id, value, occurred_at_ms, note, edited_at_ms, deleted_at_ms`

// InsertLog records a new log entry.
// The referenced standard must exist for userID (foreign key constraint).
func (s *Store) InsertLog(ctx context.Context, userID string, entry ir.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries
		(user_id, id, standard_id, value, occurred_at_ms, note, edited_at_ms, deleted_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		userID,
		entry.ID,
		entry.StandardID,
		entry.Value,
		entry.OccurredAtMs,
		entry.Note,
		nullableInt64(entry.EditedAtMs),
		nullableInt64(entry.DeletedAtMs),
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert log %s: %w", entry.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// UpdateLog overwrites the value, instant, note and edited-at of a log entry.
func (s *Store) UpdateLog(ctx context.Context, userID string, entry ir.LogEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE log_entries SET
			value = ?, occurred_at_ms = ?, note = ?, edited_at_ms = ?
		WHERE user_id = ? AND id = ?
	`,
		entry.Value,
		entry.OccurredAtMs,
		entry.Note,
		nullableInt64(entry.EditedAtMs),
		userID,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update log: %w", err)
	}
	return requireAffected(res, "update log", entry.ID)
}

// SetLogDeleted soft-deletes (deletedAtMs != nil) or restores (nil) a log
// entry. Rows are never physically removed.
func (s *Store) SetLogDeleted(ctx context.Context, userID, id string, deletedAtMs *int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE log_entries SET deleted_at_ms = ?
		WHERE user_id = ? AND id = ?
	`, nullableInt64(deletedAtMs), userID, id)
	if err != nil {
		return fmt.Errorf("set log deleted: %w", err)
	}
	return requireAffected(res, "set log deleted", id)
}

// GetLog returns one log entry, live or soft-deleted.
func (s *Store) GetLog(ctx context.Context, userID, id string) (ir.LogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+logColumns+`
		FROM log_entries
		WHERE user_id = ? AND id = ?
	`, userID, id)

	entry, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.LogEntry{}, fmt.Errorf("get log %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.LogEntry{}, fmt.Errorf("get log: %w", err)
	}
	return entry, nil
}

// QueryLogs returns the live log entries of one standard whose occurred-at
// instant lies in [startMs, endMs). Soft-deleted entries are excluded.
// Results ordered by occurred_at_ms ASC, id ASC.
func (s *Store) QueryLogs(ctx context.Context, userID, standardID string, startMs, endMs int64) ([]ir.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM log_entries
		WHERE user_id = ? AND standard_id = ?
		  AND occurred_at_ms >= ? AND occurred_at_ms < ?
		  AND deleted_at_ms IS NULL
		ORDER BY occurred_at_ms ASC, id COLLATE BINARY ASC
	`, userID, standardID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	return collectLogs(rows)
}

// ListLogs returns every log entry of a standard, newest first.
// Soft-deleted entries are included only when all is true.
func (s *Store) ListLogs(ctx context.Context, userID, standardID string, all bool) ([]ir.LogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM log_entries
		WHERE user_id = ? AND standard_id = ?`
	if !all {
		query += ` AND deleted_at_ms IS NULL`
	}
	query += `
		ORDER BY occurred_at_ms DESC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, standardID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return collectLogs(rows)
}

func collectLogs(rows *sql.Rows) ([]ir.LogEntry, error) {
	defer rows.Close()

	entries := []ir.LogEntry{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

func scanLog(row rowScanner) (ir.LogEntry, error) {
	var (
		entry     ir.LogEntry
		editedAt  sql.NullInt64
		deletedAt sql.NullInt64
	)
	if err := row.Scan(
		&entry.ID, &entry.StandardID, &entry.Value, &entry.OccurredAtMs,
		&entry.Note, &editedAt, &deletedAt,
	); err != nil {
		return ir.LogEntry{}, err
	}
	if editedAt.Valid {
		entry.EditedAtMs = ir.Int64Ptr(editedAt.Int64)
	}
	if deletedAt.Valid {
		entry.DeletedAtMs = ir.Int64Ptr(deletedAt.Int64)
	}
	return entry, nil
}
