package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// PutBaseline records or replaces a standard's catch-up baseline.
func (s *Store) PutBaseline(ctx context.Context, userID string, b ir.Baseline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (user_id, standard_id, start_ms, fingerprint, created_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, standard_id) DO UPDATE SET
			start_ms = excluded.start_ms,
			fingerprint = excluded.fingerprint,
			created_at_ms = excluded.created_at_ms
	`, userID, b.StandardID, b.StartMs, b.Fingerprint, b.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("put baseline: %w", err)
	}
	return nil
}

// GetBaseline returns a standard's baseline, or nil when none is recorded.
func (s *Store) GetBaseline(ctx context.Context, userID, standardID string) (*ir.Baseline, error) {
	var b ir.Baseline
	err := s.db.QueryRowContext(ctx, `
		SELECT standard_id, start_ms, fingerprint, created_at_ms
		FROM baselines
		WHERE user_id = ? AND standard_id = ?
	`, userID, standardID).Scan(&b.StandardID, &b.StartMs, &b.Fingerprint, &b.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	return &b, nil
}
