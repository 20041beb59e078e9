package tracker

import (
	"context"
	"fmt"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/ir"
)

// LogInput is a new log entry.
type LogInput struct {
	StandardID   string  `json:"standard_id" validate:"required"`
	Value        float64 `json:"value" validate:"gte=0"`
	OccurredAtMs int64   `json:"occurred_at_ms" validate:"gt=0"`
	Note         string  `json:"note" validate:"max=500"`
}

// LogEdit changes some fields of a log entry. Nil fields are kept.
type LogEdit struct {
	Value        *float64 `json:"value" validate:"omitempty,gte=0"`
	OccurredAtMs *int64   `json:"occurred_at_ms" validate:"omitempty,gt=0"`
	Note         *string  `json:"note" validate:"omitempty,max=500"`
}

// AddLog records a log entry against an active standard and publishes
// MutationCreate.
func (s *Service) AddLog(ctx context.Context, in LogInput) (ir.LogEntry, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return ir.LogEntry{}, err
	}
	if err := validateInput("add log", in); err != nil {
		return ir.LogEntry{}, err
	}
	if _, err := s.activeStandard(ctx, userID, in.StandardID); err != nil {
		return ir.LogEntry{}, err
	}

	entry := ir.LogEntry{
		ID:           s.ids.Generate(),
		StandardID:   in.StandardID,
		Value:        in.Value,
		OccurredAtMs: in.OccurredAtMs,
		Note:         in.Note,
	}
	if err := s.store.InsertLog(ctx, userID, entry); err != nil {
		return ir.LogEntry{}, err
	}
	s.logger.Debug("log added",
		"standard_id", entry.StandardID,
		"log_entry_id", entry.ID,
		"value", entry.Value)

	return entry, s.publishMutation(ctx, ir.LogMutation{
		Type:         ir.MutationCreate,
		StandardID:   entry.StandardID,
		LogEntryID:   entry.ID,
		OccurredAtMs: entry.OccurredAtMs,
	})
}

// EditLog applies edit to a live log entry and publishes MutationUpdate.
// When the occurred-at instant changes, the mutation carries the previous
// instant so both affected periods are recomputed.
func (s *Service) EditLog(ctx context.Context, id string, edit LogEdit) (ir.LogEntry, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return ir.LogEntry{}, err
	}
	if err := validateInput("edit log", edit); err != nil {
		return ir.LogEntry{}, err
	}

	entry, err := s.store.GetLog(ctx, userID, id)
	if err != nil {
		return ir.LogEntry{}, err
	}
	if !entry.IsLive() {
		return ir.LogEntry{}, fmt.Errorf("edit log %s: %w", id, ErrLogDeleted)
	}
	if _, err := s.activeStandard(ctx, userID, entry.StandardID); err != nil {
		return ir.LogEntry{}, err
	}

	previous := entry.OccurredAtMs
	if edit.Value != nil {
		entry.Value = *edit.Value
	}
	if edit.OccurredAtMs != nil {
		entry.OccurredAtMs = *edit.OccurredAtMs
	}
	if edit.Note != nil {
		entry.Note = *edit.Note
	}
	entry.EditedAtMs = ir.Int64Ptr(s.nowMs())

	if err := s.store.UpdateLog(ctx, userID, entry); err != nil {
		return ir.LogEntry{}, err
	}
	s.logger.Debug("log edited",
		"standard_id", entry.StandardID,
		"log_entry_id", entry.ID)

	m := ir.LogMutation{
		Type:         ir.MutationUpdate,
		StandardID:   entry.StandardID,
		LogEntryID:   entry.ID,
		OccurredAtMs: entry.OccurredAtMs,
	}
	if previous != entry.OccurredAtMs {
		m.PreviousOccurredAtMs = ir.Int64Ptr(previous)
	}
	return entry, s.publishMutation(ctx, m)
}

// DeleteLog soft-deletes a log entry and publishes MutationDelete.
// Deleting a deleted entry is a no-op.
func (s *Service) DeleteLog(ctx context.Context, id string) error {
	return s.setDeleted(ctx, id, true)
}

// RestoreLog undoes DeleteLog and publishes MutationRestore.
// Restoring a live entry is a no-op.
func (s *Service) RestoreLog(ctx context.Context, id string) error {
	return s.setDeleted(ctx, id, false)
}

func (s *Service) setDeleted(ctx context.Context, id string, deleted bool) error {
	userID, err := auth.Require(s.users)
	if err != nil {
		return err
	}
	entry, err := s.store.GetLog(ctx, userID, id)
	if err != nil {
		return err
	}
	if entry.IsLive() != deleted {
		return nil
	}
	if _, err := s.activeStandard(ctx, userID, entry.StandardID); err != nil {
		return err
	}

	var deletedAt *int64
	typ, msg := ir.MutationRestore, "log restored"
	if deleted {
		deletedAt = ir.Int64Ptr(s.nowMs())
		typ, msg = ir.MutationDelete, "log deleted"
	}
	if err := s.store.SetLogDeleted(ctx, userID, id, deletedAt); err != nil {
		return err
	}
	s.logger.Debug(msg,
		"standard_id", entry.StandardID,
		"log_entry_id", id)

	return s.publishMutation(ctx, ir.LogMutation{
		Type:         typ,
		StandardID:   entry.StandardID,
		LogEntryID:   id,
		OccurredAtMs: entry.OccurredAtMs,
	})
}

// ListLogs lists a standard's log entries newest first. Soft-deleted
// entries are included only when all is true.
func (s *Service) ListLogs(ctx context.Context, standardID string, all bool) ([]ir.LogEntry, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, userID, standardID, all)
}
