package tracker

import (
	"context"
	"fmt"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/ir"
)

// StandardInput is the user-editable definition of a standard.
type StandardInput struct {
	// ActivityID groups standards of one activity. Defaults to the
	// standard's own id.
	ActivityID            string                    `json:"activity_id" validate:"omitempty,max=128"`
	Minimum               float64                   `json:"minimum" validate:"gt=0"`
	Unit                  string                    `json:"unit" validate:"required,max=32"`
	Cadence               ir.Cadence                `json:"cadence"`
	PeriodStartPreference *ir.PeriodStartPreference `json:"period_start_preference"`
	SessionConfig         ir.SessionConfig          `json:"session_config"`
}

// CreateStandard stores a new active standard and publishes
// StandardCreated.
func (s *Service) CreateStandard(ctx context.Context, in StandardInput) (ir.Standard, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return ir.Standard{}, err
	}
	if err := validateInput("create standard", in); err != nil {
		return ir.Standard{}, err
	}

	now := s.nowMs()
	std := ir.Standard{
		ID:          s.ids.Generate(),
		State:       ir.StateActive,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	applyStandardInput(&std, in)

	if err := s.store.CreateStandard(ctx, userID, std); err != nil {
		return ir.Standard{}, err
	}
	s.logger.Info("standard created",
		"standard_id", std.ID,
		"summary", std.Summary())

	return std, s.publishChange(ctx, ir.StandardChange{Type: ir.StandardCreated, StandardID: std.ID})
}

// UpdateStandard replaces the definition of an active standard and
// publishes StandardUpdated. Existing rollups keep their snapshot.
func (s *Service) UpdateStandard(ctx context.Context, id string, in StandardInput) (ir.Standard, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return ir.Standard{}, err
	}
	if err := validateInput("update standard", in); err != nil {
		return ir.Standard{}, err
	}

	std, err := s.activeStandard(ctx, userID, id)
	if err != nil {
		return ir.Standard{}, err
	}
	applyStandardInput(&std, in)
	std.UpdatedAtMs = s.nowMs()

	if err := s.store.UpdateStandard(ctx, userID, std); err != nil {
		return ir.Standard{}, err
	}
	s.logger.Info("standard updated",
		"standard_id", std.ID,
		"summary", std.Summary())

	return std, s.publishChange(ctx, ir.StandardChange{Type: ir.StandardUpdated, StandardID: std.ID})
}

// ArchiveStandard stops a standard from taking part in catch-up. Archiving
// an archived standard is a no-op.
func (s *Service) ArchiveStandard(ctx context.Context, id string) error {
	userID, err := auth.Require(s.users)
	if err != nil {
		return err
	}
	std, err := s.store.GetStandard(ctx, userID, id)
	if err != nil {
		return err
	}
	if std.State == ir.StateArchived {
		return nil
	}

	std.State = ir.StateArchived
	std.UpdatedAtMs = s.nowMs()
	if err := s.store.UpdateStandard(ctx, userID, std); err != nil {
		return err
	}
	s.logger.Info("standard archived", "standard_id", id)

	return s.publishChange(ctx, ir.StandardChange{Type: ir.StandardArchived, StandardID: id})
}

// DeleteStandard soft-deletes a standard. Its logs and rollups are kept.
func (s *Service) DeleteStandard(ctx context.Context, id string) error {
	userID, err := auth.Require(s.users)
	if err != nil {
		return err
	}
	std, err := s.store.GetStandard(ctx, userID, id)
	if err != nil {
		return err
	}
	if std.DeletedAtMs != nil {
		return nil
	}

	now := s.nowMs()
	std.DeletedAtMs = ir.Int64Ptr(now)
	std.UpdatedAtMs = now
	if err := s.store.UpdateStandard(ctx, userID, std); err != nil {
		return err
	}
	s.logger.Info("standard deleted", "standard_id", id)

	return s.publishChange(ctx, ir.StandardChange{Type: ir.StandardDeleted, StandardID: id})
}

// GetStandard returns one standard of the current user.
func (s *Service) GetStandard(ctx context.Context, id string) (ir.Standard, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return ir.Standard{}, err
	}
	return s.store.GetStandard(ctx, userID, id)
}

// ListStandards lists the current user's standards. Archived and deleted
// standards are included only when all is true.
func (s *Service) ListStandards(ctx context.Context, all bool) ([]ir.Standard, error) {
	userID, err := auth.Require(s.users)
	if err != nil {
		return nil, err
	}
	return s.store.ListStandards(ctx, userID, all)
}

func (s *Service) activeStandard(ctx context.Context, userID, id string) (ir.Standard, error) {
	std, err := s.store.GetStandard(ctx, userID, id)
	if err != nil {
		return ir.Standard{}, err
	}
	if !std.IsActive() {
		return ir.Standard{}, fmt.Errorf("standard %s: %w", id, ErrStandardArchived)
	}
	return std, nil
}

func applyStandardInput(std *ir.Standard, in StandardInput) {
	std.ActivityID = in.ActivityID
	if std.ActivityID == "" {
		std.ActivityID = std.ID
	}
	std.Minimum = in.Minimum
	std.Unit = in.Unit
	std.Cadence = in.Cadence
	std.SessionConfig = in.SessionConfig
	std.PeriodStartPreference = nil
	if in.PeriodStartPreference != nil {
		pref := *in.PeriodStartPreference
		std.PeriodStartPreference = &pref
	}
}
