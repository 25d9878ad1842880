package service

import (
	"context"
	"fmt"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// AssignRoles grants roles from the closed set. Granting a role the
// user already holds is a no-op; the full resulting set is returned.
func (s *authService) AssignRoles(ctx context.Context, userID int64, raw []string) ([]string, error) {
	roles, err := domain.ParseRoles(raw)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	current, err := s.userRepo.AddRoles(ctx, userID, roles)
	if err != nil {
		return nil, err
	}

	return s.publishRolesUpdated(ctx, userID, current), nil
}

// RevokeRoles removes roles. Revoking an absent role is a no-op, and a
// user always keeps at least the customer role.
func (s *authService) RevokeRoles(ctx context.Context, userID int64, raw []string) ([]string, error) {
	roles, err := domain.ParseRoles(raw)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	current, err := s.userRepo.RemoveRoles(ctx, userID, roles)
	if err != nil {
		return nil, err
	}

	return s.publishRolesUpdated(ctx, userID, current), nil
}

func (s *authService) publishRolesUpdated(ctx context.Context, userID int64, current []domain.Role) []string {
	out := make([]string, len(current))
	for i, r := range current {
		out[i] = string(r)
	}

	if err := s.eventBus.Publish(ctx, events.RolesUpdated, events.RolesUpdatedEvent{
		UserID:    userID,
		Roles:     out,
		UpdatedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish roles event", "error", err, "user_id", userID)
	}

	return out
}
