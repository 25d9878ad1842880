package service

import (
	"context"
	"fmt"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// ConfirmEmail consumes the confirmation token and activates a pending
// account. Confirming an already-active account consumes the token and
// succeeds without a status change.
func (s *authService) ConfirmEmail(ctx context.Context, rawToken string) (*domain.User, error) {
	if rawToken == "" {
		return nil, domain.ErrInvalidToken
	}

	userID, err := s.tokenRepo.ConsumeConfirmationAndActivate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	if err := s.eventBus.Publish(ctx, events.EmailConfirmed, events.EmailConfirmedEvent{
		UserID:      user.ID,
		Email:       user.Email,
		ConfirmedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish confirmation event", "error", err, "user_id", user.ID)
	}

	return user, nil
}

// ResendConfirmation issues a fresh confirmation token, superseding any
// outstanding one. Like the reset request, it does not reveal whether
// the email is registered.
func (s *authService) ResendConfirmation(ctx context.Context, email string) error {
	req := domain.RequestPasswordResetRequest{Email: email}
	req.Normalize()
	if req.Email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		logger.InfoContext(ctx, "Confirmation resend requested for unknown email")
		return nil
	}
	if user.Status != domain.StatusPending {
		return nil
	}

	return s.issueConfirmation(ctx, user)
}
