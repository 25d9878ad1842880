package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/pkg/token"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// RequestPasswordReset issues a reset token for the account behind the
// email. It returns nil whether or not the account exists, so the
// endpoint cannot be used to probe for registered addresses.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
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
		logger.InfoContext(ctx, "Password reset requested for unknown email")
		return nil
	}
	if user.Status == domain.StatusDeactivated {
		return nil
	}

	raw, err := token.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if _, err := s.tokenRepo.CreatePasswordReset(ctx, user.ID, raw, s.config.Auth.PasswordResetTTL); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/auth/reset-password?token=%s", s.config.Auth.PublicBaseURL, raw)
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.FirstName, resetURL, raw); err != nil {
		logger.ErrorContext(ctx, "Failed to send reset email", "error", err, "user_id", user.ID)
		// The caller still gets a generic success; retrying re-issues.
	}

	return nil
}

// ResetPassword consumes the token and sets the new password in one
// atomic step. All outstanding refresh tokens for the user stay valid
// only until their TTL; the access path requires the new password.
func (s *authService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	newHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.tokenRepo.ConsumeResetAndSetPassword(ctx, req.Token, newHash)
	if err != nil {
		return err
	}

	if err := s.eventBus.Publish(ctx, events.PasswordReset, events.PasswordResetEvent{
		UserID:  userID,
		ResetAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish password reset event", "error", err, "user_id", userID)
	}

	return nil
}
