package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/pkg/token"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/mailer"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/repository"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error

	ConfirmEmail(ctx context.Context, rawToken string) (*domain.User, error)
	ResendConfirmation(ctx context.Context, email string) error

	AssignRoles(ctx context.Context, userID int64, roles []string) ([]string, error)
	RevokeRoles(ctx context.Context, userID int64, roles []string) ([]string, error)
	SetStatus(ctx context.Context, userID int64, status domain.Status) error
}

type authService struct {
	userRepo    repository.UserRepository
	tokenRepo   repository.TokenRepository
	refreshRepo repository.RefreshTokenRepository
	mailer      mailer.Sender
	eventBus    events.EventBus
	jwt         *jwtauth.Service
	config      *config.Config
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	refreshRepo repository.RefreshTokenRepository,
	sender mailer.Sender,
	eventBus events.EventBus,
	jwtService *jwtauth.Service,
	cfg *config.Config,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		refreshRepo: refreshRepo,
		mailer:      sender,
		eventBus:    eventBus,
		jwt:         jwtService,
		config:      cfg,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.issueConfirmation(ctx, user); err != nil {
		logger.ErrorContext(ctx, "Failed to issue confirmation token", "error", err, "user_id", user.ID)
		return nil, fmt.Errorf("failed to create confirmation token: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		Username:     user.Username,
		RegisteredAt: user.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish registration event", "error", err, "user_id", user.ID)
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, domain.ErrUnauthorized
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrUnauthorized
	}

	if user.Status != domain.StatusActive {
		return nil, domain.ErrAccountNotActive
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{TokenResult: *result, User: user.ToUserInfo()}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidToken
	}

	userID, err := s.refreshRepo.Consume(ctx, refreshToken)
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
	if user.Status != domain.StatusActive {
		return nil, domain.ErrAccountNotActive
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refreshRepo.Revoke(ctx, refreshToken)
}

func (s *authService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *authService) SetStatus(ctx context.Context, userID int64, status domain.Status) error {
	switch status {
	case domain.StatusActive, domain.StatusSuspended, domain.StatusDeactivated:
	default:
		return fmt.Errorf("invalid status: %s", status)
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}

	if err := s.eventBus.Publish(ctx, events.UserStatusChanged, events.UserStatusChangedEvent{
		UserID:    userID,
		Status:    string(status),
		ChangedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish status event", "error", err, "user_id", userID)
	}

	return nil
}

// issueTokens mints an access token and rotates in a new refresh token.
func (s *authService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenResult, error) {
	accessToken, err := s.jwt.GenerateToken(user.ID, user.Username, user.Email, user.RoleStrings(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.refreshRepo.Save(ctx, refreshToken, user.ID, s.config.Auth.RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &domain.TokenResult{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

// issueConfirmation creates and emails a fresh confirmation token.
func (s *authService) issueConfirmation(ctx context.Context, user *domain.User) error {
	raw, err := token.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if _, err := s.tokenRepo.CreateEmailConfirmation(ctx, user.ID, raw, s.config.Auth.EmailConfirmationTTL); err != nil {
		return err
	}

	confirmURL := fmt.Sprintf("%s/auth/confirm-email?token=%s", s.config.Auth.PublicBaseURL, raw)
	if err := s.mailer.SendConfirmationEmail(user.Email, user.FirstName, confirmURL, raw); err != nil {
		logger.ErrorContext(ctx, "Failed to send confirmation email", "error", err, "user_id", user.ID)
		// Registration still succeeds; the user can request a resend.
	}

	return nil
}
