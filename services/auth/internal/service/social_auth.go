package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/repository"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/social"
)

type SocialAuthService interface {
	BeginAuth(ctx context.Context, provider string) (string, error)
	HandleCallback(ctx context.Context, providerName, code, state string) (*domain.SocialAuthResult, error)
}

type socialAuthService struct {
	providers   map[string]social.Provider
	signer      *social.StateSigner
	nonceRepo   repository.NonceRepository
	userRepo    repository.UserRepository
	socialRepo  repository.SocialIdentityRepository
	refreshRepo repository.RefreshTokenRepository
	eventBus    events.EventBus
	jwt         *jwtauth.Service
	config      *config.Config
}

func NewSocialAuthService(
	providers []social.Provider,
	signer *social.StateSigner,
	nonceRepo repository.NonceRepository,
	userRepo repository.UserRepository,
	socialRepo repository.SocialIdentityRepository,
	refreshRepo repository.RefreshTokenRepository,
	eventBus events.EventBus,
	jwtService *jwtauth.Service,
	cfg *config.Config,
) SocialAuthService {
	byName := make(map[string]social.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &socialAuthService{
		providers:   byName,
		signer:      signer,
		nonceRepo:   nonceRepo,
		userRepo:    userRepo,
		socialRepo:  socialRepo,
		refreshRepo: refreshRepo,
		eventBus:    eventBus,
		jwt:         jwtService,
		config:      cfg,
	}
}

// BeginAuth issues a signed single-use state and returns the provider
// consent URL to redirect the user to.
func (s *socialAuthService) BeginAuth(ctx context.Context, providerName string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", fmt.Errorf("unknown provider: %s", providerName)
	}

	nonce, err := social.NewNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	if err := s.nonceRepo.Issue(ctx, nonce, s.config.Auth.StateTTL); err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}

	state, err := s.signer.Encode(provider.Name(), nonce)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	return provider.AuthCodeURL(state), nil
}

// HandleCallback verifies the state, redeems the code with the provider
// and signs the user in, linking or provisioning an account as needed.
// Any state or provider failure collapses to ErrProviderAuthFailed so
// the callback endpoint leaks nothing about which check failed.
func (s *socialAuthService) HandleCallback(ctx context.Context, providerName, code, state string) (*domain.SocialAuthResult, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, domain.ErrProviderAuthFailed
	}
	if code == "" || state == "" {
		return nil, domain.ErrProviderAuthFailed
	}

	st, err := s.signer.Decode(state)
	if err != nil {
		logger.WarnContext(ctx, "Social state rejected", "provider", providerName, "error", err)
		return nil, domain.ErrProviderAuthFailed
	}
	if st.Provider != provider.Name() {
		return nil, domain.ErrProviderAuthFailed
	}

	// A state can be redeemed exactly once; replays fail here.
	claimed, err := s.nonceRepo.Claim(ctx, st.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to claim nonce: %w", err)
	}
	if !claimed {
		logger.WarnContext(ctx, "Social state replayed", "provider", providerName)
		return nil, domain.ErrProviderAuthFailed
	}

	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		logger.WarnContext(ctx, "Provider exchange failed", "provider", providerName, "error", err)
		return nil, domain.ErrProviderAuthFailed
	}

	user, isNew, err := s.resolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	if user.Status != domain.StatusActive {
		return nil, domain.ErrAccountNotActive
	}

	result, err := s.issueSocialTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.eventBus.Publish(ctx, events.SocialSignIn, events.SocialSignInEvent{
		UserID:     user.ID,
		Provider:   identity.Provider,
		ExternalID: identity.ExternalID,
		IsNewUser:  isNew,
		SignedInAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish social signin event", "error", err, "user_id", user.ID)
	}

	return &domain.SocialAuthResult{
		Token:         result,
		User:          user.ToUserInfo(),
		IsNewUser:     isNew,
		ExternalID:    identity.ExternalID,
		ExternalEmail: identity.Email,
	}, nil
}

// resolveUser finds the local account for an external identity: first
// by the provider link, then by verified email, and failing both it
// provisions a new account.
func (s *socialAuthService) resolveUser(ctx context.Context, identity *social.ExternalIdentity) (*domain.User, bool, error) {
	link, err := s.socialRepo.FindByProviderExternalID(ctx, identity.Provider, identity.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up identity: %w", err)
	}
	if link != nil {
		user, err := s.userRepo.FindByID(ctx, link.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to find linked user: %w", err)
		}
		if user == nil {
			return nil, false, domain.ErrUserNotFound
		}
		if err := s.socialRepo.TouchLogin(ctx, link.ID); err != nil {
			logger.WarnContext(ctx, "Failed to touch social login", "error", err, "user_id", user.ID)
		}
		return user, false, nil
	}

	// Email-based linking only trusts addresses the provider verified.
	if identity.Email != "" && identity.EmailVerified {
		user, err := s.userRepo.FindByEmail(ctx, identity.Email)
		if err != nil {
			return nil, false, fmt.Errorf("failed to find user by email: %w", err)
		}
		if user != nil {
			if _, err := s.socialRepo.Link(ctx, user.ID, identity.Provider, identity.ExternalID, identity.Email); err != nil {
				return nil, false, fmt.Errorf("failed to link identity: %w", err)
			}
			return user, false, nil
		}
	}

	if identity.Email == "" {
		return nil, false, domain.ErrProviderAuthFailed
	}

	username := usernameFromEmail(identity.Email)
	user, err := s.userRepo.CreateSocial(ctx, username, identity.Email, identity.FirstName, identity.LastName)
	if err == domain.ErrConflict {
		// Username taken; retry once with a numeric suffix.
		username = fmt.Sprintf("%.26s%05d", username, time.Now().UnixNano()%100000)
		user, err = s.userRepo.CreateSocial(ctx, username, identity.Email, identity.FirstName, identity.LastName)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to provision user: %w", err)
	}

	if _, err := s.socialRepo.Link(ctx, user.ID, identity.Provider, identity.ExternalID, identity.Email); err != nil {
		return nil, false, fmt.Errorf("failed to link identity: %w", err)
	}

	return user, true, nil
}

func (s *socialAuthService) issueSocialTokens(ctx context.Context, user *domain.User) (*domain.TokenResult, error) {
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

// usernameFromEmail derives a username candidate for provisioned
// accounts.
func usernameFromEmail(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) < 3 {
		out = out + "user"
	}
	if len(out) > 32 {
		out = out[:32]
	}

	return out
}
