package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/events"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/social"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) add(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID
	m.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	m.mu.Lock()
	for _, u := range m.users {
		if u.Email == req.Email || u.Username == req.Username {
			m.mu.Unlock()
			return nil, domain.ErrConflict
		}
	}
	m.mu.Unlock()

	return m.add(&domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       domain.StatusPending,
		Roles:        []domain.Role{domain.RoleCustomer},
	}), nil
}

func (m *mockUserRepo) CreateSocial(_ context.Context, username, email, firstName, lastName string) (*domain.User, error) {
	m.mu.Lock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			m.mu.Unlock()
			return nil, domain.ErrConflict
		}
	}
	m.mu.Unlock()

	return m.add(&domain.User{
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Status:    domain.StatusActive,
		Roles:     []domain.Role{domain.RoleCustomer},
	}), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, userID int64, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Status = status
	return nil
}

func (m *mockUserRepo) AddRoles(_ context.Context, userID int64, roles []domain.Role) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	for _, role := range roles {
		if !u.HasRole(role) {
			u.Roles = append(u.Roles, role)
		}
	}
	return u.Roles, nil
}

func (m *mockUserRepo) RemoveRoles(_ context.Context, userID int64, roles []domain.Role) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	remove := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		remove[role] = true
	}
	var kept []domain.Role
	for _, role := range u.Roles {
		if !remove[role] {
			kept = append(kept, role)
		}
	}
	if len(kept) == 0 {
		kept = []domain.Role{domain.RoleCustomer}
	}
	u.Roles = kept
	return u.Roles, nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

type storedToken struct {
	userID     int64
	expiresAt  time.Time
	used       bool
	superseded bool
}

// mockTokenRepo mirrors the single-use semantics of the real store and
// applies the paired user mutation against the user mock.
type mockTokenRepo struct {
	mu       sync.Mutex
	users    *mockUserRepo
	resets   map[string]*storedToken
	confirms map[string]*storedToken
}

func newMockTokenRepo(users *mockUserRepo) *mockTokenRepo {
	return &mockTokenRepo{
		users:    users,
		resets:   make(map[string]*storedToken),
		confirms: make(map[string]*storedToken),
	}
}

func (m *mockTokenRepo) create(store map[string]*storedToken, userID int64, token string, ttl time.Duration) *domain.OpaqueToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range store {
		if t.userID == userID && !t.used {
			t.superseded = true
		}
	}
	store[token] = &storedToken{userID: userID, expiresAt: time.Now().Add(ttl)}
	return &domain.OpaqueToken{UserID: userID, Token: token, ExpiresAt: time.Now().Add(ttl)}
}

func (m *mockTokenRepo) CreatePasswordReset(_ context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error) {
	return m.create(m.resets, userID, token, ttl), nil
}

func (m *mockTokenRepo) CreateEmailConfirmation(_ context.Context, userID int64, token string, ttl time.Duration) (*domain.OpaqueToken, error) {
	return m.create(m.confirms, userID, token, ttl), nil
}

func (m *mockTokenRepo) consume(store map[string]*storedToken, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := store[token]
	if !ok {
		return 0, domain.ErrTokenNotFound
	}
	if t.used {
		return 0, domain.ErrTokenAlreadyUsed
	}
	if t.superseded || time.Now().After(t.expiresAt) {
		return 0, domain.ErrTokenExpired
	}
	t.used = true
	return t.userID, nil
}

func (m *mockTokenRepo) ConsumeResetAndSetPassword(ctx context.Context, token, newHash string) (int64, error) {
	userID, err := m.consume(m.resets, token)
	if err != nil {
		return 0, err
	}
	if u, _ := m.users.FindByID(ctx, userID); u != nil {
		u.PasswordHash = newHash
	}
	return userID, nil
}

func (m *mockTokenRepo) ConsumeConfirmationAndActivate(ctx context.Context, token string) (int64, error) {
	userID, err := m.consume(m.confirms, token)
	if err != nil {
		return 0, err
	}
	if u, _ := m.users.FindByID(ctx, userID); u != nil && u.Status == domain.StatusPending {
		u.Status = domain.StatusActive
	}
	return userID, nil
}

func (m *mockTokenRepo) DeleteExpiredTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// lastResetToken returns the most recently issued unused reset token
// for the user.
func (m *mockTokenRepo) lastResetToken(userID int64) string {
	return m.lastToken(m.resets, userID)
}

func (m *mockTokenRepo) lastConfirmToken(userID int64) string {
	return m.lastToken(m.confirms, userID)
}

func (m *mockTokenRepo) lastToken(store map[string]*storedToken, userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, t := range store {
		if t.userID == userID && !t.used && !t.superseded {
			return token
		}
	}
	return ""
}

type mockRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func newMockRefreshRepo() *mockRefreshRepo {
	return &mockRefreshRepo{tokens: make(map[string]int64)}
}

func (m *mockRefreshRepo) Save(_ context.Context, token string, userID int64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
	return nil
}

func (m *mockRefreshRepo) Consume(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.tokens[token]
	if !ok {
		return 0, domain.ErrInvalidToken
	}
	delete(m.tokens, token)
	return userID, nil
}

func (m *mockRefreshRepo) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

type mockSocialRepo struct {
	mu     sync.Mutex
	nextID int64
	links  map[string]*domain.SocialIdentity // provider|external_id
}

func newMockSocialRepo() *mockSocialRepo {
	return &mockSocialRepo{nextID: 1, links: make(map[string]*domain.SocialIdentity)}
}

func (m *mockSocialRepo) FindByProviderExternalID(_ context.Context, provider, externalID string) (*domain.SocialIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[provider+"|"+externalID], nil
}

func (m *mockSocialRepo) Link(_ context.Context, userID int64, provider, externalID, email string) (*domain.SocialIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "|" + externalID
	if _, exists := m.links[key]; exists {
		return nil, domain.ErrConflict
	}
	si := &domain.SocialIdentity{
		ID:         m.nextID,
		UserID:     userID,
		Provider:   provider,
		ExternalID: externalID,
		Email:      email,
	}
	m.nextID++
	m.links[key] = si
	return si, nil
}

func (m *mockSocialRepo) TouchLogin(_ context.Context, id int64) error {
	return nil
}

type mockNonceRepo struct {
	mu     sync.Mutex
	issued map[string]bool
}

func newMockNonceRepo() *mockNonceRepo {
	return &mockNonceRepo{issued: make(map[string]bool)}
}

func (m *mockNonceRepo) Issue(_ context.Context, nonce string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued[nonce] = true
	return nil
}

func (m *mockNonceRepo) Claim(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.issued[nonce] {
		return false, nil
	}
	delete(m.issued, nonce)
	return true, nil
}

type sentEmail struct {
	to    string
	url   string
	token string
}

type mockMailer struct {
	mu            sync.Mutex
	confirmations []sentEmail
	resets        []sentEmail
	sendErr       error
}

func (m *mockMailer) SendConfirmationEmail(toEmail, toName, confirmURL, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, sentEmail{to: toEmail, url: confirmURL, token: token})
	return m.sendErr
}

func (m *mockMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentEmail{to: toEmail, url: resetURL, token: token})
	return m.sendErr
}

type publishedEvent struct {
	subject string
	data    interface{}
}

type mockEventBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockEventBus) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *mockEventBus) Subscribe(string, func(msg *events.Message)) error { return nil }

func (m *mockEventBus) QueueSubscribe(string, string, func(msg *events.Message)) error { return nil }

func (m *mockEventBus) Close() error { return nil }

func (m *mockEventBus) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.subject
	}
	return out
}

// mockProvider returns a canned identity for any code except "bad".
type mockProvider struct {
	name     string
	identity social.ExternalIdentity
}

func (p *mockProvider) Name() string { return p.name }

func (p *mockProvider) AuthCodeURL(state string) string {
	return "https://provider.example/auth?state=" + state
}

func (p *mockProvider) Exchange(_ context.Context, code string) (*social.ExternalIdentity, error) {
	if code == "bad" {
		return nil, fmt.Errorf("provider rejected code")
	}
	identity := p.identity
	return &identity, nil
}

// ---------- Fixtures ----------

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret",
			JWTIssuer:            "perkpoint-auth",
			JWTAudience:          "perkpoint-api",
			AccessTokenTTL:       15 * time.Minute,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			PasswordResetTTL:     time.Hour,
			EmailConfirmationTTL: 2 * time.Hour,
			StateSecret:          "state-secret",
			StateTTL:             10 * time.Minute,
			PublicBaseURL:        "https://app.perkpoint.test",
		},
	}
}

func testJWT(cfg *config.Config) *jwtauth.Service {
	return jwtauth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.AccessTokenTTL)
}
