package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/handlers"
)

// ---------- Mocks ----------

// stubAuthService returns canned results per method.
type stubAuthService struct {
	resetErr    error
	confirmErr  error
	loginResp   *domain.LoginResponse
	loginErr    error
	user        *domain.User
	rolesResult []string
	rolesErr    error
}

func (s *stubAuthService) Register(_ context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if s.user != nil {
		return s.user, nil
	}
	return nil, domain.ErrConflict
}

func (s *stubAuthService) Login(context.Context, *domain.LoginRequest) (*domain.LoginResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthService) RefreshToken(context.Context, string) (*domain.TokenResult, error) {
	return nil, domain.ErrInvalidToken
}

func (s *stubAuthService) Logout(context.Context, string) error { return nil }

func (s *stubAuthService) GetUser(context.Context, int64) (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubAuthService) ListUsers(context.Context, int, int) ([]domain.User, error) {
	return nil, nil
}

func (s *stubAuthService) RequestPasswordReset(context.Context, string) error { return nil }

func (s *stubAuthService) ResetPassword(context.Context, *domain.ResetPasswordRequest) error {
	return s.resetErr
}

func (s *stubAuthService) ConfirmEmail(context.Context, string) (*domain.User, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.user, nil
}

func (s *stubAuthService) ResendConfirmation(context.Context, string) error { return nil }

func (s *stubAuthService) AssignRoles(context.Context, int64, []string) ([]string, error) {
	return s.rolesResult, s.rolesErr
}

func (s *stubAuthService) RevokeRoles(context.Context, int64, []string) ([]string, error) {
	return s.rolesResult, s.rolesErr
}

func (s *stubAuthService) SetStatus(context.Context, int64, domain.Status) error { return nil }

type stubRateLimiter struct {
	allowed bool
}

func (s *stubRateLimiter) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (s *stubRateLimiter) Allow(context.Context, string, int64, time.Duration) (bool, error) {
	return s.allowed, nil
}

func (s *stubRateLimiter) Reset(context.Context, string) error { return nil }

// ---------- Fixtures ----------

func newHandlers(svc *stubAuthService, limiter *stubRateLimiter) (*handlers.Handlers, *jwtauth.Service) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			JWTIssuer:      "perkpoint-auth",
			JWTAudience:    "perkpoint-api",
			AccessTokenTTL: 15 * time.Minute,
		},
	}
	jwtService := jwtauth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.AccessTokenTTL)
	return handlers.New(svc, nil, limiter, jwtService, cfg), jwtService
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

// ---------- Tests ----------

// Reset failures must be indistinguishable: same status, same body for
// a missing, used or expired token.
func TestResetPasswordFailuresIndistinguishable(t *testing.T) {
	var bodies []map[string]string

	for _, tokenErr := range []error{
		domain.ErrTokenNotFound,
		domain.ErrTokenAlreadyUsed,
		domain.ErrTokenExpired,
	} {
		h, _ := newHandlers(&stubAuthService{resetErr: tokenErr}, &stubRateLimiter{allowed: true})

		rec := postJSON(t, h.ResetPassword, "/password-reset/confirm", domain.ResetPasswordRequest{
			Token:       "some-token",
			NewPassword: "brand-new-pass",
		})

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", tokenErr, rec.Code)
		}
		bodies = append(bodies, errorBody(t, rec))
	}

	for i := 1; i < len(bodies); i++ {
		if bodies[i]["error"] != bodies[0]["error"] || bodies[i]["code"] != bodies[0]["code"] {
			t.Errorf("bodies differ: %v vs %v", bodies[0], bodies[i])
		}
	}
}

func TestRequestPasswordResetAlwaysGeneric(t *testing.T) {
	h, _ := newHandlers(&stubAuthService{}, &stubRateLimiter{allowed: true})

	rec := postJSON(t, h.RequestPasswordReset, "/password-reset/request", map[string]string{
		"email": "anyone@example.com",
	})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLoginUnauthorizedStatus(t *testing.T) {
	h, _ := newHandlers(&stubAuthService{loginErr: domain.ErrUnauthorized}, &stubRateLimiter{allowed: true})

	rec := postJSON(t, h.Login, "/login", domain.LoginRequest{Email: "a@b.co", Password: "password1"})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRefreshInvalidTokenStatus(t *testing.T) {
	h, _ := newHandlers(&stubAuthService{}, &stubRateLimiter{allowed: true})

	rec := postJSON(t, h.RefreshToken, "/refresh", domain.RefreshTokenRequest{RefreshToken: "stale"})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireJWTMissingHeader(t *testing.T) {
	h, _ := newHandlers(&stubAuthService{}, &stubRateLimiter{allowed: true})

	protected := h.RequireJWT()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireJWTRoleEnforced(t *testing.T) {
	user := &domain.User{ID: 7, Username: "jdoe", Email: "jdoe@example.com", Status: domain.StatusActive, Roles: []domain.Role{domain.RoleCustomer}}
	h, jwtService := newHandlers(&stubAuthService{user: user}, &stubRateLimiter{allowed: true})

	protected := h.RequireJWT("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	customerToken, err := jwtService.GenerateToken(7, "jdoe", "jdoe@example.com", []string{"customer"}, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	adminToken, err := jwtService.GenerateToken(8, "root", "root@example.com", []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("customer token: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin token: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitBlocks(t *testing.T) {
	h, _ := newHandlers(&stubAuthService{}, &stubRateLimiter{allowed: false})

	limited := h.RateLimit("login", 10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestAssignRolesRoute(t *testing.T) {
	h, jwtService := newHandlers(&stubAuthService{rolesResult: []string{"customer", "staff"}}, &stubRateLimiter{allowed: true})

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireJWT("admin"))
		r.Post("/users/{id}/roles", h.AssignRoles)
	})

	adminToken, err := jwtService.GenerateToken(1, "root", "root@example.com", []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	raw, _ := json.Marshal(domain.UpdateRolesRequest{Roles: []string{"staff"}})
	req := httptest.NewRequest(http.MethodPost, "/admin/users/7/roles", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		UserID int64    `json:"user_id"`
		Roles  []string `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.UserID != 7 || len(body.Roles) != 2 {
		t.Errorf("body = %+v", body)
	}
}
