package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/config"
	"github.com/perkpoint/loyalty-platform/pkg/jwtauth"
	"github.com/perkpoint/loyalty-platform/pkg/logger"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/repository"
	"github.com/perkpoint/loyalty-platform/services/auth/internal/service"
)

type claimsKey struct{}

type Handlers struct {
	authService   service.AuthService
	socialService service.SocialAuthService
	rateLimitRepo repository.RateLimitRepository
	jwt           *jwtauth.Service
	config        *config.Config
}

func New(
	authService service.AuthService,
	socialService service.SocialAuthService,
	rateLimitRepo repository.RateLimitRepository,
	jwtService *jwtauth.Service,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		authService:   authService,
		socialService: socialService,
		rateLimitRepo: rateLimitRepo,
		jwt:           jwtService,
		config:        cfg,
	}
}

// RequireJWT authenticates the bearer token and, when roles are given,
// requires one of them. Admin always passes the role check.
func (h *Handlers) RequireJWT(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := jwtauth.TryParseTokenFromAuthHeader(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			claims, err := h.jwt.ValidateToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			if len(roles) > 0 && !hasAnyRole(claims.Roles, roles) {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAnyRole(granted, wanted []string) bool {
	for _, g := range granted {
		if g == string(domain.RoleAdmin) {
			return true
		}
		for _, w := range wanted {
			if g == w {
				return true
			}
		}
	}
	return false
}

// RateLimit caps attempts per client IP for sensitive endpoints. Redis
// outages fail open; losing the limiter must not take auth down.
func (h *Handlers) RateLimit(name string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + getClientIP(r)

			allowed, err := h.rateLimitRepo.Allow(r.Context(), key, limit, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions

func getClaims(r *http.Request) *jwtauth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*jwtauth.Claims); ok {
		return claims
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

// writeServiceError maps flow errors to HTTP responses. All token
// consumption failures get the same body, so a caller cannot tell a
// missing token from a used or expired one.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsTokenConsumptionFailure(err):
		writeError(w, http.StatusBadRequest, "Invalid or expired token", "INVALID_TOKEN")
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "UNAUTHORIZED")
	case errors.Is(err, domain.ErrAccountNotActive):
		writeError(w, http.StatusForbidden, "Account is not active", "ACCOUNT_NOT_ACTIVE")
	case errors.Is(err, domain.ErrProviderAuthFailed):
		writeError(w, http.StatusUnauthorized, "Provider authentication failed", "PROVIDER_AUTH_FAILED")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Resource already exists", "CONFLICT")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found", "NOT_FOUND")
	default:
		writeError(w, http.StatusBadRequest, err.Error(), "REQUEST_FAILED")
	}
}
