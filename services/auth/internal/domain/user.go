package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Status       Status     `json:"status"`
	Roles        []Role     `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Status is the account lifecycle state. Users are never deleted;
// deactivation is a status transition.
type Status string

const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
)

// Role is a grant from the closed platform role set.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleStaff        Role = "staff"
	RoleStoreManager Role = "store_manager"
	RoleBrandManager Role = "brand_manager"
	RoleAdmin        Role = "admin"
)

var validRoles = map[Role]bool{
	RoleCustomer:     true,
	RoleStaff:        true,
	RoleStoreManager: true,
	RoleBrandManager: true,
	RoleAdmin:        true,
}

func IsValidRole(role Role) bool {
	return validRoles[role]
}

// ParseRoles converts raw strings into roles, rejecting anything outside
// the closed set.
func ParseRoles(raw []string) ([]Role, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}

	roles := make([]Role, 0, len(raw))
	seen := make(map[Role]bool, len(raw))
	for _, r := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(r)))
		if !validRoles[role] {
			return nil, fmt.Errorf("invalid role: %s", r)
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}

	return roles, nil
}

// HasRole reports membership in the user's role set.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStrings returns the role set as plain strings for token claims.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ConfirmEmailRequest struct {
	Token string `json:"token"`
}

type UpdateRolesRequest struct {
	Roles []string `json:"roles"`
}

type SocialCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
	Nonce string `json:"nonce"`
}

// TokenResult is the value returned to authenticated callers. It is
// never persisted.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type LoginResponse struct {
	TokenResult
	User *UserInfo `json:"user"`
}

// UserInfo is the public projection of a user, without sensitive data.
type UserInfo struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Status    Status   `json:"status"`
	Roles     []string `json:"roles"`
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    u.Status,
		Roles:     u.RoleStrings(),
	}
}

// Validation methods

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)
)

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRegex.MatchString(r.Username) {
		return fmt.Errorf("username must be 3-32 characters: lowercase letters, digits, '.', '_' or '-'")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", r.DateOfBirth); err != nil {
			return fmt.Errorf("invalid date_of_birth, expected YYYY-MM-DD")
		}
	}
	return nil
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func (r *ResetPasswordRequest) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	if r.NewPassword == "" {
		return fmt.Errorf("new password is required")
	}
	if len(r.NewPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// Normalize methods

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RequestPasswordResetRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}
