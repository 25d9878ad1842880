package domain

import "time"

// TokenKind distinguishes the two opaque-token tables.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailConfirmation TokenKind = "email_confirmation"
)

// OpaqueToken is a single-use, expiring token row. The same shape backs
// password reset and email confirmation; only the table differs.
type OpaqueToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Token      string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	Superseded bool       `json:"superseded"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Used reports whether the token has been consumed.
func (t *OpaqueToken) Used() bool {
	return t.UsedAt != nil
}

// Expired reports whether the token is past its expiry at the given time.
func (t *OpaqueToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// SocialIdentity maps an external provider identity to a local user.
type SocialIdentity struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"external_id"`
	Email       string    `json:"email"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// SocialAuthResult is returned by the social auth flow.
type SocialAuthResult struct {
	Token         *TokenResult `json:"token"`
	User          *UserInfo    `json:"user"`
	IsNewUser     bool         `json:"is_new_user"`
	ExternalID    string       `json:"external_id"`
	ExternalEmail string       `json:"external_email"`
}
