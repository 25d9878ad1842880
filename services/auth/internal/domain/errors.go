package domain

import "errors"

// Flow-level failure kinds. Services return these (possibly wrapped);
// the HTTP layer maps them to status codes and, for the token kinds,
// collapses them into a single generic message so callers cannot tell
// a missing token from a used or expired one.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenAlreadyUsed   = errors.New("token has already been used")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrProviderAuthFailed = errors.New("provider authentication failed")
	ErrConflict           = errors.New("resource already exists")
	ErrAccountNotActive   = errors.New("account is not active")
)

// IsTokenConsumptionFailure reports whether err is one of the kinds a
// consumption endpoint must not distinguish publicly.
func IsTokenConsumptionFailure(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenAlreadyUsed)
}
