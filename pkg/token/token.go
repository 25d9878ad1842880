package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultSize is the number of random bytes behind a generated token.
// 32 bytes gives 256 bits of entropy.
const DefaultSize = 32

// GenerateSecureToken returns a URL-safe opaque token built from size
// cryptographically secure random bytes. The output uses the base64url
// alphabet without padding, so it can be embedded in links and query
// strings without escaping.
func GenerateSecureToken(size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewOpaqueToken generates a token at the default size.
func NewOpaqueToken() (string, error) {
	return GenerateSecureToken(DefaultSize)
}
