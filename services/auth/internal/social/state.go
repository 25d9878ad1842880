package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/perkpoint/loyalty-platform/pkg/token"
)

// State is round-tripped through the provider's consent screen. The
// nonce ties the callback to an initiation we issued; the signature
// proves we minted it.
type State struct {
	Nonce     string `json:"n"`
	Provider  string `json:"p"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// StateSigner encodes and verifies HMAC-signed state values.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl}
}

// NewNonce returns a fresh single-use nonce for a state value.
func NewNonce() (string, error) {
	return token.GenerateSecureToken(16)
}

// Encode signs a new state for the given provider and nonce.
func (s *StateSigner) Encode(provider, nonce string) (string, error) {
	now := time.Now()
	st := State{
		Nonce:     nonce,
		Provider:  provider,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshaling state: %w", err)
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	signed := append(mac.Sum(nil), payload...)

	return base64.RawURLEncoding.EncodeToString(signed), nil
}

// Decode verifies the signature and expiry, returning the state.
func (s *StateSigner) Decode(raw string) (*State, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid state encoding")
	}
	if len(data) <= sha256.Size {
		return nil, fmt.Errorf("state too short")
	}

	signature, payload := data[:sha256.Size], data[sha256.Size:]

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return nil, fmt.Errorf("state signature mismatch")
	}

	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}

	if time.Now().Unix() > st.ExpiresAt {
		return nil, fmt.Errorf("state expired")
	}

	return &st, nil
}
