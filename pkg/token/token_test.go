package token

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateSecureTokenIsURLSafe(t *testing.T) {
	for i := 0; i < 100; i++ {
		tok, err := GenerateSecureToken(32)
		if err != nil {
			t.Fatalf("GenerateSecureToken: %v", err)
		}
		if strings.ContainsAny(tok, "+/=") {
			t.Fatalf("token contains non-URL-safe characters: %q", tok)
		}
	}
}

func TestGenerateSecureTokenEntropy(t *testing.T) {
	sizes := []int{16, 32, 64}
	for _, size := range sizes {
		tok, err := GenerateSecureToken(size)
		if err != nil {
			t.Fatalf("GenerateSecureToken(%d): %v", size, err)
		}

		decoded, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not valid base64url: %v", err)
		}
		if len(decoded) != size {
			t.Errorf("decoded %d bytes, want %d", len(decoded), size)
		}
	}
}

func TestGenerateSecureTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := GenerateSecureToken(32)
		if err != nil {
			t.Fatalf("GenerateSecureToken: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}

func TestGenerateSecureTokenDefaultsSize(t *testing.T) {
	tok, err := GenerateSecureToken(0)
	if err != nil {
		t.Fatalf("GenerateSecureToken(0): %v", err)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not valid base64url: %v", err)
	}
	if len(decoded) != DefaultSize {
		t.Errorf("decoded %d bytes, want default %d", len(decoded), DefaultSize)
	}
}
