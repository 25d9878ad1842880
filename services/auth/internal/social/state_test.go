package social

import (
	"strings"
	"testing"
	"time"
)

func TestStateRoundTrip(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}

	raw, err := signer.Encode("google", nonce)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	st, err := signer.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if st.Nonce != nonce {
		t.Errorf("Nonce = %q, want %q", st.Nonce, nonce)
	}
	if st.Provider != "google" {
		t.Errorf("Provider = %q, want google", st.Provider)
	}
	if st.ExpiresAt <= st.IssuedAt {
		t.Errorf("ExpiresAt %d not after IssuedAt %d", st.ExpiresAt, st.IssuedAt)
	}
}

func TestStateTamperedRejected(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)

	raw, err := signer.Encode("google", "nonce-1")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	last := raw[len(raw)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	tampered := raw[:len(raw)-1] + string(flip)

	if _, err := signer.Decode(tampered); err == nil {
		t.Error("Decode accepted a tampered state")
	}
}

func TestStateWrongSecretRejected(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)
	other := NewStateSigner("other-secret", 10*time.Minute)

	raw, err := other.Encode("apple", "nonce-2")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := signer.Decode(raw); err == nil {
		t.Error("Decode accepted a state signed with a different secret")
	}
}

func TestStateExpiredRejected(t *testing.T) {
	signer := NewStateSigner("state-secret", -time.Minute)

	raw, err := signer.Encode("google", "nonce-3")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = signer.Decode(raw)
	if err == nil {
		t.Fatal("Decode accepted an expired state")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("error = %v, want mention of expiry", err)
	}
}

func TestStateGarbageRejected(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)

	for _, raw := range []string{"", "!!!", "short", "YWJj"} {
		if _, err := signer.Decode(raw); err == nil {
			t.Errorf("Decode(%q) accepted garbage", raw)
		}
	}
}
