package security

import (
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testProvider(ttl time.Duration) *TokenProvider {
	return NewTokenProvider(testSecret, "tenantplane", "tenantplane-api", ttl)
}

func TestIssueAndValidateSession(t *testing.T) {
	p := testProvider(time.Hour)

	token, expiresAt, err := p.IssueSession("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expiresAt should be in the future")
	}

	sessionID, userID, err := p.ValidateSession(token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if sessionID != "sess-1" {
		t.Errorf("sessionID = %q, want %q", sessionID, "sess-1")
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

func TestValidateSession_Expired(t *testing.T) {
	p := testProvider(-time.Minute)

	token, _, err := p.IssueSession("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, _, err := p.ValidateSession(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateSession_WrongSecret(t *testing.T) {
	p := testProvider(time.Hour)
	token, _, err := p.IssueSession("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	other := NewTokenProvider([]byte("ffffffffffffffffffffffffffffffff"), "tenantplane", "tenantplane-api", time.Hour)
	if _, _, err := other.ValidateSession(token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestValidateSession_WrongIssuerOrAudience(t *testing.T) {
	p := testProvider(time.Hour)
	token, _, err := p.IssueSession("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	badIssuer := NewTokenProvider(testSecret, "someone-else", "tenantplane-api", time.Hour)
	if _, _, err := badIssuer.ValidateSession(token); err == nil {
		t.Error("expected error for wrong issuer")
	}

	badAudience := NewTokenProvider(testSecret, "tenantplane", "other-api", time.Hour)
	if _, _, err := badAudience.ValidateSession(token); err == nil {
		t.Error("expected error for wrong audience")
	}
}

func TestValidateSession_Garbage(t *testing.T) {
	p := testProvider(time.Hour)
	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := p.ValidateSession(bad); err == nil {
			t.Errorf("ValidateSession(%q) = nil error, want ErrInvalidToken", bad)
		}
	}
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4) // min cost to keep the test fast

	hash, err := h.Hash([]byte("s3cret-password"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "s3cret-password" {
		t.Fatal("hash should be non-empty and not the plaintext")
	}

	if err := h.Compare(hash, []byte("s3cret-password")); err != nil {
		t.Errorf("Compare with correct password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Error("Compare with wrong password should fail")
	}
}

func TestNewHasher_CostClamped(t *testing.T) {
	if h := NewHasher(0); h.Cost <= 0 {
		t.Errorf("cost = %d, want positive default", h.Cost)
	}
	if h := NewHasher(100); h.Cost > 31 {
		t.Errorf("cost = %d, want clamped to max", h.Cost)
	}
}
