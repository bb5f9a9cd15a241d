package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("test-secret", 42, "ADMIN", 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("parse issued token: %v (valid=%v)", err, tok != nil && tok.Valid)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not MapClaims")
	}
	if sub, _ := claims["sub"].(float64); uint64(sub) != 42 {
		t.Errorf("sub = %v, want 42", claims["sub"])
	}
	if role, _ := claims["role"].(string); role != "ADMIN" {
		t.Errorf("role = %v, want ADMIN", claims["role"])
	}
	if until := time.Until(at.Exp); until < 14*time.Minute || until > 16*time.Minute {
		t.Errorf("expiry %v not roughly 15 minutes out", at.Exp)
	}
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	at, err := NewAccessToken("secret-a", 1, "ATTENDANT", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	})
	if err == nil && tok.Valid {
		t.Fatal("token signed with secret-a verified under secret-b")
	}
}

func TestHashRefreshRawStable(t *testing.T) {
	a := HashRefreshRaw("raw-token")
	b := HashRefreshRaw("raw-token")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if a == HashRefreshRaw("other-token") {
		t.Fatal("distinct tokens hash identically")
	}
	if len(a) != 64 {
		t.Fatalf("hash length %d, want 64 hex chars", len(a))
	}
}
