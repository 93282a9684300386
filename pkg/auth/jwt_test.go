package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateToken("u-1", "reviewer", "reviewer@example.com")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.UserID != "u-1" || claims.Username != "reviewer" || claims.Email != "reviewer@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	other, _ := NewJWTManager("other", time.Hour).GenerateToken("u-1", "x", "x@example.com")
	expired, _ := NewJWTManager("secret", -time.Minute).GenerateToken("u-1", "x", "x@example.com")

	for name, token := range map[string]string{
		"wrong key": other,
		"expired":   expired,
		"garbage":   "not.a.token",
	} {
		if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}
