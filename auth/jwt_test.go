package auth

import (
	"testing"
	"time"

	"Gin_postgres_redis_tool_booking/models"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, issued, err := GenerateToken(secret, time.Hour, "u-1", "admin", models.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u-1" {
		t.Errorf("expected user_id u-1, got %q", claims.UserID)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", claims.Role)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("expected jti %q, got %q", issued.ID, claims.ID)
	}
}

func TestTokensHaveDistinctIDs(t *testing.T) {
	_, a, _ := GenerateToken("s", time.Hour, "u-1", "alice", models.RoleUser)
	_, b, _ := GenerateToken("s", time.Hour, "u-1", "alice", models.RoleUser)
	if a.ID == b.ID {
		t.Error("expected distinct token ids")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _, _ := GenerateToken("secret1", time.Hour, "u-1", "admin", models.RoleAdmin)

	if _, err := ValidateToken("secret2", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := ValidateToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestGenerateTokenDefaultTTL(t *testing.T) {
	_, claims, err := GenerateToken("secret", 0, "u-1", "alice", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTokenTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultTokenTTL, got)
	}
}

func TestTokenExpiry(t *testing.T) {
	token, _, _ := GenerateToken("test", 2*time.Hour, "u-1", "test", models.RoleUser)
	claims, _ := ValidateToken("test", token)

	expected := time.Now().Add(2 * time.Hour)
	if d := claims.ExpiresAt.Time.Sub(expected); d > time.Minute || d < -time.Minute {
		t.Errorf("expiry off by %v", d)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword(hash, "hunter2"); err != nil {
		t.Errorf("expected match: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
	if err := CheckPassword("", "anything"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials for empty hash, got %v", err)
	}
}
