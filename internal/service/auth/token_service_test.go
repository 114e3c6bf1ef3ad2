package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestIssueAndValidate_RoundTrip(t *testing.T) {
	// Arrange
	service := NewTokenService("test-secret-key", time.Hour, newTestLogger())

	// Act
	token, err := service.Issue("chef-maria", "kitchen-1", 600)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	identity, room, sessionID, err := service.Validate(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if identity != "chef-maria" {
		t.Errorf("expected identity 'chef-maria', got %q", identity)
	}
	if room != "kitchen-1" {
		t.Errorf("expected room 'kitchen-1', got %q", room)
	}
	if sessionID == "" {
		t.Error("expected a session ID")
	}
}

func TestIssue_DistinctSessionsPerToken(t *testing.T) {
	service := NewTokenService("test-secret-key", time.Hour, newTestLogger())

	t1, _ := service.Issue("chef-maria", "kitchen-1", 600)
	t2, _ := service.Issue("chef-maria", "kitchen-1", 600)

	_, _, s1, err1 := service.Validate(t1)
	_, _, s2, err2 := service.Validate(t2)
	if err1 != nil || err2 != nil {
		t.Fatalf("expected valid tokens, got %v / %v", err1, err2)
	}
	if s1 == s2 {
		t.Error("each issued token must carry its own session ID")
	}
}

func TestIssue_EmptyIdentityRejected(t *testing.T) {
	service := NewTokenService("test-secret-key", time.Hour, newTestLogger())

	if _, err := service.Issue("", "kitchen-1", 600); err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour, newTestLogger())
	validator := NewTokenService("secret-b", time.Hour, newTestLogger())

	token, err := issuer.Issue("chef-maria", "kitchen-1", 600)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, _, _, err := validator.Validate(token); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
	if err != nil && !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	service := NewTokenService("test-secret-key", time.Hour, newTestLogger())

	token, err := service.Issue("chef-maria", "kitchen-1", 1)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Forge an already-expired copy instead of sleeping.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "chef-maria",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ID:        "expired",
		},
		Room: "kitchen-1",
		Type: "session",
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("signing forged token failed: %v", err)
	}

	if _, _, _, err := service.Validate(expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	// The fresh token must still validate.
	if _, _, _, err := service.Validate(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
}

func TestValidate_WrongType(t *testing.T) {
	service := NewTokenService("test-secret-key", time.Hour, newTestLogger())

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "chef-maria",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        "x",
		},
		Type: "refresh",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, _, _, err := service.Validate(token); err == nil {
		t.Fatal("expected non-session token to be rejected")
	}
}
