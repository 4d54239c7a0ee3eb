package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDecodeValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC()
	s, err := Decode(signToken(t, "User", exp))
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID != "user-7" {
		t.Fatalf("unexpected user id: %s", s.UserID)
	}
	if s.Role != "user" {
		t.Fatalf("role not normalized: %s", s.Role)
	}
	if s.Expired(time.Now()) {
		t.Fatal("session should not be expired")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := Decode(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestDecodeRejectsMissingExpiry(t *testing.T) {
	claims := Claims{
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7"},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
