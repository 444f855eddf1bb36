package testutil

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/taskpilot/internal/credential"
)

// NewToken signs a throwaway HS256 token for userID that expires at exp.
func NewToken(t *testing.T, userID, email string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"email":   email,
		"exp":     exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

// NewTokenStore returns a token store backed by an in-memory keyring.
func NewTokenStore(t *testing.T) *credential.TokenStore {
	t.Helper()
	return credential.NewTokenStore(keyring.NewArrayKeyring(nil))
}
