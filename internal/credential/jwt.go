package credential

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/taskpilot/internal/model"
)

// Claims is the payload of the API's bearer token.
type Claims struct {
	UserID model.ID `json:"user_id,omitempty"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user id carried by the token, preferring the
// explicit user_id claim over sub.
func (c *Claims) Identity() model.ID {
	if c.UserID != "" {
		return c.UserID
	}
	return model.ID(c.Subject)
}

// Decode reads the token payload without verifying its signature; the
// server does that. Only the segment count and the payload are checked,
// so an unfamiliar header or alg does not discard a usable token. A token
// without three segments or with a payload that is not base64url JSON
// returns nil, false.
func Decode(token string) (*Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// IsExpired reports whether token is expired at now. A token expiring at
// exactly now is expired, as is one that cannot be decoded or lacks exp.
func IsExpired(token string, now time.Time) bool {
	claims, ok := Decode(token)
	if !ok || claims.ExpiresAt == nil {
		return true
	}
	return now.Unix() >= claims.ExpiresAt.Unix()
}
