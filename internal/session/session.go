// Package session owns the authenticated session: its model, its
// persistence across restarts, and the publish point every other
// component observes.
package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Source identifies how a session came to exist.
type Source string

const (
	// SourceLogin marks a session produced by a fresh credential exchange.
	SourceLogin Source = "login"

	// SourceHydrated marks a session reconstructed from durable storage.
	SourceHydrated Source = "hydrated"
)

// Claims are the user-facing fields carried by the auth token.
type Claims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url,omitempty"`
	RoleName string `json:"role_name"`
}

// Session is the record proving the current user is authenticated.
// At most one exists per process, held by Store.
type Session struct {
	Token  string
	Claims Claims
	Source Source
}

// Authenticated reports whether s represents a signed-in user. Safe on
// a nil receiver.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// DecodeClaims extracts display claims from a JWT without verifying the
// signature. The issuing server has already validated the credential;
// this decode exists only to show the user who they are.
func DecodeClaims(token string) (Claims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("decode token: unexpected claims type")
	}

	claims := Claims{
		UserID:   stringClaim(mc, "user_id", "sub"),
		Name:     stringClaim(mc, "name"),
		Email:    stringClaim(mc, "email"),
		PhotoURL: stringClaim(mc, "photo_url"),
		RoleName: stringClaim(mc, "role_name", "role"),
	}
	return claims, nil
}

func stringClaim(mc jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v, ok := mc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
