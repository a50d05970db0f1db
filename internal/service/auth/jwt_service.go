// Package auth issues and validates the bearer tokens that identify library
// users to the API. A token carries the user name, which is also the name
// tasks are submitted under, and whether the user is an administrator.
package auth

import (
	"context"
	"time"
)

// Principal is an authenticated library user.
type Principal struct {
	Name  string
	Admin bool
}

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for p.
	GenerateToken(ctx context.Context, p Principal) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated contents of an access token.
type Claims struct {
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Principal returns the user the token was issued for.
func (c *Claims) Principal() Principal {
	return Principal{Name: c.Name, Admin: c.Admin}
}
