package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-bff/internal/models"
)

// Claims are the storefront bearer token claims.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 token for sub with the given role and lifetime.
func Issue(secret, sub, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseClaims decodes a token without verifying its signature. The client
// only uses the result for display and role-scoping; the backend stays the
// authority.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if claims.Role == "" {
		claims.Role = models.RoleCustomer
	}
	return claims, nil
}

// Expired reports whether the token's exp claim is in the past relative to now.
// Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}
