// Package auth binds inbound requests to exactly one tenant. It issues and
// verifies HS256 session tokens and implements the login/register/me flows
// over the credential store.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maritime-ai/maritime-ai-backend/internal/apperrors"
)

// Claims represents the JWT claims structure. The tenant id embedded here is
// the only tenant identity any downstream operation may trust — handlers never
// accept a client-supplied tenant id.
type Claims struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	TenantID   int64  `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens. It is constructed once at
// startup from configuration and passed by reference into the components that
// need it — no package-level secret state.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager creates a TokenManager. The secret is required; expiry
// defaults to 7 days when zero.
func NewTokenManager(secret string, expiry time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required; generate one with: openssl rand -hex 32")
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret is %d characters; minimum is 32", len(secret))
	}
	if expiry == 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiry: expiry}, nil
}

// Generate creates a signed token embedding the user's identity and tenant.
func (m *TokenManager) Generate(email, name string, tenantID int64, tenantName string) (string, error) {
	claims := &Claims{
		Email:      email,
		Name:       name,
		TenantID:   tenantID,
		TenantName: tenantName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "maritime-ai",
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token. Signature or expiry failures map to
// ErrInvalidToken; the underlying parser error is never surfaced to callers.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.TenantID == 0 {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}
