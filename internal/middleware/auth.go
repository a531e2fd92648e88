// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request ids, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attempts before any
// token verification. Auth populates the tenant identity that every handler
// scopes its work to.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/auth"
)

// gin.Context keys populated by AuthMiddleware.
const (
	ContextClaimsKey     = "claims"
	ContextTenantIDKey   = "tenant_id"
	ContextEmailKey      = "email"
	ContextTenantNameKey = "tenant_name"
)

// AuthMiddleware verifies the Bearer token and places the tenant identity in
// the request context. Everything downstream trusts tenant_id from here and
// nowhere else; request bodies and URLs never carry tenant selection.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTenantIDKey, claims.TenantID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextTenantNameKey, claims.TenantName)

		c.Next()
	}
}

// TenantID returns the verified tenant id for the request. The second return
// is false on unauthenticated routes.
func TenantID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextTenantIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}

// Claims returns the verified token claims for the request.
func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
