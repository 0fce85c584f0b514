// README: Firebase bearer-token auth middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wasil/internal/infra"
)

const (
	uidKey   = "auth_uid"
	phoneKey = "auth_phone"
	adminKey = "auth_admin"
)

// Auth verifies the Authorization bearer token and stashes the caller's
// identity on the gin context. Customers are keyed by Firebase UID, workers
// by the phone number claim from phone auth.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(uidKey, token.UID)
		c.Set(phoneKey, token.PhoneNumber())
		if admin, ok := token.Claims["admin"].(bool); ok && admin {
			c.Set(adminKey, true)
		}
		c.Next()
	}
}

// RequireAdmin gates the admin route group on the admin custom claim.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(adminKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// CallerUID returns the authenticated Firebase UID.
func CallerUID(c *gin.Context) string {
	return c.GetString(uidKey)
}

// CallerPhone returns the authenticated phone number, empty when the token
// was not issued by phone auth.
func CallerPhone(c *gin.Context) string {
	return c.GetString(phoneKey)
}
