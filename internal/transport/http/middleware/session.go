package middleware

import (
	"errors"
	"net/http"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	applog "github.com/ErlanBelekov/medico-billing/internal/log"
	"github.com/ErlanBelekov/medico-billing/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	errUnauthorized = "Unauthorized"
	errInvalidToken = "Invalid token"
	errForbidden    = "Forbidden"

	// Gin context keys set by Session.
	UserIDKey = "userID"
	ClaimsKey = "claims"
)

// TokenVerifier is satisfied by *session.Issuer.
type TokenVerifier interface {
	CookieName() string
	Verify(token string) (*session.Claims, error)
}

// Session authenticates the request from the session cookie and sets
// "userID" and "claims" in the gin context.
func Session(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(verifier.CookieName())
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "message": errUnauthorized})
			return
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			msg := errInvalidToken
			if errors.Is(err, domain.ErrUnauthorized) {
				msg = errUnauthorized
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "message": msg})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(applog.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequireRole runs after Session and rejects callers whose token carries a different role.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "message": errUnauthorized})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": false, "message": errForbidden})
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*session.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*session.Claims)
	return claims, ok
}
