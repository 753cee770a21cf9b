package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxSubject = "sub"

// BearerToken extracts the token from the Authorization header or, for
// websocket upgrades, the token query parameter.
func BearerToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// JWTMiddleware guards bridge routes. An empty secret disables the check.
func JWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		tok := BearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseToken(secret, tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxSubject, claims.Subject)
		c.Next()
	}
}
