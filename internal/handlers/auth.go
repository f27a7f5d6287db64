package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/gopresence/internal/auth"
)

const claimsKey = "claims"

// AuthMiddleware requires a participant token in the Authorization header. The
// token must belong to the session and participant named in the route.
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := h.issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if sid := c.Param("session_id"); sid != "" && sid != claims.SessionID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is not valid for this session"})
			return
		}
		if pid := c.Param("participant_id"); pid != "" && pid != claims.ParticipantID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is not valid for this participant"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
