package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"presencegate/internal/apperr"
)

const principalKey = "principal"

// Bearer enforces bearer access tokens signed with HS256 and stores the caller's Principal
// on the context.
func Bearer(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "reason": apperr.ReasonInvalidCredentials})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := ParseAs(tokenStr, signingKey, issuer, TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "reason": apperr.ReasonInvalidCredentials})
			return
		}
		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// PrincipalFrom returns the principal set by Bearer.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
