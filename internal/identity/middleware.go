package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxTokenClaims = "mcptrust_token_claims"

// RequireToken returns a Gin middleware that enforces a valid Bearer operator
// token carrying scope. An empty scope accepts any valid token.
//
// On success it injects the *OperatorClaims into the context under the
// "mcptrust_token_claims" key.
func RequireToken(tokens *TokenIssuer, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}
		if scope != "" && !HasScope(claims, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "missing scope " + scope,
			})
			return
		}

		c.Set(ctxTokenClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the operator claims injected by RequireToken.
func ClaimsFromCtx(c *gin.Context) *OperatorClaims {
	v, _ := c.Get(ctxTokenClaims)
	claims, _ := v.(*OperatorClaims)
	return claims
}
