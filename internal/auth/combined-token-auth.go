package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/adminstore"
)

// CombinedAuthMiddleware accepts either a duppy-go admin API token or an
// OIDC bearer JWT on the same Authorization header, the way the teacher's
// admin API let operators use either credential type interchangeably.
func CombinedAuthMiddleware(oidcVerifier *OIDCAuthVerifier, store *adminstore.Store, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const bearerPrefix = "Bearer "
		ctx := c.Request.Context()
		authHeader := c.GetHeader("Authorization")

		tokenString, ok := strings.CutPrefix(authHeader, bearerPrefix)
		if !ok {
			log.Warnf("missing or invalid Authorization header: %s", authHeader)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization Bearer header"})
			return
		}

		if strings.HasPrefix(tokenString, adminstore.TokenPrefix) {
			token, err := store.GetToken(ctx, tokenString)
			if err != nil {
				log.Warnf("token store error: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}

			if token == nil {
				log.Warn("invalid admin API token, returning unauthorized")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}

			c.Set(UserDataKey, &UserClaims{
				PreferredUsername: token.Username,
			})

			c.Next()
			return
		}

		// Otherwise, treat it as an OIDC Bearer JWT.
		oidcVerifier.BearerTokenAuthMiddleware()(c)
	}
}
