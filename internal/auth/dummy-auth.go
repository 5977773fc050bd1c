package auth

import (
	"github.com/gin-gonic/gin"
)

const UserDataKey = "duppy_admin_userData"

// InjectFakeAuthMiddleware stands in for OIDC during local development, so
// the admin API can be exercised without a real identity provider.
func InjectFakeAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		fakeUserData := UserClaims{
			Subject:           "0000000000",
			Email:             "operator@localhost",
			PreferredUsername: "operator",
		}

		c.Set(UserDataKey, &fakeUserData)
		c.Next()
	}
}
