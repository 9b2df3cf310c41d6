package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/admin"
)

const KeyAdminUsername = "admin_username"

// RequireAdmin checks the X-Admin-Username / X-Admin-Token pair
func RequireAdmin(store admin.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader("X-Admin-Username")
		token := c.GetHeader("X-Admin-Token")
		if username == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required"})
			return
		}
		acct, err := admin.ValidateAdmin(c.Request.Context(), store, username, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
			return
		}
		c.Set(KeyAdminUsername, acct.Username)
		c.Next()
	}
}
