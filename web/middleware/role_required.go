package middleware

import (
	"net/http"
	"slices"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// RoleRequired lets through only accounts holding one of roles. Anonymous
// requests get 401 (or /login), other roles 403 (or /).
func RoleRequired(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			deny(c, http.StatusUnauthorized, "flash.loginRequired", "/login")
			return
		}
		if !slices.Contains(roles, user.Role) {
			logger.Infof("user %d with role %s denied %s %s", user.Id, user.Role, c.Request.Method, c.Request.URL.Path)
			deny(c, http.StatusForbidden, "flash.forbidden", "/")
			return
		}
		c.Next()
	}
}
