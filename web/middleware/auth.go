package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/locale"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// AccountLoader finds the account behind a session.
type AccountLoader interface {
	GetById(id int) (*model.User, error)
}

// LoadAccount resolves the session's account for every request. A session
// pointing at a missing account is cleared.
func LoadAccount(users AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := session.GetLoginUserId(c); ok {
			user, err := users.GetById(id)
			switch {
			case err == nil:
				session.SetCurrentUser(c, user)
			case errors.Is(err, service.ErrNotFound):
				_ = session.ClearSession(c)
			default:
				logger.Warning("failed to load session account:", err)
			}
		}
		c.Next()
	}
}

// WantsJSON reports whether the client expects a JSON answer instead of a
// page or redirect.
func WantsJSON(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.Request.URL.Path, "/api/")
}

func deny(c *gin.Context, status int, flashKey, redirect string) {
	msg := locale.T(c, flashKey)
	if WantsJSON(c) {
		c.AbortWithStatusJSON(status, entity.Msg{Success: false, Msg: msg})
		return
	}
	session.AddFlash(c, "danger", msg)
	c.Redirect(http.StatusFound, redirect)
	c.Abort()
}

// LoginRequired stops anonymous requests with 401 or a redirect to /login.
func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsLogin(c) {
			deny(c, http.StatusUnauthorized, "flash.loginRequired", "/login")
			return
		}
		c.Next()
	}
}
