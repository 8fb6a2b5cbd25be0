// Package session stores login state in the server-side session: the id of
// the authenticated account, the pending second-factor marker, and one-shot
// flash messages.
package session

import (
	"encoding/gob"
	"time"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/web/cache"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	loginUserId  = "LOGIN_USER_ID"
	pendingLogin = "PENDING_LOGIN"
	flashKey     = "FLASH"

	// currentUser is the gin context key of the account loaded for the request.
	currentUser = "current_user"
)

// PendingLogin marks a login whose password was accepted but whose second
// factor has not been verified yet.
type PendingLogin struct {
	AccountId int
	Remember  bool
	CreatedAt time.Time
}

// Expired reports whether the marker is older than ttl at now.
func (p PendingLogin) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(PendingLogin{})
	gob.Register(Flash{})
}

// SetLoginUser authenticates the session as user under a new session id.
// maxAge is in seconds. Any pending marker is dropped.
func SetLoginUser(c *gin.Context, user *model.User, maxAge int) error {
	s := sessions.Default(c)
	s.Set(cache.RenewSessionKey, true)
	s.Delete(pendingLogin)
	s.Set(loginUserId, user.Id)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetLoginUserId returns the id of the authenticated account, if any.
func GetLoginUserId(c *gin.Context) (int, bool) {
	s := sessions.Default(c)
	if obj := s.Get(loginUserId); obj != nil {
		if id, ok := obj.(int); ok {
			return id, true
		}
	}
	return 0, false
}

// SetCurrentUser attaches the account loaded for this request.
func SetCurrentUser(c *gin.Context, user *model.User) {
	c.Set(currentUser, user)
}

// GetLoginUser returns the account loaded for this request, or nil.
func GetLoginUser(c *gin.Context) *model.User {
	if obj, ok := c.Get(currentUser); ok {
		if user, ok := obj.(*model.User); ok {
			return user
		}
	}
	return nil
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}

// ClearSession drops all session state and expires the cookie.
func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	c.Set(currentUser, nil)
	return s.Save()
}

func SetPendingLogin(c *gin.Context, p PendingLogin) error {
	s := sessions.Default(c)
	s.Delete(loginUserId)
	s.Set(pendingLogin, p)
	return s.Save()
}

// GetPendingLogin returns the pending marker if one exists and is younger
// than ttl. An expired marker is removed.
func GetPendingLogin(c *gin.Context, now time.Time, ttl time.Duration) *PendingLogin {
	s := sessions.Default(c)
	obj := s.Get(pendingLogin)
	if obj == nil {
		return nil
	}
	p, ok := obj.(PendingLogin)
	if !ok || p.Expired(now, ttl) {
		s.Delete(pendingLogin)
		_ = s.Save()
		return nil
	}
	return &p
}

func ClearPendingLogin(c *gin.Context) error {
	s := sessions.Default(c)
	s.Delete(pendingLogin)
	return s.Save()
}

// AddFlash queues a message for the next rendered page.
func AddFlash(c *gin.Context, category, message string) {
	s := sessions.Default(c)
	s.Set(flashKey, Flash{Category: category, Message: message})
	_ = s.Save()
}

// PopFlash returns and removes the queued message.
func PopFlash(c *gin.Context) *Flash {
	s := sessions.Default(c)
	obj := s.Get(flashKey)
	if obj == nil {
		return nil
	}
	s.Delete(flashKey)
	_ = s.Save()
	if f, ok := obj.(Flash); ok {
		return &f
	}
	return nil
}
