// Package controller provides the HTTP handlers of the hub: authentication,
// administration, profiles, datasets and the JSON API.
package controller

import (
	"errors"
	"net/http"

	"github.com/gameshub/uvlhub/web/locale"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController carries the helpers shared by every controller.
type BaseController struct{}

// flashRedirect answers with a flash and a redirect, or with a JSON message
// when the client asked for JSON.
func (a *BaseController) flashRedirect(c *gin.Context, status int, category, key, location string, params ...string) {
	msg := I18nWeb(c, key, params...)
	if middleware.WantsJSON(c) {
		pureJsonMsg(c, status, status < http.StatusBadRequest, msg)
		return
	}
	session.AddFlash(c, category, msg)
	c.Redirect(http.StatusFound, location)
}

// fail converts a service error into its status code and message.
func (a *BaseController) fail(c *gin.Context, err error) {
	status := statusFor(err)
	pureJsonMsg(c, status, false, I18nWeb(c, flashKeyFor(err)))
}

// I18nWeb translates key for the current request.
func I18nWeb(c *gin.Context, key string, params ...string) string {
	return locale.T(c, key, params...)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOtp),
		errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrOtpRequired):
		return http.StatusAccepted
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidCSV),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func flashKeyFor(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return "flash.invalidCredentials"
	case errors.Is(err, service.ErrInvalidOtp):
		return "flash.invalidCode"
	case errors.Is(err, service.ErrUnauthorized):
		return "flash.loginRequired"
	case errors.Is(err, service.ErrForbidden):
		return "flash.forbidden"
	case errors.Is(err, service.ErrNotFound):
		return "flash.notFound"
	case errors.Is(err, service.ErrInvalidRole):
		return "flash.invalidRole"
	case errors.Is(err, service.ErrInvalidCSV):
		return "flash.invalidCsv"
	case errors.Is(err, service.ErrInvalidInput):
		return "flash.invalidForm"
	}
	return "flash.serverError"
}
