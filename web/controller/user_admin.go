package controller

import (
	"errors"
	"net/http"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// UserAdminController lets administrators list accounts and change roles.
type UserAdminController struct {
	BaseController

	svc *service.UserAdminService
}

func NewUserAdminController(g *gin.RouterGroup, s *service.Services) *UserAdminController {
	a := &UserAdminController{svc: s.UserAdmin}
	a.initRouter(g)
	return a
}

func (a *UserAdminController) initRouter(g *gin.RouterGroup) {
	admin := g.Group("/admin", middleware.RoleRequired(model.RoleAdmin))
	admin.GET("/users", a.list)
	admin.POST("/users/:id/role", a.updateRole)
}

func (a *UserAdminController) list(c *gin.Context) {
	users, err := a.svc.ListUsers()
	if err != nil {
		logger.Error("list users failed:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, users, nil)
		return
	}
	html(c, "admin_users.html", "pages.admin.usersTitle", gin.H{
		"users": users,
		"roles": model.Roles,
	})
}

func (a *UserAdminController) updateRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var form entity.RoleForm
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidRole", "/admin/users")
		return
	}

	dto, err := a.svc.UpdateRole(id, form.Role)
	switch {
	case errors.Is(err, service.ErrInvalidRole):
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidRole", "/admin/users")
		return
	case errors.Is(err, service.ErrNotFound):
		a.flashRedirect(c, http.StatusNotFound, "danger", "flash.userNotFound", "/admin/users")
		return
	case err != nil:
		logger.Error("update role failed:", err)
		a.fail(c, err)
		return
	}

	logger.Infof("user %d set role of user %d to %s", session.GetLoginUser(c).Id, dto.Id, dto.Role)
	msg := I18nWeb(c, "flash.roleUpdated", "Email=="+dto.Email, "Role=="+string(dto.Role))
	if middleware.WantsJSON(c) {
		jsonMsgObj(c, msg, dto, nil)
		return
	}
	session.AddFlash(c, "success", msg)
	c.Redirect(http.StatusFound, "/admin/users")
}
