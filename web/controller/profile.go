package controller

import (
	"errors"
	"net/http"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	BaseController

	profiles *service.ProfileService
	datasets *service.DatasetService
}

func NewProfileController(g *gin.RouterGroup, s *service.Services) *ProfileController {
	a := &ProfileController{profiles: s.Profiles, datasets: s.Datasets}
	a.initRouter(g)
	return a
}

func (a *ProfileController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/profile", middleware.LoginRequired())
	g.GET("/edit", a.editPage)
	g.POST("/edit", a.edit)
	g.GET("/summary", a.summary)
}

func (a *ProfileController) editPage(c *gin.Context) {
	user := session.GetLoginUser(c)
	profile, err := a.profiles.Get(user.Id)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		logger.Error("load profile failed:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, profile, nil)
		return
	}
	html(c, "profile_edit.html", "pages.profile.editTitle", gin.H{
		"profile": profile,
	})
}

func (a *ProfileController) edit(c *gin.Context) {
	user := session.GetLoginUser(c)
	var form model.UserProfile
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidForm", "/profile/edit")
		return
	}
	profile, err := a.profiles.Update(user.Id, form)
	if err != nil {
		a.flashRedirect(c, statusFor(err), "danger", flashKeyFor(err), "/profile/edit")
		return
	}
	if middleware.WantsJSON(c) {
		jsonMsgObj(c, I18nWeb(c, "flash.profileSaved"), profile, nil)
		return
	}
	session.AddFlash(c, "success", I18nWeb(c, "flash.profileSaved"))
	c.Redirect(http.StatusFound, "/profile/summary")
}

func (a *ProfileController) summary(c *gin.Context) {
	user := session.GetLoginUser(c)
	synced, err := a.datasets.GetSynchronized(user.Id)
	if err != nil {
		logger.Error("load datasets failed:", err)
		a.fail(c, err)
		return
	}
	unsynced, err := a.datasets.GetUnsynchronized(user.Id)
	if err != nil {
		logger.Error("load datasets failed:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, gin.H{"profile": user.Profile, "synchronized": synced, "unsynchronized": unsynced}, nil)
		return
	}
	html(c, "profile_summary.html", "pages.profile.summaryTitle", gin.H{
		"profile":        user.Profile,
		"synchronized":   synced,
		"unsynchronized": unsynced,
	})
}
