package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// CommentController adds comments to datasets and lets moderators manage
// them.
type CommentController struct {
	BaseController

	comments *service.CommentService
	datasets *service.DatasetService
}

func NewCommentController(g *gin.RouterGroup, s *service.Services) *CommentController {
	a := &CommentController{comments: s.Comments, datasets: s.Datasets}
	a.initRouter(g)
	return a
}

func (a *CommentController) initRouter(g *gin.RouterGroup) {
	g.POST("/dataset/:id/comments", middleware.LoginRequired(), a.create)

	mod := g.Group("/comments", middleware.RoleRequired(model.RoleAdmin, model.RoleCurator))
	mod.POST("/:id/approve", a.approve)
	mod.POST("/:id/hide", a.hide)
	mod.POST("/:id/delete", a.delete)
}

// datasetPage is where the HTML flows return to after a comment action.
func (a *CommentController) datasetPage(c *gin.Context, datasetId int) string {
	ds, err := a.datasets.GetById(datasetId)
	if err != nil {
		return "/"
	}
	if ds.IsSynchronized() {
		return "/doi/" + ds.DSMetaData.DatasetDoi
	}
	if user := session.GetLoginUser(c); user != nil && user.Id == ds.UserId {
		return fmt.Sprintf("/dataset/unsynchronized/%d", ds.Id)
	}
	return "/"
}

func (a *CommentController) create(c *gin.Context) {
	datasetId, ok := idParam(c)
	if !ok {
		return
	}
	var form entity.CommentForm
	_ = c.ShouldBind(&form)

	comment, err := a.comments.Create(datasetId, session.GetLoginUser(c), form.Content)
	switch {
	case errors.Is(err, service.ErrEmptyComment):
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.commentEmpty", a.datasetPage(c, datasetId))
		return
	case errors.Is(err, service.ErrNotFound):
		c.AbortWithStatus(http.StatusNotFound)
		return
	case err != nil:
		a.flashRedirect(c, statusFor(err), "danger", flashKeyFor(err), a.datasetPage(c, datasetId))
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusCreated, entity.Msg{Success: true, Msg: I18nWeb(c, "flash.commentAdded"), Obj: comment})
		return
	}
	session.AddFlash(c, "success", I18nWeb(c, "flash.commentAdded"))
	c.Redirect(http.StatusFound, a.datasetPage(c, datasetId))
}

func (a *CommentController) approve(c *gin.Context) {
	a.moderate(c, a.comments.Approve)
}

func (a *CommentController) hide(c *gin.Context) {
	a.moderate(c, a.comments.Hide)
}

func (a *CommentController) moderate(c *gin.Context, action func(*model.User, int) (*model.DatasetComment, error)) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	comment, err := action(session.GetLoginUser(c), id)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			logger.Error("moderate comment failed:", err)
		}
		a.flashRedirect(c, statusFor(err), "danger", flashKeyFor(err), "/")
		return
	}
	if middleware.WantsJSON(c) {
		jsonMsgObj(c, I18nWeb(c, "flash.commentUpdated"), comment, nil)
		return
	}
	session.AddFlash(c, "success", I18nWeb(c, "flash.commentUpdated"))
	c.Redirect(http.StatusFound, a.datasetPage(c, comment.DataSetId))
}

func (a *CommentController) delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	datasetId, err := a.comments.Delete(session.GetLoginUser(c), id)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			logger.Error("delete comment failed:", err)
		}
		a.flashRedirect(c, statusFor(err), "danger", flashKeyFor(err), "/")
		return
	}
	a.flashRedirect(c, http.StatusOK, "success", "flash.commentDeleted", a.datasetPage(c, datasetId))
}
