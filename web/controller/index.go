package controller

import (
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-gonic/gin"
)

const (
	trendingDays  = 7
	trendingLimit = 5
)

// IndexController serves the home page.
type IndexController struct {
	BaseController

	datasets *service.DatasetService
}

func NewIndexController(g *gin.RouterGroup, s *service.Services) *IndexController {
	a := &IndexController{datasets: s.Datasets}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
}

func (a *IndexController) index(c *gin.Context) {
	trending, err := a.datasets.Trending(c.Request.Context(), trendingDays, trendingLimit, timeNow())
	if err != nil {
		logger.Warning("unable to load trending datasets:", err)
	}
	html(c, "index.html", "pages.index.title", gin.H{
		"trending": trending,
	})
}
