package controller

import (
	"strconv"

	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-gonic/gin"
)

// APIController serves the JSON endpoints under /api.
type APIController struct {
	BaseController

	datasets        *service.DatasetService
	recommendations *service.RecommendationService
}

func NewAPIController(g *gin.RouterGroup, s *service.Services) *APIController {
	a := &APIController{datasets: s.Datasets, recommendations: s.Recommendations}
	a.initRouter(g)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup) {
	api := g.Group("/api/datasets")
	api.GET("/trending", a.trending)
	api.GET("/:id/recommendations", a.recommend)
}

func (a *APIController) trending(c *gin.Context) {
	days := queryInt(c, "days", trendingDays)
	limit := queryInt(c, "limit", trendingLimit)
	list, err := a.datasets.Trending(c.Request.Context(), days, limit, timeNow())
	if err != nil {
		a.fail(c, err)
		return
	}
	jsonObj(c, list, nil)
}

func (a *APIController) recommend(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	list, err := a.recommendations.Recommend(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	jsonObj(c, list, nil)
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
