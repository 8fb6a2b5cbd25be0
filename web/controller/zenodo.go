package controller

import (
	"net/http"

	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-gonic/gin"
)

// ZenodoController checks the deposition API from the outside.
type ZenodoController struct {
	zenodo *service.ZenodoService
}

func NewZenodoController(g *gin.RouterGroup, s *service.Services) *ZenodoController {
	a := &ZenodoController{zenodo: s.Zenodo}
	g.GET("/zenodo/test", a.test)
	return a
}

func (a *ZenodoController) test(c *gin.Context) {
	report := a.zenodo.TestFullConnection(c.Request.Context())
	status := http.StatusOK
	if !report.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, report)
}
