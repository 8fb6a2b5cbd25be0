package controller

import (
	"strconv"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
	defaultLogCount   = 100
)

// AuditController exposes the audit trail and the in-memory server log to
// administrators.
type AuditController struct {
	BaseController

	audit *service.AuditLogService
}

func NewAuditController(g *gin.RouterGroup, s *service.Services) *AuditController {
	a := &AuditController{audit: s.Audit}
	a.initRouter(g)
	return a
}

func (a *AuditController) initRouter(g *gin.RouterGroup) {
	admin := g.Group("/admin", middleware.RoleRequired(model.RoleAdmin))
	admin.GET("/audit", a.recent)
	admin.POST("/audit/clean", a.clean)
	admin.GET("/logs", a.logs)
}

func (a *AuditController) recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	entries, err := a.audit.GetRecent(limit)
	if err != nil {
		logger.Error("load audit log failed:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, entries, nil)
		return
	}
	html(c, "admin_audit.html", "pages.admin.auditTitle", gin.H{
		"entries": entries,
	})
}

func (a *AuditController) clean(c *gin.Context) {
	days, err := strconv.Atoi(c.PostForm("days"))
	if err != nil || days <= 0 {
		days = config.GetAuditRetentionDays()
	}
	n, err := a.audit.CleanOldLogs(days, timeNow())
	jsonMsgObj(c, I18nWeb(c, "pages.admin.auditCleaned"), gin.H{"deleted": n}, err)
}

func (a *AuditController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil || count <= 0 {
		count = defaultLogCount
	}
	jsonObj(c, logger.GetLogs(count, c.DefaultQuery("level", "info")), nil)
}
