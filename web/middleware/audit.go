package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware records every state-changing request of a signed-in user
// once the handler has run.
func AuditMiddleware(auditService *service.AuditLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		user := session.GetLoginUser(c)
		if user == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			return
		}
		action, resource := extractAction(c.Request.Method, route)
		resourceId, _ := strconv.Atoi(c.Param("id"))

		err := auditService.LogAction(service.AuditEntry{
			User:       user,
			Action:     action,
			Resource:   resource,
			ResourceId: resourceId,
			IP:         c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			Details: map[string]any{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			},
		})
		if err != nil {
			logger.Warning("Failed to log audit action:", err)
		}
	}
}

// extractAction derives the action and resource names from a route
// pattern such as /admin/users/:id/role.
func extractAction(method, route string) (action, resource string) {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	resource = "unknown"
	for _, s := range segments {
		if s == "" || strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			continue
		}
		if s != "admin" && s != "api" {
			resource = s
			break
		}
	}
	last := segments[len(segments)-1]
	switch {
	case method == http.MethodDelete || last == "delete":
		action = "DELETE"
	case last == "upload" || strings.HasSuffix(route, "/comments"):
		action = "CREATE"
	case method == http.MethodPut || method == http.MethodPatch:
		action = "UPDATE"
	case !strings.HasPrefix(last, ":"):
		action = strings.ToUpper(last)
	default:
		action = method
	}
	return action, resource
}
