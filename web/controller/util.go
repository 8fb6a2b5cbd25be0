package controller

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

// getRemoteIp extracts the client address from proxy headers or the socket.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj answers with the Msg envelope. Errors keep status 200 and set
// success to false; use pureJsonMsg for other codes.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := entity.Msg{
		Obj: obj,
	}
	if err == nil {
		m.Success = true
		m.Msg = msg
	} else {
		m.Success = false
		m.Msg = msg + " (" + err.Error() + ")"
		logger.Warning(msg+" failed:", err)
	}
	c.JSON(http.StatusOK, m)
}

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// html renders a page with the current account, the pending flash and the
// request's translator.
func html(c *gin.Context, name string, title string, data gin.H) {
	htmlStatus(c, http.StatusOK, name, title, data)
}

func htmlStatus(c *gin.Context, status int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = I18nWeb(c, title)
	data["request_uri"] = c.Request.RequestURI
	data["flash"] = session.PopFlash(c)
	data["T"] = func(key string, params ...string) string {
		return I18nWeb(c, key, params...)
	}
	user := session.GetLoginUser(c)
	data["isModerator"] = user.CanModerate()
	data["isAdmin"] = user.IsAdmin()
	data["user"] = user
	c.HTML(status, name, getContext(data))
}

// getContext adds the version and name of the hub to h.
func getContext(h gin.H) gin.H {
	a := gin.H{
		"cur_ver":  config.GetVersion(),
		"hub_name": config.GetTitle(),
	}
	for key, value := range h {
		a[key] = value
	}
	return a
}

// idParam parses the ":id" path parameter. It answers 404 itself when the
// value is not a positive number.
func idParam(c *gin.Context) (int, bool) {
	id, err := parsePositive(c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
