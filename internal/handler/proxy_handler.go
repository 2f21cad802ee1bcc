package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"
	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
)

// ProxyHandler 把 /api/* 请求透传给后端，附带当前会话令牌
type ProxyHandler struct {
	forwarder Forwarder
}

// NewProxyHandler 创建代理处理器
func NewProxyHandler(forwarder Forwarder) *ProxyHandler {
	return &ProxyHandler{forwarder: forwarder}
}

// Forward 透传请求
// ANY /api/*path
func (h *ProxyHandler) Forward(c *gin.Context) {
	path := "/api" + c.Param("path")
	logrus.Debugf("Proxying %s %s", c.Request.Method, path)

	resp, err := h.forwarder.Forward(c.Request.Context(), c.Request.Method, path, c.Request.URL.RawQuery, c.Request.Header, c.Request.Body)
	if err != nil {
		respondError(c, "proxy "+path, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		middleware.MarkUpstream(c)
	}
	apiclient.CopyHeader(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logrus.Warnf("Failed to copy proxy response for %s: %v", path, err)
	}
}
