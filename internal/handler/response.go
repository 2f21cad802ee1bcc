package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"
	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// respondError 按错误类型返回，401统一跳转登录页
func respondError(c *gin.Context, op string, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		middleware.RespondRedirect(c, session.LoginPath, apiclient.Message(err))
		return
	}
	status := apiclient.StatusCode(err)
	markUpstream(c, err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("Failed to %s: %v", op, err)
	} else {
		logrus.Warnf("Failed to %s: %v", op, err)
	}
	c.JSON(status, common.NewErrorResponse(apiclient.Message(err)))
}

// respondEmptyList 列表页面出错时返回空列表，页面仍可渲染
func respondEmptyList(c *gin.Context, op string, err error, empty interface{}) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		middleware.RespondRedirect(c, session.LoginPath, apiclient.Message(err))
		return
	}
	markUpstream(c, err)
	logrus.Errorf("Failed to %s: %v", op, err)
	resp := common.NewErrorResponse(apiclient.Message(err))
	resp.Data = empty
	c.JSON(apiclient.StatusCode(err), resp)
}

// markUpstream 本服务自身的错误之外都来自后端
func markUpstream(c *gin.Context, err error) {
	var de *model.DashboardError
	if !errors.As(err, &de) {
		middleware.MarkUpstream(c)
	}
}

// paramID 解析路径中的正整数ID
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid "+name))
		return 0, false
	}
	return id, true
}

// queryInt 解析可选的整数查询参数
func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
