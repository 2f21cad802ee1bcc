package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// SystemHandler 设置、性能分析与仪表盘处理器
type SystemHandler struct {
	backend   Backend
	dashboard service.DashboardService
	toasts    *session.Toasts
}

// NewSystemHandler 创建处理器
func NewSystemHandler(backend Backend, dashboard service.DashboardService, toasts *session.Toasts) *SystemHandler {
	return &SystemHandler{backend: backend, dashboard: dashboard, toasts: toasts}
}

// Settings 系统设置
// GET /ui/settings
func (h *SystemHandler) Settings(c *gin.Context) {
	settings, err := h.backend.Settings(c.Request.Context())
	if err != nil {
		respondError(c, "load settings", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(settings))
}

// UpdateSettings 更新系统设置
// PUT /ui/settings
func (h *SystemHandler) UpdateSettings(c *gin.Context) {
	var req model.SystemSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, "validate settings", err)
		return
	}
	settings, err := h.backend.UpdateSettings(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "update settings", err)
		return
	}
	h.toasts.Push(session.ToastSuccess, "设置已保存")
	c.JSON(http.StatusOK, common.NewSuccessResponse(settings))
}

func bindPerformanceQuery(c *gin.Context) (*model.PerformanceQuery, bool) {
	var q model.PerformanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid query: "+err.Error()))
		return nil, false
	}
	return &q, true
}

// PerformanceOverview 性能概览
// GET /ui/performance/overview?hours=
func (h *SystemHandler) PerformanceOverview(c *gin.Context) {
	q, ok := bindPerformanceQuery(c)
	if !ok {
		return
	}
	result, err := h.backend.PerformanceOverview(c.Request.Context(), q)
	if err != nil {
		respondError(c, "load performance overview", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

// DevicePerformance 单设备性能
// GET /ui/performance/device/:id?hours=
func (h *SystemHandler) DevicePerformance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, ok := bindPerformanceQuery(c)
	if !ok {
		return
	}
	result, err := h.backend.DevicePerformance(c.Request.Context(), id, q)
	if err != nil {
		respondError(c, "load device performance", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

// PerformanceTrends 性能趋势
// GET /ui/performance/trends?hours=&interval=&device_id=
func (h *SystemHandler) PerformanceTrends(c *gin.Context) {
	q, ok := bindPerformanceQuery(c)
	if !ok {
		return
	}
	result, err := h.backend.PerformanceTrends(c.Request.Context(), q)
	if err != nil {
		respondError(c, "load performance trends", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

// Dashboard 仪表盘统计（自动刷新）
// GET /ui/dashboard
func (h *SystemHandler) Dashboard(c *gin.Context) {
	view, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "load dashboard stats", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Toasts 取出待显示的提示
// GET /ui/toasts
func (h *SystemHandler) Toasts(c *gin.Context) {
	c.JSON(http.StatusOK, common.NewSuccessResponse(h.toasts.Drain()))
}
