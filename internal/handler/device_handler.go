package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	backend   Backend
	dashboard service.DashboardService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(backend Backend, dashboard service.DashboardService) *DeviceHandler {
	return &DeviceHandler{backend: backend, dashboard: dashboard}
}

// List 设备列表，无过滤条件时返回自动刷新的结果
// GET /ui/devices?group_id=&page=&page_size=
func (h *DeviceHandler) List(c *gin.Context) {
	var q model.DeviceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid query: "+err.Error()))
		return
	}

	view, err := h.dashboard.Devices(c.Request.Context(), &q)
	if err != nil {
		respondEmptyList(c, "list devices", err, model.DeviceList{Devices: []*model.Device{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Get 设备详情
// GET /ui/devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	device, err := h.backend.GetDevice(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get device", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(device))
}

// Create 创建设备
// POST /ui/devices
func (h *DeviceHandler) Create(c *gin.Context) {
	var body model.Object
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	device, err := h.backend.CreateDevice(c.Request.Context(), body)
	if err != nil {
		respondError(c, "create device", err)
		return
	}
	logrus.Infof("Device created: %d %s", device.ID, device.Name)
	c.JSON(http.StatusOK, common.NewSuccessResponse(device))
}

// Update 更新设备
// PUT /ui/devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body model.Object
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	device, err := h.backend.UpdateDevice(c.Request.Context(), id, body)
	if err != nil {
		respondError(c, "update device", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(device))
}

// Delete 删除设备
// DELETE /ui/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteDevice(c.Request.Context(), id); err != nil {
		respondError(c, "delete device", err)
		return
	}
	logrus.Infof("Device deleted: %d", id)
	c.JSON(http.StatusOK, common.NewSuccessResponse(true))
}

// StatusAll 所有设备连接状态（自动刷新）
// GET /ui/devices/status
func (h *DeviceHandler) StatusAll(c *gin.Context) {
	view, err := h.dashboard.Status(c.Request.Context())
	if err != nil {
		respondEmptyList(c, "load device status", err, gin.H{"devices": []interface{}{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Status 单个设备状态
// GET /ui/devices/:id/status
func (h *DeviceHandler) Status(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.backend.DeviceStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, "load device status", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(st))
}

// ProtocolInfo 协议支持情况
// GET /ui/devices/protocol-info
func (h *DeviceHandler) ProtocolInfo(c *gin.Context) {
	info, err := h.backend.ProtocolInfo(c.Request.Context())
	if err != nil {
		respondError(c, "load protocol info", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(info))
}

// Logs 采集日志
// GET /ui/devices/:id/logs?page=&page_size=
func (h *DeviceHandler) Logs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	logs, err := h.backend.DeviceLogs(c.Request.Context(), id, queryInt(c, "page"), queryInt(c, "page_size"))
	if err != nil {
		respondEmptyList(c, "load device logs", err, model.CollectLogList{Logs: []*model.CollectLog{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(logs))
}

// TestConnection 测试设备连接，连接失败时 data.success=false
// POST /ui/devices/test-connection
func (h *DeviceHandler) TestConnection(c *gin.Context) {
	var req model.ConnectionTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	result, err := h.backend.TestConnection(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "test connection", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}
