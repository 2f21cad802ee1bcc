package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// DataHandler 数据处理器
type DataHandler struct {
	backend   Backend
	dashboard service.DashboardService
	history   service.HistoryService
}

// NewDataHandler 创建数据处理器
func NewDataHandler(backend Backend, dashboard service.DashboardService, history service.HistoryService) *DataHandler {
	return &DataHandler{
		backend:   backend,
		dashboard: dashboard,
		history:   history,
	}
}

func bindDataQuery(c *gin.Context) (*model.DataQuery, bool) {
	var q model.DataQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid query: "+err.Error()))
		return nil, false
	}
	return &q, true
}

// Realtime 实时数据，未指定设备和分组时返回自动刷新的结果
// GET /ui/data/realtime?device_id=&group_id=
func (h *DataHandler) Realtime(c *gin.Context) {
	view, err := h.dashboard.Realtime(c.Request.Context(), queryInt(c, "device_id"), queryInt(c, "group_id"))
	if err != nil {
		respondEmptyList(c, "load realtime data", err, model.RealtimeData{RealtimeData: []*model.RealtimeDevice{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Points 数据点列表
// GET /ui/data/points
func (h *DataHandler) Points(c *gin.Context) {
	q, ok := bindDataQuery(c)
	if !ok {
		return
	}
	points, err := h.backend.DataPoints(c.Request.Context(), q)
	if err != nil {
		respondEmptyList(c, "load data points", err, []interface{}{})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(points))
}

// Statistics 数据统计
// GET /ui/data/statistics?device_id=&time_range=
func (h *DataHandler) Statistics(c *gin.Context) {
	q, ok := bindDataQuery(c)
	if !ok {
		return
	}
	stats, err := h.backend.Statistics(c.Request.Context(), q)
	if err != nil {
		respondEmptyList(c, "load statistics", err, model.DataStatistics{Statistics: []model.Object{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(stats))
}

// Anomalies 异常分析
// GET /ui/data/anomalies?device_id=&time_range=
func (h *DataHandler) Anomalies(c *gin.Context) {
	q, ok := bindDataQuery(c)
	if !ok {
		return
	}
	result, err := h.backend.Anomalies(c.Request.Context(), q)
	if err != nil {
		respondError(c, "load anomalies", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

// Addresses 设备的可选地址
// GET /ui/data/addresses/:id
func (h *DataHandler) Addresses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	opts, err := h.history.Addresses(c.Request.Context(), id)
	if err != nil {
		respondError(c, "load device addresses", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(opts))
}
