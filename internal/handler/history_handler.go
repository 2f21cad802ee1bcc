package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/history"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HistoryHandler 历史数据处理器
type HistoryHandler struct {
	history service.HistoryService
}

// NewHistoryHandler 创建历史数据处理器
func NewHistoryHandler(history service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Query 查询历史数据并返回第一个窗口
// POST /ui/history/query
func (h *HistoryHandler) Query(c *gin.Context) {
	var req service.HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}

	view, err := h.history.Query(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, history.ErrStale) {
			c.JSON(http.StatusConflict, common.NewErrorResponse("query superseded by a newer query"))
			return
		}
		respondError(c, "query history", err)
		return
	}
	if len(view.Failed) > 0 {
		resp := common.NewSuccessResponse(view)
		resp.Message = fmt.Sprintf("%d addresses failed", len(view.Failed))
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Window 当前窗口
// GET /ui/history/window
func (h *HistoryHandler) Window(c *gin.Context) {
	c.JSON(http.StatusOK, common.NewSuccessResponse(h.history.View()))
}

// Slide 移动或调整窗口，不访问后端
// POST /ui/history/slide
func (h *HistoryHandler) Slide(c *gin.Context) {
	var req service.SlideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	view, err := h.history.Slide(&req)
	if err != nil {
		respondError(c, "slide window", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(view))
}

// Export 导出当前窗口为xlsx
// GET /ui/history/export
func (h *HistoryHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.history.ExportXLSX(&buf); err != nil {
		respondError(c, "export history", err)
		return
	}
	name := fmt.Sprintf("history_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	logrus.Infof("History exported: %s (%d bytes)", name, buf.Len())
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
