package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// GroupHandler 分组处理器
type GroupHandler struct {
	backend Backend
}

// NewGroupHandler 创建分组处理器
func NewGroupHandler(backend Backend) *GroupHandler {
	return &GroupHandler{backend: backend}
}

// List 分组列表
// GET /ui/groups?page=&page_size=
func (h *GroupHandler) List(c *gin.Context) {
	list, err := h.backend.ListGroups(c.Request.Context(), queryInt(c, "page"), queryInt(c, "page_size"))
	if err != nil {
		respondEmptyList(c, "list groups", err, model.GroupList{Data: []*model.Group{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(list))
}

// Get 分组详情
// GET /ui/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	group, err := h.backend.GetGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get group", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(group))
}

// Create 创建分组
// POST /ui/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req model.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	group, err := h.backend.CreateGroup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "create group", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(group))
}

// Update 更新分组
// PUT /ui/groups/:id
func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	group, err := h.backend.UpdateGroup(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "update group", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(group))
}

// Delete 删除分组
// DELETE /ui/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteGroup(c.Request.Context(), id); err != nil {
		respondError(c, "delete group", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(true))
}
