package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// UserHandler 用户管理处理器
type UserHandler struct {
	backend Backend
}

// NewUserHandler 创建用户管理处理器
func NewUserHandler(backend Backend) *UserHandler {
	return &UserHandler{backend: backend}
}

// List 用户列表
// GET /ui/users?group_id=&page=&per_page=
func (h *UserHandler) List(c *gin.Context) {
	list, err := h.backend.ListUsers(c.Request.Context(), queryInt(c, "group_id"), queryInt(c, "page"), queryInt(c, "per_page"))
	if err != nil {
		respondEmptyList(c, "list users", err, model.UserList{Users: []*model.User{}})
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(list))
}

// Get 用户详情
// GET /ui/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.backend.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user))
}

// Create 创建用户
// POST /ui/users
func (h *UserHandler) Create(c *gin.Context) {
	var req model.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	user, err := h.backend.CreateUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(user))
}

// Update 更新用户
// PUT /ui/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	user, err := h.backend.UpdateUser(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "update user", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user))
}

// Delete 删除用户
// DELETE /ui/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, "delete user", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(true))
}

// ResetPassword 重置用户密码
// PUT /ui/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	if err := h.backend.ResetUserPassword(c.Request.Context(), id, &req); err != nil {
		respondError(c, "reset user password", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(true))
}
