package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// msgBadCredentials 后端没有给出原因时的登录失败提示
const msgBadCredentials = "用户名或密码错误"

// AuthHandler 登录会话处理器
type AuthHandler struct {
	auth service.AuthService
}

// NewAuthHandler 创建登录会话处理器
func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginView 登录页状态，已登录时提示跳转首页
// GET /login
func (h *AuthHandler) LoginView(c *gin.Context) {
	state := h.auth.State()
	if state.IsAuthenticated {
		c.JSON(http.StatusOK, common.NewRedirectResponse(session.HomePath, "already logged in"))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"isAuthenticated": false}))
}

// Login 登录
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}

	state, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		var ue *apiclient.UnauthorizedError
		if errors.As(err, &ue) {
			msg := ue.Message
			if msg == "" {
				msg = msgBadCredentials
			}
			logrus.Warnf("Login rejected for %s: %s", req.Username, msg)
			c.JSON(http.StatusUnauthorized, common.NewErrorResponse(msg))
			return
		}
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"user":            state.User,
		"isAuthenticated": state.IsAuthenticated,
		"redirect":        session.HomePath,
	}))
}

// Logout 退出登录
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		respondError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, common.NewRedirectResponse(session.LoginPath, "logged out"))
}

// Me 当前用户
// GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context())
	if err != nil {
		respondError(c, "load current user", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user))
}

// ChangePassword 修改密码
// POST /me/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request: "+err.Error()))
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), &req); err != nil {
		respondError(c, "change password", err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(true))
}
