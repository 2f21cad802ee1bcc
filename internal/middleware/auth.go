package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// UserKey 当前用户在gin.Context中的键
const UserKey = "currentUser"

// WantsHTML 判断请求是否来自浏览器页面跳转
func WantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// RespondRedirect 页面请求返回302，接口请求返回 {redirect} 和 401/403
func RespondRedirect(c *gin.Context, path, message string) {
	if WantsHTML(c) {
		c.Redirect(http.StatusFound, path)
		c.Abort()
		return
	}
	status := http.StatusForbidden
	if path == session.LoginPath {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, common.NewRedirectResponse(path, message))
}

// AuthGuard 按权限要求检查会话
func AuthGuard(guard *session.Guard, req session.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Check(c.Request.Context(), req)
		if !decision.Allowed {
			message := "请先登录"
			switch {
			case decision.Redirect != session.LoginPath && req == session.RequireSuperAdmin:
				message = session.MsgSuperAdminRequired
			case decision.Redirect != session.LoginPath:
				message = session.MsgAdminRequired
			}
			RespondRedirect(c, decision.Redirect, message)
			return
		}
		c.Set(UserKey, decision.User)
		c.Next()
	}
}

// CurrentUser 返回守卫放行时的用户
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}
