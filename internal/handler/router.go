package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Guard    *session.Guard
	Breakers *middleware.BreakerGroup
	Limiters *middleware.RateLimiterGroup
	IPQPS    int

	Auth    *AuthHandler
	Device  *DeviceHandler
	Group   *GroupHandler
	User    *UserHandler
	Data    *DataHandler
	History *HistoryHandler
	System  *SystemHandler
	Proxy   *ProxyHandler
	Monitor *MonitorHandler
}

// SetupRouter 初始化路由
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// 监控接口不限流
	r.GET("/health", deps.Monitor.Health)
	r.GET("/metrics", deps.Monitor.Metrics())
	r.GET("/monitor/status", deps.Monitor.Status)

	if deps.IPQPS > 0 {
		r.Use(middleware.IPRateLimitMiddleware(deps.IPQPS, deps.IPQPS*2))
	}
	if deps.Limiters != nil {
		r.Use(middleware.RateLimitMiddleware(deps.Limiters))
	}
	if deps.Breakers != nil {
		r.Use(middleware.CircuitBreakerMiddleware(deps.Breakers))
	}

	requireAuth := middleware.AuthGuard(deps.Guard, session.RequireAuth)
	requireAdmin := middleware.AuthGuard(deps.Guard, session.RequireAdmin)
	requireSuperAdmin := middleware.AuthGuard(deps.Guard, session.RequireSuperAdmin)

	// 会话
	r.GET("/login", deps.Auth.LoginView)
	r.POST("/login", deps.Auth.Login)
	r.POST("/logout", deps.Auth.Logout)
	r.GET("/me", requireAuth, deps.Auth.Me)
	r.POST("/me/password", requireAuth, deps.Auth.ChangePassword)

	ui := r.Group("/ui")
	{
		ui.GET("/toasts", deps.System.Toasts)

		viewer := ui.Group("", requireAuth)
		{
			viewer.GET("/dashboard", deps.System.Dashboard)

			viewer.GET("/devices", deps.Device.List)
			viewer.GET("/devices/status", deps.Device.StatusAll)
			viewer.GET("/devices/protocol-info", deps.Device.ProtocolInfo)
			viewer.GET("/devices/:id", deps.Device.Get)
			viewer.GET("/devices/:id/status", deps.Device.Status)
			viewer.GET("/devices/:id/logs", deps.Device.Logs)

			viewer.GET("/data/realtime", deps.Data.Realtime)
			viewer.GET("/data/points", deps.Data.Points)
			viewer.GET("/data/statistics", deps.Data.Statistics)
			viewer.GET("/data/anomalies", deps.Data.Anomalies)
			viewer.GET("/data/addresses/:id", deps.Data.Addresses)

			viewer.POST("/history/query", deps.History.Query)
			viewer.GET("/history/window", deps.History.Window)
			viewer.POST("/history/slide", deps.History.Slide)
			viewer.GET("/history/export", deps.History.Export)
		}

		admin := ui.Group("", requireAdmin)
		{
			admin.POST("/devices", deps.Device.Create)
			admin.POST("/devices/test-connection", deps.Device.TestConnection)
			admin.PUT("/devices/:id", deps.Device.Update)
			admin.DELETE("/devices/:id", deps.Device.Delete)

			admin.GET("/performance/overview", deps.System.PerformanceOverview)
			admin.GET("/performance/device/:id", deps.System.DevicePerformance)
			admin.GET("/performance/trends", deps.System.PerformanceTrends)
		}

		super := ui.Group("", requireSuperAdmin)
		{
			super.GET("/groups", deps.Group.List)
			super.POST("/groups", deps.Group.Create)
			super.GET("/groups/:id", deps.Group.Get)
			super.PUT("/groups/:id", deps.Group.Update)
			super.DELETE("/groups/:id", deps.Group.Delete)
			super.GET("/users", deps.User.List)
			super.POST("/users", deps.User.Create)
			super.GET("/users/:id", deps.User.Get)
			super.PUT("/users/:id", deps.User.Update)
			super.DELETE("/users/:id", deps.User.Delete)
			super.PUT("/users/:id/reset-password", deps.User.ResetPassword)

			super.GET("/settings", deps.System.Settings)
			super.PUT("/settings", deps.System.UpdateSettings)
		}
	}

	// 透传代理
	r.Any("/api/*path", requireAuth, deps.Proxy.Forward)

	return r
}
