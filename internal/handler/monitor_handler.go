package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/repository"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
	"github.com/Smalllight01/plc-admin-sub001/pkg/hash"
)

// StoreStats 会话存储统计
type StoreStats interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// MonitorHandler 健康检查与运行状态
type MonitorHandler struct {
	breakers  *middleware.BreakerGroup
	upstream  *middleware.BreakerGroup
	limiters  *middleware.RateLimiterGroup
	cache     *repository.MemoryRepository
	dashboard service.DashboardService
	store     StoreStats
	ring      *hash.Ring
	gatherer  prometheus.Gatherer
}

// MonitorDeps 监控所需的组件，为nil的项不输出
type MonitorDeps struct {
	Breakers  *middleware.BreakerGroup // 入站路由
	Upstream  *middleware.BreakerGroup // 后端接口
	Limiters  *middleware.RateLimiterGroup
	Cache     *repository.MemoryRepository
	Dashboard service.DashboardService
	Store     StoreStats
	Ring      *hash.Ring
	Gatherer  prometheus.Gatherer
}

// NewMonitorHandler 创建监控处理器
func NewMonitorHandler(deps MonitorDeps) *MonitorHandler {
	return &MonitorHandler{
		breakers:  deps.Breakers,
		upstream:  deps.Upstream,
		limiters:  deps.Limiters,
		cache:     deps.Cache,
		dashboard: deps.Dashboard,
		store:     deps.Store,
		ring:      deps.Ring,
		gatherer:  deps.Gatherer,
	}
}

// Health 健康检查
// GET /health
func (h *MonitorHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.ring != nil {
		nodes := h.ring.Nodes()
		resp["nodes"] = nodes
		resp["count"] = len(nodes)
	}
	c.JSON(http.StatusOK, resp)
}

// Status 系统状态
// GET /monitor/status
func (h *MonitorHandler) Status(c *gin.Context) {
	data := gin.H{}
	if h.breakers != nil {
		data["circuit_breaker"] = h.breakers.Stats()
	}
	if h.upstream != nil {
		data["backend_breaker"] = h.upstream.Stats()
	}
	if h.limiters != nil {
		data["rate_limit"] = h.limiters.Stats().GetStats()
	}
	if h.cache != nil {
		data["cache"] = h.cache.Stats()
		data["topics"] = h.cache.Topics()
	}
	if h.dashboard != nil {
		data["poll_tasks"] = h.dashboard.Tasks()
	}
	if h.store != nil {
		stats, err := h.store.GetStats(c.Request.Context())
		if err != nil {
			logrus.Warnf("Failed to load session store stats: %v", err)
		} else {
			data["session_store"] = stats
		}
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(data))
}

// Metrics Prometheus指标
// GET /metrics
func (h *MonitorHandler) Metrics() gin.HandlerFunc {
	gatherer := h.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
