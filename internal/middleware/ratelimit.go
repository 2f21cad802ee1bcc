package middleware

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// TokenBucketLimiter 令牌桶限流器
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter 创建令牌桶限流器
// qps: 每秒允许的请求数
// burst: 允许的突发请求数
func NewTokenBucketLimiter(qps int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// Allow 检查是否允许请求
func (l *TokenBucketLimiter) Allow() bool {
	return l.limiter.Allow()
}

// UpdateLimit 动态更新限流配置
func (l *TokenBucketLimiter) UpdateLimit(qps int, burst int) {
	l.limiter.SetLimit(rate.Limit(qps))
	l.limiter.SetBurst(burst)
}

// RateLimiterGroup 按路由分类的限流器组
type RateLimiterGroup struct {
	limiters map[string]*TokenBucketLimiter
	mu       sync.RWMutex
	stats    *RateLimitStats
}

// NewRateLimiterGroup 创建限流器组
// 历史查询会并发访问后端，限额为默认的四分之一
func NewRateLimiterGroup(qps, burst int) *RateLimiterGroup {
	g := &RateLimiterGroup{
		limiters: make(map[string]*TokenBucketLimiter),
		stats:    &RateLimitStats{},
	}
	g.AddLimiter("default", qps, burst)
	g.AddLimiter("api", qps, burst)
	g.AddLimiter("history", max(1, qps/4), max(1, burst/4))
	g.AddLimiter("auth", max(1, qps/10), max(1, burst/10))
	return g
}

// AddLimiter 添加限流器
func (g *RateLimiterGroup) AddLimiter(name string, qps int, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiters[name] = NewTokenBucketLimiter(qps, burst)
}

// GetLimiter 获取限流器
func (g *RateLimiterGroup) GetLimiter(name string) *TokenBucketLimiter {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if limiter, ok := g.limiters[name]; ok {
		return limiter
	}
	return g.limiters["default"]
}

// Stats 返回限流统计
func (g *RateLimiterGroup) Stats() *RateLimitStats {
	return g.stats
}

// RateLimitMiddleware 限流中间件
func RateLimitMiddleware(group *RateLimiterGroup) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := group.GetLimiter(RouteClass(c.Request.URL.Path))

		allowed := limiter.Allow()
		group.stats.RecordRequest(allowed)
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				common.NewErrorResponse("Too Many Requests - Rate limit exceeded"))
			return
		}

		c.Next()
	}
}

// RouteClass 根据路径确定限流和熔断的分类
func RouteClass(path string) string {
	switch {
	case strings.HasPrefix(path, "/ui/history"):
		return "history"
	case strings.HasPrefix(path, "/api/"):
		return "api"
	case path == "/login" || path == "/logout":
		return "auth"
	default:
		return "default"
	}
}

// IPRateLimiter IP级别的限流器
type IPRateLimiter struct {
	limiters map[string]*TokenBucketLimiter
	mu       sync.RWMutex
	qps      int
	burst    int
}

// NewIPRateLimiter 创建IP限流器
func NewIPRateLimiter(qps, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*TokenBucketLimiter),
		qps:      qps,
		burst:    burst,
	}
}

// GetLimiter 获取或创建IP对应的限流器
func (l *IPRateLimiter) GetLimiter(ip string) *TokenBucketLimiter {
	l.mu.RLock()
	limiter, exists := l.limiters[ip]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// 双重检查
	if limiter, exists := l.limiters[ip]; exists {
		return limiter
	}

	limiter = NewTokenBucketLimiter(l.qps, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// IPRateLimitMiddleware IP级别限流中间件
func IPRateLimitMiddleware(qps, burst int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(qps, burst)

	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				common.NewErrorResponse("Too Many Requests - IP rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// RateLimitStats 限流统计
type RateLimitStats struct {
	total   atomic.Int64
	allowed atomic.Int64
	blocked atomic.Int64
}

// RecordRequest 记录请求
func (s *RateLimitStats) RecordRequest(allowed bool) {
	s.total.Add(1)
	if allowed {
		s.allowed.Add(1)
	} else {
		s.blocked.Add(1)
	}
}

// GetStats 获取统计信息
func (s *RateLimitStats) GetStats() map[string]interface{} {
	total := s.total.Load()
	blocked := s.blocked.Load()
	blockRate := 0.0
	if total > 0 {
		blockRate = float64(blocked) / float64(total) * 100
	}
	return map[string]interface{}{
		"total_requests":   total,
		"allowed_requests": s.allowed.Load(),
		"blocked_requests": blocked,
		"block_rate":       blockRate,
	}
}
