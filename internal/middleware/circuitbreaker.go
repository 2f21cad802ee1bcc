package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// CircuitState 熔断器状态
type CircuitState int

const (
	StateClosed   CircuitState = iota // 关闭状态（正常）
	StateOpen                         // 打开状态（熔断）
	StateHalfOpen                     // 半开状态（探测）
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	MaxRequests      uint32        // 半开状态允许的最大请求数
	Interval         time.Duration // 统计时间窗口
	Timeout          time.Duration // 熔断超时时间
	FailureThreshold float64       // 失败率阈值
	MinRequestCount  uint32        // 最小请求数（低于此数不熔断）
	SuccessThreshold uint32        // 半开状态连续成功次数阈值
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxRequests:      5,
		Interval:         10 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.5,
		MinRequestCount:  10,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker 熔断器，后端持续失败时快速拒绝请求
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	state  CircuitState
	counts Counts
	mu     sync.Mutex
	now    func() time.Time

	stateChangedAt time.Time
}

// Counts 统计计数
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFails     uint32
	LastResetTime        time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	now := time.Now()
	return &CircuitBreaker{
		name:           name,
		config:         config,
		state:          StateClosed,
		counts:         Counts{LastResetTime: now},
		now:            time.Now,
		stateChangedAt: now,
	}
}

// Name 熔断器名称
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call 执行请求，fn返回的错误计为失败
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitBreakerOpen
	}
	err := fn()
	cb.Record(err == nil)
	return err
}

// Allow 检查是否允许请求
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.stateChangedAt) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			logrus.Infof("[CircuitBreaker] %s changed to HALF_OPEN state", cb.name)
			cb.counts.Requests++
			return true
		}
		return false
	case StateHalfOpen:
		if cb.counts.Requests < cb.config.MaxRequests {
			cb.counts.Requests++
			return true
		}
		return false
	}
	return false
}

// Record 记录请求结果
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		if cb.now().Sub(cb.counts.LastResetTime) > cb.config.Interval {
			cb.resetCounts()
		}
		cb.counts.Requests++
	}

	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFails = 0

		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			logrus.Infof("[CircuitBreaker] %s recovered to CLOSED state", cb.name)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFails++
	cb.counts.ConsecutiveSuccesses = 0

	// 半开状态下任一失败立即重新熔断
	if cb.state == StateHalfOpen || cb.shouldTrip() {
		cb.setState(StateOpen)
		logrus.Warnf("[CircuitBreaker] %s tripped to OPEN state", cb.name)
	}
}

func (cb *CircuitBreaker) shouldTrip() bool {
	if cb.counts.Requests < cb.config.MinRequestCount {
		return false
	}
	failureRate := float64(cb.counts.Failures) / float64(cb.counts.Requests)
	return failureRate >= cb.config.FailureThreshold
}

func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	cb.stateChangedAt = cb.now()
	cb.resetCounts()
}

func (cb *CircuitBreaker) resetCounts() {
	cb.counts = Counts{LastResetTime: cb.now()}
}

// GetState 获取当前状态
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats 获取统计信息
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failureRate := 0.0
	if cb.counts.Requests > 0 {
		failureRate = float64(cb.counts.Failures) / float64(cb.counts.Requests) * 100
	}

	return map[string]interface{}{
		"name":                  cb.name,
		"state":                 cb.state.String(),
		"requests":              cb.counts.Requests,
		"successes":             cb.counts.Successes,
		"failures":              cb.counts.Failures,
		"failure_rate":          failureRate,
		"consecutive_successes": cb.counts.ConsecutiveSuccesses,
		"consecutive_fails":     cb.counts.ConsecutiveFails,
		"state_changed_at":      cb.stateChangedAt.Format("2006-01-02 15:04:05"),
	}
}

// ErrCircuitBreakerOpen 熔断打开时返回的错误
var ErrCircuitBreakerOpen = &CircuitBreakerError{Message: "circuit breaker is open"}

// CircuitBreakerError 熔断错误
type CircuitBreakerError struct {
	Message string
}

func (e *CircuitBreakerError) Error() string {
	return e.Message
}

// BreakerGroup 按名称管理熔断器，未知名称使用default
type BreakerGroup struct {
	breakers map[string]*CircuitBreaker
	config   *CircuitBreakerConfig
	mu       sync.RWMutex
}

// NewBreakerGroup 创建熔断器组
func NewBreakerGroup(config *CircuitBreakerConfig, names ...string) *BreakerGroup {
	g := &BreakerGroup{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
	}
	g.AddBreaker("default")
	for _, name := range names {
		g.AddBreaker(name)
	}
	return g
}

// AddBreaker 添加熔断器
func (g *BreakerGroup) AddBreaker(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.breakers[name]; !ok {
		g.breakers[name] = NewCircuitBreaker(name, g.config)
	}
}

// GetBreaker 获取熔断器
func (g *BreakerGroup) GetBreaker(name string) *CircuitBreaker {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if breaker, ok := g.breakers[name]; ok {
		return breaker
	}
	return g.breakers["default"]
}

// Stats 获取所有熔断器统计
func (g *BreakerGroup) Stats() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make(map[string]interface{}, len(names))
	for _, name := range names {
		stats[name] = g.breakers[name].GetStats()
	}
	return stats
}

// upstreamKey 标记本次错误响应来自后端
const upstreamKey = "circuit_breaker.upstream"

// RouteClasses 入站熔断使用的路由分类，与RouteClass对应
var RouteClasses = []string{"history", "api", "auth"}

// MarkUpstream 标记当前请求的5xx来自后端
// 后端故障由出站熔断器统计，入站熔断器不再重复计数
func MarkUpstream(c *gin.Context) {
	c.Set(upstreamKey, true)
}

// CircuitBreakerMiddleware 熔断器中间件，按路由分类，本服务自身的5xx计为失败
// group 不能与后端客户端共用
func CircuitBreakerMiddleware(group *BreakerGroup) gin.HandlerFunc {
	return func(c *gin.Context) {
		breaker := group.GetBreaker(RouteClass(c.Request.URL.Path))

		if !breaker.Allow() {
			logrus.Warnf("[CircuitBreaker] Request blocked by circuit breaker: %s", breaker.Name())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				common.NewErrorResponse("Service Unavailable - Circuit breaker is open"))
			return
		}

		c.Next()

		breaker.Record(c.Writer.Status() < http.StatusInternalServerError || c.GetBool(upstreamKey))
	}
}
