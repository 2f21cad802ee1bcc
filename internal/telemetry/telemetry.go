package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 记录后端调用、轮询与历史查询的指标
type Collector interface {
	ObserveBackendCall(endpoint, outcome string, d time.Duration)
	IncUnauthorized()
	IncPollSuperseded(task string)
	IncStaleQuery()
	IncBreakerRejected(name string)
}

type noopCollector struct{}

// Noop 返回丢弃所有指标的实现
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObserveBackendCall(string, string, time.Duration) {}
func (noopCollector) IncUnauthorized()                                 {}
func (noopCollector) IncPollSuperseded(string)                         {}
func (noopCollector) IncStaleQuery()                                   {}
func (noopCollector) IncBreakerRejected(string)                        {}

// PrometheusCollector 通过Prometheus暴露指标
type PrometheusCollector struct {
	backendCalls    *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	unauthorized    prometheus.Counter
	pollSuperseded  *prometheus.CounterVec
	staleQueries    prometheus.Counter
	breakerRejected *prometheus.CounterVec
}

// NewPrometheusCollector 在reg上注册指标，重复注册时复用已有的指标
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	calls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plc_dashboard_backend_requests_total",
		Help: "Backend API calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plc_dashboard_backend_request_duration_seconds",
		Help:    "Backend API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"}))
	if err != nil {
		return nil, err
	}
	unauthorized, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plc_dashboard_unauthorized_total",
		Help: "Backend responses with HTTP 401.",
	}))
	if err != nil {
		return nil, err
	}
	superseded, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plc_dashboard_poll_superseded_total",
		Help: "Poll results dropped because a newer result was already stored.",
	}, []string{"task"}))
	if err != nil {
		return nil, err
	}
	stale, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plc_dashboard_history_stale_total",
		Help: "History query responses discarded after a newer query started.",
	}))
	if err != nil {
		return nil, err
	}
	rejected, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plc_dashboard_breaker_rejected_total",
		Help: "Backend calls rejected by an open circuit breaker.",
	}, []string{"breaker"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		backendCalls:    calls,
		backendLatency:  latency,
		unauthorized:    unauthorized,
		pollSuperseded:  superseded,
		staleQueries:    stale,
		breakerRejected: rejected,
	}, nil
}

// register 注册采集器，已注册时返回已有的实例
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// ObserveBackendCall 记录一次后端调用
func (p *PrometheusCollector) ObserveBackendCall(endpoint, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.backendCalls.WithLabelValues(endpoint, outcome).Inc()
	p.backendLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncUnauthorized 记录401
func (p *PrometheusCollector) IncUnauthorized() {
	if p == nil {
		return
	}
	p.unauthorized.Inc()
}

// IncPollSuperseded 记录被丢弃的轮询结果
func (p *PrometheusCollector) IncPollSuperseded(task string) {
	if p == nil {
		return
	}
	p.pollSuperseded.WithLabelValues(task).Inc()
}

// IncStaleQuery 记录过期的历史查询响应
func (p *PrometheusCollector) IncStaleQuery() {
	if p == nil {
		return
	}
	p.staleQueries.Inc()
}

// IncBreakerRejected 记录熔断拒绝
func (p *PrometheusCollector) IncBreakerRejected(name string) {
	if p == nil {
		return
	}
	p.breakerRejected.WithLabelValues(name).Inc()
}
