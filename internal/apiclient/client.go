package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/telemetry"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
	"github.com/Smalllight01/plc-admin-sub001/pkg/hash"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// LoginPath 会话失效后跳转的页面
const LoginPath = "/login"

// maxBodySize 单个响应体的上限
const maxBodySize = 64 << 20

// TokenStore 提供令牌并在401时清除会话
// ClearToken 只在当前令牌仍为token时清除
type TokenStore interface {
	Token() string
	ClearToken(ctx context.Context, token string) (bool, error)
}

// Redirector 执行页面跳转
type Redirector interface {
	Redirect(path string)
}

// RedirectFunc 函数形式的Redirector
type RedirectFunc func(path string)

// Redirect 调用f
func (f RedirectFunc) Redirect(path string) { f(path) }

// Client 后端REST接口客户端
type Client struct {
	baseURL    string
	ring       *hash.Ring
	httpClient *http.Client
	tokens     TokenStore
	redirector Redirector
	breakers   *middleware.BreakerGroup
	metrics    telemetry.Collector

	redirectMu sync.Mutex
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用自定义的http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore 设置会话
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRedirector 设置401后的跳转处理
func WithRedirector(r Redirector) Option {
	return func(c *Client) { c.redirector = r }
}

// WithBreakers 设置熔断器组
func WithBreakers(g *middleware.BreakerGroup) Option {
	return func(c *Client) { c.breakers = g }
}

// WithMetrics 设置指标采集
func WithMetrics(m telemetry.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRing 使用一致性哈希在多个后端节点间选择
func WithRing(r *hash.Ring) Option {
	return func(c *Client) { c.ring = r }
}

// NewHTTPClient 创建共享的HTTP客户端
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// New 创建客户端
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(0)
	}
	if c.breakers == nil {
		c.breakers = middleware.NewBreakerGroup(nil)
	}
	if c.metrics == nil {
		c.metrics = telemetry.Noop()
	}
	return c
}

// Breakers 返回熔断器组
func (c *Client) Breakers() *middleware.BreakerGroup {
	return c.breakers
}

// nodeFor 选择处理key的后端地址
func (c *Client) nodeFor(key string) (string, error) {
	if c.ring != nil {
		if node := c.ring.Get(key); node != "" {
			if !strings.Contains(node, "://") {
				node = "http://" + node
			}
			return strings.TrimRight(node, "/"), nil
		}
	}
	if c.baseURL == "" {
		return "", ErrNoBackend
	}
	return c.baseURL, nil
}

// request 一次后端调用
type request struct {
	class     string // 熔断与指标的分类
	method    string
	path      string
	query     url.Values
	body      interface{}
	anonymous bool // 不携带令牌，401不影响当前会话
}

// send 发送请求，返回2xx响应体
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	start := time.Now()
	breaker := c.breakers.GetBreaker(r.class)

	var body []byte
	var callErr error
	err := breaker.Call(func() error {
		body, callErr = c.roundTrip(ctx, r)
		if countsAsFailure(callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(err, middleware.ErrCircuitBreakerOpen) {
		c.metrics.IncBreakerRejected(breaker.Name())
		c.metrics.ObserveBackendCall(r.class, "rejected", time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}

	c.metrics.ObserveBackendCall(r.class, outcome(callErr), time.Since(start))
	if callErr != nil {
		return nil, callErr
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	base, err := c.nodeFor(r.path)
	if err != nil {
		return nil, err
	}

	target := base + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	var token string
	if !r.anonymous {
		token = c.authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.method + " " + r.path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: r.method + " " + r.path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if !r.anonymous {
			c.handleUnauthorized(ctx, token)
		}
		return nil, &UnauthorizedError{Message: errorMessage(body, "")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	return body, nil
}

// authorize 附加当前令牌，返回本次使用的令牌
func (c *Client) authorize(req *http.Request) string {
	if c.tokens == nil {
		return ""
	}
	token := c.tokens.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return token
}

// handleUnauthorized 清除发出请求时使用的会话并跳转登录页
// 只有真正清除了令牌的那次调用会触发跳转，并发的401只跳转一次
// 令牌已被替换时不做处理
func (c *Client) handleUnauthorized(ctx context.Context, token string) {
	c.metrics.IncUnauthorized()
	if c.tokens == nil {
		return
	}

	c.redirectMu.Lock()
	defer c.redirectMu.Unlock()

	cleared, err := c.tokens.ClearToken(context.WithoutCancel(ctx), token)
	if err != nil {
		logrus.Errorf("[APIClient] Failed to clear session: %v", err)
	}
	if !cleared {
		return
	}
	logrus.Warn("[APIClient] Session rejected by backend, redirecting to login")
	if c.redirector != nil {
		c.redirector.Redirect(LoginPath)
	}
}

// getJSON 请求带包装的接口，data解码到out
func (c *Client) getJSON(ctx context.Context, class, path string, query url.Values, out interface{}) error {
	return c.call(ctx, request{class: class, method: http.MethodGet, path: path, query: query}, out)
}

// call 发送请求并解包
func (c *Client) call(ctx context.Context, r request, out interface{}) error {
	body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if err := decodeEnvelope(body, out); err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	return nil
}

// callBare 发送请求，响应不带包装
func (c *Client) callBare(ctx context.Context, r request, out interface{}) error {
	body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if err := decodeBare(body, out); err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	return nil
}

// decodeEnvelope 解析 {success,data,message}
func decodeEnvelope(body []byte, out interface{}) error {
	var env common.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !env.HasEnvelope() {
		return ErrMissingEnvelope
	}
	if !env.OK() {
		return apiError(env.Message)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// decodeBare 解析不带包装的响应，带包装且success=false时返回错误
func decodeBare(body []byte, out interface{}) error {
	var env common.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.HasEnvelope() && !env.OK() {
		return apiError(env.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// errorMessage 从错误响应中提取提示信息
// detail 可能是字符串，也可能是 {"error": "...", "code": "..."}
func errorMessage(body []byte, fallback string) string {
	var env common.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fallback
	}
	if len(env.Detail) > 0 {
		var text string
		if err := json.Unmarshal(env.Detail, &text); err == nil && text != "" {
			return text
		}
		var obj struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(env.Detail, &obj); err == nil && obj.Error != "" {
			return obj.Error
		}
	}
	if env.Message != "" {
		return env.Message
	}
	return fallback
}
