package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
)

// hopHeaders 不转发的逐跳头
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Authorization":       {},
	"Cookie":              {},
}

// Forward 把请求原样转发给后端，附带会话令牌
// 调用方负责关闭返回的响应体；401时会话已被清除并返回ErrUnauthorized
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	start := time.Now()
	breaker := c.breakers.GetBreaker(ClassProxy)
	if !breaker.Allow() {
		c.metrics.IncBreakerRejected(breaker.Name())
		return nil, middleware.ErrCircuitBreakerOpen
	}

	base, err := c.nodeFor(path)
	if err != nil {
		breaker.Record(false)
		return nil, err
	}
	target := base + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		breaker.Record(true)
		return nil, err
	}
	for key, values := range header {
		if _, skip := hopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	token := c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		te := &TransportError{Op: method + " " + path, Err: err}
		breaker.Record(errors.Is(err, context.Canceled))
		c.metrics.ObserveBackendCall(ClassProxy, outcome(te), time.Since(start))
		return nil, te
	}
	breaker.Record(resp.StatusCode < http.StatusInternalServerError)

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.handleUnauthorized(ctx, token)
		c.metrics.ObserveBackendCall(ClassProxy, outcome(ErrUnauthorized), time.Since(start))
		return nil, ErrUnauthorized
	}
	var status error
	if resp.StatusCode >= http.StatusBadRequest {
		status = &StatusError{StatusCode: resp.StatusCode}
	}
	c.metrics.ObserveBackendCall(ClassProxy, outcome(status), time.Since(start))
	return resp, nil
}

// CopyHeader 复制后端响应头，跳过逐跳头
func CopyHeader(dst, src http.Header) {
	for key, values := range src {
		if _, skip := hopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
