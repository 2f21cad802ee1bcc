package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

var (
	// ErrUnauthorized 后端返回401，会话已被清除
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingEnvelope 响应中没有 success 字段
	ErrMissingEnvelope = errors.New("response envelope missing")
	// ErrDecode 响应无法解析
	ErrDecode = errors.New("decode response")
	// ErrNoBackend 没有可用的后端节点
	ErrNoBackend = errors.New("no backend node available")
)

// UnauthorizedError 后端返回401，Message 为后端给出的原因
// errors.Is(err, ErrUnauthorized) 成立
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return ErrUnauthorized.Error()
	}
	return ErrUnauthorized.Error() + ": " + e.Message
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// StatusError 后端返回的4xx/5xx
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Message)
}

// TransportError 网络错误
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func apiError(message string) error {
	return &model.APIError{Message: message}
}

// countsAsFailure 网络错误和5xx计入熔断，取消和4xx不计入
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	var te *TransportError
	return errors.As(err, &te)
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &se):
		return fmt.Sprintf("%dxx", se.StatusCode/100)
	default:
		return "error"
	}
}

// StatusCode 错误对应的HTTP状态码，供处理器返回
func StatusCode(err error) int {
	var se *StatusError
	var ae *model.APIError
	var de *model.DashboardError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &se):
		return se.StatusCode
	case errors.As(err, &ae):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return de.Code
	case errors.Is(err, middleware.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Message 错误对应的提示
func Message(err error) string {
	var se *StatusError
	var ae *model.APIError
	var de *model.DashboardError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "登录已过期，请重新登录"
	case errors.As(err, &se):
		return se.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &de):
		return de.Message
	default:
		return err.Error()
	}
}
