package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// DashboardError 自定义错误类型
type DashboardError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *DashboardError) Error() string {
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// 预定义错误
var (
	ErrInvalidParameter = func(msg string) error {
		return &DashboardError{Code: 400, Message: msg}
	}
	ErrForbidden = func(msg string) error {
		return &DashboardError{Code: 403, Message: msg}
	}
	ErrNotFound = func(msg string) error {
		return &DashboardError{Code: 404, Message: msg}
	}
	ErrInternalError = func(msg string) error {
		return &DashboardError{Code: 500, Message: msg}
	}
)

// APIError 后端返回 success=false 时的错误
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "backend reported failure"
	}
	return "backend reported failure: " + e.Message
}

// FlexInt 兼容数字与数字字符串的整数
// 时序库返回的 device_id 标签是字符串
type FlexInt int

// UnmarshalJSON 支持 1、"1" 和 null
func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", string(b), err)
	}
	*n = FlexInt(int(v))
	return nil
}

// Page 分页信息
type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Object 结构不固定的后端对象
type Object map[string]interface{}

// Decode 把对象转换为具体结构
func (o Object) Decode(v interface{}) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
