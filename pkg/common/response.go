package common

import "github.com/Smalllight01/plc-admin-sub001/pkg/json"

// HttpResponse 统一响应结构 {success, data, message}
type HttpResponse struct {
	Success  bool        `json:"success"`            // 是否成功
	Message  string      `json:"message,omitempty"`  // 响应消息
	Data     interface{} `json:"data,omitempty"`     // 响应数据
	Redirect string      `json:"redirect,omitempty"` // 需要跳转的页面
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *HttpResponse {
	return &HttpResponse{
		Success: true,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(message string) *HttpResponse {
	return &HttpResponse{
		Success: false,
		Message: message,
	}
}

// NewRedirectResponse 创建跳转响应
func NewRedirectResponse(path, message string) *HttpResponse {
	return &HttpResponse{
		Success:  false,
		Message:  message,
		Redirect: path,
	}
}

// Envelope 后端接口的响应包装
// Success 为 nil 表示响应体里没有 success 字段
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// HasEnvelope 判断响应是否带有包装
func (e *Envelope) HasEnvelope() bool {
	return e != nil && e.Success != nil
}

// OK 判断包装是否表示成功
func (e *Envelope) OK() bool {
	return e.HasEnvelope() && *e.Success
}
