package json

import (
	stdjson "encoding/json"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// RawMessage 原始JSON片段
type RawMessage = stdjson.RawMessage

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal 序列化
func Marshal(v interface{}) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent 带缩进序列化
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal 反序列化
func Unmarshal(data []byte, v interface{}) error {
	return api.Unmarshal(data, v)
}

// NewDecoder 创建流式解码器
func NewDecoder(r io.Reader) *jsoniter.Decoder {
	return api.NewDecoder(r)
}

// NewEncoder 创建流式编码器
func NewEncoder(w io.Writer) *jsoniter.Encoder {
	return api.NewEncoder(w)
}

// Valid 检查是否为合法JSON
func Valid(data []byte) bool {
	return api.Valid(data)
}
