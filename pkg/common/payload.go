package common

import "time"

// Payload 轮询结果的只读快照
type Payload struct {
	b         []byte
	Seq       uint64    // 轮询序号
	FetchedAt time.Time // 获取时间
}

// NewPayload 创建快照，复制输入字节
func NewPayload(b []byte, seq uint64, fetchedAt time.Time) Payload {
	return Payload{b: cloneBytes(b), Seq: seq, FetchedAt: fetchedAt}
}

// Len 返回数据长度，满足lru.Value接口
func (p Payload) Len() int {
	return len(p.b)
}

// Bytes 返回数据的拷贝
func (p Payload) Bytes() []byte {
	return cloneBytes(p.b)
}

// String 以字符串形式返回数据
func (p Payload) String() string {
	return string(p.b)
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
