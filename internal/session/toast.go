package session

import (
	"sync"
	"time"
)

// ToastLevel 提示级别
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast 一条待展示的提示
type Toast struct {
	Level     ToastLevel `json:"level"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// Toasts 待展示提示队列，超出容量时丢弃最早的
type Toasts struct {
	mu    sync.Mutex
	items []Toast
	limit int
}

// NewToasts 创建提示队列
func NewToasts(limit int) *Toasts {
	if limit <= 0 {
		limit = 50
	}
	return &Toasts{limit: limit}
}

// Push 添加提示
func (t *Toasts) Push(level ToastLevel, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = append(t.items, Toast{Level: level, Message: message, CreatedAt: time.Now()})
	if over := len(t.items) - t.limit; over > 0 {
		t.items = append([]Toast(nil), t.items[over:]...)
	}
}

// Drain 取出并清空所有提示
func (t *Toasts) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := t.items
	t.items = nil
	if items == nil {
		return []Toast{}
	}
	return items
}

// Len 待展示提示数量
func (t *Toasts) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
