package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/repository"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// DefaultKey 持久化使用的键名
const DefaultKey = "auth-storage"

// storageVersion 持久化格式版本
const storageVersion = 0

// ErrNotReady 会话尚未完成恢复
var ErrNotReady = errors.New("session not initialized")

// State 登录状态
type State struct {
	User            *model.User `json:"user"`
	Token           string      `json:"token"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

type persisted struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// Session 登录会话，持久化在单个键下
// store 为 nil 时只保存在内存中
type Session struct {
	store repository.KVStore
	key   string
	now   func() time.Time

	mu    sync.RWMutex
	state State

	ready     chan struct{}
	readyOnce sync.Once

	hooksMu sync.Mutex
	onReset []func()
}

// New 创建会话
func New(store repository.KVStore, key string) *Session {
	if key == "" {
		key = DefaultKey
	}
	return &Session{
		store: store,
		key:   key,
		now:   time.Now,
		ready: make(chan struct{}),
	}
}

// Init 从存储中恢复会话，令牌已过期时按未登录处理
func (s *Session) Init(ctx context.Context) error {
	defer s.markReady()

	if s.store == nil {
		return nil
	}

	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		logrus.Warnf("[Session] Discard unreadable session: %v", err)
		return s.store.Delete(ctx, s.key)
	}

	state := p.State
	if state.Token != "" && TokenExpired(state.Token, s.now()) {
		logrus.Infof("[Session] Stored token expired, session dropped")
		state = State{}
		if err := s.store.Delete(ctx, s.key); err != nil {
			return err
		}
	}
	state.IsAuthenticated = state.Token != ""

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready 等待会话恢复完成
func (s *Session) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	}
}

// OnReset 注册会话结束时的回调，退出、被后端拒绝或切换账号时调用
func (s *Session) OnReset(fn func()) {
	if fn == nil {
		return
	}
	s.hooksMu.Lock()
	s.onReset = append(s.onReset, fn)
	s.hooksMu.Unlock()
}

func (s *Session) reset() {
	s.hooksMu.Lock()
	hooks := append([]func(){}, s.onReset...)
	s.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Set 登录成功后保存用户与令牌，替换已有会话时先触发OnReset
func (s *Session) Set(ctx context.Context, user *model.User, token string) error {
	s.mu.Lock()
	prev := s.state.Token
	s.state = State{User: cloneUser(user), Token: token, IsAuthenticated: token != ""}
	state := s.state
	s.mu.Unlock()

	if prev != "" && prev != token {
		s.reset()
	}
	return s.persist(ctx, state)
}

// SetUser 更新当前用户，令牌不变
func (s *Session) SetUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	s.state.User = cloneUser(user)
	state := s.state
	s.mu.Unlock()
	return s.persist(ctx, state)
}

// Clear 清除会话，返回清除前是否持有令牌
func (s *Session) Clear(ctx context.Context) (bool, error) {
	s.mu.Lock()
	had := s.state.Token != ""
	s.state = State{}
	s.mu.Unlock()

	return had, s.afterClear(ctx)
}

// ClearToken 仅当当前令牌仍是token时清除会话
// 旧令牌的请求晚到的401不会清掉之后新登录的会话
func (s *Session) ClearToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s.mu.Lock()
	if s.state.Token != token {
		s.mu.Unlock()
		return false, nil
	}
	s.state = State{}
	s.mu.Unlock()

	return true, s.afterClear(ctx)
}

func (s *Session) afterClear(ctx context.Context) error {
	s.reset()
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token 返回当前令牌
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Snapshot 返回当前状态的拷贝
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.User = cloneUser(state.User)
	return state
}

func (s *Session) persist(ctx context.Context, state State) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(persisted{State: state, Version: storageVersion})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.store.Put(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.GroupID != nil {
		id := *u.GroupID
		c.GroupID = &id
	}
	return &c
}
