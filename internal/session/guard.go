package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

// Requirement 页面要求的权限
type Requirement int

const (
	RequireAuth       Requirement = iota // 仅需登录
	RequireAdmin                         // 管理员或超级管理员
	RequireSuperAdmin                    // 仅超级管理员
)

// 跳转目标
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// 权限不足提示
const (
	MsgAdminRequired      = "权限不足，需要管理员权限"
	MsgSuperAdminRequired = "权限不足，需要超级管理员权限"
)

// Decision 守卫结果，Allowed 为 false 时按 Redirect 跳转
type Decision struct {
	Allowed  bool
	Redirect string
	User     *model.User
}

// UserFetcher 获取当前登录用户
type UserFetcher interface {
	Me(ctx context.Context) (*model.User, error)
}

// Guard 页面访问守卫
type Guard struct {
	session *Session
	fetcher UserFetcher
	toasts  *Toasts
}

// NewGuard 创建守卫
func NewGuard(session *Session, fetcher UserFetcher, toasts *Toasts) *Guard {
	return &Guard{session: session, fetcher: fetcher, toasts: toasts}
}

// Check 检查当前会话能否访问要求为req的页面
func (g *Guard) Check(ctx context.Context, req Requirement) Decision {
	if err := g.session.Ready(ctx); err != nil {
		logrus.Warnf("[Guard] %v", err)
		return Decision{Redirect: LoginPath}
	}

	state := g.session.Snapshot()
	if state.Token == "" {
		return Decision{Redirect: LoginPath}
	}

	user := state.User
	if user == nil {
		fetched, err := g.fetcher.Me(ctx)
		if err != nil {
			logrus.Warnf("[Guard] Failed to load current user: %v", err)
			if _, cerr := g.session.ClearToken(ctx, state.Token); cerr != nil {
				logrus.Errorf("[Guard] %v", cerr)
			}
			return Decision{Redirect: LoginPath}
		}
		if err := g.session.SetUser(ctx, fetched); err != nil {
			logrus.Errorf("[Guard] %v", err)
		}
		user = fetched
	}

	switch req {
	case RequireSuperAdmin:
		if !user.IsSuperAdmin() {
			g.toasts.Push(ToastError, MsgSuperAdminRequired)
			return Decision{Redirect: HomePath, User: user}
		}
	case RequireAdmin:
		if !user.IsAdmin() {
			g.toasts.Push(ToastError, MsgAdminRequired)
			return Decision{Redirect: HomePath, User: user}
		}
	}

	return Decision{Allowed: true, User: user}
}
