package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
)

// AuthBackend 认证接口
type AuthBackend interface {
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.User, error)
	ChangePassword(ctx context.Context, req *model.ChangePasswordRequest) error
}

// AuthService 登录会话服务接口
type AuthService interface {
	Login(ctx context.Context, req *model.LoginRequest) (*session.State, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.User, error)
	ChangePassword(ctx context.Context, req *model.ChangePasswordRequest) error
	State() session.State
}

type authServiceImpl struct {
	backend AuthBackend
	session *session.Session
}

// NewAuthService 创建认证服务
func NewAuthService(backend AuthBackend, s *session.Session) AuthService {
	return &authServiceImpl{backend: backend, session: s}
}

// Login 登录成功后保存token和用户
func (s *authServiceImpl) Login(ctx context.Context, req *model.LoginRequest) (*session.State, error) {
	resp, err := s.backend.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &model.APIError{Message: "登录响应缺少token"}
	}
	if err := s.session.Set(ctx, resp.User, resp.Token); err != nil {
		return nil, err
	}
	logrus.Infof("[AuthService] User %s logged in", req.Username)
	state := s.session.Snapshot()
	return &state, nil
}

// Logout 通知后端后清除本地会话，后端失败不影响本地退出
func (s *authServiceImpl) Logout(ctx context.Context) error {
	if s.session.Token() != "" {
		if err := s.backend.Logout(ctx); err != nil {
			logrus.Warnf("[AuthService] Backend logout failed: %v", err)
		}
	}
	_, err := s.session.Clear(ctx)
	return err
}

// Me 返回当前用户，本地没有时从后端获取
func (s *authServiceImpl) Me(ctx context.Context) (*model.User, error) {
	if state := s.session.Snapshot(); state.User != nil {
		return state.User, nil
	}
	user, err := s.backend.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *authServiceImpl) ChangePassword(ctx context.Context, req *model.ChangePasswordRequest) error {
	return s.backend.ChangePassword(ctx, req)
}

// State 当前会话状态
func (s *authServiceImpl) State() session.State {
	return s.session.Snapshot()
}

// Resetter 会话结束时需要清空的状态
type Resetter interface {
	Reset()
}

// BindSession 会话结束或切换账号时清空targets，避免下一个用户看到上一个用户的数据
func BindSession(s *session.Session, targets ...Resetter) {
	s.OnReset(func() {
		for _, t := range targets {
			t.Reset()
		}
		logrus.Info("[AuthService] Session ended, cached views cleared")
	})
}
