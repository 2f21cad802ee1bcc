package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/poller"
	"github.com/Smalllight01/plc-admin-sub001/pkg/config"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// 轮询任务名
const (
	TopicDevices   = "devices"
	TopicRealtime  = "realtime"
	TopicStatus    = "status"
	TopicDashboard = "dashboard"
)

// PollBackend 轮询任务使用的后端接口
type PollBackend interface {
	ListDevices(ctx context.Context, q *model.DeviceQuery) (*model.DeviceList, error)
	Realtime(ctx context.Context, deviceID, groupID int) (*model.RealtimeData, error)
	DevicesStatus(ctx context.Context) (model.Object, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// PolledView 轮询结果
type PolledView struct {
	Data      json.RawMessage `json:"data"`
	Seq       uint64          `json:"seq"`
	FetchedAt time.Time       `json:"fetched_at"`
	Live      bool            `json:"live"` // 本次直接请求后端，没有使用轮询结果
}

// DashboardService 自动刷新的视图服务
type DashboardService interface {
	Devices(ctx context.Context, q *model.DeviceQuery) (*PolledView, error)
	Realtime(ctx context.Context, deviceID, groupID int) (*PolledView, error)
	Status(ctx context.Context) (*PolledView, error)
	Stats(ctx context.Context) (*PolledView, error)
	Tasks() []poller.TaskStats
	Reset()
}

type dashboardServiceImpl struct {
	backend PollBackend
	poller  *poller.Poller
}

// NewDashboardService 创建服务并注册轮询任务
func NewDashboardService(backend PollBackend, p *poller.Poller, cfg config.PollConfig) (DashboardService, error) {
	s := &dashboardServiceImpl{backend: backend, poller: p}

	tasks := []poller.Task{
		{Name: TopicDevices, Interval: cfg.Devices, Fetch: func(ctx context.Context) (interface{}, error) {
			return backend.ListDevices(ctx, &model.DeviceQuery{})
		}},
		{Name: TopicRealtime, Interval: cfg.Realtime, Fetch: func(ctx context.Context) (interface{}, error) {
			return backend.Realtime(ctx, 0, 0)
		}},
		{Name: TopicStatus, Interval: cfg.Status, Fetch: func(ctx context.Context) (interface{}, error) {
			return backend.DevicesStatus(ctx)
		}},
		{Name: TopicDashboard, Interval: cfg.Dashboard, Fetch: func(ctx context.Context) (interface{}, error) {
			return backend.DashboardStats(ctx)
		}},
	}
	for _, t := range tasks {
		if err := p.Register(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Devices 无过滤条件时返回轮询结果
func (s *dashboardServiceImpl) Devices(ctx context.Context, q *model.DeviceQuery) (*PolledView, error) {
	if q == nil || *q == (model.DeviceQuery{}) {
		return s.polled(ctx, TopicDevices)
	}
	return live(s.backend.ListDevices(ctx, q))
}

// Realtime 未指定设备和分组时返回轮询结果
func (s *dashboardServiceImpl) Realtime(ctx context.Context, deviceID, groupID int) (*PolledView, error) {
	if deviceID == 0 && groupID == 0 {
		return s.polled(ctx, TopicRealtime)
	}
	return live(s.backend.Realtime(ctx, deviceID, groupID))
}

// Status 所有设备的连接状态
func (s *dashboardServiceImpl) Status(ctx context.Context) (*PolledView, error) {
	return s.polled(ctx, TopicStatus)
}

// Stats 仪表盘统计
func (s *dashboardServiceImpl) Stats(ctx context.Context) (*PolledView, error) {
	return s.polled(ctx, TopicDashboard)
}

// Tasks 轮询任务统计
func (s *dashboardServiceImpl) Tasks() []poller.TaskStats {
	return s.poller.Stats()
}

// Reset 丢弃上一个会话的轮询结果
func (s *dashboardServiceImpl) Reset() {
	s.poller.Reset()
}

// polled 返回最近一次轮询结果，还没有结果时立即拉取一次
func (s *dashboardServiceImpl) polled(ctx context.Context, topic string) (*PolledView, error) {
	p, err := s.poller.Latest(topic)
	if err != nil {
		var de *model.DashboardError
		if !errors.As(err, &de) || de.Code != 404 {
			return nil, err
		}
		logrus.Debugf("[DashboardService] No polled %s yet, refreshing", topic)
		if _, err := s.poller.Refresh(ctx, topic); err != nil {
			return nil, err
		}
		if p, err = s.poller.Latest(topic); err != nil {
			return nil, err
		}
	}
	return &PolledView{Data: p.Bytes(), Seq: p.Seq, FetchedAt: p.FetchedAt}, nil
}

func live[T any](v T, err error) (*PolledView, error) {
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &PolledView{Data: data, FetchedAt: time.Now(), Live: true}, nil
}
