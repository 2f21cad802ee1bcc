package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/chart"
	"github.com/Smalllight01/plc-admin-sub001/internal/export"
	"github.com/Smalllight01/plc-admin-sub001/internal/history"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

// DeviceSource 设备信息来源
type DeviceSource interface {
	GetDevice(ctx context.Context, id int) (*model.Device, error)
	DeviceAddresses(ctx context.Context, deviceID int) (*model.DeviceAddresses, error)
}

// HistoryBackend 历史数据服务需要的后端接口
type HistoryBackend interface {
	history.Fetcher
	DeviceSource
}

// HistoryRequest 历史查询请求
type HistoryRequest struct {
	DeviceID  int                `json:"device_id" binding:"required"`
	Addresses []address.Selector `json:"addresses" binding:"required"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	TimeRange string             `json:"time_range"` // 10m/30m/1h/24h/7d/30d，与start_time互斥
}

// SlideRequest 窗口操作
type SlideRequest struct {
	Action string `json:"action" binding:"required"` // forward/backward/start/size
	Value  int    `json:"value"`
}

// HistoryView 历史数据视图
type HistoryView struct {
	history.Snapshot
	Rows        []chart.Row       `json:"rows"`
	Series      []chart.Series    `json:"series"`
	Labels      map[string]string `json:"labels"`
	Failed      map[string]string `json:"failed,omitempty"`
	WindowSizes []int             `json:"window_sizes"`
}

// AddressOptions 设备的可选地址
type AddressOptions struct {
	DeviceID     int                `json:"device_id"`
	DeviceName   string             `json:"device_name"`
	MultiStation bool               `json:"multi_station"`
	Stations     []int              `json:"stations"`
	Configs      []address.Config   `json:"configs"`
	Selectors    []address.Selector `json:"selectors"`
}

// HistoryService 历史数据服务接口
type HistoryService interface {
	Query(ctx context.Context, req *HistoryRequest) (*HistoryView, error)
	View() *HistoryView
	Slide(req *SlideRequest) (*HistoryView, error)
	Chart() chart.Chart
	ExportXLSX(w io.Writer) error
	Addresses(ctx context.Context, deviceID int) (*AddressOptions, error)
	Reset()
}

// historyServiceImpl 历史数据服务实现
type historyServiceImpl struct {
	backend     HistoryBackend
	engine      *history.Engine
	transformer *chart.Transformer
	loc         *time.Location
	now         func() time.Time

	mu      sync.RWMutex
	labeler chart.LabelResolver
	failed  map[string]string
}

// NewHistoryService 创建历史数据服务
func NewHistoryService(backend HistoryBackend, opts history.Options) HistoryService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &historyServiceImpl{
		backend:     backend,
		engine:      history.NewEngine(backend, opts),
		transformer: chart.NewTransformer(opts.Location),
		loc:         opts.Location,
		now:         time.Now,
		labeler:     chart.Labeler{},
	}
}

// Query 查询并重建合并序列
func (s *historyServiceImpl) Query(ctx context.Context, req *HistoryRequest) (*HistoryView, error) {
	q, err := s.buildQuery(req)
	if err != nil {
		return nil, err
	}

	labeler := s.resolveLabeler(ctx, req.DeviceID)

	// 标签与序列一起生效，被取代的查询不会覆盖
	_, err = s.engine.QueryWith(ctx, q, func(result *history.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if result == nil {
			s.labeler, s.failed = chart.Labeler{}, nil
			return
		}
		s.labeler, s.failed = labeler, result.Failed
	})
	if err != nil {
		return nil, err
	}
	return s.View(), nil
}

// Reset 清空上一个会话的查询结果
func (s *historyServiceImpl) Reset() {
	s.engine.Reset()

	s.mu.Lock()
	s.labeler, s.failed = chart.Labeler{}, nil
	s.mu.Unlock()
}

func (s *historyServiceImpl) buildQuery(req *HistoryRequest) (history.Query, error) {
	q := history.Query{DeviceID: req.DeviceID, Selectors: req.Addresses}

	if req.TimeRange != "" {
		d, err := ParseTimeRange(req.TimeRange)
		if err != nil {
			return q, err
		}
		end := s.now()
		start := end.Add(-d)
		q.StartTime, q.EndTime = &start, &end
		return q, nil
	}

	if req.StartTime != "" {
		t, err := model.ParseTime(req.StartTime, s.loc)
		if err != nil {
			return q, model.ErrInvalidParameter("invalid start_time: " + err.Error())
		}
		q.StartTime = &t
	}
	if req.EndTime != "" {
		t, err := model.ParseTime(req.EndTime, s.loc)
		if err != nil {
			return q, model.ErrInvalidParameter("invalid end_time: " + err.Error())
		}
		q.EndTime = &t
	}
	return q, nil
}

// resolveLabeler 读取设备名称和地址配置，失败时退化为只解析存储键
func (s *historyServiceImpl) resolveLabeler(ctx context.Context, deviceID int) chart.LabelResolver {
	device, err := s.backend.GetDevice(ctx, deviceID)
	if err != nil {
		logrus.Warnf("[HistoryService] Failed to load device %d for labels: %v", deviceID, err)
		return chart.Labeler{}
	}
	configs, err := address.DecodeConfigs(device.Addresses)
	if err != nil {
		logrus.Errorf("[HistoryService] Invalid address configuration of device %d: %v", deviceID, err)
	}
	return chart.Labeler{DeviceName: device.Name, Catalog: address.NewCatalog(configs)}
}

// View 返回当前窗口的视图，不访问网络
func (s *historyServiceImpl) View() *HistoryView {
	snap := s.engine.Snapshot()

	s.mu.RLock()
	labeler, failed := s.labeler, s.failed
	s.mu.RUnlock()

	c := s.transformer.Build(snap.Visible, snap.Query.Selectors, labeler)
	return &HistoryView{
		Snapshot:    snap,
		Rows:        c.Rows,
		Series:      c.Series,
		Labels:      c.Labels,
		Failed:      failed,
		WindowSizes: history.WindowSizes,
	}
}

// Slide 移动或调整窗口
func (s *historyServiceImpl) Slide(req *SlideRequest) (*HistoryView, error) {
	switch req.Action {
	case "forward":
		s.engine.Forward()
	case "backward":
		s.engine.Backward()
	case "start":
		s.engine.SetStart(req.Value)
	case "size":
		if _, err := s.engine.SetSize(req.Value); err != nil {
			return nil, err
		}
	default:
		return nil, model.ErrInvalidParameter("unknown window action: " + req.Action)
	}
	return s.View(), nil
}

// Chart 返回当前窗口的图表数据
func (s *historyServiceImpl) Chart() chart.Chart {
	v := s.View()
	return chart.Chart{Rows: v.Rows, Series: v.Series, Labels: v.Labels}
}

// ExportXLSX 导出当前窗口
func (s *historyServiceImpl) ExportXLSX(w io.Writer) error {
	c := s.Chart()
	if len(c.Rows) == 0 {
		return model.ErrNotFound("no history data to export")
	}
	return export.WriteXLSX(w, c, "")
}

// Addresses 返回设备的可选地址，配置无法解析时返回空列表
func (s *historyServiceImpl) Addresses(ctx context.Context, deviceID int) (*AddressOptions, error) {
	if deviceID <= 0 {
		return nil, model.ErrInvalidParameter("device_id is required")
	}
	resp, err := s.backend.DeviceAddresses(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	configs, err := address.DecodeConfigs(resp.Addresses)
	if err != nil {
		logrus.Errorf("[HistoryService] Invalid address configuration of device %d: %v", deviceID, err)
	}
	catalog := address.NewCatalog(configs)

	selectors := catalog.Selectors()
	if selectors == nil {
		selectors = []address.Selector{}
	}
	return &AddressOptions{
		DeviceID:     deviceID,
		DeviceName:   resp.DeviceName,
		MultiStation: catalog.MultiStation(),
		Stations:     catalog.Stations(),
		Configs:      configs,
		Selectors:    selectors,
	}, nil
}

// ParseTimeRange 解析快捷时间范围，支持 m/h/d 后缀
func ParseTimeRange(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return 0, model.ErrInvalidParameter("invalid time_range: " + raw)
	}
	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || n <= 0 {
		return 0, model.ErrInvalidParameter("invalid time_range: " + raw)
	}

	var unit time.Duration
	switch raw[len(raw)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, model.ErrInvalidParameter("invalid time_range: " + raw)
	}
	// 先比较数量再相乘，避免溢出
	if n > int(history.MaxRange/unit) {
		return 0, model.ErrInvalidParameter(fmt.Sprintf("time_range %s exceeds 30 days", raw))
	}
	return time.Duration(n) * unit, nil
}
