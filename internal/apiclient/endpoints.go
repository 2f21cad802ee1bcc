package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// 熔断与指标分类
const (
	ClassAuth        = "auth"
	ClassDevices     = "devices"
	ClassGroups      = "groups"
	ClassUsers       = "users"
	ClassData        = "data"
	ClassHistory     = "history"
	ClassSettings    = "settings"
	ClassPerformance = "performance"
	ClassDashboard   = "dashboard"
	ClassProxy       = "proxy"
)

// Classes 所有分类，用于初始化熔断器
var Classes = []string{
	ClassAuth, ClassDevices, ClassGroups, ClassUsers, ClassData, ClassHistory,
	ClassSettings, ClassPerformance, ClassDashboard, ClassProxy,
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

// ---- 认证 ----

// Login 登录
func (c *Client) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.call(ctx, request{class: ClassAuth, method: http.MethodPost, path: "/api/auth/login", body: req, anonymous: true}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: %w: empty token", ErrDecode)
	}
	return &resp, nil
}

// Logout 登出
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, request{class: ClassAuth, method: http.MethodPost, path: "/api/auth/logout"}, nil)
}

// Me 获取当前用户
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var resp struct {
		User *model.User `json:"user"`
	}
	if err := c.getJSON(ctx, ClassAuth, "/api/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("me: %w: user missing", ErrDecode)
	}
	return resp.User, nil
}

// ChangePassword 修改密码
func (c *Client) ChangePassword(ctx context.Context, req *model.ChangePasswordRequest) error {
	return c.call(ctx, request{class: ClassAuth, method: http.MethodPost, path: "/api/auth/change-password", body: req}, nil)
}

// ---- 设备 ----

// ListDevices 设备列表（不带包装）
func (c *Client) ListDevices(ctx context.Context, q *model.DeviceQuery) (*model.DeviceList, error) {
	query := url.Values{}
	if q != nil {
		setInt(query, "group_id", q.GroupID)
		setInt(query, "page", q.Page)
		setInt(query, "page_size", q.PageSize)
	}
	var list model.DeviceList
	if err := c.callBare(ctx, request{class: ClassDevices, method: http.MethodGet, path: "/api/devices", query: query}, &list); err != nil {
		return nil, err
	}
	if list.Devices == nil {
		list.Devices = []*model.Device{}
	}
	return &list, nil
}

// GetDevice 设备详情
func (c *Client) GetDevice(ctx context.Context, id int) (*model.Device, error) {
	var d model.Device
	if err := c.getJSON(ctx, ClassDevices, fmt.Sprintf("/api/devices/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDevice 创建设备
func (c *Client) CreateDevice(ctx context.Context, device model.Object) (*model.Device, error) {
	var d model.Device
	err := c.call(ctx, request{class: ClassDevices, method: http.MethodPost, path: "/api/devices", body: device}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDevice 更新设备
func (c *Client) UpdateDevice(ctx context.Context, id int, device model.Object) (*model.Device, error) {
	var d model.Device
	err := c.call(ctx, request{class: ClassDevices, method: http.MethodPut, path: fmt.Sprintf("/api/devices/%d", id), body: device}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDevice 删除设备，后端只返回 {message}
func (c *Client) DeleteDevice(ctx context.Context, id int) error {
	return c.callBare(ctx, request{class: ClassDevices, method: http.MethodDelete, path: fmt.Sprintf("/api/devices/%d", id)}, nil)
}

// DeviceStatus 单个设备状态（不带包装）
func (c *Client) DeviceStatus(ctx context.Context, id int) (*model.DeviceStatus, error) {
	var st model.DeviceStatus
	if err := c.callBare(ctx, request{class: ClassDevices, method: http.MethodGet, path: fmt.Sprintf("/api/devices/%d/status", id)}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// DevicesStatus 所有设备的连接状态
func (c *Client) DevicesStatus(ctx context.Context) (model.Object, error) {
	var st model.Object
	if err := c.callBare(ctx, request{class: ClassDevices, method: http.MethodGet, path: "/api/devices/status"}, &st); err != nil {
		return nil, err
	}
	return st, nil
}

// ProtocolInfo 协议支持情况
func (c *Client) ProtocolInfo(ctx context.Context) (*model.ProtocolInfo, error) {
	var info model.ProtocolInfo
	if err := c.getJSON(ctx, ClassDevices, "/api/devices/protocol-info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeviceLogs 采集日志（不带包装）
func (c *Client) DeviceLogs(ctx context.Context, id, page, pageSize int) (*model.CollectLogList, error) {
	query := url.Values{}
	setInt(query, "page", page)
	setInt(query, "page_size", pageSize)
	var logs model.CollectLogList
	err := c.callBare(ctx, request{class: ClassDevices, method: http.MethodGet, path: fmt.Sprintf("/api/devices/%d/logs", id), query: query}, &logs)
	if err != nil {
		return nil, err
	}
	return &logs, nil
}

// TestConnection 测试设备连接，连接失败不算请求错误
func (c *Client) TestConnection(ctx context.Context, req *model.ConnectionTestRequest) (*model.ConnectionTestResult, error) {
	body, err := c.send(ctx, request{class: ClassDevices, method: http.MethodPost, path: "/api/test-connection", body: req})
	if err != nil {
		return nil, err
	}
	var result model.ConnectionTestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("test connection: %w: %v", ErrDecode, err)
	}
	return &result, nil
}

// ---- 分组与用户 ----

// ListGroups 分组列表
func (c *Client) ListGroups(ctx context.Context, page, pageSize int) (*model.GroupList, error) {
	query := url.Values{}
	setInt(query, "page", page)
	setInt(query, "page_size", pageSize)
	var list model.GroupList
	if err := c.getJSON(ctx, ClassGroups, "/api/groups", query, &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []*model.Group{}
	}
	return &list, nil
}

type groupBody struct {
	Group *model.Group `json:"group"`
}

// GetGroup 分组详情（不带包装）
func (c *Client) GetGroup(ctx context.Context, id int) (*model.Group, error) {
	var resp groupBody
	if err := c.callBare(ctx, request{class: ClassGroups, method: http.MethodGet, path: fmt.Sprintf("/api/groups/%d", id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// CreateGroup 创建分组
func (c *Client) CreateGroup(ctx context.Context, req *model.GroupRequest) (*model.Group, error) {
	var resp groupBody
	if err := c.callBare(ctx, request{class: ClassGroups, method: http.MethodPost, path: "/api/groups", body: req}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// UpdateGroup 更新分组
func (c *Client) UpdateGroup(ctx context.Context, id int, req *model.GroupRequest) (*model.Group, error) {
	var resp groupBody
	if err := c.callBare(ctx, request{class: ClassGroups, method: http.MethodPut, path: fmt.Sprintf("/api/groups/%d", id), body: req}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// DeleteGroup 删除分组
func (c *Client) DeleteGroup(ctx context.Context, id int) error {
	return c.callBare(ctx, request{class: ClassGroups, method: http.MethodDelete, path: fmt.Sprintf("/api/groups/%d", id)}, nil)
}

// ListUsers 用户列表
func (c *Client) ListUsers(ctx context.Context, groupID, page, perPage int) (*model.UserList, error) {
	query := url.Values{}
	setInt(query, "group_id", groupID)
	setInt(query, "page", page)
	setInt(query, "per_page", perPage)
	var list model.UserList
	if err := c.getJSON(ctx, ClassUsers, "/api/users", query, &list); err != nil {
		return nil, err
	}
	if list.Users == nil {
		list.Users = []*model.User{}
	}
	return &list, nil
}

type userEnvelope struct {
	User *model.User `json:"user"`
}

// GetUser 用户详情
func (c *Client) GetUser(ctx context.Context, id int) (*model.User, error) {
	var resp userEnvelope
	if err := c.getJSON(ctx, ClassUsers, fmt.Sprintf("/api/users/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// CreateUser 创建用户，未指定角色时为普通用户
func (c *Client) CreateUser(ctx context.Context, req *model.UserCreateRequest) (*model.User, error) {
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	var resp userEnvelope
	if err := c.call(ctx, request{class: ClassUsers, method: http.MethodPost, path: "/api/users", body: req}, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// UpdateUser 更新用户
func (c *Client) UpdateUser(ctx context.Context, id int, req *model.UserUpdateRequest) (*model.User, error) {
	var resp userEnvelope
	if err := c.call(ctx, request{class: ClassUsers, method: http.MethodPut, path: fmt.Sprintf("/api/users/%d", id), body: req}, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// DeleteUser 删除用户
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.call(ctx, request{class: ClassUsers, method: http.MethodDelete, path: fmt.Sprintf("/api/users/%d", id)}, nil)
}

// ResetUserPassword 重置用户密码
func (c *Client) ResetUserPassword(ctx context.Context, id int, req *model.PasswordResetRequest) error {
	return c.call(ctx, request{class: ClassUsers, method: http.MethodPut, path: fmt.Sprintf("/api/users/%d/reset-password", id), body: req}, nil)
}

// ---- 数据 ----

func dataQuery(q *model.DataQuery) url.Values {
	query := url.Values{}
	if q == nil {
		return query
	}
	setInt(query, "device_id", q.DeviceID)
	setInt(query, "group_id", q.GroupID)
	if q.TimeRange != "" {
		query.Set("time_range", q.TimeRange)
	}
	if q.StartTime != "" {
		query.Set("start_time", q.StartTime)
	}
	if q.EndTime != "" {
		query.Set("end_time", q.EndTime)
	}
	if q.Address != "" {
		query.Set("address", q.Address)
	}
	return query
}

// DataPoints 数据点列表
func (c *Client) DataPoints(ctx context.Context, q *model.DataQuery) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, ClassData, "/api/data/points", dataQuery(q), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DeviceAddresses 设备的地址配置（不带包装）
func (c *Client) DeviceAddresses(ctx context.Context, deviceID int) (*model.DeviceAddresses, error) {
	var resp model.DeviceAddresses
	err := c.callBare(ctx, request{class: ClassData, method: http.MethodGet, path: fmt.Sprintf("/api/data/addresses/%d", deviceID)}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Realtime 实时数据
func (c *Client) Realtime(ctx context.Context, deviceID, groupID int) (*model.RealtimeData, error) {
	query := url.Values{}
	setInt(query, "device_id", deviceID)
	setInt(query, "group_id", groupID)
	var data model.RealtimeData
	if err := c.getJSON(ctx, ClassData, "/api/data/realtime", query, &data); err != nil {
		return nil, err
	}
	if data.RealtimeData == nil {
		data.RealtimeData = []*model.RealtimeDevice{}
	}
	return &data, nil
}

// History 单个地址的历史数据（不带包装）
func (c *Client) History(ctx context.Context, q *model.HistoryQuery) (*model.HistoryResponse, error) {
	query := url.Values{}
	query.Set("device_id", strconv.Itoa(q.DeviceID))
	if q.Address != "" {
		query.Set("address", q.Address)
	}
	if q.StationID != nil {
		query.Set("station_id", strconv.Itoa(*q.StationID))
	}
	if q.StartTime != nil {
		query.Set("start_time", q.StartTime.Format(time.RFC3339))
	}
	if q.EndTime != nil {
		query.Set("end_time", q.EndTime.Format(time.RFC3339))
	}
	setInt(query, "limit", q.Limit)
	setInt(query, "offset", q.Offset)

	var resp model.HistoryResponse
	if err := c.callBare(ctx, request{class: ClassHistory, method: http.MethodGet, path: "/api/data/history", query: query}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []*model.Sample{}
	}
	return &resp, nil
}

// Statistics 数据统计（不带包装）
func (c *Client) Statistics(ctx context.Context, q *model.DataQuery) (*model.DataStatistics, error) {
	var stats model.DataStatistics
	err := c.callBare(ctx, request{class: ClassData, method: http.MethodGet, path: "/api/data/statistics", query: dataQuery(q)}, &stats)
	if err != nil {
		return nil, err
	}
	if stats.Statistics == nil {
		stats.Statistics = []model.Object{}
	}
	return &stats, nil
}

// Anomalies 异常分析
func (c *Client) Anomalies(ctx context.Context, q *model.DataQuery) (model.Object, error) {
	var obj model.Object
	err := c.callBare(ctx, request{class: ClassData, method: http.MethodGet, path: "/api/data/anomalies", query: dataQuery(q)}, &obj)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ---- 设置、性能、仪表盘 ----

// Settings 系统设置
func (c *Client) Settings(ctx context.Context) (*model.SystemSettings, error) {
	var s model.SystemSettings
	if err := c.getJSON(ctx, ClassSettings, "/api/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings 更新系统设置
func (c *Client) UpdateSettings(ctx context.Context, s *model.SystemSettings) (*model.SystemSettings, error) {
	var out model.SystemSettings
	if err := c.call(ctx, request{class: ClassSettings, method: http.MethodPut, path: "/api/settings", body: s}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func performanceQuery(q *model.PerformanceQuery) url.Values {
	query := url.Values{}
	if q == nil {
		return query
	}
	setInt(query, "hours", q.Hours)
	setInt(query, "device_id", q.DeviceID)
	if q.Interval != "" {
		query.Set("interval", q.Interval)
	}
	return query
}

// PerformanceOverview 性能概览
func (c *Client) PerformanceOverview(ctx context.Context, q *model.PerformanceQuery) (model.Object, error) {
	var obj model.Object
	if err := c.getJSON(ctx, ClassPerformance, "/api/performance/overview", performanceQuery(q), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// DevicePerformance 单设备性能
func (c *Client) DevicePerformance(ctx context.Context, deviceID int, q *model.PerformanceQuery) (model.Object, error) {
	var obj model.Object
	path := fmt.Sprintf("/api/performance/device/%d", deviceID)
	if err := c.getJSON(ctx, ClassPerformance, path, performanceQuery(q), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// PerformanceTrends 性能趋势
func (c *Client) PerformanceTrends(ctx context.Context, q *model.PerformanceQuery) (model.Object, error) {
	var obj model.Object
	if err := c.getJSON(ctx, ClassPerformance, "/api/performance/trends", performanceQuery(q), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// DashboardStats 仪表盘统计
func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	if err := c.getJSON(ctx, ClassDashboard, "/api/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
