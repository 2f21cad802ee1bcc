package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// Backend 处理器直接转调的后端接口，由apiclient.Client实现
type Backend interface {
	GetDevice(ctx context.Context, id int) (*model.Device, error)
	CreateDevice(ctx context.Context, device model.Object) (*model.Device, error)
	UpdateDevice(ctx context.Context, id int, device model.Object) (*model.Device, error)
	DeleteDevice(ctx context.Context, id int) error
	DeviceStatus(ctx context.Context, id int) (*model.DeviceStatus, error)
	ProtocolInfo(ctx context.Context) (*model.ProtocolInfo, error)
	DeviceLogs(ctx context.Context, id, page, pageSize int) (*model.CollectLogList, error)
	TestConnection(ctx context.Context, req *model.ConnectionTestRequest) (*model.ConnectionTestResult, error)

	ListGroups(ctx context.Context, page, pageSize int) (*model.GroupList, error)
	GetGroup(ctx context.Context, id int) (*model.Group, error)
	CreateGroup(ctx context.Context, req *model.GroupRequest) (*model.Group, error)
	UpdateGroup(ctx context.Context, id int, req *model.GroupRequest) (*model.Group, error)
	DeleteGroup(ctx context.Context, id int) error
	ListUsers(ctx context.Context, groupID, page, perPage int) (*model.UserList, error)
	GetUser(ctx context.Context, id int) (*model.User, error)
	CreateUser(ctx context.Context, req *model.UserCreateRequest) (*model.User, error)
	UpdateUser(ctx context.Context, id int, req *model.UserUpdateRequest) (*model.User, error)
	DeleteUser(ctx context.Context, id int) error
	ResetUserPassword(ctx context.Context, id int, req *model.PasswordResetRequest) error

	DataPoints(ctx context.Context, q *model.DataQuery) (json.RawMessage, error)
	Statistics(ctx context.Context, q *model.DataQuery) (*model.DataStatistics, error)
	Anomalies(ctx context.Context, q *model.DataQuery) (model.Object, error)

	Settings(ctx context.Context) (*model.SystemSettings, error)
	UpdateSettings(ctx context.Context, s *model.SystemSettings) (*model.SystemSettings, error)
	PerformanceOverview(ctx context.Context, q *model.PerformanceQuery) (model.Object, error)
	DevicePerformance(ctx context.Context, deviceID int, q *model.PerformanceQuery) (model.Object, error)
	PerformanceTrends(ctx context.Context, q *model.PerformanceQuery) (model.Object, error)
}

// Forwarder 透传代理
type Forwarder interface {
	Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error)
}
