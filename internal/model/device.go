package model

import "github.com/Smalllight01/plc-admin-sub001/pkg/json"

// Device 设备信息
type Device struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	PLCType         string          `json:"plc_type"`
	Protocol        string          `json:"protocol"`
	IPAddress       string          `json:"ip_address"`
	Port            int             `json:"port"`
	Addresses       json.RawMessage `json:"addresses"` // 采集地址配置，格式不固定，由address包解析
	ByteOrder       string          `json:"byte_order,omitempty"`
	Description     string          `json:"description,omitempty"`
	IsActive        bool            `json:"is_active"`
	IsConnected     bool            `json:"is_connected"`
	Status          string          `json:"status"`
	LastCollectTime string          `json:"last_collect_time,omitempty"`
	GroupID         *int            `json:"group_id"`
	GroupName       string          `json:"group_name,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

// DeviceList 设备列表（后端不带包装）
type DeviceList struct {
	Devices []*Device `json:"devices"`
	Page
}

// DeviceQuery 设备列表查询参数
type DeviceQuery struct {
	GroupID  int `form:"group_id"`
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// DeviceStatus 单个设备状态
type DeviceStatus struct {
	DeviceID         int         `json:"device_id"`
	Name             string      `json:"name"`
	IsActive         bool        `json:"is_active"`
	LastCollectTime  interface{} `json:"last_collect_time"`
	ConnectionStatus interface{} `json:"connection_status"`
}

// ProtocolInfo 协议支持信息
type ProtocolInfo struct {
	ModbusAvailable    bool     `json:"modbus_available"`
	OmronAvailable     bool     `json:"omron_available"`
	SiemensAvailable   bool     `json:"siemens_available"`
	SupportedProtocols []string `json:"supported_protocols"`
	TotalProtocols     int      `json:"total_protocols"`
}

// CollectLog 采集日志
type CollectLog struct {
	ID           int      `json:"id"`
	DeviceID     int      `json:"device_id"`
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	ResponseTime *float64 `json:"response_time"`
	CollectTime  string   `json:"collect_time"`
}

// Group 设备分组
type Group struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DeviceCount int    `json:"device_count"`
	UserCount   int    `json:"user_count"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ConnectionTestRequest 连接测试请求
type ConnectionTestRequest struct {
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port" binding:"required"`
	Protocol string `json:"protocol"`
	Timeout  int    `json:"timeout,omitempty"` // 毫秒
}

// ConnectionTestResult 连接测试结果，success=false 表示连接失败而不是请求失败
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeviceAddresses 设备的地址配置
type DeviceAddresses struct {
	DeviceID   FlexInt         `json:"device_id"`
	DeviceName string          `json:"device_name"`
	Addresses  json.RawMessage `json:"addresses"`
}

// CollectLogList 采集日志列表
type CollectLogList struct {
	Logs []*CollectLog `json:"logs"`
	Page
}

// GroupList 分组列表
type GroupList struct {
	Data []*Group `json:"data"`
	Page
}

// GroupRequest 创建或更新分组
type GroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}
