package model

// SystemSettings 系统设置
type SystemSettings struct {
	SystemName               string `json:"system_name"`
	SystemDescription        string `json:"system_description"`
	Timezone                 string `json:"timezone"`
	Language                 string `json:"language"`
	PLCCollectInterval       int    `json:"plc_collect_interval"` // 秒
	PLCConnectTimeout        int    `json:"plc_connect_timeout"`  // 毫秒
	PLCReceiveTimeout        int    `json:"plc_receive_timeout"`  // 毫秒
	DataRetentionDays        int    `json:"data_retention_days"`
	MaxConcurrentConnections int    `json:"max_concurrent_connections"`
	LogLevel                 string `json:"log_level"`
	LogRetentionDays         int    `json:"log_retention_days"`
	EnableAuditLog           bool   `json:"enable_audit_log"`
}

// Validate 校验设置
func (s *SystemSettings) Validate() error {
	if s.SystemName == "" {
		return ErrInvalidParameter("system_name is required")
	}
	if s.PLCCollectInterval <= 0 {
		return ErrInvalidParameter("plc_collect_interval must be positive")
	}
	if s.DataRetentionDays <= 0 {
		return ErrInvalidParameter("data_retention_days must be positive")
	}
	return nil
}

// DashboardStats 仪表盘统计
type DashboardStats struct {
	TotalUsers      int    `json:"total_users"`
	TotalGroups     int    `json:"total_groups"`
	TotalDevices    int    `json:"total_devices"`
	OnlineDevices   int    `json:"online_devices"`
	OfflineDevices  int    `json:"offline_devices"`
	TotalDataPoints int    `json:"total_data_points"`
	RecentAlerts    int    `json:"recent_alerts"`
	UserGroupName   string `json:"user_group_name"`
}

// PerformanceQuery 性能分析查询参数
type PerformanceQuery struct {
	Hours    int    `form:"hours"`
	Interval string `form:"interval"`
	DeviceID int    `form:"device_id"`
}
