package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `ini:"server"`
	Backend   BackendConfig   `ini:"backend"`
	Session   SessionConfig   `ini:"session"`
	History   HistoryConfig   `ini:"history"`
	Poll      PollConfig      `ini:"poll"`
	Cache     CacheConfig     `ini:"cache"`
	RateLimit RateLimitConfig `ini:"ratelimit"`
	Etcd      EtcdConfig      `ini:"etcd"`
	Log       LogConfig       `ini:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `ini:"port"` // 服务端口
	Mode string `ini:"mode"` // gin运行模式: debug/release
}

// BackendConfig 后端API配置
type BackendConfig struct {
	BaseURL   string        `ini:"base_url"`  // 后端地址，如 http://127.0.0.1:8000
	Endpoints []string      `ini:"endpoints"` // 多个后端节点，逗号分隔，优先于base_url
	Timeout   time.Duration `ini:"timeout"`   // 单次请求超时
}

// SessionConfig 登录会话配置
type SessionConfig struct {
	DBPath string `ini:"db_path"` // 会话持久化的sqlite文件
	Key    string `ini:"key"`     // 持久化键名
}

// HistoryConfig 历史数据配置
type HistoryConfig struct {
	Limit        int    `ini:"limit"`         // 单个地址的最大返回条数
	WindowSize   int    `ini:"window_size"`   // 默认窗口大小
	Concurrency  int    `ini:"concurrency"`   // 并发请求数
	AllowPartial bool   `ini:"allow_partial"` // 部分地址失败时是否保留成功的结果
	Timezone     string `ini:"timezone"`      // 时间显示时区
}

// PollConfig 自动刷新配置
type PollConfig struct {
	Devices   time.Duration `ini:"devices"`   // 设备列表
	Realtime  time.Duration `ini:"realtime"`  // 实时数据
	Status    time.Duration `ini:"status"`    // 设备状态
	Dashboard time.Duration `ini:"dashboard"` // 仪表盘统计
}

// CacheConfig 缓存配置
type CacheConfig struct {
	MaxBytes int64         `ini:"max_bytes"` // 最大缓存字节数
	TTL      time.Duration `ini:"ttl"`       // 缓存过期时间
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	QPS   int `ini:"qps"`   // 每秒请求数
	Burst int `ini:"burst"` // 突发请求数
	IPQPS int `ini:"ip_qps"`
}

// EtcdConfig etcd配置，用于发现后端节点
type EtcdConfig struct {
	Endpoints   string `ini:"endpoints"`    // etcd地址列表，逗号分隔
	ServiceName string `ini:"service_name"` // 后端服务名
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `ini:"level"`
	File  string `ini:"file"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "release"},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{DBPath: "./data/session.db", Key: "auth-storage"},
		History: HistoryConfig{
			Limit:       50000,
			WindowSize:  1000,
			Concurrency: 4,
			Timezone:    "Local",
		},
		Poll: PollConfig{
			Devices:   10 * time.Second,
			Realtime:  3 * time.Second,
			Status:    30 * time.Second,
			Dashboard: 60 * time.Second,
		},
		Cache:     CacheConfig{MaxBytes: 64 * 1024 * 1024, TTL: 5 * time.Minute},
		RateLimit: RateLimitConfig{QPS: 200, Burst: 400, IPQPS: 50},
		Etcd:      EtcdConfig{ServiceName: "plc-backend"},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig 加载配置文件
func LoadConfig(filePath string) (*Config, error) {
	cfg, err := LoadConfigFrom(filePath)
	if err != nil {
		logrus.Errorf("Failed to load config file: %v", err)
		return nil, err
	}

	logrus.Infof("Config loaded successfully from: %s", filePath)
	return cfg, nil
}

// LoadConfigFrom 从文件路径或[]byte加载配置，未配置的项使用默认值
func LoadConfigFrom(source interface{}) (*Config, error) {
	cfg := Default()
	if err := ini.MapTo(cfg, source); err != nil {
		return nil, fmt.Errorf("map config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" && len(c.Backend.Nodes()) == 0 && c.Etcd.Endpoints == "" {
		return fmt.Errorf("backend base_url, endpoints or etcd endpoints is required")
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.History.WindowSize <= 0 {
		return fmt.Errorf("history window_size must be positive")
	}
	if c.History.Concurrency <= 0 {
		c.History.Concurrency = 1
	}
	if _, err := c.History.Location(); err != nil {
		return err
	}
	return nil
}

// Nodes 返回去除空白后的后端节点列表
func (b *BackendConfig) Nodes() []string {
	nodes := make([]string, 0, len(b.Endpoints))
	for _, ep := range b.Endpoints {
		ep = strings.TrimSpace(ep)
		if ep != "" {
			nodes = append(nodes, strings.TrimRight(ep, "/"))
		}
	}
	return nodes
}

// Location 返回显示时区
func (h *HistoryConfig) Location() (*time.Location, error) {
	if h.Timezone == "" || strings.EqualFold(h.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", h.Timezone, err)
	}
	return loc, nil
}

// EtcdEndpoints 返回etcd地址列表
func (e *EtcdConfig) EtcdEndpoints() []string {
	if e.Endpoints == "" {
		return nil
	}
	parts := strings.Split(e.Endpoints, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
