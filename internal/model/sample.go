package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Smalllight01/plc-admin-sub001/pkg/json"

	"github.com/relvacode/iso8601"
)

// ValueKind 采样值类型
type ValueKind int

const (
	ValueNull   ValueKind = iota // 空值
	ValueNumber                  // 数值
	ValueBool                    // 布尔
	ValueText                    // 字符串
)

// SampleValue 采样值，后端可能返回数值、布尔或字符串
type SampleValue struct {
	Kind   ValueKind
	Number float64
	Bool   bool
	Text   string
}

// NumberValue 创建数值
func NumberValue(v float64) SampleValue {
	return SampleValue{Kind: ValueNumber, Number: v}
}

// BoolValue 创建布尔值
func BoolValue(v bool) SampleValue {
	return SampleValue{Kind: ValueBool, Bool: v}
}

// TextValue 创建字符串值
func TextValue(v string) SampleValue {
	return SampleValue{Kind: ValueText, Text: v}
}

// UnmarshalJSON 按JSON类型解析
func (v *SampleValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "" || s == "null":
		*v = SampleValue{}
	case s == "true" || s == "false":
		*v = BoolValue(s == "true")
	case s[0] == '"':
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		*v = TextValue(text)
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid sample value %s: %w", s, err)
		}
		*v = NumberValue(f)
	}
	return nil
}

// MarshalJSON 按原类型输出
func (v SampleValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Number)
	case ValueBool:
		return json.Marshal(v.Bool)
	case ValueText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// Float 转换为图表可用的数值，布尔转为1/0，数字字符串解析，其余返回false
func (v SampleValue) Float() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Number, true
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case ValueText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String 文本表示
func (v SampleValue) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

// Sample 一条采样数据，获取后不再修改
type Sample struct {
	RawTime    string      `json:"time"`
	Time       time.Time   `json:"-"`
	DeviceID   FlexInt     `json:"device_id"`
	DeviceName string      `json:"device_name,omitempty"`
	Address    string      `json:"address"`
	Value      SampleValue `json:"value"`
	Selector   string      `json:"selector,omitempty"` // 查询时使用的地址选择器
}

// ResolveTime 解析时间字符串，没有时区的时间按loc处理
func (s *Sample) ResolveTime(loc *time.Location) error {
	t, err := ParseTime(s.RawTime, loc)
	if err != nil {
		return err
	}
	s.Time = t
	return nil
}

// ParseTime 解析后端返回的ISO8601时间
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if loc == nil {
		loc = time.Local
	}
	// Python的isoformat用空格分隔日期和时间时也能解析
	raw = strings.Replace(raw, " ", "T", 1)
	t, err := iso8601.ParseInLocation([]byte(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

// HistoryQuery 历史数据查询参数（单个地址）
type HistoryQuery struct {
	DeviceID  int
	Address   string
	StationID *int
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// HistoryResponse 历史数据响应（后端不带包装）
type HistoryResponse struct {
	DeviceID     FlexInt   `json:"device_id"`
	DeviceName   string    `json:"device_name"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Address      *string   `json:"address"`
	StationID    *int      `json:"station_id"`
	QueryAddress *string   `json:"query_address"`
	DataCount    int       `json:"data_count"`
	Data         []*Sample `json:"data"`
}

// RealtimeDevice 单个设备的实时数据
type RealtimeDevice struct {
	DeviceID        int       `json:"device_id"`
	DeviceName      string    `json:"device_name"`
	PLCType         string    `json:"plc_type"`
	IPAddress       string    `json:"ip_address"`
	IsConnected     bool      `json:"is_connected"`
	LastCollectTime *string   `json:"last_collect_time"`
	Data            []*Sample `json:"data"`
	Error           string    `json:"error,omitempty"`
}

// RealtimeData 实时数据
type RealtimeData struct {
	RealtimeData []*RealtimeDevice `json:"realtime_data"`
	Timestamp    string            `json:"timestamp"`
}

// DataQuery 通用数据查询参数
type DataQuery struct {
	DeviceID  int    `form:"device_id"`
	GroupID   int    `form:"group_id"`
	StartTime string `form:"start_time"`
	EndTime   string `form:"end_time"`
	Address   string `form:"address"`
	TimeRange string `form:"time_range"` // 10m/30m/1h/24h/7d/30d
}

// DataStatistics 数据统计（后端不带包装）
type DataStatistics struct {
	Statistics []Object `json:"statistics"`
	Timestamp  string   `json:"timestamp"`
	Message    string   `json:"message,omitempty"`
}
