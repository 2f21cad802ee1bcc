package address

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// EntryKind 地址配置条目类型
type EntryKind int

const (
	KindLegacy     EntryKind = iota + 1 // 旧格式：纯字符串地址
	KindStructured                      // 新格式：地址配置对象
)

// Scaling 线性缩放配置
type Scaling struct {
	Enabled   bool    `json:"enabled"`
	InputMin  float64 `json:"inputMin"`
	InputMax  float64 `json:"inputMax"`
	OutputMin float64 `json:"outputMin"`
	OutputMax float64 `json:"outputMax"`
}

// StructuredEntry 地址配置对象
type StructuredEntry struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Type         string   `json:"type,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	Description  string   `json:"description,omitempty"`
	StationID    *int     `json:"stationId,omitempty"`
	FunctionCode *int     `json:"functionCode,omitempty"`
	RegisterType string   `json:"registerType,omitempty"`
	ByteOrder    string   `json:"byteOrder,omitempty"`
	WordSwap     bool     `json:"wordSwap,omitempty"`
	ScanRate     int      `json:"scanRate,omitempty"`
	Scaling      *Scaling `json:"scaling,omitempty"`
}

// Entry 地址配置条目，Kind 决定哪个字段有效
type Entry struct {
	Kind       EntryKind
	Legacy     string
	Structured *StructuredEntry
}

// Config 归一化后的地址配置
type Config struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Type         string  `json:"type"`
	Unit         string  `json:"unit"`
	Description  string  `json:"description"`
	StationID    int     `json:"stationId"`
	FunctionCode int     `json:"functionCode"`
	RegisterType string  `json:"registerType"`
	ByteOrder    string  `json:"byteOrder"`
	WordSwap     bool    `json:"wordSwap"`
	ScanRate     int     `json:"scanRate"`
	Scaling      Scaling `json:"scaling"`
}

func defaultConfig() Config {
	return Config{
		Type:         "int16",
		StationID:    1,
		FunctionCode: 3,
		RegisterType: "holding",
		ByteOrder:    "CDAB",
		ScanRate:     1000,
		Scaling:      Scaling{InputMax: 100, OutputMax: 10},
	}
}

// Decode 解析设备的地址配置
// 支持 JSON数组、保存为字符串的JSON数组、null；数组元素可以是字符串或对象
func Decode(raw []byte) ([]Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("decode address text: %w", err)
		}
		if len(bytes.TrimSpace([]byte(text))) == 0 {
			return nil, nil
		}
		if text[0] == '"' {
			return nil, fmt.Errorf("decode address text: nested string")
		}
		return Decode([]byte(text))
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode address list: %w", err)
		}
		entries := make([]Entry, 0, len(items))
		for i, item := range items {
			entry, err := decodeItem(item)
			if err != nil {
				return nil, fmt.Errorf("decode address #%d: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unsupported address configuration: %.32s", raw)
	}
}

func decodeItem(item json.RawMessage) (Entry, error) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return Entry{}, fmt.Errorf("empty item")
	}
	switch item[0] {
	case '"':
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return Entry{}, err
		}
		return Entry{Kind: KindLegacy, Legacy: s}, nil
	case '{':
		var se StructuredEntry
		if err := json.Unmarshal(item, &se); err != nil {
			return Entry{}, err
		}
		return Entry{Kind: KindStructured, Structured: &se}, nil
	default:
		return Entry{}, fmt.Errorf("unexpected item %.32s", item)
	}
}

// DecodeConfigs 解析并归一化，解析失败时返回空列表和错误
func DecodeConfigs(raw []byte) ([]Config, error) {
	entries, err := Decode(raw)
	if err != nil {
		return []Config{}, err
	}
	return Normalize(entries), nil
}

// Normalize 把条目转换为统一的配置，空地址会被跳过
func Normalize(entries []Entry) []Config {
	configs := make([]Config, 0, len(entries))
	for i, e := range entries {
		cfg := defaultConfig()
		switch e.Kind {
		case KindLegacy:
			if e.Legacy == "" {
				continue
			}
			cfg.ID = "legacy_" + strconv.Itoa(i)
			cfg.Name = "地址" + strconv.Itoa(i+1)
			cfg.Address = e.Legacy
		case KindStructured:
			se := e.Structured
			if se == nil || se.Address == "" {
				continue
			}
			cfg.ID = se.ID
			if cfg.ID == "" {
				cfg.ID = "addr_" + se.Address
			}
			cfg.Name = se.Name
			cfg.Address = se.Address
			if se.Type != "" {
				cfg.Type = se.Type
			}
			cfg.Unit = se.Unit
			cfg.Description = se.Description
			if se.StationID != nil {
				cfg.StationID = *se.StationID
			}
			if se.FunctionCode != nil {
				cfg.FunctionCode = *se.FunctionCode
			}
			if se.RegisterType != "" {
				cfg.RegisterType = se.RegisterType
			}
			if se.ByteOrder != "" {
				cfg.ByteOrder = se.ByteOrder
			}
			cfg.WordSwap = se.WordSwap
			if se.ScanRate > 0 {
				cfg.ScanRate = se.ScanRate
			}
			if se.Scaling != nil {
				cfg.Scaling = *se.Scaling
			}
		default:
			continue
		}
		configs = append(configs, cfg)
	}
	return configs
}
