package address

import (
	"fmt"
	"regexp"
	"strconv"
)

// stationKeyPattern 存储格式 "<addr>_s<station>"
var stationKeyPattern = regexp.MustCompile(`^(.+)_s(\d+)$`)

// Selector 地址选择器，用户选择的一个查询点
// 一条物理链路挂多个站号时，Address 可能是 "40001_s2" 这样的组合键
type Selector struct {
	Address         string `json:"address"`
	StationID       *int   `json:"stationId,omitempty"`
	OriginalAddress string `json:"originalAddress,omitempty"`
}

// NewSelector 创建普通地址选择器
func NewSelector(addr string) Selector {
	return Selector{Address: addr}
}

// NewStationSelector 创建带站号的地址选择器
func NewStationSelector(addr string, station int) Selector {
	s := station
	return Selector{
		Address:         EncodeStationKey(addr, station),
		StationID:       &s,
		OriginalAddress: addr,
	}
}

// EncodeStationKey 编码为 "<addr>_s<station>"
func EncodeStationKey(addr string, station int) string {
	return fmt.Sprintf("%s_s%d", addr, station)
}

// DecodeStationKey 解析 "<addr>_s<station>"，不是该格式时 ok 为 false
func DecodeStationKey(key string) (addr string, station int, ok bool) {
	m := stationKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return key, 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return key, 0, false
	}
	return m[1], n, true
}

// Decompose 拆分为基础地址和显式站号
func (s Selector) Decompose() (base string, station *int) {
	if s.StationID != nil {
		st := *s.StationID
		switch {
		case s.OriginalAddress != "":
			return s.OriginalAddress, &st
		default:
			if addr, _, ok := DecodeStationKey(s.Address); ok {
				return addr, &st
			}
			return s.Address, &st
		}
	}
	if addr, n, ok := DecodeStationKey(s.Address); ok {
		return addr, &n
	}
	return s.Address, nil
}

// Key 返回图表和合并序列中使用的键
func (s Selector) Key() string {
	return s.Address
}

// Keys 返回选择器列表的键
func Keys(selectors []Selector) []string {
	keys := make([]string, len(selectors))
	for i, s := range selectors {
		keys[i] = s.Key()
	}
	return keys
}
