package chart

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// TimeLayout 行时间标签格式，精确到秒
const TimeLayout = "2006-01-02 15:04:05"

// TimeKey 行中时间列的键名
const TimeKey = "time"

// Value 可为空的数值，空值序列化为null
type Value struct {
	Float float64
	Valid bool
}

// MarshalJSON 输出数值或null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// FromSample 把采样值转换为图表数值
// 布尔转为1/0，数字字符串解析，其余为空
func FromSample(v model.SampleValue) Value {
	f, ok := v.Float()
	return Value{Float: f, Valid: ok}
}

// Row 一个时间点上所有选中地址的取值
type Row struct {
	Time   string
	At     time.Time
	Values map[string]Value
	keys   []string
}

// Get 返回地址key的取值
func (r Row) Get(key string) Value {
	return r.Values[key]
}

// Keys 返回行的全部键，第一个是时间列
func (r Row) Keys() []string {
	out := make([]string, 0, len(r.keys)+1)
	out = append(out, TimeKey)
	return append(out, r.keys...)
}

// MarshalJSON 输出扁平对象 {"time": "...", "<addr>": number|null}，键按选择顺序
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	t, _ := json.Marshal(r.Time)
	buf.WriteString(`"` + TimeKey + `":`)
	buf.Write(t)
	for _, k := range r.keys {
		if k == TimeKey {
			continue
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := r.Values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Series 图表中的一条曲线
type Series struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Chart 图表数据
type Chart struct {
	Rows   []Row             `json:"rows"`
	Series []Series          `json:"series"`
	Labels map[string]string `json:"labels"`
}

// LabelResolver 地址的显示名称
type LabelResolver interface {
	Label(key string) string
}

// Transformer 把窗口内的采样转换为对齐的图表行
type Transformer struct {
	loc *time.Location
}

// NewTransformer 创建转换器，时间标签按loc格式化
func NewTransformer(loc *time.Location) *Transformer {
	if loc == nil {
		loc = time.Local
	}
	return &Transformer{loc: loc}
}

// Label 把时间格式化为行标签
func (t *Transformer) Label(at time.Time) string {
	return at.In(t.loc).Format(TimeLayout)
}

// Build 按秒级时间标签分组，每个选中地址在每行都有键，缺失为null
// 同一秒内较晚的采样覆盖较早的
func (t *Transformer) Build(samples []*model.Sample, selectors []address.Selector, resolver LabelResolver) Chart {
	keys := uniqueKeys(selectors)
	selected := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		selected[k] = struct{}{}
	}

	byLabel := make(map[string]*Row)
	order := make([]*Row, 0)
	for _, s := range samples {
		if s == nil || s.Time.IsZero() {
			continue
		}
		key := s.Selector
		if key == "" {
			key = s.Address
		}
		if _, ok := selected[key]; !ok {
			continue
		}

		label := t.Label(s.Time)
		row, ok := byLabel[label]
		if !ok {
			row = &Row{
				Time:   label,
				At:     s.Time.Truncate(time.Second),
				Values: make(map[string]Value, len(keys)),
				keys:   keys,
			}
			for _, k := range keys {
				row.Values[k] = Value{}
			}
			byLabel[label] = row
			order = append(order, row)
		}
		row.Values[key] = FromSample(s.Value)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].At.Before(order[j].At)
	})

	rows := make([]Row, len(order))
	for i, r := range order {
		rows[i] = *r
	}

	labels := make(map[string]string, len(keys))
	series := make([]Series, len(keys))
	for i, k := range keys {
		label := k
		if resolver != nil {
			label = resolver.Label(k)
		}
		labels[k] = label
		series[i] = Series{Key: k, Label: label}
	}

	return Chart{Rows: rows, Series: series, Labels: labels}
}

func uniqueKeys(selectors []address.Selector) []string {
	seen := make(map[string]struct{}, len(selectors))
	keys := make([]string, 0, len(selectors))
	for _, s := range selectors {
		k := s.Key()
		if k == "" || k == TimeKey {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Labeler 用设备名和地址配置生成显示名称
type Labeler struct {
	DeviceName string
	Catalog    *address.Catalog
}

// Label 返回 "<设备> - <名称>"，站号大于1时追加 " (站<n>)"
func (l Labeler) Label(key string) string {
	name, station := key, 1
	if cfg, ok := l.Catalog.Lookup(key); ok {
		name, station = cfg.Name, cfg.StationID
		if name == "" {
			name = cfg.Address
		}
	} else if addr, n, ok := address.DecodeStationKey(key); ok {
		name, station = addr, n
	}

	label := name
	if l.DeviceName != "" {
		label = l.DeviceName + " - " + name
	}
	if station > 1 {
		label += " (站" + strconv.Itoa(station) + ")"
	}
	return label
}
