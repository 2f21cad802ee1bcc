package address

import "sort"

// Catalog 设备地址配置的查找表
type Catalog struct {
	configs []Config
}

// NewCatalog 创建查找表
func NewCatalog(configs []Config) *Catalog {
	return &Catalog{configs: configs}
}

// Configs 返回全部配置
func (c *Catalog) Configs() []Config {
	if c == nil {
		return nil
	}
	return c.configs
}

// MultiStation 是否存在站号不为1的地址
func (c *Catalog) MultiStation() bool {
	if c == nil {
		return false
	}
	for _, cfg := range c.configs {
		if cfg.StationID != 1 {
			return true
		}
	}
	return false
}

// Lookup 按查询键查找配置
// 键可以是原始地址，也可以是 "<addr>_s<station>" 组合键
func (c *Catalog) Lookup(key string) (Config, bool) {
	if c == nil {
		return Config{}, false
	}
	if base, station, ok := DecodeStationKey(key); ok {
		for _, cfg := range c.configs {
			if cfg.Address == base && cfg.StationID == station {
				return cfg, true
			}
		}
	}
	for _, cfg := range c.configs {
		if cfg.Address == key {
			return cfg, true
		}
	}
	return Config{}, false
}

// Selectors 生成可供选择的地址列表
// 多站号设备使用组合键，以区分同一地址在不同站号上的数据
func (c *Catalog) Selectors() []Selector {
	if c == nil {
		return nil
	}
	multi := c.MultiStation()
	seen := make(map[string]struct{}, len(c.configs))
	out := make([]Selector, 0, len(c.configs))
	for _, cfg := range c.configs {
		var sel Selector
		if multi {
			sel = NewStationSelector(cfg.Address, cfg.StationID)
		} else {
			sel = NewSelector(cfg.Address)
		}
		if _, ok := seen[sel.Key()]; ok {
			continue
		}
		seen[sel.Key()] = struct{}{}
		out = append(out, sel)
	}
	return out
}

// Stations 返回配置中的全部站号
func (c *Catalog) Stations() []int {
	set := make(map[int]struct{})
	for _, cfg := range c.Configs() {
		set[cfg.StationID] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}
