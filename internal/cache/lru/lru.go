package lru

import (
	"container/list"
	"sync"
	"time"
)

// Cache 按字节数限制容量的LRU缓存，条目可设置过期时间
type Cache struct {
	mu        sync.Mutex
	maxBytes  int64
	usedBytes int64
	ttl       time.Duration
	ll        *list.List
	cache     map[string]*list.Element
	now       func() time.Time
	hits      int64
	misses    int64
	OnEvicted func(key string, value Value)
}

// Entry 缓存条目
type Entry struct {
	Key      string
	Value    Value
	CreateAt time.Time
	ExpireAt time.Time // 零值表示不过期
}

// Value 缓存值接口
type Value interface {
	Len() int
}

// Stats 缓存统计
type Stats struct {
	Entries   int   `json:"entries"`
	UsedBytes int64 `json:"used_bytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// NewCache 创建LRU缓存，ttl<=0 表示条目不过期
func NewCache(maxBytes int64, ttl time.Duration, onEvicted func(string, Value)) *Cache {
	return &Cache{
		maxBytes:  maxBytes,
		ttl:       ttl,
		ll:        list.New(),
		cache:     make(map[string]*list.Element),
		now:       time.Now,
		OnEvicted: onEvicted,
	}
}

// SetClock 替换时间函数，测试使用
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get 获取缓存值，过期的条目会被移除
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.cache[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := ele.Value.(*Entry)
	if c.expired(entry) {
		c.removeElement(ele)
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(ele)
	c.hits++
	return entry.Value, true
}

// Add 添加或更新缓存值
func (c *Cache) Add(key string, value Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expireAt time.Time
	if c.ttl > 0 {
		expireAt = now.Add(c.ttl)
	}

	if ele, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ele)
		entry := ele.Value.(*Entry)
		c.usedBytes += int64(value.Len()) - int64(entry.Value.Len())
		entry.Value = value
		entry.CreateAt = now
		entry.ExpireAt = expireAt
	} else {
		entry := &Entry{Key: key, Value: value, CreateAt: now, ExpireAt: expireAt}
		c.cache[key] = c.ll.PushFront(entry)
		c.usedBytes += int64(len(key)) + int64(value.Len())
	}

	c.removeExpired()

	// 超过容量时淘汰最久未使用的条目，但保留刚写入的条目
	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.ll.Len() > 1 {
		c.removeOldest()
	}
}

// Remove 移除指定缓存
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, ok := c.cache[key]; ok {
		c.removeElement(ele)
	}
}

func (c *Cache) expired(entry *Entry) bool {
	return !entry.ExpireAt.IsZero() && c.now().After(entry.ExpireAt)
}

func (c *Cache) removeOldest() {
	if ele := c.ll.Back(); ele != nil {
		c.removeElement(ele)
	}
}

func (c *Cache) removeElement(ele *list.Element) {
	c.ll.Remove(ele)
	entry := ele.Value.(*Entry)
	delete(c.cache, entry.Key)
	c.usedBytes -= int64(len(entry.Key)) + int64(entry.Value.Len())

	if c.OnEvicted != nil {
		c.OnEvicted(entry.Key, entry.Value)
	}
}

// removeExpired 从队尾开始移除过期条目，遇到未过期的即停止
func (c *Cache) removeExpired() {
	for ele := c.ll.Back(); ele != nil; {
		entry := ele.Value.(*Entry)
		if !c.expired(entry) {
			break
		}
		prev := ele.Prev()
		c.removeElement(ele)
		ele = prev
	}
}

// Len 返回缓存条目数量
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.cache = make(map[string]*list.Element)
	c.usedBytes = 0
}

// Keys 返回未过期的键，按最近使用排序
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.ll.Len())
	for ele := c.ll.Front(); ele != nil; ele = ele.Next() {
		entry := ele.Value.(*Entry)
		if !c.expired(entry) {
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

// Stats 返回统计信息
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.ll.Len(),
		UsedBytes: c.usedBytes,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}
