package repository

import (
	"sort"
	"strings"
	"sync"

	"github.com/Smalllight01/plc-admin-sub001/internal/cache/lru"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

// MemoryRepository 内存存储仓库，保存每个轮询任务最近一次的结果
type MemoryRepository struct {
	cache  *lru.Cache
	floors map[string]uint64 // 不大于该序号的结果不再写入
	mu     sync.RWMutex
}

// NewMemoryRepository 创建内存仓库
func NewMemoryRepository(cache *lru.Cache) *MemoryRepository {
	return &MemoryRepository{
		cache: cache,
	}
}

func payloadKey(topic string) string {
	return "poll:" + topic
}

// Save 保存结果，仅当序号比已保存的更新时才写入
func (r *MemoryRepository) Save(topic string, p common.Payload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Seq <= r.floors[topic] {
		return false
	}
	key := payloadKey(topic)
	if old, ok := r.cache.Get(key); ok {
		if prev, ok := old.(common.Payload); ok && prev.Seq >= p.Seq {
			return false
		}
	}
	r.cache.Add(key, p)
	return true
}

// Get 获取结果
func (r *MemoryRepository) Get(topic string) (common.Payload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.cache.Get(payloadKey(topic))
	if !ok {
		return common.Payload{}, model.ErrNotFound("no data for " + topic)
	}
	p, ok := value.(common.Payload)
	if !ok {
		return common.Payload{}, model.ErrInternalError("unexpected cache value for " + topic)
	}
	return p, nil
}

// Topics 返回已保存的任务名
func (r *MemoryRepository) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.cache.Keys()
	topics := make([]string, 0, len(keys))
	for _, k := range keys {
		if topic, ok := strings.CutPrefix(k, "poll:"); ok && topic != "" {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// Delete 删除结果
func (r *MemoryRepository) Delete(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(payloadKey(topic))
}

// Reset 删除所有结果，序号不大于floors的结果之后也不再写入
func (r *MemoryRepository) Reset(floors map[string]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.cache.Keys() {
		if strings.HasPrefix(k, "poll:") {
			r.cache.Remove(k)
		}
	}
	r.floors = make(map[string]uint64, len(floors))
	for topic, seq := range floors {
		r.floors[topic] = seq
	}
}

// Stats 返回缓存统计
func (r *MemoryRepository) Stats() lru.Stats {
	return r.cache.Stats()
}
