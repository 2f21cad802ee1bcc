package hash

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

// Hash 哈希函数类型
type Hash func(data []byte) uint32

// Ring 后端节点的一致性哈希环
// 同一个key（如设备ID）总是落到同一个后端节点，节点变化时只迁移少量key
type Ring struct {
	hash     Hash
	replicas int            // 虚拟节点倍数
	keys     []int          // 哈希环
	hashMap  map[int]string // 虚拟节点到真实节点的映射
	nodes    map[string]struct{}
	mu       sync.RWMutex
}

// NewRing 创建一致性哈希环
func NewRing(replicas int, fn Hash) *Ring {
	if replicas <= 0 {
		replicas = 1
	}
	r := &Ring{
		replicas: replicas,
		hash:     fn,
		hashMap:  make(map[int]string),
		nodes:    make(map[string]struct{}),
	}
	if r.hash == nil {
		r.hash = crc32.ChecksumIEEE
	}
	return r
}

// Add 添加节点，已存在的节点忽略
func (r *Ring) Add(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, node := range nodes {
		if node == "" {
			continue
		}
		if _, ok := r.nodes[node]; ok {
			continue
		}
		r.nodes[node] = struct{}{}
		for i := 0; i < r.replicas; i++ {
			h := int(r.hash([]byte(strconv.Itoa(i) + node)))
			r.keys = append(r.keys, h)
			r.hashMap[h] = node
		}
	}
	sort.Ints(r.keys)
}

// Remove 移除节点
func (r *Ring) Remove(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; !ok {
		return
	}
	delete(r.nodes, node)
	for i := 0; i < r.replicas; i++ {
		h := int(r.hash([]byte(strconv.Itoa(i) + node)))
		idx := sort.SearchInts(r.keys, h)
		if idx < len(r.keys) && r.keys[idx] == h {
			r.keys = append(r.keys[:idx], r.keys[idx+1:]...)
		}
		delete(r.hashMap, h)
	}
}

// Set 用给定节点集合替换整个环
func (r *Ring) Set(nodes ...string) {
	r.mu.Lock()
	r.keys = nil
	r.hashMap = make(map[int]string)
	r.nodes = make(map[string]struct{})
	r.mu.Unlock()
	r.Add(nodes...)
}

// Get 获取key对应的节点，环为空时返回空字符串
func (r *Ring) Get(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.keys) == 0 {
		return ""
	}

	h := int(r.hash([]byte(key)))
	idx := sort.Search(len(r.keys), func(i int) bool {
		return r.keys[i] >= h
	})

	// 超出范围时回到第一个节点
	return r.hashMap[r.keys[idx%len(r.keys)]]
}

// Nodes 返回排序后的节点列表
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.nodes))
	for node := range r.nodes {
		result = append(result, node)
	}
	sort.Strings(result)
	return result
}

// Len 返回真实节点数量
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
