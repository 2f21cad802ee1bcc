package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/repository"
	"github.com/Smalllight01/plc-admin-sub001/internal/telemetry"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

// FetchFunc 拉取一次数据
type FetchFunc func(ctx context.Context) (interface{}, error)

// Task 定时刷新任务
type Task struct {
	Name     string
	Interval time.Duration
	Fetch    FetchFunc
}

// TaskStats 任务统计
type TaskStats struct {
	Name       string    `json:"name"`
	Interval   string    `json:"interval"`
	Issued     uint64    `json:"issued"`
	Stored     uint64    `json:"stored"`
	Superseded uint64    `json:"superseded"`
	Failed     uint64    `json:"failed"`
	LastError  string    `json:"last_error,omitempty"`
	LastStored time.Time `json:"last_stored,omitempty"`
}

type taskState struct {
	Task
	seq        atomic.Uint64
	stored     atomic.Uint64
	superseded atomic.Uint64
	failed     atomic.Uint64

	mu         sync.Mutex
	lastErr    string
	lastStored time.Time
}

// Poller 固定间隔刷新，每次tick都发起新请求，不等待上一次完成
// 只保留序号比已保存结果更新的响应
type Poller struct {
	repo    *repository.MemoryRepository
	metrics telemetry.Collector
	timeout time.Duration

	mu       sync.RWMutex
	tasks    map[string]*taskState
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// New 创建轮询器，timeout为单次拉取的超时
func New(repo *repository.MemoryRepository, metrics telemetry.Collector, timeout time.Duration) *Poller {
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Poller{
		repo:    repo,
		metrics: metrics,
		timeout: timeout,
		tasks:   make(map[string]*taskState),
	}
}

// Register 注册任务，间隔不大于0的任务不会自动运行
func (p *Poller) Register(task Task) error {
	if task.Name == "" || task.Fetch == nil {
		return fmt.Errorf("poll task requires a name and a fetch function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tasks[task.Name]; ok {
		return fmt.Errorf("poll task %s already registered", task.Name)
	}
	p.tasks[task.Name] = &taskState{Task: task}
	return nil
}

// Start 启动所有任务，启动时立即拉取一次
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	tasks := make([]*taskState, 0, len(p.tasks))
	for _, t := range p.tasks {
		tasks = append(tasks, t)
	}
	p.mu.Unlock()

	for _, t := range tasks {
		if t.Interval <= 0 {
			continue
		}
		p.wg.Add(1)
		go p.loop(ctx, t, stop)
	}
	logrus.Infof("[Poller] Started %d tasks", len(tasks))
}

func (p *Poller) loop(ctx context.Context, t *taskState, stop chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	go p.run(ctx, t)
	for {
		select {
		case <-ticker.C:
			go p.run(ctx, t)
		case <-stop:
			logrus.Infof("[Poller] Task %s stopped", t.Name)
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop 停止所有任务
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()
	p.wg.Wait()
}

// Refresh 立即拉取一次，返回本次结果是否被保存
func (p *Poller) Refresh(ctx context.Context, name string) (bool, error) {
	p.mu.RLock()
	t, ok := p.tasks[name]
	p.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("poll task %s not registered", name)
	}
	return p.run(ctx, t)
}

func (p *Poller) run(ctx context.Context, t *taskState) (bool, error) {
	seq := t.seq.Add(1)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	value, err := t.Fetch(ctx)
	if err != nil {
		t.failed.Add(1)
		t.mu.Lock()
		t.lastErr = err.Error()
		t.mu.Unlock()
		logrus.Warnf("[Poller] Task %s #%d failed: %v", t.Name, seq, err)
		return false, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		t.failed.Add(1)
		return false, fmt.Errorf("marshal %s result: %w", t.Name, err)
	}

	now := time.Now()
	if !p.repo.Save(t.Name, common.NewPayload(data, seq, now)) {
		t.superseded.Add(1)
		p.metrics.IncPollSuperseded(t.Name)
		logrus.Debugf("[Poller] Task %s #%d superseded", t.Name, seq)
		return false, nil
	}

	t.stored.Add(1)
	t.mu.Lock()
	t.lastErr = ""
	t.lastStored = now
	t.mu.Unlock()
	return true, nil
}

// Reset 清空已保存的结果，之前发出的请求返回后也不再保存
func (p *Poller) Reset() {
	p.mu.RLock()
	floors := make(map[string]uint64, len(p.tasks))
	for name, t := range p.tasks {
		floors[name] = t.seq.Load()
	}
	p.mu.RUnlock()

	p.repo.Reset(floors)
	logrus.Info("[Poller] Polled results cleared")
}

// Latest 返回任务最近保存的结果
func (p *Poller) Latest(name string) (common.Payload, error) {
	return p.repo.Get(name)
}

// Stats 返回所有任务的统计，按名称排序
func (p *Poller) Stats() []TaskStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]TaskStats, 0, len(p.tasks))
	for _, t := range p.tasks {
		t.mu.Lock()
		out = append(out, TaskStats{
			Name:       t.Name,
			Interval:   t.Interval.String(),
			Issued:     t.seq.Load(),
			Stored:     t.stored.Load(),
			Superseded: t.superseded.Load(),
			Failed:     t.failed.Load(),
			LastError:  t.lastErr,
			LastStored: t.lastStored,
		})
		t.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
