package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/telemetry"
)

// MaxRange 后端允许的最大查询区间
const MaxRange = 30 * 24 * time.Hour

// ErrStale 查询开始后又发起了新的查询，本次结果被丢弃
var ErrStale = errors.New("history query superseded by a newer query")

// Fetcher 获取单个地址的历史数据
type Fetcher interface {
	History(ctx context.Context, q *model.HistoryQuery) (*model.HistoryResponse, error)
}

// Query 一次历史查询
type Query struct {
	DeviceID  int                `json:"device_id"`
	Selectors []address.Selector `json:"selectors"`
	StartTime *time.Time         `json:"start_time,omitempty"`
	EndTime   *time.Time         `json:"end_time,omitempty"`
}

// Validate 校验查询参数
func (q *Query) Validate() error {
	if q.DeviceID <= 0 {
		return model.ErrInvalidParameter("device_id is required")
	}
	if len(q.Selectors) == 0 {
		return model.ErrInvalidParameter("at least one address is required")
	}
	for _, s := range q.Selectors {
		if s.Address == "" {
			return model.ErrInvalidParameter("empty address selector")
		}
	}
	if q.StartTime != nil && q.EndTime != nil {
		if q.EndTime.Before(*q.StartTime) {
			return model.ErrInvalidParameter("end_time is before start_time")
		}
		if q.EndTime.Sub(*q.StartTime) > MaxRange {
			return model.ErrInvalidParameter("查询时间范围不能超过30天")
		}
	}
	return nil
}

// Result 查询结果
type Result struct {
	Key    string            `json:"key"`
	Total  int               `json:"total"`
	PerKey map[string]int    `json:"per_key"`
	Failed map[string]string `json:"failed,omitempty"` // 允许部分成功时失败的地址
}

// Options 引擎配置
type Options struct {
	Limit        int // 单个地址的最大条数
	Concurrency  int
	WindowSize   int
	AllowPartial bool
	Location     *time.Location
	Metrics      telemetry.Collector
}

// Engine 历史数据窗口引擎
// 查询并发拉取每个地址的数据，合并后按时间排序，窗口滑动不访问网络
type Engine struct {
	fetcher Fetcher
	opts    Options

	mu       sync.Mutex
	key      string
	cancel   context.CancelFunc
	query    Query
	series   []*model.Sample
	window   Window
	queried  time.Time
	inflight bool
}

// NewEngine 创建引擎
func NewEngine(fetcher Fetcher, opts Options) *Engine {
	if opts.Limit <= 0 {
		opts.Limit = 50000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 1000
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.Noop()
	}
	return &Engine{
		fetcher: fetcher,
		opts:    opts,
		window:  Window{Size: opts.WindowSize},
	}
}

// Query 执行查询并替换合并序列，窗口起点重置为0
// 默认任一地址失败则整个查询失败，序列清空
func (e *Engine) Query(ctx context.Context, q Query) (*Result, error) {
	return e.QueryWith(ctx, q, nil)
}

// QueryWith 同Query，commit 在本次查询生效时与序列在同一把锁内调用
// 查询失败时参数为nil，被更新的查询取代时不调用
func (e *Engine) QueryWith(ctx context.Context, q Query, commit func(*Result)) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.key = key
	e.cancel = cancel
	e.inflight = true
	e.mu.Unlock()

	perSelector, failed, err := e.fetchAll(ctx, q)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != key {
		e.opts.Metrics.IncStaleQuery()
		logrus.Debugf("[History] Discard stale query %s", key)
		return nil, ErrStale
	}
	e.cancel = nil
	e.inflight = false

	if err != nil {
		logrus.Errorf("[History] Query device %d failed: %v", q.DeviceID, err)
		e.series = nil
		e.window.Start = 0
		e.query = q
		if commit != nil {
			commit(nil)
		}
		return nil, err
	}

	merged := merge(perSelector)
	e.series = merged
	e.window.Start = 0
	e.query = q
	e.queried = time.Now()

	result := &Result{
		Key:    key,
		Total:  len(merged),
		PerKey: make(map[string]int, len(q.Selectors)),
	}
	for i, s := range q.Selectors {
		result.PerKey[s.Key()] += len(perSelector[i])
	}
	if len(failed) > 0 {
		result.Failed = failed
	}
	if commit != nil {
		commit(result)
	}
	logrus.Infof("[History] Device %d: %d samples from %d addresses", q.DeviceID, len(merged), len(q.Selectors))
	return result, nil
}

// Reset 取消进行中的查询，清空序列并恢复默认窗口
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.key = ""
	e.query = Query{}
	e.series = nil
	e.window = Window{Size: e.opts.WindowSize}
	e.queried = time.Time{}
	e.inflight = false
}

// fetchAll 并发拉取每个选择器的数据
func (e *Engine) fetchAll(ctx context.Context, q Query) ([][]*model.Sample, map[string]string, error) {
	perSelector := make([][]*model.Sample, len(q.Selectors))
	var failedMu sync.Mutex
	failed := map[string]string{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, sel := range q.Selectors {
		i, sel := i, sel
		g.Go(func() error {
			samples, err := e.fetchOne(gctx, q, sel)
			if err != nil {
				if e.opts.AllowPartial && ctx.Err() == nil {
					logrus.Warnf("[History] Address %s failed: %v", sel.Key(), err)
					failedMu.Lock()
					failed[sel.Key()] = err.Error()
					failedMu.Unlock()
					return nil
				}
				return fmt.Errorf("address %s: %w", sel.Key(), err)
			}
			perSelector[i] = samples
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if e.opts.AllowPartial && len(failed) == len(q.Selectors) {
		return nil, nil, fmt.Errorf("all %d addresses failed", len(failed))
	}
	return perSelector, failed, nil
}

func (e *Engine) fetchOne(ctx context.Context, q Query, sel address.Selector) ([]*model.Sample, error) {
	base, station := sel.Decompose()
	resp, err := e.fetcher.History(ctx, &model.HistoryQuery{
		DeviceID:  q.DeviceID,
		Address:   base,
		StationID: station,
		StartTime: q.StartTime,
		EndTime:   q.EndTime,
		Limit:     e.opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	samples := make([]*model.Sample, 0, len(resp.Data))
	skipped := 0
	for _, s := range resp.Data {
		if s == nil {
			continue
		}
		if err := s.ResolveTime(e.opts.Location); err != nil {
			skipped++
			continue
		}
		s.Selector = sel.Key()
		samples = append(samples, s)
	}
	if skipped > 0 {
		logrus.Warnf("[History] Address %s: skipped %d samples with invalid time", sel.Key(), skipped)
	}
	return samples, nil
}

// merge 拼接并按时间稳定排序
func merge(perSelector [][]*model.Sample) []*model.Sample {
	total := 0
	for _, s := range perSelector {
		total += len(s)
	}
	merged := make([]*model.Sample, 0, total)
	for _, s := range perSelector {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}

// SetStart 设置窗口起点
func (e *Engine) SetStart(start int) Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window.Start = start
	e.window = e.window.Clamp(len(e.series))
	return e.window
}

// SetSize 设置窗口大小
func (e *Engine) SetSize(size int) (Window, error) {
	if size <= 0 {
		return Window{}, model.ErrInvalidParameter("window size must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window.Size = size
	e.window = e.window.Clamp(len(e.series))
	return e.window, nil
}

// Forward 向后滑动半个窗口
func (e *Engine) Forward() Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = e.window.Forward(len(e.series))
	return e.window
}

// Backward 向前滑动半个窗口
func (e *Engine) Backward() Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = e.window.Backward(len(e.series))
	return e.window
}

// Window 当前窗口
func (e *Engine) Window() Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}

// Len 合并序列长度
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.series)
}

// Visible 返回当前窗口内的采样
func (e *Engine) Visible() []*model.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLocked()
}

func (e *Engine) visibleLocked() []*model.Sample {
	lo, hi := e.window.Bounds(len(e.series))
	out := make([]*model.Sample, hi-lo)
	copy(out, e.series[lo:hi])
	return out
}

// Snapshot 引擎状态快照
type Snapshot struct {
	Query     Query           `json:"query"`
	Window    Window          `json:"window"`
	Total     int             `json:"total"`
	MaxStart  int             `json:"max_start"`
	Visible   []*model.Sample `json:"-"`
	QueriedAt time.Time       `json:"queried_at"`
	Loading   bool            `json:"loading"`
}

// Snapshot 在同一把锁内读取查询、窗口与可见数据
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Query:     e.query,
		Window:    e.window,
		Total:     len(e.series),
		MaxStart:  MaxStart(len(e.series), e.window.Size),
		Visible:   e.visibleLocked(),
		QueriedAt: e.queried,
		Loading:   e.inflight,
	}
}
