package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []model.HistoryQuery
	samples func(q *model.HistoryQuery) ([]*model.Sample, error)
	block   chan struct{}
}

func (f *fakeFetcher) History(ctx context.Context, q *model.HistoryQuery) (*model.HistoryResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *q)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	samples, err := f.samples(q)
	if err != nil {
		return nil, err
	}
	return &model.HistoryResponse{DeviceID: model.FlexInt(q.DeviceID), Data: samples}, nil
}

func sample(addr string, at time.Time, v float64) *model.Sample {
	return &model.Sample{
		RawTime: at.Format("2006-01-02T15:04:05.000000Z07:00"),
		Address: addr,
		Value:   model.NumberValue(v),
	}
}

// threeSamples 每个地址在 T0/T1/T2 各一条
func threeSamples(q *model.HistoryQuery) ([]*model.Sample, error) {
	addr := q.Address
	if q.StationID != nil {
		addr = address.EncodeStationKey(q.Address, *q.StationID)
	}
	out := make([]*model.Sample, 0, 3)
	for i := 2; i >= 0; i-- {
		out = append(out, sample(addr, t0.Add(time.Duration(i)*time.Second), float64(i)))
	}
	return out, nil
}

func stationSelectors() []address.Selector {
	return []address.Selector{address.NewSelector("40001_s1"), address.NewSelector("40001_s2")}
}

func newEngine(f Fetcher, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return NewEngine(f, opts)
}

func TestQueryMergesAndSortsStationSeries(t *testing.T) {
	f := &fakeFetcher{samples: threeSamples}
	e := newEngine(f, Options{Concurrency: 2, WindowSize: 10, Limit: 50000})

	res, err := e.Query(context.Background(), Query{DeviceID: 5, Selectors: stationSelectors()})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, map[string]int{"40001_s1": 3, "40001_s2": 3}, res.PerKey)
	assert.NotEmpty(t, res.Key)

	require.Len(t, f.calls, 2)
	for _, call := range f.calls {
		assert.Equal(t, "40001", call.Address)
		require.NotNil(t, call.StationID)
		assert.Equal(t, 50000, call.Limit)
	}

	visible := e.Visible()
	require.Len(t, visible, 6)
	for i := 1; i < len(visible); i++ {
		assert.False(t, visible[i].Time.Before(visible[i-1].Time))
	}
	keys := map[string]int{}
	for _, s := range visible {
		keys[s.Selector]++
	}
	assert.Equal(t, map[string]int{"40001_s1": 3, "40001_s2": 3}, keys)
	assert.Equal(t, Window{Start: 0, Size: 10}, e.Window())
}

func TestQueryFailureEmptiesSeries(t *testing.T) {
	fail := false
	f := &fakeFetcher{samples: func(q *model.HistoryQuery) ([]*model.Sample, error) {
		if fail && q.StationID != nil && *q.StationID == 2 {
			return nil, errors.New("backend down")
		}
		return threeSamples(q)
	}}
	e := newEngine(f, Options{Concurrency: 1, WindowSize: 4})

	_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
	require.NoError(t, err)
	e.Forward()
	require.Equal(t, 6, e.Len())

	fail = true
	_, err = e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "40001_s2")
	assert.Equal(t, 0, e.Len())
	assert.Empty(t, e.Visible())
	assert.Equal(t, 0, e.Window().Start)
}

func TestQueryAllowPartialKeepsSuccessfulAddresses(t *testing.T) {
	f := &fakeFetcher{samples: func(q *model.HistoryQuery) ([]*model.Sample, error) {
		if *q.StationID == 2 {
			return nil, errors.New("timeout")
		}
		return threeSamples(q)
	}}
	e := newEngine(f, Options{Concurrency: 2, AllowPartial: true})

	res, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, map[string]string{"40001_s2": "timeout"}, res.Failed)
}

func TestQueryAllowPartialFailsWhenEverythingFails(t *testing.T) {
	f := &fakeFetcher{samples: func(*model.HistoryQuery) ([]*model.Sample, error) {
		return nil, errors.New("down")
	}}
	e := newEngine(f, Options{AllowPartial: true})
	_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
	assert.Error(t, err)
}

func TestNewerQueryWinsOverStaleResponse(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{samples: threeSamples, block: block}
	e := newEngine(f, Options{Concurrency: 2})

	staleErr := make(chan error, 1)
	go func() {
		_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
		staleErr <- err
	}()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.calls) == 2
	}, time.Second, time.Millisecond)

	f.mu.Lock()
	f.block = nil
	f.mu.Unlock()

	res, err := e.Query(context.Background(), Query{DeviceID: 2, Selectors: []address.Selector{address.NewSelector("40010")}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	assert.ErrorIs(t, <-staleErr, ErrStale)
	assert.Equal(t, 2, e.Snapshot().Query.DeviceID)
	assert.Equal(t, 3, e.Len())
	close(block)
}

func TestQueryWithCommitsOnlyCurrentQuery(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{samples: threeSamples, block: block}
	e := newEngine(f, Options{Concurrency: 2})

	var staleCommits int
	staleErr := make(chan error, 1)
	go func() {
		_, err := e.QueryWith(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()}, func(*Result) {
			staleCommits++
		})
		staleErr <- err
	}()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.calls) == 2
	}, time.Second, time.Millisecond)

	f.mu.Lock()
	f.block = nil
	f.mu.Unlock()

	var committed *Result
	res, err := e.QueryWith(context.Background(), Query{DeviceID: 2, Selectors: []address.Selector{address.NewSelector("40010")}}, func(r *Result) {
		committed = r
	})
	require.NoError(t, err)
	assert.Same(t, res, committed)

	assert.ErrorIs(t, <-staleErr, ErrStale)
	assert.Equal(t, 0, staleCommits)
	close(block)
}

func TestResetDropsSeriesAndInflightQuery(t *testing.T) {
	f := &fakeFetcher{samples: threeSamples}
	e := newEngine(f, Options{Concurrency: 2, WindowSize: 4})

	_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()})
	require.NoError(t, err)
	e.Forward()
	require.Equal(t, 6, e.Len())

	e.Reset()
	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Total)
	assert.Empty(t, snap.Visible)
	assert.Equal(t, Window{Start: 0, Size: 4}, snap.Window)
	assert.Equal(t, 0, snap.Query.DeviceID)
	assert.True(t, snap.QueriedAt.IsZero())

	block := make(chan struct{})
	defer close(block)
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	commits := 0
	errc := make(chan error, 1)
	go func() {
		_, err := e.QueryWith(context.Background(), Query{DeviceID: 1, Selectors: stationSelectors()}, func(*Result) {
			commits++
		})
		errc <- err
	}()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.calls) == 4
	}, time.Second, time.Millisecond)
	assert.True(t, e.Snapshot().Loading)

	e.Reset()
	assert.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, 0, commits)
	assert.Equal(t, 0, e.Len())
	assert.False(t, e.Snapshot().Loading)
}

func TestQueryValidation(t *testing.T) {
	e := newEngine(&fakeFetcher{samples: threeSamples}, Options{})
	start := t0
	tooLate := t0.Add(31 * 24 * time.Hour)
	before := t0.Add(-time.Hour)

	cases := []Query{
		{DeviceID: 0, Selectors: stationSelectors()},
		{DeviceID: 1},
		{DeviceID: 1, Selectors: []address.Selector{{}}},
		{DeviceID: 1, Selectors: stationSelectors(), StartTime: &start, EndTime: &tooLate},
		{DeviceID: 1, Selectors: stationSelectors(), StartTime: &start, EndTime: &before},
	}
	for i, q := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := e.Query(context.Background(), q)
			var de *model.DashboardError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 400, de.Code)
		})
	}
}

func TestSkipsSamplesWithInvalidTime(t *testing.T) {
	f := &fakeFetcher{samples: func(q *model.HistoryQuery) ([]*model.Sample, error) {
		return []*model.Sample{
			{RawTime: "not a time", Value: model.NumberValue(1)},
			sample(q.Address, t0, 2),
			nil,
		}, nil
	}}
	e := newEngine(f, Options{})
	res, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: []address.Selector{address.NewSelector("1")}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestZoneLessTimesUseDisplayLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	f := &fakeFetcher{samples: func(q *model.HistoryQuery) ([]*model.Sample, error) {
		return []*model.Sample{{RawTime: "2024-03-01 08:00:00.123456", Value: model.NumberValue(1)}}, nil
	}}
	e := NewEngine(f, Options{Location: shanghai})
	_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: []address.Selector{address.NewSelector("1")}})
	require.NoError(t, err)

	got := e.Visible()[0].Time
	assert.True(t, got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 123456000, time.UTC)))
}
