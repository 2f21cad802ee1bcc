package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
)

func TestWindowStaysInBounds(t *testing.T) {
	for _, total := range []int{0, 1, 7, 500, 1001, 12345} {
		for _, size := range []int{1, 3, 500, 1000, 2000, 5000} {
			w := Window{Size: size}
			ops := []func(Window) Window{
				func(w Window) Window { return w.Forward(total) },
				func(w Window) Window { return w.Forward(total) },
				func(w Window) Window { return w.Backward(total) },
				func(w Window) Window { w.Start = total * 2; return w.Clamp(total) },
				func(w Window) Window { w.Start = -5; return w.Clamp(total) },
				func(w Window) Window { return w.Backward(total) },
			}
			for _, op := range ops {
				w = op(w)
				assert.GreaterOrEqual(t, w.Start, 0)
				assert.LessOrEqual(t, w.Start, MaxStart(total, size), "total=%d size=%d", total, size)
			}
		}
	}
}

func TestForwardAndBackwardMoveHalfWindow(t *testing.T) {
	w := Window{Size: 1000}
	w = w.Forward(5000)
	assert.Equal(t, 500, w.Start)
	w = w.Forward(5000)
	assert.Equal(t, 1000, w.Start)
	w = w.Backward(5000)
	assert.Equal(t, 500, w.Start)

	w = Window{Start: 3900, Size: 1000}.Forward(5000)
	assert.Equal(t, 4000, w.Start)
	w = Window{Start: 200, Size: 1000}.Backward(5000)
	assert.Equal(t, 0, w.Start)
}

func TestBounds(t *testing.T) {
	lo, hi := Window{Start: 0, Size: 10}.Bounds(6)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 6, hi)

	lo, hi = Window{Start: 4, Size: 3}.Bounds(10)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 7, hi)
}

func seeded(t *testing.T, n int) *Engine {
	t.Helper()
	f := &fakeFetcher{samples: func(q *model.HistoryQuery) ([]*model.Sample, error) {
		out := make([]*model.Sample, n)
		for i := range out {
			out[i] = sample(q.Address, t0.Add(time.Duration(i)*time.Second), float64(i))
		}
		return out, nil
	}}
	e := NewEngine(f, Options{WindowSize: 500, Location: time.UTC})
	_, err := e.Query(context.Background(), Query{DeviceID: 1, Selectors: []address.Selector{address.NewSelector("40001")}})
	require.NoError(t, err)
	return e
}

func TestEngineSlideWithoutRefetch(t *testing.T) {
	e := seeded(t, 1200)

	assert.Equal(t, Window{Start: 250, Size: 500}, e.Forward())
	assert.Equal(t, Window{Start: 500, Size: 500}, e.Forward())
	assert.Equal(t, Window{Start: 700, Size: 500}, e.Forward())
	assert.Equal(t, Window{Start: 700, Size: 500}, e.Forward())

	visible := e.Visible()
	require.Len(t, visible, 500)
	assert.Equal(t, 700.0, visible[0].Value.Number)
	assert.Equal(t, 1199.0, visible[499].Value.Number)

	w, err := e.SetSize(1000)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 200, Size: 1000}, w)

	assert.Equal(t, Window{Start: 0, Size: 1000}, e.SetStart(-3))
	assert.Equal(t, Window{Start: 200, Size: 1000}, e.SetStart(5000))

	_, err = e.SetSize(0)
	assert.Error(t, err)
}

func TestVisibleIsIdempotent(t *testing.T) {
	e := seeded(t, 900)
	e.SetStart(123)

	first := e.Visible()
	second := e.Visible()
	assert.Equal(t, first, second)

	e.SetStart(123)
	assert.Equal(t, first, e.Visible())
}

func TestShortSeriesShowsEverything(t *testing.T) {
	e := seeded(t, 6)
	assert.Equal(t, 0, e.Forward().Start)
	assert.Len(t, e.Visible(), 6)

	snap := e.Snapshot()
	assert.Equal(t, 6, snap.Total)
	assert.Equal(t, 0, snap.MaxStart)
	assert.False(t, snap.Loading)
}
