package history

// WindowSizes 界面提供的窗口大小
var WindowSizes = []int{500, 1000, 2000, 5000}

// Window 合并序列上的可见窗口
type Window struct {
	Start int `json:"start"`
	Size  int `json:"size"`
}

// MaxStart 返回窗口起点的最大值
func MaxStart(total, size int) int {
	return max(0, total-size)
}

// Clamp 把起点限制在 [0, MaxStart]
func (w Window) Clamp(total int) Window {
	w.Start = min(max(0, w.Start), MaxStart(total, w.Size))
	return w
}

// step 每次滑动半个窗口
func (w Window) step() int {
	return max(1, w.Size/2)
}

// Forward 向后滑动半个窗口
func (w Window) Forward(total int) Window {
	w.Start += w.step()
	return w.Clamp(total)
}

// Backward 向前滑动半个窗口
func (w Window) Backward(total int) Window {
	w.Start -= w.step()
	return w.Clamp(total)
}

// Bounds 返回可见区间 [lo, hi)
func (w Window) Bounds(total int) (lo, hi int) {
	w = w.Clamp(total)
	lo = min(w.Start, total)
	hi = min(w.Start+w.Size, total)
	return lo, hi
}
