// Package holding 统计已平仓交易的持仓周期分布。
// 按多价差、空价差和全部交易分别维护滚动窗口。
package holding

import (
	"sort"

	"pair-trading-backtester/internal/core/model"
)

// HoldingStats 持仓周期统计快照（滚动窗口）
// 单位：K 线数。
type HoldingStats struct {
	// Side 统计口径: LONG_SPREAD、SHORT_SPREAD，空字符串表示全部
	Side model.PositionState
	// Count 样本总数（累计）
	Count int64

	// P50 持仓周期中位数
	P50 float64
	// P90 持仓周期 P90
	P90 float64
	// Max 窗口内最长持仓
	Max float64
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// snapshotQuantiles 最近邻下标 floor((n-1)*q) 的分位数
func (w *rollingWindow) snapshotQuantiles(qs ...float64) (count int64, values []int64) {
	count = w.count
	if len(w.buf) == 0 {
		return count, make([]int64, len(qs))
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	values = make([]int64, len(qs))
	n := len(tmp)
	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return count, values
}

// Tracker 持仓周期追踪器
// 非并发安全，由单个分析过程独占使用。
type Tracker struct {
	// all 全部交易
	all *rollingWindow
	// long 多价差交易
	long *rollingWindow
	// short 空价差交易
	short *rollingWindow
}

// NewTracker 创建持仓周期追踪器
// 参数 windowSize: 滚动窗口大小，<=0 时取 10000
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 10000
	}
	return &Tracker{
		all:   newRollingWindow(windowSize),
		long:  newRollingWindow(windowSize),
		short: newRollingWindow(windowSize),
	}
}

// Add 记录一笔已平仓交易的持仓 K 线数
func (t *Tracker) Add(tr *model.Trade) {
	if tr == nil {
		return
	}
	bars := int64(tr.HoldingBars())
	if bars < 0 {
		return
	}
	t.all.add(bars)
	switch tr.Side {
	case model.StateLongSpread:
		t.long.add(bars)
	case model.StateShortSpread:
		t.short.add(bars)
	}
}

// Stats 获取指定方向的统计快照
// 参数 side: LONG_SPREAD、SHORT_SPREAD，其他值返回全部交易的统计
func (t *Tracker) Stats(side model.PositionState) HoldingStats {
	w := t.all
	switch side {
	case model.StateLongSpread:
		w = t.long
	case model.StateShortSpread:
		w = t.short
	default:
		side = ""
	}

	count, qs := w.snapshotQuantiles(0.50, 0.90, 1)
	return HoldingStats{
		Side:  side,
		Count: count,
		P50:   float64(qs[0]),
		P90:   float64(qs[1]),
		Max:   float64(qs[2]),
	}
}
