// Package ev 实现已平仓交易的期望值（EV）计算。
// EV = p × (R - f) + (1 - p) × (-L - f)
// p_required = (L + f) / (R + L)
package ev

import (
	"pair-trading-backtester/internal/core/model"
)

type tradeSample struct {
	win        bool
	grossPnL   float64
	costs      float64
	netPnL     float64
	exitReason model.ExitReason
}

// EVStats EV 统计信息（滚动窗口），金额单位与账户货币一致
type EVStats struct {
	// Count 样本数
	Count int64
	// WinCount 盈利样本数（净利>0）
	WinCount int64
	// LossCount 亏损样本数（净利<=0）
	LossCount int64
	// StopLossCount 止损平仓的样本数
	StopLossCount int64

	// WinRate 胜率 p
	WinRate float64
	// AvgProfit 平均盈利 R（盈利样本的毛利）
	AvgProfit float64
	// AvgLoss 平均亏损 L（亏损样本毛盈亏的绝对值）
	AvgLoss float64
	// AvgCost 平均交易成本 f（入场+出场）
	AvgCost float64
	// AvgNet 平均净盈亏
	AvgNet float64
	// GrossWin 盈利样本净利之和
	GrossWin float64
	// GrossLoss 亏损样本净亏之和（绝对值）
	GrossLoss float64

	// EV 期望值
	EV float64
	// PRequired 盈亏平衡胜率 p_required
	PRequired float64
}

// Calculator EV 计算器（滚动窗口）
type Calculator struct {
	// windowSize 滚动窗口大小
	windowSize int
	// buf 环形缓冲区
	buf []tradeSample
	// pos 写入位置
	pos int
	// full 是否已填满
	full bool

	// 维护滚动统计（O(1) 更新）
	count     int64
	winCount  int64
	lossCount int64
	stopCount int64
	sumWinR   float64
	sumLossL  float64
	sumCost   float64
	sumNet    float64
	sumNetWin float64
	sumNetLos float64
}

// NewCalculator 创建 EV 计算器
// 参数 windowSize: 滚动窗口大小，<=0 时取 1000
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Calculator{
		windowSize: windowSize,
		buf:        make([]tradeSample, windowSize),
	}
}

// Add 添加一笔已平仓交易到滚动统计
func (c *Calculator) Add(t *model.Trade) {
	if t == nil {
		return
	}

	s := tradeSample{
		win:        t.NetPnL > 0,
		grossPnL:   t.GrossPnL,
		costs:      t.Costs,
		netPnL:     t.NetPnL,
		exitReason: t.ExitReason,
	}

	// 若环已满，移除旧样本对统计的贡献
	if c.full {
		c.apply(c.buf[c.pos], -1)
	}

	c.buf[c.pos] = s
	c.pos++
	if c.pos >= c.windowSize {
		c.pos = 0
		c.full = true
	}

	c.apply(s, 1)
}

func (c *Calculator) apply(s tradeSample, sign int64) {
	f := float64(sign)
	c.count += sign
	if s.win {
		c.winCount += sign
		c.sumWinR += f * s.grossPnL
		c.sumNetWin += f * s.netPnL
	} else {
		c.lossCount += sign
		c.sumLossL += f * abs(s.grossPnL)
		c.sumNetLos += f * abs(s.netPnL)
	}
	if s.exitReason == model.ExitStopLoss {
		c.stopCount += sign
	}
	c.sumCost += f * s.costs
	c.sumNet += f * s.netPnL
}

// Stats 返回滚动窗口统计
func (c *Calculator) Stats() EVStats {
	out := EVStats{
		Count:         c.count,
		WinCount:      c.winCount,
		LossCount:     c.lossCount,
		StopLossCount: c.stopCount,
		GrossWin:      c.sumNetWin,
		GrossLoss:     c.sumNetLos,
	}
	if c.count <= 0 {
		return out
	}

	out.WinRate = float64(c.winCount) / float64(c.count)
	out.AvgCost = c.sumCost / float64(c.count)
	out.AvgNet = c.sumNet / float64(c.count)

	if c.winCount > 0 {
		out.AvgProfit = c.sumWinR / float64(c.winCount)
	}
	if c.lossCount > 0 {
		out.AvgLoss = c.sumLossL / float64(c.lossCount)
	}

	// EV = p × (R - f) + (1 - p) × (-L - f)
	p := out.WinRate
	R := out.AvgProfit
	L := out.AvgLoss
	f := out.AvgCost
	out.EV = p*(R-f) + (1-p)*(-L-f)

	// p_required = (L + f) / (R + L)
	den := R + L
	if den > 0 {
		out.PRequired = (L + f) / den
	} else {
		out.PRequired = 1
	}

	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
