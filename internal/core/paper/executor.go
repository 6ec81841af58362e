// Package paper 实现配对交易的逐 K 线模拟成交。
// 重要：仅用于历史回测，不连接任何真实交易通道。
package paper

import (
	"fmt"
	"math"

	"pair-trading-backtester/internal/core/model"
)

// Sizing 仓位计算方式
type Sizing string

const (
	// SizingDollarNeutral 两腿名义价值相等，各占分配资金的一半
	SizingDollarNeutral Sizing = "dollar_neutral"
	// SizingEqualShare A 腿 1 份对应 B 腿 hedge_ratio 份，总名义价值等于分配资金
	SizingEqualShare Sizing = "equal_share"
)

// Costs 成本与资金参数，构造后不可变
type Costs struct {
	// InitialCapital 初始资金
	InitialCapital float64
	// TransactionCostRate 交易成本费率，按每条腿的成交名义价值收取
	TransactionCostRate float64
	// SlippageRate 滑点比例：买入按 p*(1+s)，卖出按 p*(1-s)
	SlippageRate float64
	// AllocationFraction 每笔交易使用的初始资金比例
	AllocationFraction float64
	// Sizing 仓位计算方式
	Sizing Sizing
	// MarginCheck 权益非正时返回 ErrEquityExhausted；关闭时仅标记 EquityWentNegative
	MarginCheck bool
}

// DefaultCosts 默认参数：10 万初始资金，成本 0.1%，滑点 0.05%，全额分配，美元中性，不限杠杆
func DefaultCosts() Costs {
	return Costs{
		InitialCapital:      100000,
		TransactionCostRate: 0.001,
		SlippageRate:        0.0005,
		AllocationFraction:  1.0,
		Sizing:              SizingDollarNeutral,
	}
}

// Validate 检查参数范围
func (c Costs) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("初始资金必须为正数: %v", c.InitialCapital)
	}
	if !(c.TransactionCostRate >= 0 && c.TransactionCostRate < 1) {
		return fmt.Errorf("交易成本费率必须在 [0, 1) 之间: %v", c.TransactionCostRate)
	}
	if !(c.SlippageRate >= 0 && c.SlippageRate < 1) {
		return fmt.Errorf("滑点比例必须在 [0, 1) 之间: %v", c.SlippageRate)
	}
	if !(c.AllocationFraction > 0 && c.AllocationFraction <= 1) {
		return fmt.Errorf("资金占比必须在 (0, 1] 之间: %v", c.AllocationFraction)
	}
	switch c.Sizing {
	case SizingDollarNeutral, SizingEqualShare:
	default:
		return fmt.Errorf("未知仓位方式: %s", c.Sizing)
	}
	return nil
}

// Executor 模拟成交执行器
// 无共享可变状态，每次 Run 独立维护现金与唯一持仓，可并发调用。
type Executor struct {
	costs Costs
}

// NewExecutor 创建模拟成交执行器
// 参数 costs: 成本与资金参数
func NewExecutor(costs Costs) (*Executor, error) {
	if costs.Sizing == "" {
		costs.Sizing = SizingDollarNeutral
	}
	if err := costs.Validate(); err != nil {
		return nil, err
	}
	return &Executor{costs: costs}, nil
}

// Costs 返回构造时的参数
func (e *Executor) Costs() Costs {
	return e.costs
}

// run 单次回测的可变状态
type run struct {
	costs Costs
	c     model.PairCandidate
	beta  float64

	cash float64
	pos  model.Position
	res  *model.BacktestResult
}

// Run 按时间顺序逐根回放信号
//
// 每根 K 线先处理信号成交，再按收盘价盯市生成 EquityPoint。
// 回测结束时仍持仓则只盯市，不强制平仓，持仓记录在 OpenPosition。
func (e *Executor) Run(c model.PairCandidate, hedgeRatio float64, signals []model.Signal) (*model.BacktestResult, error) {
	if c.A.Len() != c.B.Len() {
		return nil, fmt.Errorf("%w: %s 两腿长度 %d 与 %d", model.ErrMisalignedSeries, c.Name(), c.A.Len(), c.B.Len())
	}
	if len(signals) != c.Len() {
		return nil, fmt.Errorf("%w: 信号 %d 个，%s 有 %d 根 K 线",
			model.ErrSeriesLengthMismatch, len(signals), c.Name(), c.Len())
	}
	if hedgeRatio == 0 || math.IsNaN(hedgeRatio) || math.IsInf(hedgeRatio, 0) {
		return nil, fmt.Errorf("对冲比必须为非零有限数: %v", hedgeRatio)
	}

	r := &run{
		costs: e.costs,
		c:     c,
		beta:  hedgeRatio,
		cash:  e.costs.InitialCapital,
		pos:   model.Position{State: model.StateFlat},
		res: &model.BacktestResult{
			Pair:           c.Name(),
			HedgeRatio:     hedgeRatio,
			InitialCapital: e.costs.InitialCapital,
			EquityCurve:    make([]model.EquityPoint, 0, len(signals)),
			MarginCheck:    e.costs.MarginCheck,
		},
	}

	prevEquity := e.costs.InitialCapital
	for i, sig := range signals {
		barTime := c.A.Points[i].Time
		if !sig.Time.IsZero() && !sig.Time.Equal(barTime) {
			return nil, fmt.Errorf("%w: 第 %d 根信号时间 %s 与价格时间 %s 不一致",
				model.ErrMisalignedSeries, i, sig.Time, barTime)
		}
		pxA := c.A.Points[i].Price
		pxB := c.B.Points[i].Price

		switch {
		case sig.Type == model.SignalHold:
		case sig.Type.IsEntry():
			if !r.pos.IsFlat() {
				return nil, fmt.Errorf("%w: 第 %d 根在 %s 状态下收到 %s", model.ErrInvalidSignalSequence, i, r.pos.State, sig.Type)
			}
			r.open(i, sig, pxA, pxB)
		case sig.Type.IsExit():
			if r.pos.IsFlat() {
				return nil, fmt.Errorf("%w: 第 %d 根在 FLAT 状态下收到 %s", model.ErrInvalidSignalSequence, i, sig.Type)
			}
			r.close(i, sig, pxA, pxB)
		default:
			return nil, fmt.Errorf("%w: 第 %d 根未知信号 %q", model.ErrInvalidSignalSequence, i, sig.Type)
		}

		posValue := r.pos.MarketValue(pxA, pxB)
		equity := r.cash + posValue
		pt := model.EquityPoint{
			Index:         i,
			Time:          barTime,
			Cash:          r.cash,
			PositionValue: posValue,
			Equity:        equity,
			State:         r.pos.State,
		}
		// 第 0 根相对初始资金；上一根权益非正时收益率无意义，记为 0
		if prevEquity > 0 {
			pt.Return = equity/prevEquity - 1
		}
		r.res.EquityCurve = append(r.res.EquityCurve, pt)
		prevEquity = equity

		if equity <= 0 {
			r.res.EquityWentNegative = true
			if e.costs.MarginCheck {
				return nil, fmt.Errorf("%w: 第 %d 根（%s）权益 %.2f", model.ErrEquityExhausted, i, barTime.Format("2006-01-02"), equity)
			}
		}
	}

	if !r.pos.IsFlat() {
		open := r.pos
		r.res.OpenPosition = &open
		r.res.TotalCosts += open.EntryCost
		r.res.TotalSlippage += open.EntrySlippage
	}
	return r.res, nil
}

// shares 按信号方向计算两腿带符号数量（基于未含滑点的收盘价）
func (r *run) shares(dir, pxA, pxB float64) (qA, qB float64) {
	budget := r.costs.AllocationFraction * r.costs.InitialCapital
	switch r.costs.Sizing {
	case SizingEqualShare:
		units := budget / (pxA + math.Abs(r.beta)*pxB)
		return dir * units, -dir * r.beta * units
	default:
		half := budget / 2
		sign := 1.0
		if r.beta < 0 {
			sign = -1
		}
		return dir * half / pxA, -dir * sign * half / pxB
	}
}

// fillPx 含滑点的成交价：买入上浮，卖出下浮
func fillPx(px, qty, slip float64) float64 {
	if qty > 0 {
		return px * (1 + slip)
	}
	return px * (1 - slip)
}

func (r *run) open(i int, sig model.Signal, pxA, pxB float64) {
	state := model.StateLongSpread
	if sig.Type == model.SignalEnterShort {
		state = model.StateShortSpread
	}
	qA, qB := r.shares(state.Direction(), pxA, pxB)

	s := r.costs.SlippageRate
	fA := fillPx(pxA, qA, s)
	fB := fillPx(pxB, qB, s)
	notional := math.Abs(qA*fA) + math.Abs(qB*fB)
	cost := r.costs.TransactionCostRate * notional
	slip := (math.Abs(qA)*pxA + math.Abs(qB)*pxB) * s

	r.pos = model.Position{
		State:         state,
		EntryIndex:    i,
		EntryTime:     r.c.A.Points[i].Time,
		EntryZ:        sig.Z,
		EntrySpread:   sig.Spread,
		A:             model.Leg{Symbol: r.c.A.Symbol, Shares: qA, EntryPx: fA},
		B:             model.Leg{Symbol: r.c.B.Symbol, Shares: qB, EntryPx: fB},
		EntryCost:     cost,
		EntrySlippage: slip,
		CashBefore:    r.cash,
	}
	r.cash -= qA*fA + qB*fB
	r.cash -= cost
}

func (r *run) close(i int, sig model.Signal, pxA, pxB float64) {
	p := r.pos
	qA, qB := p.A.Shares, p.B.Shares

	s := r.costs.SlippageRate
	xA := fillPx(pxA, -qA, s)
	xB := fillPx(pxB, -qB, s)
	exitCost := r.costs.TransactionCostRate * (math.Abs(qA*xA) + math.Abs(qB*xB))
	exitSlip := (math.Abs(qA)*pxA + math.Abs(qB)*pxB) * s

	gross := qA*(xA-p.A.EntryPx) + qB*(xB-p.B.EntryPx)
	costs := p.EntryCost + exitCost
	net := gross - costs
	entryNotional := math.Abs(qA*p.A.EntryPx) + math.Abs(qB*p.B.EntryPx)

	reason := model.ExitSignal
	if sig.Type == model.SignalStopLoss {
		reason = model.ExitStopLoss
	}

	t := model.Trade{
		Side:       p.State,
		EntryIndex: p.EntryIndex,
		ExitIndex:  i,
		EntryTime:  p.EntryTime,
		ExitTime:   r.c.A.Points[i].Time,
		EntryZ:     p.EntryZ,
		ExitZ:      sig.Z,
		SharesA:    qA,
		SharesB:    qB,
		EntryPxA:   p.A.EntryPx,
		EntryPxB:   p.B.EntryPx,
		ExitPxA:    xA,
		ExitPxB:    xB,
		ExitReason: reason,
		GrossPnL:   gross,
		Costs:      costs,
		Slippage:   p.EntrySlippage + exitSlip,
		NetPnL:     net,
	}
	if entryNotional > 0 {
		t.ReturnPct = net / entryNotional
	}
	r.res.Trades = append(r.res.Trades, t)
	r.res.TotalCosts += costs
	r.res.TotalSlippage += t.Slippage

	// 以入场前现金结算，往返的现金变化恰为净盈亏
	r.cash = p.CashBefore + net
	r.pos = model.Position{State: model.StateFlat}
}
