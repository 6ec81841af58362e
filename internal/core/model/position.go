package model

import (
	"time"
)

// ExitReason 平仓原因
type ExitReason string

const (
	// ExitSignal 价差回归越过平仓阈值
	ExitSignal ExitReason = "EXIT"
	// ExitStopLoss 价差发散越过止损阈值
	ExitStopLoss ExitReason = "STOP_LOSS"
)

// Leg 交易对中单一标的的持仓
type Leg struct {
	// Symbol 标的代码
	Symbol string
	// Shares 带符号数量：正为多头，负为空头
	Shares float64
	// EntryPx 含滑点的入场成交价
	EntryPx float64
}

// Notional 按价格 px 计算的带符号市值
func (l Leg) Notional(px float64) float64 {
	return l.Shares * px
}

// Position 一次回测中唯一的持仓
// 只由执行器修改。
type Position struct {
	// State FLAT、LONG_SPREAD 或 SHORT_SPREAD
	State PositionState
	// EntryIndex 入场 K 线下标
	EntryIndex int
	// EntryTime 入场时间
	EntryTime time.Time
	// EntryZ 入场 z-score
	EntryZ float64
	// EntrySpread 入场价差
	EntrySpread float64
	// A A 腿持仓
	A Leg
	// B B 腿持仓
	B Leg
	// EntryCost 入场成交的交易成本
	EntryCost float64
	// EntrySlippage 入场成交的滑点成本
	EntrySlippage float64
	// CashBefore 入场成交前的现金余额
	CashBefore float64
}

// IsFlat 是否空仓
func (p *Position) IsFlat() bool {
	return p.State == "" || p.State == StateFlat
}

// MarketValue 两条腿的带符号盯市价值
func (p *Position) MarketValue(pxA, pxB float64) float64 {
	if p.IsFlat() {
		return 0
	}
	return p.A.Notional(pxA) + p.B.Notional(pxB)
}

// Trade 一次完整的开平仓，写入账本后不可变
type Trade struct {
	// Side LONG_SPREAD 或 SHORT_SPREAD
	Side PositionState
	// EntryIndex 入场 K 线下标
	EntryIndex int
	// ExitIndex 出场 K 线下标
	ExitIndex int
	// EntryTime 入场时间
	EntryTime time.Time
	// ExitTime 出场时间
	ExitTime time.Time
	// EntryZ 入场 z-score
	EntryZ float64
	// ExitZ 出场 z-score
	ExitZ float64
	// SharesA A 腿带符号数量
	SharesA float64
	// SharesB B 腿带符号数量
	SharesB float64
	// EntryPxA, EntryPxB 入场成交价
	EntryPxA float64
	EntryPxB float64
	// ExitPxA, ExitPxB 出场成交价
	ExitPxA float64
	ExitPxB float64
	// ExitReason EXIT 或 STOP_LOSS
	ExitReason ExitReason
	// GrossPnL 按成交价计算的两腿盈亏（未扣交易成本）
	GrossPnL float64
	// Costs 入场与出场的交易成本
	Costs float64
	// Slippage 四笔成交的滑点成本
	Slippage float64
	// NetPnL GrossPnL - Costs
	NetPnL float64
	// ReturnPct NetPnL 相对入场总名义价值
	ReturnPct float64
}

// HoldingBars 持仓 K 线数
func (t *Trade) HoldingBars() int {
	return t.ExitIndex - t.EntryIndex
}

// IsWin 净盈亏为正
func (t *Trade) IsWin() bool {
	return t.NetPnL > 0
}

// EquityPoint 每根 K 线一个
type EquityPoint struct {
	// Index K 线下标
	Index int
	// Time K 线时间戳
	Time time.Time
	// Cash 本根成交后的现金
	Cash float64
	// PositionValue 持仓盯市价值
	PositionValue float64
	// Equity Cash + PositionValue
	Equity float64
	// Return 相对上一根的权益收益率，第一根相对初始资金
	Return float64
	// State 本根结束后的持仓状态
	State PositionState
}

// BacktestResult 一次回测的成交账本与权益曲线
type BacktestResult struct {
	// Pair 交易对名称
	Pair string
	// HedgeRatio 仓位计算使用的对冲比
	HedgeRatio float64
	// InitialCapital 初始资金
	InitialCapital float64
	// Trades 已平仓交易，按出场顺序
	Trades []Trade
	// EquityCurve 每根 K 线一个点
	EquityCurve []EquityPoint
	// OpenPosition 最后一根后仍未平仓的持仓，空仓时为 nil
	OpenPosition *Position
	// TotalCosts 已支付交易成本（含未平仓的入场成本）
	TotalCosts float64
	// TotalSlippage 已支付滑点（含未平仓的入场滑点）
	TotalSlippage float64
	// EquityWentNegative 权益曾触及零或以下
	EquityWentNegative bool
	// MarginCheck 本次回测是否强制权益为正
	MarginCheck bool
}

// FinalEquity 最后一根的权益；权益曲线为空时返回初始资金
func (r *BacktestResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}
