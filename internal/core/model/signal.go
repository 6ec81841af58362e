package model

import (
	"time"
)

// SignalType 单根 K 线的仓位意图
type SignalType string

const (
	// SignalHold 状态不变
	SignalHold SignalType = "HOLD"
	// SignalEnterLong 做多价差：买入 A，卖出 hedge_ratio 份 B
	SignalEnterLong SignalType = "ENTER_LONG_SPREAD"
	// SignalEnterShort 做空价差：卖出 A，买入 hedge_ratio 份 B
	SignalEnterShort SignalType = "ENTER_SHORT_SPREAD"
	// SignalExit 价差回归均值
	SignalExit SignalType = "EXIT"
	// SignalStopLoss |z| 触及止损阈值
	SignalStopLoss SignalType = "STOP_LOSS"
)

// IsEntry 是否为开仓信号
func (t SignalType) IsEntry() bool {
	return t == SignalEnterLong || t == SignalEnterShort
}

// IsExit 是否为平仓信号
func (t SignalType) IsExit() bool {
	return t == SignalExit || t == SignalStopLoss
}

// PositionState 持仓状态
type PositionState string

const (
	// StateFlat 空仓
	StateFlat PositionState = "FLAT"
	// StateLongSpread 多 A 空 B
	StateLongSpread PositionState = "LONG_SPREAD"
	// StateShortSpread 空 A 多 B
	StateShortSpread PositionState = "SHORT_SPREAD"
)

// Direction 价差方向：多 +1，空 -1，空仓 0
func (s PositionState) Direction() float64 {
	switch s {
	case StateLongSpread:
		return 1
	case StateShortSpread:
		return -1
	default:
		return 0
	}
}

// SpreadPoint 价差及其滚动窗口统计
type SpreadPoint struct {
	// Time K 线时间戳
	Time time.Time
	// Value 原始价差
	Value float64
	// Mean 窗口均值
	Mean float64
	// Std 窗口样本标准差
	Std float64
	// Z (Value - Mean) / Std；Std 小于 epsilon 时为 0
	Z float64
	// Ready 窗口未填满前为 false，此时 Z 不可交易
	Ready bool
}

// Signal 每根 K 线一个，严格按时间排序
type Signal struct {
	// Index 在对齐序列中的下标
	Index int
	// Time K 线时间戳
	Time time.Time
	// Type 信号类型
	Type SignalType
	// Z 产生信号的 z-score
	Z float64
	// Spread 原始价差
	Spread float64
	// State 应用信号后的持仓状态
	State PositionState
}
