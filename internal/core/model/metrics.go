package model

import "time"

// Drawdown 权益曲线最大峰谷回撤
type Drawdown struct {
	// Pct 回撤占峰值比例（正数）
	Pct float64
	// Amount 回撤金额
	Amount float64
	// PeakTime 谷底之前的峰值时间
	PeakTime time.Time
	// TroughTime 谷底时间
	TroughTime time.Time
	// RecoveryTime 谷底之后首次回到峰值的时间；未恢复时为零值
	RecoveryTime time.Time
	// DurationBars 峰值到谷底的 K 线数
	DurationBars int
	// Recovered 权益是否回到峰值
	Recovered bool
}

// PerformanceMetrics 由权益曲线与成交账本计算的绩效指标
// 无状态，可随时重算。
type PerformanceMetrics struct {
	TotalReturn      float64
	AnnualReturn     float64
	AnnualVolatility float64

	// Sharpe 年化；SharpeDefined 为 false 时取 0
	Sharpe        float64
	SharpeDefined bool
	// Sortino 年化，分母为下行偏差；SortinoDefined 为 false 时取 0
	Sortino        float64
	SortinoDefined bool
	// Calmar 年化收益 / 最大回撤；CalmarDefined 为 false 时取 0
	Calmar        float64
	CalmarDefined bool

	MaxDrawdown Drawdown

	NumTrades int
	// WinRate 净盈亏为正的交易占比；无交易时为 0
	WinRate float64
	// AvgTradePnL 每笔交易平均净盈亏
	AvgTradePnL float64
	// ProfitFactor 总盈利 / 总亏损；ProfitFactorDefined 为 false 时取 0
	ProfitFactor        float64
	ProfitFactorDefined bool
	AvgWin              float64
	AvgLoss             float64
	// Expectancy 由胜率与平均盈亏得出的单笔期望
	Expectancy float64
	// BreakEvenWinRate 期望为零所需胜率
	BreakEvenWinRate float64
	StopLossCount    int

	HoldingP50 float64
	HoldingP90 float64
	HoldingMax float64

	TotalCosts float64
	// Exposure 持仓 K 线占比
	Exposure     float64
	TotalBars    int
	BarsInMarket int
}
