package jsonl

import (
	"math"

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/util/timeutil"
)

// SignalRecord signals.jsonl 的一行
type SignalRecord struct {
	// Pair 交易对名称
	Pair string `json:"pair"`
	// TsMs K 线时间（毫秒）
	TsMs int64 `json:"ts_ms"`
	// Time K 线时间（RFC3339）
	Time   string   `json:"time"`
	Index  int      `json:"index"`
	Signal string   `json:"signal"`
	Z      *float64 `json:"z"`
	Spread *float64 `json:"spread"`
	// State 本根信号之后的仓位意图
	State string `json:"state"`
}

// NewSignalRecord 由信号构造导出记录
func NewSignalRecord(pair string, s model.Signal) SignalRecord {
	return SignalRecord{
		Pair:   pair,
		TsMs:   timeutil.TimeToMs(s.Time),
		Time:   timeutil.FormatDate(s.Time),
		Index:  s.Index,
		Signal: string(s.Type),
		Z:      finite(s.Z),
		Spread: finite(s.Spread),
		State:  string(s.State),
	}
}

// TradeRecord trades.jsonl 的一行
type TradeRecord struct {
	Pair        string  `json:"pair"`
	Side        string  `json:"side"`
	EntryTime   string  `json:"entry_time"`
	ExitTime    string  `json:"exit_time"`
	EntryIndex  int     `json:"entry_index"`
	ExitIndex   int     `json:"exit_index"`
	HoldingBars int     `json:"holding_bars"`
	EntryZ      float64 `json:"entry_z"`
	ExitZ       float64 `json:"exit_z"`
	SharesA     float64 `json:"shares_a"`
	SharesB     float64 `json:"shares_b"`
	EntryPxA    float64 `json:"entry_px_a"`
	EntryPxB    float64 `json:"entry_px_b"`
	ExitPxA     float64 `json:"exit_px_a"`
	ExitPxB     float64 `json:"exit_px_b"`
	ExitReason  string  `json:"exit_reason"`
	GrossPnL    float64 `json:"gross_pnl"`
	Costs       float64 `json:"costs"`
	Slippage    float64 `json:"slippage"`
	NetPnL      float64 `json:"net_pnl"`
	ReturnPct   float64 `json:"return_pct"`
}

// NewTradeRecord 由成交记录构造导出记录
func NewTradeRecord(pair string, t *model.Trade) TradeRecord {
	return TradeRecord{
		Pair:        pair,
		Side:        string(t.Side),
		EntryTime:   timeutil.FormatDate(t.EntryTime),
		ExitTime:    timeutil.FormatDate(t.ExitTime),
		EntryIndex:  t.EntryIndex,
		ExitIndex:   t.ExitIndex,
		HoldingBars: t.HoldingBars(),
		EntryZ:      t.EntryZ,
		ExitZ:       t.ExitZ,
		SharesA:     t.SharesA,
		SharesB:     t.SharesB,
		EntryPxA:    t.EntryPxA,
		EntryPxB:    t.EntryPxB,
		ExitPxA:     t.ExitPxA,
		ExitPxB:     t.ExitPxB,
		ExitReason:  string(t.ExitReason),
		GrossPnL:    t.GrossPnL,
		Costs:       t.Costs,
		Slippage:    t.Slippage,
		NetPnL:      t.NetPnL,
		ReturnPct:   t.ReturnPct,
	}
}

// EquityRecord equity.jsonl 的一行
type EquityRecord struct {
	Pair          string  `json:"pair"`
	TsMs          int64   `json:"ts_ms"`
	Time          string  `json:"time"`
	Index         int     `json:"index"`
	Cash          float64 `json:"cash"`
	PositionValue float64 `json:"position_value"`
	Equity        float64 `json:"equity"`
	Return        float64 `json:"return"`
	State         string  `json:"state"`
}

// NewEquityRecord 由权益点构造导出记录
func NewEquityRecord(pair string, p model.EquityPoint) EquityRecord {
	return EquityRecord{
		Pair:          pair,
		TsMs:          timeutil.TimeToMs(p.Time),
		Time:          timeutil.FormatDate(p.Time),
		Index:         p.Index,
		Cash:          p.Cash,
		PositionValue: p.PositionValue,
		Equity:        p.Equity,
		Return:        p.Return,
		State:         string(p.State),
	}
}

// MetricsRecord metrics.jsonl 的一行：一次回测的汇总
// 未定义或非有限的指标输出为 null。
type MetricsRecord struct {
	Pair       string  `json:"pair"`
	HedgeRatio float64 `json:"hedge_ratio"`
	Intercept  float64 `json:"intercept"`

	// 协整检验
	ADFStat        *float64             `json:"adf_stat"`
	PValue         float64              `json:"p_value"`
	CriticalValues model.CriticalValues `json:"critical_values"`
	Lag            int                  `json:"lag"`
	Cointegrated   bool                 `json:"cointegrated"`
	HalfLife       *float64             `json:"half_life"`
	Correlation    float64              `json:"correlation"`

	// 收益与风险
	InitialCapital      float64  `json:"initial_capital"`
	FinalEquity         float64  `json:"final_equity"`
	TotalReturn         float64  `json:"total_return"`
	AnnualReturn        float64  `json:"annual_return"`
	AnnualVolatility    float64  `json:"annual_volatility"`
	Sharpe              *float64 `json:"sharpe"`
	Sortino             *float64 `json:"sortino"`
	Calmar              *float64 `json:"calmar"`
	MaxDrawdown         float64  `json:"max_drawdown"`
	MaxDrawdownPeak     string   `json:"max_drawdown_peak"`
	MaxDrawdownTrough   string   `json:"max_drawdown_trough"`
	MaxDrawdownRecovery string   `json:"max_drawdown_recovery,omitempty"`

	// 交易统计
	NumTrades          int      `json:"num_trades"`
	WinRate            float64  `json:"win_rate"`
	AvgTradePnL        float64  `json:"avg_trade_pnl"`
	ProfitFactor       *float64 `json:"profit_factor"`
	Expectancy         float64  `json:"expectancy"`
	BreakEvenWinRate   float64  `json:"break_even_win_rate"`
	StopLossCount      int      `json:"stop_loss_count"`
	HoldingP50         float64  `json:"holding_p50"`
	HoldingP90         float64  `json:"holding_p90"`
	TotalCosts         float64  `json:"total_costs"`
	TotalSlippage      float64  `json:"total_slippage"`
	Exposure           float64  `json:"exposure"`
	OpenPosition       bool     `json:"open_position"`
	EquityWentNegative bool     `json:"equity_went_negative"`
}

// NewMetricsRecord 汇总协整结果、回测结果与绩效指标
func NewMetricsRecord(res *model.BacktestResult, cr model.CointegrationResult, m model.PerformanceMetrics) MetricsRecord {
	r := MetricsRecord{
		Pair:           res.Pair,
		HedgeRatio:     cr.HedgeRatio,
		Intercept:      cr.Intercept,
		ADFStat:        finite(cr.TestStatistic),
		PValue:         cr.PValue,
		CriticalValues: cr.CriticalValues,
		Lag:            cr.Lag,
		Cointegrated:   cr.IsCointegrated,
		HalfLife:       finite(cr.HalfLife),
		Correlation:    cr.Correlation,

		InitialCapital:      res.InitialCapital,
		FinalEquity:         res.FinalEquity(),
		TotalReturn:         m.TotalReturn,
		AnnualReturn:        m.AnnualReturn,
		AnnualVolatility:    m.AnnualVolatility,
		MaxDrawdown:         m.MaxDrawdown.Pct,
		MaxDrawdownPeak:     timeutil.FormatDate(m.MaxDrawdown.PeakTime),
		MaxDrawdownTrough:   timeutil.FormatDate(m.MaxDrawdown.TroughTime),
		MaxDrawdownRecovery: timeutil.FormatDate(m.MaxDrawdown.RecoveryTime),

		NumTrades:          m.NumTrades,
		WinRate:            m.WinRate,
		AvgTradePnL:        m.AvgTradePnL,
		Expectancy:         m.Expectancy,
		BreakEvenWinRate:   m.BreakEvenWinRate,
		StopLossCount:      m.StopLossCount,
		HoldingP50:         m.HoldingP50,
		HoldingP90:         m.HoldingP90,
		TotalCosts:         m.TotalCosts,
		TotalSlippage:      res.TotalSlippage,
		Exposure:           m.Exposure,
		OpenPosition:       res.OpenPosition != nil,
		EquityWentNegative: res.EquityWentNegative,
	}
	if m.SharpeDefined {
		r.Sharpe = finite(m.Sharpe)
	}
	if m.SortinoDefined {
		r.Sortino = finite(m.Sortino)
	}
	if m.CalmarDefined {
		r.Calmar = finite(m.Calmar)
	}
	if m.ProfitFactorDefined {
		r.ProfitFactor = finite(m.ProfitFactor)
	}
	return r
}

// finite JSON 不支持 NaN/Inf，非有限值返回 nil
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
