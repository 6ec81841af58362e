// Package perf 由权益曲线与成交账本计算绩效指标。
// 纯计算，无状态，不记录日志。
package perf

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/stats/ev"
	"pair-trading-backtester/internal/stats/holding"
)

// varianceEpsilon 标准差低于此值视为零波动
const varianceEpsilon = 1e-12

// Params 绩效参数
type Params struct {
	// RiskFreeRate 年化无风险利率
	RiskFreeRate float64
	// PeriodsPerYear 每年 K 线数，日线为 252
	PeriodsPerYear float64
	// InitialCapital 计算总收益的基准；<=0 时取第一根权益
	InitialCapital float64
}

// DefaultParams 默认参数：无风险利率 0，每年 252 根
func DefaultParams() Params {
	return Params{PeriodsPerYear: 252}
}

// AnalyzeResult 分析一次回测结果
// 总成本取回测结果中的 TotalCosts（含未平仓的入场成本）。
func AnalyzeResult(res *model.BacktestResult, p Params) model.PerformanceMetrics {
	if res == nil {
		return model.PerformanceMetrics{}
	}
	if p.InitialCapital <= 0 {
		p.InitialCapital = res.InitialCapital
	}
	m := Analyze(res.EquityCurve, res.Trades, p)
	m.TotalCosts = res.TotalCosts
	return m
}

// Analyze 计算绩效指标
//
// 收益率序列取权益曲线每根的 Return，第一根相对初始资金。
// 波动为零或样本不足时 Sharpe/Sortino/Calmar 记为 0，对应 Defined 为 false。
func Analyze(curve []model.EquityPoint, trades []model.Trade, p Params) model.PerformanceMetrics {
	if p.PeriodsPerYear <= 0 {
		p.PeriodsPerYear = 252
	}
	var m model.PerformanceMetrics

	m.TotalBars = len(curve)
	for _, pt := range curve {
		if pt.State != "" && pt.State != model.StateFlat {
			m.BarsInMarket++
		}
	}
	if m.TotalBars > 0 {
		m.Exposure = float64(m.BarsInMarket) / float64(m.TotalBars)

		base := p.InitialCapital
		if base <= 0 {
			base = impliedCapital(curve[0])
		}
		if base > 0 {
			m.TotalReturn = curve[len(curve)-1].Equity/base - 1
		}
	}

	returns := periodReturns(curve)
	annualize := math.Sqrt(p.PeriodsPerYear)
	rfPerPeriod := p.RiskFreeRate / p.PeriodsPerYear
	if len(returns) >= 2 {
		mean, std := stat.MeanStdDev(returns, nil)
		m.AnnualReturn = mean * p.PeriodsPerYear
		m.AnnualVolatility = std * annualize

		excess := make([]float64, len(returns))
		var downside []float64
		for i, r := range returns {
			excess[i] = r - rfPerPeriod
			if excess[i] < 0 {
				downside = append(downside, excess[i])
			}
		}
		excessMean := stat.Mean(excess, nil)

		if std > varianceEpsilon {
			m.Sharpe = annualize * excessMean / std
			m.SharpeDefined = true
		}
		if len(downside) >= 2 {
			if dstd := stat.StdDev(downside, nil); dstd > varianceEpsilon {
				m.Sortino = annualize * excessMean / dstd
				m.SortinoDefined = true
			}
		}
	} else if len(returns) == 1 {
		m.AnnualReturn = returns[0] * p.PeriodsPerYear
	}

	m.MaxDrawdown = MaxDrawdown(curve)
	if m.MaxDrawdown.Pct > varianceEpsilon {
		m.Calmar = m.AnnualReturn / m.MaxDrawdown.Pct
		m.CalmarDefined = true
	}

	applyTrades(&m, trades)
	return m
}

func periodReturns(curve []model.EquityPoint) []float64 {
	if len(curve) == 0 {
		return nil
	}
	out := make([]float64, len(curve))
	for i, pt := range curve {
		out[i] = pt.Return
	}
	return out
}

// impliedCapital 由第一根权益和收益率反推初始资金
func impliedCapital(first model.EquityPoint) float64 {
	if g := 1 + first.Return; g > 0 {
		return first.Equity / g
	}
	return first.Equity
}

// MaxDrawdown 最大峰谷回撤
// 峰值取谷底之前的历史最高点，恢复时间为谷底之后首次回到峰值的 K 线。
// 峰值非正的区间不参与计算。
func MaxDrawdown(curve []model.EquityPoint) model.Drawdown {
	var dd model.Drawdown
	if len(curve) == 0 {
		return dd
	}

	peakIdx, troughIdx, maxPeakIdx := 0, 0, 0
	worst := 0.0
	for i, pt := range curve {
		if pt.Equity > curve[peakIdx].Equity {
			peakIdx = i
		}
		peak := curve[peakIdx].Equity
		if peak <= 0 {
			continue
		}
		if d := (peak - pt.Equity) / peak; d > worst {
			worst = d
			troughIdx = i
			maxPeakIdx = peakIdx
		}
	}
	if worst <= 0 {
		return dd
	}

	peak := curve[maxPeakIdx]
	trough := curve[troughIdx]
	dd.Pct = worst
	dd.Amount = peak.Equity - trough.Equity
	dd.PeakTime = peak.Time
	dd.TroughTime = trough.Time
	dd.DurationBars = troughIdx - maxPeakIdx
	for _, pt := range curve[troughIdx+1:] {
		if pt.Equity >= peak.Equity {
			dd.Recovered = true
			dd.RecoveryTime = pt.Time
			break
		}
	}
	return dd
}

func applyTrades(m *model.PerformanceMetrics, trades []model.Trade) {
	m.NumTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	calc := ev.NewCalculator(len(trades))
	tracker := holding.NewTracker(len(trades))
	for i := range trades {
		calc.Add(&trades[i])
		tracker.Add(&trades[i])
		m.TotalCosts += trades[i].Costs
	}

	s := calc.Stats()
	m.WinRate = s.WinRate
	m.AvgTradePnL = s.AvgNet
	m.StopLossCount = int(s.StopLossCount)
	m.Expectancy = s.EV
	m.BreakEvenWinRate = s.PRequired
	if s.WinCount > 0 {
		m.AvgWin = s.GrossWin / float64(s.WinCount)
	}
	if s.LossCount > 0 {
		m.AvgLoss = s.GrossLoss / float64(s.LossCount)
	}
	if s.GrossLoss > 0 {
		m.ProfitFactor = s.GrossWin / s.GrossLoss
		m.ProfitFactorDefined = true
	}

	h := tracker.Stats("")
	m.HoldingP50 = h.P50
	m.HoldingP90 = h.P90
	m.HoldingMax = h.Max
}
