package config

import (
	"pair-trading-backtester/internal/core/paper"
	"pair-trading-backtester/internal/core/selector"
	"pair-trading-backtester/internal/core/signal"
	"pair-trading-backtester/internal/core/store"
	"pair-trading-backtester/internal/pricedata"
	"pair-trading-backtester/internal/stats/coint"
	"pair-trading-backtester/internal/stats/perf"
)

// SelectorParams 转换为选对参数
func (c *Config) SelectorParams() selector.Params {
	return selector.Params{
		Coint: coint.Params{
			Significance:    c.Selection.Significance,
			MaxLag:          c.Selection.MaxLag,
			MinObservations: c.Data.MinObservations,
		},
		MinCorrelation: c.Selection.MinCorrelation,
		Workers:        c.Selection.Workers,
		FallbackPValue: c.Selection.FallbackPValue,
		MaxHalfLife:    c.Selection.MaxHalfLife,
	}
}

// SignalParams 转换为信号参数
func (c *Config) SignalParams() signal.Params {
	return signal.Params{
		ZWindow:      c.Signal.ZWindow,
		EntryZ:       c.Signal.EntryZ,
		ExitZ:        c.Signal.ExitZ,
		StopZ:        c.Signal.StopZ,
		CooldownBars: c.Signal.CooldownBars,
	}
}

// Costs 转换为执行器成本参数
func (c *Config) Costs() paper.Costs {
	return paper.Costs{
		InitialCapital:      c.Backtest.InitialCapital,
		TransactionCostRate: c.Backtest.TransactionCostRate,
		SlippageRate:        c.Backtest.SlippageRate,
		AllocationFraction:  c.Backtest.AllocationFraction,
		Sizing:              paper.Sizing(c.Backtest.Sizing),
		MarginCheck:         c.Backtest.MarginCheck,
	}
}

// PerfParams 转换为绩效参数
func (c *Config) PerfParams() perf.Params {
	return perf.Params{
		RiskFreeRate:   c.Performance.RiskFreeRate,
		PeriodsPerYear: c.Performance.PeriodsPerYear,
		InitialCapital: c.Backtest.InitialCapital,
	}
}

// Sources 价格文件列表
func (c *Config) Sources() []pricedata.Source {
	out := make([]pricedata.Source, len(c.Data.Files))
	for i, f := range c.Data.Files {
		out[i] = pricedata.Source{Symbol: f.Symbol, Path: f.Path}
	}
	return out
}

// PairKeys 显式指定的候选交易对，为空时返回 nil
func (c *Config) PairKeys() []store.PairKey {
	if len(c.Data.Pairs) == 0 {
		return nil
	}
	out := make([]store.PairKey, len(c.Data.Pairs))
	for i, p := range c.Data.Pairs {
		out[i] = store.PairKey{A: p.A, B: p.B}
	}
	return out
}
