// Package main 是配对交易回测器的入口点。
// 流程：加载行情 -> 协整选对 -> 生成信号 -> 模拟成交 -> 计算绩效 -> 导出结果。
//
// 重要：本系统仅用于历史回测，不连接任何真实交易通道。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pair-trading-backtester/internal/config"
	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/core/paper"
	"pair-trading-backtester/internal/core/selector"
	sigengine "pair-trading-backtester/internal/core/signal"
	"pair-trading-backtester/internal/core/store"
	"pair-trading-backtester/internal/output/jsonl"
	"pair-trading-backtester/internal/output/runstore"
	"pair-trading-backtester/internal/pricedata"
	"pair-trading-backtester/internal/stats/perf"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，中断选对与导出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，停止回测")
		cancel()
	}()

	if _, err := run(ctx, cfg, logger); err != nil {
		logger.Error("回测失败", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// report 一次完整回测的产物
type report struct {
	candidate model.PairCandidate
	coint     model.CointegrationResult
	signals   []model.Signal
	result    *model.BacktestResult
	metrics   model.PerformanceMetrics
	runID     int64
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*report, error) {
	series, err := pricedata.LoadAll(ctx, cfg.Sources(), cfg.Selection.Workers)
	if err != nil {
		return nil, err
	}
	seriesStore := store.New()
	for _, s := range series {
		seriesStore.Put(s)
		logger.Info("行情加载完成", zap.String("symbol", s.Symbol), zap.Int("bars", s.Len()))
	}

	candidates, err := seriesStore.Candidates(cfg.PairKeys())
	if err != nil {
		return nil, err
	}
	logger.Info("候选交易对", zap.Int("count", len(candidates)))

	sel := selector.New(cfg.SelectorParams(), logger)
	best, res, err := sel.SelectBestPair(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("选对失败: %w", err)
	}

	engine, err := sigengine.NewEngine(cfg.SignalParams())
	if err != nil {
		return nil, err
	}
	signals, _, err := engine.Generate(best, res)
	if err != nil {
		return nil, fmt.Errorf("生成信号失败: %w", err)
	}

	exec, err := paper.NewExecutor(cfg.Costs())
	if err != nil {
		return nil, err
	}
	result, err := exec.Run(best, res.HedgeRatio, signals)
	if err != nil {
		return nil, fmt.Errorf("回测 %s 失败: %w", best.Name(), err)
	}
	if result.EquityWentNegative {
		logger.Warn("权益曾触及零或以下", zap.String("pair", result.Pair))
	}

	rep := &report{
		candidate: best,
		coint:     res,
		signals:   signals,
		result:    result,
		metrics:   perf.AnalyzeResult(result, cfg.PerfParams()),
	}

	if err := export(ctx, cfg, logger, rep); err != nil {
		return nil, err
	}
	logSummary(logger, rep)
	return rep, nil
}

// export 写出 JSONL 文件，并按配置写入 SQLite
func export(ctx context.Context, cfg *config.Config, logger *zap.Logger, rep *report) error {
	pair := rep.result.Pair
	out := cfg.Output

	if out.SignalsEnabled {
		err := writeAll(filepath.Join(out.Dir, "signals.jsonl"), out.BufferSize, logger, func(w *jsonl.Writer) error {
			for _, s := range rep.signals {
				if err := w.Write(jsonl.NewSignalRecord(pair, s)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if out.TradesEnabled {
		err := writeAll(filepath.Join(out.Dir, "trades.jsonl"), out.BufferSize, logger, func(w *jsonl.Writer) error {
			for i := range rep.result.Trades {
				if err := w.Write(jsonl.NewTradeRecord(pair, &rep.result.Trades[i])); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if out.EquityEnabled {
		err := writeAll(filepath.Join(out.Dir, "equity.jsonl"), out.BufferSize, logger, func(w *jsonl.Writer) error {
			for _, p := range rep.result.EquityCurve {
				if err := w.Write(jsonl.NewEquityRecord(pair, p)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if out.MetricsEnabled {
		err := writeAll(filepath.Join(out.Dir, "metrics.jsonl"), out.BufferSize, logger, func(w *jsonl.Writer) error {
			return w.Write(jsonl.NewMetricsRecord(rep.result, rep.coint, rep.metrics))
		})
		if err != nil {
			return err
		}
	}

	if out.SQLitePath != "" {
		db, err := runstore.Open(out.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.SaveRun(ctx, runstore.Run{Result: rep.result, Coint: rep.coint, Metrics: rep.metrics})
		if err != nil {
			return err
		}
		rep.runID = id
		logger.Info("回测记录已保存", zap.String("path", out.SQLitePath), zap.Int64("run_id", id))
	}
	return nil
}

func writeAll(path string, bufferSize int, logger *zap.Logger, fill func(w *jsonl.Writer) error) error {
	w, err := jsonl.NewWriter(path, bufferSize)
	if err != nil {
		return fmt.Errorf("创建 %s writer 失败: %w", filepath.Base(path), err)
	}
	if err := fill(w); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("关闭 %s 失败: %w", filepath.Base(path), err)
	}
	if w.Dropped() > 0 {
		logger.Warn("部分记录编码失败", zap.String("path", path), zap.Int64("dropped", w.Dropped()))
	}
	logger.Debug("导出完成", zap.String("path", path), zap.Int64("records", w.Written()))
	return nil
}

func logSummary(logger *zap.Logger, rep *report) {
	m := rep.metrics
	fields := []zap.Field{
		zap.String("pair", rep.result.Pair),
		zap.Float64("hedge_ratio", rep.coint.HedgeRatio),
		zap.Float64("p_value", rep.coint.PValue),
		zap.Float64("half_life", rep.coint.HalfLife),
		zap.Float64("final_equity", rep.result.FinalEquity()),
		zap.Float64("total_return", m.TotalReturn),
		zap.Float64("annual_return", m.AnnualReturn),
		zap.Float64("annual_volatility", m.AnnualVolatility),
		zap.Float64("max_drawdown", m.MaxDrawdown.Pct),
		zap.Int("trades", m.NumTrades),
		zap.Float64("win_rate", m.WinRate),
		zap.Float64("avg_trade_pnl", m.AvgTradePnL),
		zap.Int("stop_losses", m.StopLossCount),
		zap.Float64("total_costs", m.TotalCosts),
		zap.Float64("exposure", m.Exposure),
		zap.Bool("open_position", rep.result.OpenPosition != nil),
	}
	if m.SharpeDefined {
		fields = append(fields, zap.Float64("sharpe", m.Sharpe))
	}
	if m.SortinoDefined {
		fields = append(fields, zap.Float64("sortino", m.Sortino))
	}
	if m.CalmarDefined {
		fields = append(fields, zap.Float64("calmar", m.Calmar))
	}
	if m.ProfitFactorDefined {
		fields = append(fields, zap.Float64("profit_factor", m.ProfitFactor))
	}
	logger.Info("回测完成", fields...)
}
