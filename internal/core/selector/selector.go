// Package selector 从候选交易对中选出协整关系最强的一对。
// 候选之间相互独立，使用有界并发逐一做 Engle-Granger 检验。
package selector

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/stats/coint"
)

// Params 选择参数，构造后不可变
type Params struct {
	// Coint 协整检验参数
	Coint coint.Params
	// MinCorrelation 相关性预过滤阈值（绝对值），0 表示关闭
	MinCorrelation float64
	// Workers 并发检验数，<=0 时取 GOMAXPROCS
	Workers int
	// FallbackPValue 无严格协整对时按相关性回退的 p 值上限，0 表示关闭
	FallbackPValue float64
	// MaxHalfLife 回退选择要求的半衰期上限（K 线数）
	MaxHalfLife float64
}

// DefaultParams 默认参数：关闭预过滤与回退
func DefaultParams() Params {
	return Params{
		Coint:       coint.DefaultParams(),
		MaxHalfLife: 252,
	}
}

// Evaluation 单个候选的检验结果
type Evaluation struct {
	// Index 候选在输入中的位置
	Index int
	// Candidate 候选交易对
	Candidate model.PairCandidate
	// Result 协整检验结果，Err 非空时为零值
	Result model.CointegrationResult
	// Err 检验失败原因（数据不足、序列退化等）
	Err error
	// Filtered 相关性低于 MinCorrelation，未参与排序
	Filtered bool
}

// Selector 交易对选择器
type Selector struct {
	p      Params
	logger *zap.Logger
}

// New 创建选择器
// 参数 logger: 为 nil 时不输出日志
func New(p Params, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	if p.MaxHalfLife <= 0 {
		p.MaxHalfLife = DefaultParams().MaxHalfLife
	}
	return &Selector{p: p, logger: logger}
}

// Params 返回生效的参数
func (s *Selector) Params() Params {
	return s.p
}

// Evaluate 并发检验所有候选，结果顺序与输入一致
// 单个候选失败只记录在 Evaluation.Err，不影响其他候选；ctx 取消后未开始的候选记为 ctx.Err()。
func (s *Selector) Evaluate(ctx context.Context, candidates []model.PairCandidate) []Evaluation {
	out := make([]Evaluation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.p.Workers)
	for i, c := range candidates {
		out[i] = Evaluation{Index: i, Candidate: c}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			res, err := coint.TestCandidate(c, s.p.Coint)
			if err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result = res
			if s.p.MinCorrelation > 0 && math.Abs(res.Correlation) < s.p.MinCorrelation {
				out[i].Filtered = true
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range out {
		switch {
		case e.Err != nil:
			s.logger.Warn("协整检验失败", zap.String("pair", e.Candidate.Name()), zap.Error(e.Err))
		case e.Filtered:
			s.logger.Debug("相关性过低，跳过",
				zap.String("pair", e.Candidate.Name()),
				zap.Float64("correlation", e.Result.Correlation))
		default:
			s.logger.Debug("协整检验完成",
				zap.String("pair", e.Candidate.Name()),
				zap.Float64("p_value", e.Result.PValue),
				zap.Float64("adf_stat", e.Result.TestStatistic),
				zap.Float64("hedge_ratio", e.Result.HedgeRatio),
				zap.Bool("cointegrated", e.Result.IsCointegrated))
		}
	}
	return out
}

// SelectBestPair 选出 p 值最小的协整交易对
//
// 排序：p 值升序，对冲比 t 值绝对值降序，输入顺序。
// 没有协整对且开启回退时，按相关性绝对值降序选择满足 p 值与半衰期条件的候选。
// 仍无结果时返回 ErrNoCointegratedPair。
func (s *Selector) SelectBestPair(ctx context.Context, candidates []model.PairCandidate) (model.PairCandidate, model.CointegrationResult, error) {
	evals := s.Evaluate(ctx, candidates)
	if err := ctx.Err(); err != nil {
		return model.PairCandidate{}, model.CointegrationResult{}, err
	}

	best, fallback, err := s.choose(evals)
	if err != nil {
		return model.PairCandidate{}, model.CointegrationResult{}, fmt.Errorf("%w: 共 %d 个候选", err, len(candidates))
	}

	fields := []zap.Field{
		zap.String("pair", best.Candidate.Name()),
		zap.Float64("p_value", best.Result.PValue),
		zap.Float64("hedge_ratio", best.Result.HedgeRatio),
		zap.Float64("half_life", best.Result.HalfLife),
	}
	if fallback {
		s.logger.Warn("没有严格协整的交易对，按相关性回退选择", fields...)
	} else {
		s.logger.Info("选定交易对", fields...)
	}
	return best.Candidate, best.Result, nil
}

// choose 从检验结果中选出最佳候选，fallback 表示是否来自相关性回退
func (s *Selector) choose(evals []Evaluation) (best Evaluation, fallback bool, err error) {
	var qualified, loose []Evaluation
	for _, e := range evals {
		if e.Err != nil || e.Filtered {
			continue
		}
		if e.Result.IsCointegrated {
			qualified = append(qualified, e)
			continue
		}
		if s.p.FallbackPValue > 0 && e.Result.PValue < s.p.FallbackPValue &&
			e.Result.HalfLife > 0 && e.Result.HalfLife < s.p.MaxHalfLife {
			loose = append(loose, e)
		}
	}

	if len(qualified) > 0 {
		sort.SliceStable(qualified, func(i, j int) bool {
			a, b := qualified[i].Result, qualified[j].Result
			if a.PValue != b.PValue {
				return a.PValue < b.PValue
			}
			ta, tb := math.Abs(a.HedgeRatioTStat), math.Abs(b.HedgeRatioTStat)
			if ta != tb {
				return ta > tb
			}
			return qualified[i].Index < qualified[j].Index
		})
		return qualified[0], false, nil
	}

	if len(loose) > 0 {
		sort.SliceStable(loose, func(i, j int) bool {
			a, b := loose[i].Result, loose[j].Result
			ca, cb := math.Abs(a.Correlation), math.Abs(b.Correlation)
			if ca != cb {
				return ca > cb
			}
			if a.PValue != b.PValue {
				return a.PValue < b.PValue
			}
			return loose[i].Index < loose[j].Index
		})
		return loose[0], true, nil
	}

	return Evaluation{}, false, model.ErrNoCointegratedPair
}
