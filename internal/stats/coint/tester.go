// Package coint 实现 Engle-Granger 两步协整检验。
// 先做 OLS 对冲回归，再对残差价差做增广 Dickey-Fuller 检验，p 值采用 MacKinnon 近似。
package coint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"pair-trading-backtester/internal/core/model"
)

// degenerateTol 相对标准差低于此值视为常数序列
const degenerateTol = 1e-10

// Params 检验参数，不可变，可在 goroutine 间共享
type Params struct {
	// Significance 判定 IsCointegrated 的 p 值阈值
	Significance float64
	// MaxLag AIC 选择的最大 ADF 滞后阶数
	MaxLag int
	// MinObservations 最少观测数
	MinObservations int
}

// DefaultParams 默认参数：5% 显著性，AIC 在 0..1 阶中选择，至少 30 根
func DefaultParams() Params {
	return Params{
		Significance:    0.05,
		MaxLag:          1,
		MinObservations: 30,
	}
}

// TestCandidate 对候选交易对的对齐价格执行 Test
func TestCandidate(c model.PairCandidate, p Params) (model.CointegrationResult, error) {
	res, err := Test(c.A.Prices(), c.B.Prices(), p)
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return res, nil
}

// Test 将 a 对 b 回归，构造价差 a - beta*b - alpha 并检验其平稳性
// 纯函数，结果只取决于输入。
func Test(a, b []float64, p Params) (model.CointegrationResult, error) {
	if p.Significance <= 0 || p.Significance >= 1 {
		p.Significance = DefaultParams().Significance
	}
	minObs := p.MinObservations
	if minObs < 3 {
		minObs = 3
	}
	if len(a) != len(b) {
		return model.CointegrationResult{}, fmt.Errorf("%w: 长度 %d 与 %d", model.ErrMisalignedSeries, len(a), len(b))
	}
	if len(a) < minObs {
		return model.CointegrationResult{}, fmt.Errorf("%w: %d 个观测，至少需要 %d", model.ErrInsufficientData, len(a), minObs)
	}
	for i := range a {
		if math.IsNaN(a[i]) || math.IsInf(a[i], 0) || math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			return model.CointegrationResult{}, fmt.Errorf("%w: 第 %d 个价格非有限值", model.ErrInsufficientData, i)
		}
	}

	fit, err := fitHedge(a, b)
	if err != nil {
		return model.CointegrationResult{}, err
	}

	res := model.CointegrationResult{
		HedgeRatio:      fit.beta,
		Intercept:       fit.alpha,
		HedgeRatioTStat: fit.tStat,
		Correlation:     stat.Correlation(a, b, nil),
		Spread:          fit.resid,
		Significance:    p.Significance,
	}
	res.SpreadMean, res.SpreadStd = stat.MeanStdDev(fit.resid, nil)

	scale := math.Max(1, stat.Mean(absAll(a), nil))
	if !(res.SpreadStd > degenerateTol*scale) {
		// 精确线性关系视为最强协整
		res.Degenerate = true
		res.TestStatistic = math.Inf(-1)
		res.PValue = 0
		res.IsCointegrated = true
		res.NObs = len(a) - 1
		res.CriticalValues = mackinnonCrit(engleGrangerN, res.NObs)
		return res, nil
	}

	adf, err := adfTest(fit.resid, p.MaxLag)
	if err != nil {
		return model.CointegrationResult{}, err
	}
	res.TestStatistic = adf.stat
	res.Lag = adf.lag
	res.NObs = adf.nobs
	res.PValue = mackinnonP(adf.stat, engleGrangerN)
	res.CriticalValues = mackinnonCrit(engleGrangerN, adf.nobs)
	res.IsCointegrated = res.PValue < p.Significance

	res.HalfLife = halfLife(fit.resid)
	res.MinZ, res.MaxZ = zRange(fit.resid, res.SpreadMean, res.SpreadStd)
	return res, nil
}

func zRange(v []float64, mean, std float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		z := (x - mean) / std
		lo = math.Min(lo, z)
		hi = math.Max(hi, z)
	}
	return lo, hi
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
