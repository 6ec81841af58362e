package coint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"pair-trading-backtester/internal/core/model"
)

// adfResult 增广 Dickey-Fuller 回归结果
type adfResult struct {
	stat float64
	lag  int
	nobs int
}

// adfTest 拟合 De_t = c + g*e_{t-1} + sum_{i=1..p} f_i*De_{t-i} + u_t，
// 返回 g 的 t 值。
//
// 滞后阶数 p 取 0..maxLag 中 AIC 最小者，所有候选在同一样本上拟合
// （丢弃前 maxLag 个差分）；选定后用全部可用观测重新拟合。
func adfTest(e []float64, maxLag int) (adfResult, error) {
	n := len(e)
	de := make([]float64, n-1)
	for i := 1; i < n; i++ {
		de[i-1] = e[i] - e[i-1]
	}

	if maxLag < 0 {
		maxLag = 0
	}
	// 保留足够的残差自由度
	for maxLag > 0 && len(de)-maxLag < 2*(maxLag+2)+2 {
		maxLag--
	}

	bestLag := 0
	bestAIC := math.Inf(1)
	for p := 0; p <= maxLag; p++ {
		fit, err := adfRegress(e, de, p, maxLag)
		if err != nil {
			return adfResult{}, err
		}
		if fit.aic < bestAIC {
			bestAIC = fit.aic
			bestLag = p
		}
	}

	fit, err := adfRegress(e, de, bestLag, bestLag)
	if err != nil {
		return adfResult{}, err
	}
	return adfResult{stat: fit.tGamma, lag: bestLag, nobs: fit.rows}, nil
}

type adfFit struct {
	tGamma float64
	aic    float64
	rows   int
}

// adfRegress 用 t = start..len(de)-1 拟合 p 阶滞后，要求 start >= p
func adfRegress(e, de []float64, p, start int) (adfFit, error) {
	rows := len(de) - start
	k := p + 2
	if rows <= k {
		return adfFit{}, fmt.Errorf("%w: %d 行观测，%d 个回归量", model.ErrInsufficientData, rows, k)
	}

	x := mat.NewDense(rows, k, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		y.SetVec(r, de[t])
		x.Set(r, 0, e[t])
		for i := 1; i <= p; i++ {
			x.Set(r, i, de[t-i])
		}
		x.Set(r, k-1, 1)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return adfFit{}, fmt.Errorf("%w: ADF 设计矩阵奇异（滞后 %d）", model.ErrDegenerateSeries, p)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)
	var b mat.VecDense
	b.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &b)
	var rss float64
	for r := 0; r < rows; r++ {
		u := y.AtVec(r) - fitted.AtVec(r)
		rss += u * u
	}

	fit := adfFit{rows: rows}
	gamma := b.AtVec(0)
	se := math.Sqrt(rss / float64(rows-k) * inv.At(0, 0))
	switch {
	case se > 0:
		fit.tGamma = gamma / se
	case gamma < 0:
		fit.tGamma = math.Inf(-1)
	default:
		fit.tGamma = math.Inf(1)
	}
	if rss > 0 {
		fit.aic = float64(rows)*math.Log(rss/float64(rows)) + 2*float64(k)
	} else {
		fit.aic = math.Inf(-1)
	}
	return fit, nil
}
