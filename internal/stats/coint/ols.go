package coint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"pair-trading-backtester/internal/core/model"
)

// hedgeFit 带截距的 y 对 x 回归结果
type hedgeFit struct {
	alpha float64
	beta  float64
	// tStat beta 的 t 值；完全拟合时为 ±Inf
	tStat float64
	resid []float64
}

// fitHedge 回归 y = alpha + beta*x + e
// 任一输入方差为零时返回 ErrDegenerateSeries。
func fitHedge(y, x []float64) (hedgeFit, error) {
	if err := checkVariance(x, "B"); err != nil {
		return hedgeFit{}, err
	}
	if err := checkVariance(y, "A"); err != nil {
		return hedgeFit{}, err
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)

	n := len(y)
	resid := make([]float64, n)
	var rss float64
	for i := range y {
		resid[i] = y[i] - beta*x[i] - alpha
		rss += resid[i] * resid[i]
	}

	xMean := stat.Mean(x, nil)
	var sxx float64
	for _, v := range x {
		d := v - xMean
		sxx += d * d
	}

	fit := hedgeFit{alpha: alpha, beta: beta, resid: resid}
	se := math.Sqrt(rss / float64(n-2) / sxx)
	switch {
	case se > 0:
		fit.tStat = beta / se
	case beta < 0:
		fit.tStat = math.Inf(-1)
	default:
		fit.tStat = math.Inf(1)
	}
	return fit, nil
}

func checkVariance(v []float64, leg string) error {
	mean, std := stat.MeanStdDev(v, nil)
	if !(std > degenerateTol*math.Max(1, math.Abs(mean))) {
		return fmt.Errorf("%w: %s 腿方差为零", model.ErrDegenerateSeries, leg)
	}
	return nil
}

// halfLife 均值回归半衰期：De_t = theta*e_{t-1}，半衰期 = -ln2/theta
// 价差不回归时返回 +Inf。
func halfLife(spread []float64) float64 {
	n := len(spread)
	if n < 3 {
		return math.Inf(1)
	}
	lagged := spread[:n-1]
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = spread[i] - spread[i-1]
	}
	_, theta := stat.LinearRegression(lagged, diff, nil, true)
	if !(theta < 0) {
		return math.Inf(1)
	}
	return -math.Ln2 / theta
}
