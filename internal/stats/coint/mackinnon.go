package coint

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"pair-trading-backtester/internal/core/model"
)

// MacKinnon (1994) 响应面系数，仅含常数项
// 下标 0 为单序列单位根检验，下标 1 为双变量 Engle-Granger 残差检验
var (
	tauMaxC  = [2]float64{2.74, 0.92}
	tauMinC  = [2]float64{-18.83, -18.86}
	tauStarC = [2]float64{-1.61, -2.62}

	tauSmallPC = [2][3]float64{
		{2.1659, 1.4412, 0.038269},
		{2.92, 1.5012, 0.039796},
	}
	tauLargePC = [2][4]float64{
		{1.7339, 0.93202, -0.12745, -0.010368},
		{2.1945, 0.64695, -0.29198, -0.042377},
	}
)

// MacKinnon (2010) 有限样本临界值系数，仅含常数项
// cv = b0 + b1/T + b2/T^2 + b3/T^3，行依次为 1%、5%、10%
var tau2010C = [2][3][4]float64{
	{
		{-3.43035, -6.5393, -16.786, -79.433},
		{-2.86154, -2.8903, -4.234, -40.040},
		{-2.56677, -1.5384, -2.809, 0},
	},
	{
		{-3.89644, -10.9519, -22.527, 0},
		{-3.33613, -6.1101, -6.823, 0},
		{-3.04445, -4.2412, -2.720, 0},
	},
}

// engleGrangerN 协整回归中的变量个数
const engleGrangerN = 2

// mackinnonP n 个变量（1 或 2）时 ADF 统计量的近似 p 值
func mackinnonP(tau float64, n int) float64 {
	i := n - 1
	switch {
	case math.IsNaN(tau):
		return 1
	case tau > tauMaxC[i]:
		return 1
	case tau < tauMinC[i]:
		return 0
	}

	var z float64
	if tau <= tauStarC[i] {
		c := tauSmallPC[i]
		z = c[0] + c[1]*tau + c[2]*tau*tau
	} else {
		c := tauLargePC[i]
		z = c[0] + c[1]*tau + c[2]*tau*tau + c[3]*tau*tau*tau
	}
	return distuv.UnitNormal.CDF(z)
}

// mackinnonCrit n 个变量、nobs 个观测下的临界值
func mackinnonCrit(n, nobs int) model.CriticalValues {
	t := float64(nobs)
	cv := func(b [4]float64) float64 {
		return b[0] + b[1]/t + b[2]/(t*t) + b[3]/(t*t*t)
	}
	tab := tau2010C[n-1]
	return model.CriticalValues{P1: cv(tab[0]), P5: cv(tab[1]), P10: cv(tab[2])}
}
