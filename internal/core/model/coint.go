package model

// CriticalValues Engle-Granger 残差 ADF 检验临界值
type CriticalValues struct {
	// P1 1% 水平
	P1 float64 `json:"1%"`
	// P5 5% 水平
	P5 float64 `json:"5%"`
	// P10 10% 水平
	P10 float64 `json:"10%"`
}

// CointegrationResult 单个交易对的 Engle-Granger 检验结果
// 每个候选生成一次，之后不再修改。
type CointegrationResult struct {
	// HedgeRatio A 对 B 回归的斜率
	HedgeRatio float64
	// Intercept 回归常数项
	Intercept float64
	// HedgeRatioTStat 斜率 t 值，绝对值越大对冲比越稳定
	HedgeRatioTStat float64
	// Correlation 两条价格序列的 Pearson 相关系数
	Correlation float64
	// Spread 残差 A - HedgeRatio*B - Intercept，与输入等长
	Spread []float64
	// TestStatistic 滞后价差系数的 ADF t 值
	TestStatistic float64
	// PValue MacKinnon 近似 p 值
	PValue float64
	// CriticalValues 有限样本临界值
	CriticalValues CriticalValues
	// Lag AIC 选出的增广滞后阶数
	Lag int
	// NObs 最终 ADF 回归使用的观测数
	NObs int
	// Significance 判定使用的显著性水平
	Significance float64
	// IsCointegrated PValue < Significance
	IsCointegrated bool
	// Degenerate 价差方差为零：统计量 -Inf，PValue 为 0
	Degenerate bool

	// SpreadMean 全样本价差均值
	SpreadMean float64
	// SpreadStd 全样本价差标准差
	SpreadStd float64
	// HalfLife 均值回归半衰期（K 线数），不回归时为 +Inf
	HalfLife float64
	// MinZ 全样本价差最小 z-score
	MinZ float64
	// MaxZ 全样本价差最大 z-score
	MaxZ float64
}
