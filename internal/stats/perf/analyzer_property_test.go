// Package perf 绩效指标属性测试
package perf

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAnalyze_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("正权益的最大回撤在 [0, 1) 内且峰值不晚于谷底", prop.ForAll(
		func(equity []float64) bool {
			curve := mkCurve(equity...)
			dd := MaxDrawdown(curve)
			if dd.Pct < 0 || dd.Pct >= 1 {
				return false
			}
			if dd.Pct > 0 && dd.TroughTime.Before(dd.PeakTime) {
				return false
			}
			return dd.Amount >= 0
		},
		gen.SliceOfN(40, gen.Float64Range(1, 1000)),
	))

	properties.Property("Sharpe 与平均收益同号", prop.ForAll(
		func(equity []float64) bool {
			m := Analyze(mkCurve(equity...), nil, DefaultParams())
			if !m.SharpeDefined {
				return m.Sharpe == 0
			}
			return math.Signbit(m.Sharpe) == math.Signbit(m.AnnualReturn) || m.AnnualReturn == 0
		},
		gen.SliceOfN(30, gen.Float64Range(50, 150)),
	))

	properties.Property("暴露度在 [0, 1] 内", prop.ForAll(
		func(equity []float64) bool {
			m := Analyze(mkCurve(equity...), nil, DefaultParams())
			return m.Exposure >= 0 && m.Exposure <= 1 && m.TotalBars == len(equity)
		},
		gen.SliceOfN(10, gen.Float64Range(1, 100)),
	))

	properties.TestingRun(t)
}
