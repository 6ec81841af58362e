// Package ev EV 计算器属性测试
package ev

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pair-trading-backtester/internal/core/model"
)

type agg struct {
	count, winCount, lossCount int64
	sumWinR, sumLossL, sumCost float64
}

func aggregate(grosses, costs []float64) agg {
	var a agg
	for i := range grosses {
		g, f := grosses[i], costs[i]
		a.count++
		a.sumCost += f
		if g-f > 0 {
			a.winCount++
			a.sumWinR += g
		} else {
			a.lossCount++
			a.sumLossL += math.Abs(g)
		}
	}
	return a
}

func matches(s EVStats, a agg, eps float64) bool {
	if s.Count != a.count || s.WinCount != a.winCount || s.LossCount != a.lossCount {
		return false
	}
	wantP := float64(a.winCount) / float64(a.count)
	wantF := a.sumCost / float64(a.count)
	var wantR, wantL float64
	if a.winCount > 0 {
		wantR = a.sumWinR / float64(a.winCount)
	}
	if a.lossCount > 0 {
		wantL = a.sumLossL / float64(a.lossCount)
	}
	if !approx(s.WinRate, wantP, eps) || !approx(s.AvgCost, wantF, eps) || !approx(s.AvgProfit, wantR, eps) || !approx(s.AvgLoss, wantL, eps) {
		return false
	}
	wantEV := wantP*(wantR-wantF) + (1-wantP)*(-wantL-wantF)
	if !approx(s.EV, wantEV, eps) {
		return false
	}
	wantPReq := 1.0
	if den := wantR + wantL; den > 0 {
		wantPReq = (wantL + wantF) / den
	}
	return approx(s.PRequired, wantPReq, eps)
}

func TestCalculator_RollingStats_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("Stats 与手工聚合一致（window>=n）", prop.ForAll(
		func(grosses []float64, costs []float64) bool {
			c := NewCalculator(len(grosses) + 10)
			for i := range grosses {
				c.Add(&model.Trade{GrossPnL: grosses[i], Costs: costs[i], NetPnL: grosses[i] - costs[i]})
			}
			return matches(c.Stats(), aggregate(grosses, costs), 1e-9)
		},
		gen.SliceOfN(20, gen.Float64Range(-5000, 5000)),
		gen.SliceOfN(20, gen.Float64Range(0, 1000)),
	))

	properties.Property("窗口只保留最近 window 笔", prop.ForAll(
		func(grosses []float64, costs []float64, window int) bool {
			c := NewCalculator(window)
			for i := range grosses {
				c.Add(&model.Trade{GrossPnL: grosses[i], Costs: costs[i], NetPnL: grosses[i] - costs[i]})
			}
			start := len(grosses) - window
			return matches(c.Stats(), aggregate(grosses[start:], costs[start:]), 1e-6)
		},
		gen.SliceOfN(30, gen.Float64Range(-5000, 5000)),
		gen.SliceOfN(30, gen.Float64Range(0, 1000)),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

func approx(a float64, b float64, eps float64) bool {
	return math.Abs(a-b) <= eps
}
