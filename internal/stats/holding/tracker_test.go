// Package holding 持仓周期追踪器测试
package holding

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pair-trading-backtester/internal/core/model"
)

func trade(side model.PositionState, entry, exit int) *model.Trade {
	return &model.Trade{Side: side, EntryIndex: entry, ExitIndex: exit}
}

func TestTracker_Empty(t *testing.T) {
	tr := NewTracker(10)
	s := tr.Stats("")
	if s.Count != 0 || s.P50 != 0 || s.Max != 0 {
		t.Fatalf("Stats=%+v, want zeros", s)
	}
}

func TestTracker_SideSplit(t *testing.T) {
	tr := NewTracker(100)
	tr.Add(trade(model.StateLongSpread, 0, 4))
	tr.Add(trade(model.StateLongSpread, 10, 12))
	tr.Add(trade(model.StateShortSpread, 20, 40))
	tr.Add(nil)

	all := tr.Stats("")
	if all.Count != 3 || all.Max != 20 || all.P50 != 4 {
		t.Fatalf("all=%+v, want Count=3 Max=20 P50=4", all)
	}
	long := tr.Stats(model.StateLongSpread)
	if long.Count != 2 || long.Max != 4 || long.P50 != 2 {
		t.Fatalf("long=%+v, want Count=2 Max=4 P50=2", long)
	}
	short := tr.Stats(model.StateShortSpread)
	if short.Count != 1 || short.P50 != 20 || short.Side != model.StateShortSpread {
		t.Fatalf("short=%+v", short)
	}
}

func TestTracker_RollingWindowEvicts(t *testing.T) {
	tr := NewTracker(2)
	tr.Add(trade(model.StateLongSpread, 0, 100))
	tr.Add(trade(model.StateLongSpread, 0, 1))
	tr.Add(trade(model.StateLongSpread, 0, 2))

	s := tr.Stats("")
	if s.Count != 3 {
		t.Fatalf("Count=%d, want 3 (累计)", s.Count)
	}
	if s.Max != 2 {
		t.Fatalf("Max=%v, want 2 after eviction", s.Max)
	}
}

func TestTracker_Quantiles_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("分位数有序且等于排序后下标", prop.ForAll(
		func(bars []int) bool {
			tr := NewTracker(len(bars) + 1)
			for _, b := range bars {
				tr.Add(trade(model.StateShortSpread, 0, b))
			}
			s := tr.Stats(model.StateShortSpread)

			sorted := append([]int(nil), bars...)
			sort.Ints(sorted)
			n := len(sorted)
			if s.P50 != float64(sorted[int(float64(n-1)*0.5)]) {
				return false
			}
			if s.P90 != float64(sorted[int(float64(n-1)*0.9)]) {
				return false
			}
			return s.P50 <= s.P90 && s.P90 <= s.Max && s.Max == float64(sorted[n-1])
		},
		gen.SliceOfN(25, gen.IntRange(0, 500)),
	))

	properties.TestingRun(t)
}
