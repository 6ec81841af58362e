// Package signal 信号引擎测试
package signal

import (
	"errors"
	"math"
	"testing"
	"time"

	"pair-trading-backtester/internal/core/model"
)

func stepAll(t *testing.T, p Params, zs []float64) []model.SignalType {
	t.Helper()
	m, err := NewMachine(p)
	if err != nil {
		t.Fatalf("NewMachine() error: %v", err)
	}
	out := make([]model.SignalType, len(zs))
	for i, z := range zs {
		out[i] = m.Step(z)
	}
	return out
}

func assertTypes(t *testing.T, got, want []model.SignalType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("signal[%d]=%s, want %s (all=%v)", i, got[i], want[i], got)
		}
	}
}

func TestMachine_StopLossOverridesExit(t *testing.T) {
	// z 从入场后单调发散越过止损阈值
	got := stepAll(t, DefaultParams(), []float64{0, 2.1, 2.4, 3.0, 3.6})
	assertTypes(t, got, []model.SignalType{
		model.SignalHold,
		model.SignalEnterShort,
		model.SignalHold,
		model.SignalHold,
		model.SignalStopLoss,
	})
}

func TestMachine_LongRoundTrip(t *testing.T) {
	got := stepAll(t, DefaultParams(), []float64{-1, -2.5, -1.0, -0.4, 0.3})
	assertTypes(t, got, []model.SignalType{
		model.SignalHold,
		model.SignalEnterLong,
		model.SignalHold,
		model.SignalExit,
		model.SignalHold,
	})
}

func TestMachine_ShortExitOnRecross(t *testing.T) {
	got := stepAll(t, DefaultParams(), []float64{2.0, 1.2, 0.5})
	assertTypes(t, got, []model.SignalType{
		model.SignalEnterShort,
		model.SignalHold,
		model.SignalExit,
	})
}

func TestMachine_NoEntryBeyondStop(t *testing.T) {
	got := stepAll(t, DefaultParams(), []float64{4.0, -3.5, 3.4})
	assertTypes(t, got, []model.SignalType{
		model.SignalHold,
		model.SignalHold,
		model.SignalEnterShort,
	})
}

func TestMachine_StopOnOppositeSide(t *testing.T) {
	// 多价差时 z 直接跳到 +stop 以上，仍按止损处理
	got := stepAll(t, DefaultParams(), []float64{-2.2, 3.7})
	assertTypes(t, got, []model.SignalType{
		model.SignalEnterLong,
		model.SignalStopLoss,
	})
}

func TestMachine_Cooldown(t *testing.T) {
	p := DefaultParams()
	p.CooldownBars = 2
	got := stepAll(t, p, []float64{2.1, 3.6, 2.5, 2.5, 2.5})
	assertTypes(t, got, []model.SignalType{
		model.SignalEnterShort,
		model.SignalStopLoss,
		model.SignalHold,
		model.SignalHold,
		model.SignalEnterShort,
	})

	// 正常平仓不触发冷却
	got = stepAll(t, p, []float64{2.1, 0.2, 2.1})
	assertTypes(t, got, []model.SignalType{
		model.SignalEnterShort,
		model.SignalExit,
		model.SignalEnterShort,
	})
}

func TestNewEngine_InvalidThresholds(t *testing.T) {
	cases := []Params{
		{ZWindow: 20, EntryZ: 0.5, ExitZ: 0.5, StopZ: 3.5},
		{ZWindow: 20, EntryZ: 0.4, ExitZ: 0.5, StopZ: 3.5},
		{ZWindow: 20, EntryZ: 3.5, ExitZ: 0.5, StopZ: 3.5},
		{ZWindow: 20, EntryZ: 4.0, ExitZ: 0.5, StopZ: 3.5},
		{ZWindow: 20, EntryZ: 2.0, ExitZ: -0.5, StopZ: 3.5},
		{ZWindow: 1, EntryZ: 2.0, ExitZ: 0.5, StopZ: 3.5},
		{ZWindow: 20, EntryZ: math.NaN(), ExitZ: 0.5, StopZ: 3.5},
	}
	for i, p := range cases {
		if _, err := NewEngine(p); !errors.Is(err, model.ErrInvalidThreshold) {
			t.Fatalf("case %d: err=%v, want ErrInvalidThreshold", i, err)
		}
	}
	if _, err := NewEngine(DefaultParams()); err != nil {
		t.Fatalf("DefaultParams: err=%v", err)
	}
}

func TestRollingZ(t *testing.T) {
	points := RollingZ([]float64{1, 2, 3, 4, 10}, 3)
	if points[0].Ready || points[1].Ready {
		t.Fatalf("窗口未满时 Ready 应为 false")
	}
	if !points[2].Ready || math.Abs(points[2].Mean-2) > 1e-12 || math.Abs(points[2].Std-1) > 1e-12 {
		t.Fatalf("points[2]=%+v, want mean 2 std 1", points[2])
	}
	if math.Abs(points[2].Z-1) > 1e-12 {
		t.Fatalf("points[2].Z=%v, want 1", points[2].Z)
	}
	mean := 17.0 / 3
	std := math.Sqrt(((3-mean)*(3-mean) + (4-mean)*(4-mean) + (10-mean)*(10-mean)) / 2)
	if math.Abs(points[4].Z-(10-mean)/std) > 1e-9 {
		t.Fatalf("points[4].Z=%v, want %v", points[4].Z, (10-mean)/std)
	}
}

func TestRollingZ_ConstantSpread(t *testing.T) {
	spread := make([]float64, 30)
	for i := range spread {
		spread[i] = 7
	}
	for i, p := range RollingZ(spread, 10) {
		if p.Z != 0 {
			t.Fatalf("Z[%d]=%v, want 0", i, p.Z)
		}
	}
}

func TestGenerateFromSpread_WarmupIsHold(t *testing.T) {
	e, err := NewEngine(Params{ZWindow: 5, EntryZ: 1.0, ExitZ: 0.2, StopZ: 10})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	spread := []float64{0, 100, -100, 100, 0, 0, 0, 0, 50}
	ts := make([]time.Time, len(spread))
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range ts {
		ts[i] = base.AddDate(0, 0, i)
	}

	signals, points, err := e.GenerateFromSpread(ts, spread)
	if err != nil {
		t.Fatalf("GenerateFromSpread() error: %v", err)
	}
	if len(signals) != len(spread) || len(points) != len(spread) {
		t.Fatalf("len(signals)=%d len(points)=%d, want %d", len(signals), len(points), len(spread))
	}
	for i := 0; i < 4; i++ {
		if signals[i].Type != model.SignalHold {
			t.Fatalf("warmup signal[%d]=%s, want HOLD", i, signals[i].Type)
		}
	}
	for i, s := range signals {
		if s.Index != i || !s.Time.Equal(ts[i]) {
			t.Fatalf("signal[%d] Index=%d Time=%v", i, s.Index, s.Time)
		}
	}
	// 最后一根 z = (50-10)/sqrt(500) ≈ 1.79 > 1.0
	if signals[8].Type != model.SignalEnterShort {
		t.Fatalf("signal[8]=%s (z=%v), want ENTER_SHORT_SPREAD", signals[8].Type, signals[8].Z)
	}
	if signals[8].State != model.StateShortSpread {
		t.Fatalf("State=%s, want SHORT_SPREAD", signals[8].State)
	}
	if err := CheckSequence(signals); err != nil {
		t.Fatalf("CheckSequence() error: %v", err)
	}
}

func TestGenerateFromSpread_LengthMismatch(t *testing.T) {
	e, _ := NewEngine(DefaultParams())
	_, _, err := e.GenerateFromSpread(make([]time.Time, 3), make([]float64, 4))
	if !errors.Is(err, model.ErrSeriesLengthMismatch) {
		t.Fatalf("err=%v, want ErrSeriesLengthMismatch", err)
	}
}

func TestGenerate_SpreadLengthMismatch(t *testing.T) {
	e, _ := NewEngine(DefaultParams())
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := []model.PricePoint{{Time: base, Price: 1}, {Time: base.Add(time.Hour), Price: 2}}
	a, _ := model.NewPriceSeries("A", pts)
	b, _ := model.NewPriceSeries("B", pts)
	c, err := model.NewPairCandidate(a, b)
	if err != nil {
		t.Fatalf("NewPairCandidate() error: %v", err)
	}
	_, _, err = e.Generate(c, model.CointegrationResult{Spread: []float64{0}})
	if !errors.Is(err, model.ErrSeriesLengthMismatch) {
		t.Fatalf("err=%v, want ErrSeriesLengthMismatch", err)
	}
}

func TestCheckSequence(t *testing.T) {
	sig := func(types ...model.SignalType) []model.Signal {
		out := make([]model.Signal, len(types))
		for i, typ := range types {
			out[i] = model.Signal{Index: i, Type: typ}
		}
		return out
	}

	if err := CheckSequence(sig(model.SignalHold, model.SignalEnterLong, model.SignalExit, model.SignalEnterShort, model.SignalStopLoss)); err != nil {
		t.Fatalf("合法序列返回错误: %v", err)
	}
	if err := CheckSequence(sig(model.SignalEnterLong, model.SignalEnterShort)); !errors.Is(err, model.ErrInvalidSignalSequence) {
		t.Fatalf("连续入场: err=%v", err)
	}
	if err := CheckSequence(sig(model.SignalHold, model.SignalExit)); !errors.Is(err, model.ErrInvalidSignalSequence) {
		t.Fatalf("空仓平仓: err=%v", err)
	}
	if err := CheckSequence(sig(model.SignalStopLoss)); !errors.Is(err, model.ErrInvalidSignalSequence) {
		t.Fatalf("空仓止损: err=%v", err)
	}
}
