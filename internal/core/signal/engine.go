// Package signal 将价差序列转换为仓位意图信号。
// 使用滚动 z-score 驱动 FLAT / LONG_SPREAD / SHORT_SPREAD 三态状态机。
package signal

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"pair-trading-backtester/internal/core/model"
)

// stdEpsilon 窗口标准差低于此值时 z 记为 0
const stdEpsilon = 1e-9

// Params 信号参数，构造后不可变
type Params struct {
	// ZWindow 滚动窗口长度（含当前 K 线）
	ZWindow int
	// EntryZ 入场阈值
	EntryZ float64
	// ExitZ 平仓阈值
	ExitZ float64
	// StopZ 止损阈值
	StopZ float64
	// CooldownBars 止损后禁止入场的 K 线数
	CooldownBars int
}

// DefaultParams 默认参数：窗口 20，入场 2.0，平仓 0.5，止损 3.5
func DefaultParams() Params {
	return Params{
		ZWindow: 20,
		EntryZ:  2.0,
		ExitZ:   0.5,
		StopZ:   3.5,
	}
}

// Validate 检查阈值顺序 0 <= exitZ < entryZ < stopZ 与窗口长度
func (p Params) Validate() error {
	if p.ZWindow < 2 {
		return fmt.Errorf("%w: z_window=%d 至少为 2", model.ErrInvalidThreshold, p.ZWindow)
	}
	if p.CooldownBars < 0 {
		return fmt.Errorf("%w: cooldown_bars=%d 不能为负数", model.ErrInvalidThreshold, p.CooldownBars)
	}
	for _, v := range []float64{p.EntryZ, p.ExitZ, p.StopZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: 阈值必须为有限数", model.ErrInvalidThreshold)
		}
	}
	if p.ExitZ < 0 || !(p.ExitZ < p.EntryZ && p.EntryZ < p.StopZ) {
		return fmt.Errorf("%w: 需要 0 <= exit_z < entry_z < stop_z，当前 %v / %v / %v",
			model.ErrInvalidThreshold, p.ExitZ, p.EntryZ, p.StopZ)
	}
	return nil
}

// Machine 仓位意图状态机
// 只由 z-score 序列驱动，不持有价格。
type Machine struct {
	p Params

	// state 当前仓位意图
	state model.PositionState
	// cooldown 剩余冷却 K 线数
	cooldown int
}

// NewMachine 创建状态机，阈值非法时返回 ErrInvalidThreshold
func NewMachine(p Params) (*Machine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Machine{p: p, state: model.StateFlat}, nil
}

// State 当前仓位意图
func (m *Machine) State() model.PositionState {
	return m.state
}

// Reset 回到 FLAT 并清除冷却
func (m *Machine) Reset() {
	m.state = model.StateFlat
	m.cooldown = 0
}

// Step 输入一个可交易的 z-score，返回本根 K 线的信号
//
// 非空仓时止损优先于平仓；空仓时 |z| 已达止损阈值不入场。
func (m *Machine) Step(z float64) model.SignalType {
	switch m.state {
	case model.StateLongSpread:
		if math.Abs(z) >= m.p.StopZ {
			return m.stop()
		}
		if z >= -m.p.ExitZ {
			m.state = model.StateFlat
			return model.SignalExit
		}
		return model.SignalHold

	case model.StateShortSpread:
		if math.Abs(z) >= m.p.StopZ {
			return m.stop()
		}
		if z <= m.p.ExitZ {
			m.state = model.StateFlat
			return model.SignalExit
		}
		return model.SignalHold

	default:
		if m.cooldown > 0 {
			m.cooldown--
			return model.SignalHold
		}
		if math.Abs(z) >= m.p.StopZ {
			return model.SignalHold
		}
		if z <= -m.p.EntryZ {
			m.state = model.StateLongSpread
			return model.SignalEnterLong
		}
		if z >= m.p.EntryZ {
			m.state = model.StateShortSpread
			return model.SignalEnterShort
		}
		return model.SignalHold
	}
}

func (m *Machine) stop() model.SignalType {
	m.state = model.StateFlat
	m.cooldown = m.p.CooldownBars
	return model.SignalStopLoss
}

// Engine 信号生成器
// 无共享可变状态，每次 Generate 使用独立的状态机，可并发调用。
type Engine struct {
	p Params
}

// NewEngine 创建信号生成器
// 参数 p: 信号参数，阈值非法时返回 ErrInvalidThreshold
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{p: p}, nil
}

// Params 返回构造时的参数
func (e *Engine) Params() Params {
	return e.p
}

// Generate 基于候选交易对的时间戳与协整结果的价差生成信号
func (e *Engine) Generate(c model.PairCandidate, res model.CointegrationResult) ([]model.Signal, []model.SpreadPoint, error) {
	if len(res.Spread) != c.Len() {
		return nil, nil, fmt.Errorf("%w: 价差 %d 根，%s 有 %d 根",
			model.ErrSeriesLengthMismatch, len(res.Spread), c.Name(), c.Len())
	}
	return e.GenerateFromSpread(c.A.Times(), res.Spread)
}

// GenerateFromSpread 为每根 K 线输出一个信号
// ts 可为 nil，此时信号时间为零值。
func (e *Engine) GenerateFromSpread(ts []time.Time, spread []float64) ([]model.Signal, []model.SpreadPoint, error) {
	if ts != nil && len(ts) != len(spread) {
		return nil, nil, fmt.Errorf("%w: 时间戳 %d 个，价差 %d 个", model.ErrSeriesLengthMismatch, len(ts), len(spread))
	}

	points := RollingZ(spread, e.p.ZWindow)
	m := &Machine{p: e.p, state: model.StateFlat}

	signals := make([]model.Signal, len(spread))
	for i := range spread {
		if ts != nil {
			points[i].Time = ts[i]
		}
		typ := model.SignalHold
		if points[i].Ready {
			typ = m.Step(points[i].Z)
		}
		signals[i] = model.Signal{
			Index:  i,
			Time:   points[i].Time,
			Type:   typ,
			Z:      points[i].Z,
			Spread: spread[i],
			State:  m.State(),
		}
	}
	return signals, points, nil
}

// RollingZ 计算包含当前 K 线的 window 长度滚动均值、样本标准差和 z-score
// 窗口未填满前 Ready 为 false，Z 为 0。
func RollingZ(spread []float64, window int) []model.SpreadPoint {
	points := make([]model.SpreadPoint, len(spread))
	for i, v := range spread {
		points[i].Value = v
		if window < 2 || i+1 < window {
			continue
		}
		mean, std := stat.MeanStdDev(spread[i+1-window:i+1], nil)
		points[i].Mean = mean
		points[i].Std = std
		points[i].Ready = true
		if std >= stdEpsilon {
			points[i].Z = (v - mean) / std
		}
	}
	return points
}

// CheckSequence 回放信号并校验状态转换
// 入场只能发生在 FLAT，平仓与止损只能发生在持仓时。
func CheckSequence(signals []model.Signal) error {
	state := model.StateFlat
	for i, s := range signals {
		switch {
		case s.Type.IsEntry():
			if state != model.StateFlat {
				return fmt.Errorf("%w: 第 %d 根在 %s 状态下收到 %s", model.ErrInvalidSignalSequence, i, state, s.Type)
			}
			if s.Type == model.SignalEnterLong {
				state = model.StateLongSpread
			} else {
				state = model.StateShortSpread
			}
		case s.Type.IsExit():
			if state == model.StateFlat {
				return fmt.Errorf("%w: 第 %d 根在 FLAT 状态下收到 %s", model.ErrInvalidSignalSequence, i, s.Type)
			}
			state = model.StateFlat
		}
	}
	return nil
}
