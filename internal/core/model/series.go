// Package model 定义回测系统共享的核心数据结构。
// 包括价格序列、候选交易对、协整检验结果、信号、仓位、成交记录和权益曲线。
package model

import (
	"fmt"
	"strings"
	"time"
)

// PricePoint 单个 (时间戳, 价格) 观测
type PricePoint struct {
	// Time K 线时间戳
	Time time.Time
	// Price 收盘价
	Price float64
}

// PriceSeries 单一标的的有序价格序列
// 时间戳严格递增，构造后视为不可变。
type PriceSeries struct {
	// Symbol 标准化后的标的代码，如 AAPL
	Symbol string
	// Points 按时间排序的观测值
	Points []PricePoint
}

// NewPriceSeries 创建价格序列
// 校验时间戳严格递增、价格为正。
func NewPriceSeries(symbol string, points []PricePoint) (PriceSeries, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return PriceSeries{}, fmt.Errorf("价格序列缺少 symbol")
	}
	for i, p := range points {
		if !(p.Price > 0) {
			return PriceSeries{}, fmt.Errorf("%s 第 %d 个价格非正: %v", symbol, i, p.Price)
		}
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return PriceSeries{}, fmt.Errorf("%w: %s 时间戳在第 %d 个位置未严格递增", ErrMisalignedSeries, symbol, i)
		}
	}
	cp := make([]PricePoint, len(points))
	copy(cp, points)
	return PriceSeries{Symbol: symbol, Points: cp}, nil
}

// Len 观测数量
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Prices 返回价格列（新切片）
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Times 返回时间戳列（新切片）
func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// PairCandidate 候选交易对：两条已对齐的价格序列
// A 为对冲回归的因变量，B 为自变量。
type PairCandidate struct {
	// A 第一条腿
	A PriceSeries
	// B 第二条腿
	B PriceSeries
}

// NewPairCandidate 创建候选交易对
// 要求两条序列长度相同且每个位置的时间戳一致。
func NewPairCandidate(a, b PriceSeries) (PairCandidate, error) {
	if a.Len() != b.Len() {
		return PairCandidate{}, fmt.Errorf("%w: %s 有 %d 根，%s 有 %d 根", ErrMisalignedSeries, a.Symbol, a.Len(), b.Symbol, b.Len())
	}
	for i := range a.Points {
		if !a.Points[i].Time.Equal(b.Points[i].Time) {
			return PairCandidate{}, fmt.Errorf("%w: %s/%s 在第 %d 个位置时间戳不同", ErrMisalignedSeries, a.Symbol, b.Symbol, i)
		}
	}
	return PairCandidate{A: a, B: b}, nil
}

// Name 交易对名称，如 KO/PEP
func (c PairCandidate) Name() string {
	return c.A.Symbol + "/" + c.B.Symbol
}

// Len 对齐后的 K 线数量
func (c PairCandidate) Len() int {
	return c.A.Len()
}

// NormalizeSymbol 将用户输入的标的代码标准化
// 去掉分隔符并转大写：brk-b -> BRKB，eur/usd -> EURUSD
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return strings.ToUpper(s)
}
