// Package store 维护已加载的价格序列，并按时间戳交集对齐生成候选交易对。
// 使用单写者模式：加载阶段写入，之后只读。
package store

import (
	"fmt"
	"sort"

	"pair-trading-backtester/internal/core/model"
)

// PairKey 交易对标识，A 为对冲回归的因变量
type PairKey struct {
	A string
	B string
}

// Store 价格序列缓存（单写者）
// 注意：Put 只应在加载阶段由单 goroutine 调用；加载完成后可被多个 goroutine 并发读取。
type Store struct {
	// series 按标准化 symbol 缓存价格序列
	series map[string]model.PriceSeries
}

// New 创建新的价格序列缓存
func New() *Store {
	return &Store{
		series: make(map[string]model.PriceSeries),
	}
}

// Put 写入价格序列，同名 symbol 覆盖旧值
// 参数 ps: 已通过 NewPriceSeries 校验的序列
func (s *Store) Put(ps model.PriceSeries) {
	if ps.Symbol == "" {
		return
	}
	s.series[ps.Symbol] = ps
}

// Get 获取指定 symbol 的价格序列
func (s *Store) Get(symbol string) (model.PriceSeries, bool) {
	ps, ok := s.series[model.NormalizeSymbol(symbol)]
	return ps, ok
}

// Symbols 按字典序返回全部 symbol
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len 序列数量
func (s *Store) Len() int {
	return len(s.series)
}

// Pair 按时间戳交集对齐两条序列
// 只保留两边都存在的时间戳，顺序保持递增。
func (s *Store) Pair(a, b string) (model.PairCandidate, error) {
	sa, ok := s.Get(a)
	if !ok {
		return model.PairCandidate{}, fmt.Errorf("未知标的: %s", a)
	}
	sb, ok := s.Get(b)
	if !ok {
		return model.PairCandidate{}, fmt.Errorf("未知标的: %s", b)
	}
	if sa.Symbol == sb.Symbol {
		return model.PairCandidate{}, fmt.Errorf("交易对两腿相同: %s", sa.Symbol)
	}

	pa, pb := intersect(sa.Points, sb.Points)
	return model.PairCandidate{
		A: model.PriceSeries{Symbol: sa.Symbol, Points: pa},
		B: model.PriceSeries{Symbol: sb.Symbol, Points: pb},
	}, nil
}

// intersect 双指针归并两条递增序列的公共时间戳
func intersect(a, b []model.PricePoint) (outA, outB []model.PricePoint) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	outA = make([]model.PricePoint, 0, n)
	outB = make([]model.PricePoint, 0, n)

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ta, tb := a[i].Time, b[j].Time
		switch {
		case ta.Equal(tb):
			outA = append(outA, a[i])
			outB = append(outB, b[j])
			i++
			j++
		case ta.Before(tb):
			i++
		default:
			j++
		}
	}
	return outA, outB
}

// Candidates 生成候选交易对
// 参数 pairs: 显式指定的交易对；为空时枚举全部 symbol 的两两组合（字典序靠前者为 A）
func (s *Store) Candidates(pairs []PairKey) ([]model.PairCandidate, error) {
	if len(pairs) == 0 {
		syms := s.Symbols()
		for i := 0; i < len(syms); i++ {
			for j := i + 1; j < len(syms); j++ {
				pairs = append(pairs, PairKey{A: syms[i], B: syms[j]})
			}
		}
	}

	out := make([]model.PairCandidate, 0, len(pairs))
	for _, k := range pairs {
		c, err := s.Pair(k.A, k.B)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
