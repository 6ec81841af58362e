package pricedata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/util/timeutil"
)

// PriceRecord Parquet 存储格式
type PriceRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close     float64 `parquet:"close"`
}

// LoadParquet 从 Parquet 文件加载价格序列
// 文件可包含多个标的，只保留 symbol 匹配的行；symbol 列为空的行视为匹配。
func LoadParquet(path, symbol string) (model.PriceSeries, error) {
	rows, err := parquet.ReadFile[PriceRecord](path)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("读取 parquet 文件失败: %w", err)
	}

	want := model.NormalizeSymbol(symbol)
	points := make([]model.PricePoint, 0, len(rows))
	for _, r := range rows {
		if r.Symbol != "" && model.NormalizeSymbol(r.Symbol) != want {
			continue
		}
		points = append(points, model.PricePoint{Time: timeutil.MsToTime(r.Timestamp), Price: r.Close})
	}
	return build(symbol, points)
}

// WriteParquet 将价格序列写入 Parquet 文件，必要时创建目录
func WriteParquet(path string, s model.PriceSeries) error {
	records := make([]PriceRecord, len(s.Points))
	for i, p := range s.Points {
		records[i] = PriceRecord{
			Symbol:    s.Symbol,
			Timestamp: timeutil.TimeToMs(p.Time),
			Close:     p.Price,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	return parquet.WriteFile(path, records)
}

// Load 按扩展名选择加载方式：.csv 或 .parquet
func Load(path, symbol string) (model.PriceSeries, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, symbol)
	case ".parquet", ".pq":
		return LoadParquet(path, symbol)
	default:
		return model.PriceSeries{}, fmt.Errorf("不支持的行情文件格式: %s", path)
	}
}

// Source 一个待加载的行情文件
type Source struct {
	Symbol string
	Path   string
}

// LoadAll 并发加载多个行情文件，结果顺序与输入一致
// 任一文件失败时返回第一个错误。
func LoadAll(ctx context.Context, sources []Source, workers int) ([]model.PriceSeries, error) {
	out := make([]model.PriceSeries, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := Load(src.Path, src.Symbol)
			if err != nil {
				return fmt.Errorf("加载 %s 失败: %w", src.Symbol, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
