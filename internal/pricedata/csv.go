// Package pricedata 从本地 CSV 或 Parquet 文件加载价格序列。
// 只读取时间列和收盘价列，不做复权等预处理。
package pricedata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/util/timeutil"
)

// timeColumns 时间列候选名（小写）
var timeColumns = []string{"date", "timestamp", "time", "datetime"}

// priceColumns 价格列候选名（小写），靠前者优先
var priceColumns = []string{"adj close", "adj_close", "adjclose", "close", "price"}

// LoadCSV 从 CSV 文件加载价格序列
// 参数 path: 文件路径
// 参数 symbol: 标的代码
func LoadCSV(path, symbol string) (model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("打开行情文件失败: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, symbol)
}

// ReadCSV 解析带表头的 CSV
// 价格为空或 NaN 的行被跳过；行按时间排序，重复时间戳返回 ErrMisalignedSeries。
func ReadCSV(r io.Reader, symbol string) (model.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("读取 %s 表头失败: %w", symbol, err)
	}
	ti, pi, err := locateColumns(header)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("%s: %w", symbol, err)
	}

	var points []model.PricePoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("%s 第 %d 行解析失败: %w", symbol, line, err)
		}
		if ti >= len(rec) || pi >= len(rec) {
			return model.PriceSeries{}, fmt.Errorf("%s 第 %d 行列数不足", symbol, line)
		}

		raw := strings.TrimSpace(rec[pi])
		if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "null") {
			continue
		}
		px, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("%s 第 %d 行价格非法: %w", symbol, line, err)
		}
		if math.IsNaN(px) {
			continue
		}
		ts, err := timeutil.ParseTimestamp(rec[ti])
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("%s 第 %d 行: %w", symbol, line, err)
		}
		points = append(points, model.PricePoint{Time: ts, Price: px})
	}

	return build(symbol, points)
}

// locateColumns 根据表头定位时间列与价格列
func locateColumns(header []string) (timeIdx, priceIdx int, err error) {
	names := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := names[h]; !ok {
			names[h] = i
		}
	}

	timeIdx, priceIdx = -1, -1
	for _, c := range timeColumns {
		if i, ok := names[c]; ok {
			timeIdx = i
			break
		}
	}
	for _, c := range priceColumns {
		if i, ok := names[c]; ok {
			priceIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return 0, 0, fmt.Errorf("缺少时间列（%s）", strings.Join(timeColumns, "/"))
	}
	if priceIdx < 0 {
		return 0, 0, fmt.Errorf("缺少价格列（%s）", strings.Join(priceColumns, "/"))
	}
	return timeIdx, priceIdx, nil
}

// build 按时间排序后构造 PriceSeries
func build(symbol string, points []model.PricePoint) (model.PriceSeries, error) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	for i := 1; i < len(points); i++ {
		if points[i].Time.Equal(points[i-1].Time) {
			return model.PriceSeries{}, fmt.Errorf("%w: %s 时间戳重复 %s", model.ErrMisalignedSeries, symbol, points[i].Time.Format("2006-01-02"))
		}
	}
	return model.NewPriceSeries(symbol, points)
}
