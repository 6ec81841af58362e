// Package jsonl 输出模块测试
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pair-trading-backtester/internal/core/model"
)

func TestTradeRecord_OutputCompleteness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("trades JSON 必含必需字段", prop.ForAll(
		func(entryPx, exitPx float64, entry, hold int, side string) bool {
			tr := &model.Trade{
				Side:       model.PositionState(side),
				EntryIndex: entry,
				ExitIndex:  entry + hold,
				EntryPxA:   entryPx,
				ExitPxA:    exitPx,
				SharesA:    10,
				SharesB:    -5,
				GrossPnL:   1,
				Costs:      0.5,
				NetPnL:     0.5,
				ExitReason: model.ExitSignal,
			}

			b, err := json.Marshal(NewTradeRecord("KO/PEP", tr))
			if err != nil {
				return false
			}

			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				return false
			}

			required := []string{
				"pair",
				"side",
				"entry_time",
				"exit_time",
				"holding_bars",
				"shares_a",
				"shares_b",
				"entry_px_a",
				"exit_px_a",
				"gross_pnl",
				"costs",
				"net_pnl",
				"exit_reason",
			}
			for _, k := range required {
				if _, ok := m[k]; !ok {
					return false
				}
			}
			return m["holding_bars"].(float64) == float64(hold)
		},
		gen.Float64Range(1, 2000),
		gen.Float64Range(1, 2000),
		gen.IntRange(0, 1000),
		gen.IntRange(1, 100),
		gen.OneConstOf("LONG_SPREAD", "SHORT_SPREAD"),
	))

	properties.TestingRun(t)
}

func TestMetricsRecord_NonFiniteAsNull(t *testing.T) {
	res := &model.BacktestResult{Pair: "KO/PEP", InitialCapital: 100}
	cr := model.CointegrationResult{TestStatistic: math.Inf(-1), HalfLife: math.Inf(1), Degenerate: true, IsCointegrated: true}
	m := model.PerformanceMetrics{Sharpe: 0, SharpeDefined: false}

	b, err := json.Marshal(NewMetricsRecord(res, cr, m))
	if err != nil {
		t.Fatalf("Marshal err=%v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal err=%v", err)
	}
	for _, k := range []string{"adf_stat", "half_life", "sharpe", "sortino", "calmar", "profit_factor"} {
		v, ok := out[k]
		if !ok || v != nil {
			t.Fatalf("%s=%v, want null", k, v)
		}
	}
	if out["final_equity"].(float64) != 100 {
		t.Fatalf("final_equity=%v, want 100", out["final_equity"])
	}
	if _, ok := out["critical_values"].(map[string]any)["5%"]; !ok {
		t.Fatalf("critical_values 缺少 5%%")
	}
}

func TestSignalRecord_Fields(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r := NewSignalRecord("KO/PEP", model.Signal{
		Index: 3, Time: ts, Type: model.SignalEnterShort, Z: 2.1, Spread: 0.4, State: model.StateShortSpread,
	})
	if r.TsMs != ts.UnixMilli() || r.Time != "2024-01-02T00:00:00Z" {
		t.Fatalf("TsMs=%d Time=%s", r.TsMs, r.Time)
	}
	if r.Signal != "ENTER_SHORT_SPREAD" || r.State != "SHORT_SPREAD" || *r.Z != 2.1 {
		t.Fatalf("r=%+v", r)
	}
}

func TestWriter_WriteAndClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "test.jsonl")

	w, err := NewWriter(path, 100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := w.Write(NewEquityRecord("A/B", model.EquityPoint{Index: i, Equity: 100})); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// 编码失败的记录被丢弃，不影响后续写入
	if err := w.Write(math.NaN()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Written() != 10 || w.Dropped() != 1 {
		t.Fatalf("Written=%d Dropped=%d, want 10/1", w.Written(), w.Dropped())
	}
	if err := w.Write(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后写入 err=%v, want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("重复 Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var rec EquityRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if rec.Index != lines {
			t.Fatalf("Index=%d, want %d", rec.Index, lines)
		}
		lines++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if lines != 10 {
		t.Fatalf("lines=%d, want 10", lines)
	}
}

func TestWriter_TruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	if err := os.WriteFile(path, []byte("old\nold\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w, err := NewWriter(path, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = w.Write(map[string]int{"a": 1})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	_ = w.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("content=%q", string(b))
	}
}

// TestWriter_FlushWritesQueued Flush 返回时之前投递的记录已在文件中
func TestWriter_FlushWritesQueued(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.jsonl")
	w, err := NewWriter(path, 64)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	for i := 0; i < 50; i++ {
		if err := w.Write(map[string]int{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n := strings.Count(string(b), "\n"); n != 50 || w.Written() != 50 {
		t.Fatalf("lines=%d Written=%d, want 50", n, w.Written())
	}
}
