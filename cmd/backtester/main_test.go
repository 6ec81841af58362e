// Package main 回测流程测试
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"pair-trading-backtester/internal/config"
	"pair-trading-backtester/internal/output/runstore"
)

// writeFixtures 写出 X（随机游走）、Y = 2X + 10 + AR(1) 噪声、Z（独立随机游走）三个 CSV
func writeFixtures(t *testing.T, dir string, n int) []config.FileConfig {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	t0 := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

	var bx, by, bz strings.Builder
	for _, b := range []*strings.Builder{&bx, &by, &bz} {
		b.WriteString("Date,Close\n")
	}
	x, z, noise := 50.0, 80.0, 0.0
	for i := 0; i < n; i++ {
		x += rng.NormFloat64() * 0.5
		z += rng.NormFloat64() * 0.5
		noise = 0.3*noise + rng.NormFloat64()*0.5
		day := t0.AddDate(0, 0, i).Format("2006-01-02")
		fmt.Fprintf(&bx, "%s,%.6f\n", day, x)
		fmt.Fprintf(&by, "%s,%.6f\n", day, 2*x+10+noise)
		fmt.Fprintf(&bz, "%s,%.6f\n", day, z)
	}

	var files []config.FileConfig
	for sym, b := range map[string]*strings.Builder{"X": &bx, "Y": &by, "Z": &bz} {
		p := filepath.Join(dir, strings.ToLower(sym)+".csv")
		if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("写入 %s 失败: %v", p, err)
		}
		files = append(files, config.FileConfig{Symbol: sym, Path: p})
	}
	return files
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.Files = writeFixtures(t, dir, 150)
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.SQLitePath = filepath.Join(dir, "out", "runs.sqlite")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	rep, err := run(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("run err=%v", err)
	}
	if rep.result.Pair != "X/Y" {
		t.Fatalf("pair=%s, want X/Y", rep.result.Pair)
	}
	if len(rep.signals) != 150 || len(rep.result.EquityCurve) != 150 {
		t.Fatalf("signals=%d equity=%d, want 150", len(rep.signals), len(rep.result.EquityCurve))
	}
	if rep.metrics.TotalBars != 150 || rep.metrics.NumTrades != len(rep.result.Trades) {
		t.Fatalf("metrics=%+v", rep.metrics)
	}
	if len(rep.result.Trades) == 0 || rep.metrics.NumTrades == 0 {
		t.Fatalf("Trades=%d NumTrades=%d, want closed trades", len(rep.result.Trades), rep.metrics.NumTrades)
	}

	for _, name := range []string{"signals.jsonl", "trades.jsonl", "equity.jsonl", "metrics.jsonl"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Fatalf("%s 未生成: %v", name, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "equity.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}
	if lines := strings.Count(string(b), "\n"); lines != 150 {
		t.Fatalf("equity lines=%d, want 150", lines)
	}

	db, err := runstore.Open(cfg.Output.SQLitePath)
	if err != nil {
		t.Fatalf("Open err=%v", err)
	}
	defer db.Close()
	runs, err := db.ListRuns(context.Background())
	if err != nil || len(runs) != 1 || runs[0].ID != rep.runID {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}
	trades, err := db.Trades(context.Background(), rep.runID)
	if err != nil || len(trades) != len(rep.result.Trades) {
		t.Fatalf("trades=%d err=%v, want %d", len(trades), err, len(rep.result.Trades))
	}
}

func TestRun_ExplicitPairWithoutCointegration(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.Files = writeFixtures(t, dir, 150)
	cfg.Data.Pairs = []config.PairConfig{{A: "Z", B: "X"}}
	cfg.Selection.Significance = 1e-9
	cfg.Output.Dir = filepath.Join(dir, "out")

	if _, err := run(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("没有协整对时应返回错误")
	}
}

func TestRun_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Files = []config.FileConfig{
		{Symbol: "A", Path: filepath.Join(t.TempDir(), "a.csv")},
		{Symbol: "B", Path: filepath.Join(t.TempDir(), "b.csv")},
	}
	if _, err := run(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("缺失行情文件应返回错误")
	}
}

func TestNewLogger_InvalidLevelFallsBack(t *testing.T) {
	l := newLogger("verbose")
	if l == nil || !l.Core().Enabled(zap.InfoLevel) || l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("无效级别应回退到 info")
	}
}
