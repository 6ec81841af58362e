// Package runstore 将回测汇总与成交账本持久化到 SQLite。
// 每次回测一行 runs 记录，成交明细写入 trades 表。
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动

	"pair-trading-backtester/internal/core/model"
	"pair-trading-backtester/internal/output/jsonl"
	"pair-trading-backtester/internal/util/timeutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at_ms   INTEGER NOT NULL,
	pair            TEXT    NOT NULL,
	hedge_ratio     REAL    NOT NULL,
	p_value         REAL    NOT NULL,
	initial_capital REAL    NOT NULL,
	final_equity    REAL    NOT NULL,
	total_return    REAL    NOT NULL,
	sharpe          REAL,
	max_drawdown    REAL    NOT NULL,
	num_trades      INTEGER NOT NULL,
	win_rate        REAL    NOT NULL,
	metrics_json    TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	run_id        INTEGER NOT NULL REFERENCES runs(id),
	seq           INTEGER NOT NULL,
	side          TEXT    NOT NULL,
	entry_index   INTEGER NOT NULL,
	exit_index    INTEGER NOT NULL,
	entry_time_ms INTEGER NOT NULL,
	exit_time_ms  INTEGER NOT NULL,
	entry_z       REAL    NOT NULL,
	exit_z        REAL    NOT NULL,
	shares_a      REAL    NOT NULL,
	shares_b      REAL    NOT NULL,
	entry_px_a    REAL    NOT NULL,
	entry_px_b    REAL    NOT NULL,
	exit_px_a     REAL    NOT NULL,
	exit_px_b     REAL    NOT NULL,
	exit_reason   TEXT    NOT NULL,
	gross_pnl     REAL    NOT NULL,
	costs         REAL    NOT NULL,
	slippage      REAL    NOT NULL,
	net_pnl       REAL    NOT NULL,
	return_pct    REAL    NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// Run 一次回测的完整结果
type Run struct {
	// Result 回测账本与权益曲线
	Result *model.BacktestResult
	// Coint 选定交易对的协整检验结果
	Coint model.CointegrationResult
	// Metrics 绩效指标
	Metrics model.PerformanceMetrics
	// CreatedAt 记录时间，零值时取当前时间
	CreatedAt time.Time
}

// RunSummary runs 表的一行
type RunSummary struct {
	ID             int64
	CreatedAt      time.Time
	Pair           string
	HedgeRatio     float64
	PValue         float64
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	// Sharpe 未定义时为 nil
	Sharpe      *float64
	MaxDrawdown float64
	NumTrades   int
	WinRate     float64
	// Metrics 完整指标（与 metrics.jsonl 同格式）
	Metrics jsonl.MetricsRecord
}

// Store SQLite 回测记录库
type Store struct {
	db *sql.DB
}

// Open 打开（或创建）数据库并建表
// 参数 path: 数据库文件路径
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接，避免 SQLite 写锁竞争
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("建表失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun 在一个事务中写入汇总与全部成交，返回 run id
func (s *Store) SaveRun(ctx context.Context, run Run) (int64, error) {
	if run.Result == nil {
		return 0, fmt.Errorf("回测结果为空")
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	rec := jsonl.NewMetricsRecord(run.Result, run.Coint, run.Metrics)
	metricsJSON, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("序列化指标失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sharpe sql.NullFloat64
	if rec.Sharpe != nil {
		sharpe = sql.NullFloat64{Float64: *rec.Sharpe, Valid: true}
	}
	r, err := tx.ExecContext(ctx, `INSERT INTO runs
		(created_at_ms, pair, hedge_ratio, p_value, initial_capital, final_equity,
		 total_return, sharpe, max_drawdown, num_trades, win_rate, metrics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		timeutil.TimeToMs(created), run.Result.Pair, run.Coint.HedgeRatio, run.Coint.PValue,
		run.Result.InitialCapital, run.Result.FinalEquity(), run.Metrics.TotalReturn, sharpe,
		run.Metrics.MaxDrawdown.Pct, run.Metrics.NumTrades, run.Metrics.WinRate, string(metricsJSON))
	if err != nil {
		return 0, fmt.Errorf("写入 runs 失败: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取 run id 失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades
		(run_id, seq, side, entry_index, exit_index, entry_time_ms, exit_time_ms, entry_z, exit_z,
		 shares_a, shares_b, entry_px_a, entry_px_b, exit_px_a, exit_px_b, exit_reason,
		 gross_pnl, costs, slippage, net_pnl, return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("准备 trades 语句失败: %w", err)
	}
	defer stmt.Close()

	for i := range run.Result.Trades {
		t := &run.Result.Trades[i]
		if _, err := stmt.ExecContext(ctx, id, i, string(t.Side), t.EntryIndex, t.ExitIndex,
			timeutil.TimeToMs(t.EntryTime), timeutil.TimeToMs(t.ExitTime), t.EntryZ, t.ExitZ,
			t.SharesA, t.SharesB, t.EntryPxA, t.EntryPxB, t.ExitPxA, t.ExitPxB, string(t.ExitReason),
			t.GrossPnL, t.Costs, t.Slippage, t.NetPnL, t.ReturnPct); err != nil {
			return 0, fmt.Errorf("写入第 %d 笔交易失败: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return id, nil
}

// ListRuns 按 id 倒序返回全部回测汇总
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at_ms, pair, hedge_ratio, p_value,
		initial_capital, final_equity, total_return, sharpe, max_drawdown, num_trades, win_rate, metrics_json
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("查询 runs 失败: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs          RunSummary
			createdMs   int64
			sharpe      sql.NullFloat64
			metricsJSON string
		)
		if err := rows.Scan(&rs.ID, &createdMs, &rs.Pair, &rs.HedgeRatio, &rs.PValue,
			&rs.InitialCapital, &rs.FinalEquity, &rs.TotalReturn, &sharpe, &rs.MaxDrawdown,
			&rs.NumTrades, &rs.WinRate, &metricsJSON); err != nil {
			return nil, fmt.Errorf("读取 runs 失败: %w", err)
		}
		rs.CreatedAt = timeutil.MsToTime(createdMs)
		if sharpe.Valid {
			v := sharpe.Float64
			rs.Sharpe = &v
		}
		if err := json.Unmarshal([]byte(metricsJSON), &rs.Metrics); err != nil {
			return nil, fmt.Errorf("解析 run %d 指标失败: %w", rs.ID, err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Trades 按成交顺序返回指定 run 的账本
func (s *Store) Trades(ctx context.Context, runID int64) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT side, entry_index, exit_index, entry_time_ms, exit_time_ms,
		entry_z, exit_z, shares_a, shares_b, entry_px_a, entry_px_b, exit_px_a, exit_px_b, exit_reason,
		gross_pnl, costs, slippage, net_pnl, return_pct
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询 trades 失败: %w", err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var (
			t               model.Trade
			side, reason    string
			entryMs, exitMs int64
		)
		if err := rows.Scan(&side, &t.EntryIndex, &t.ExitIndex, &entryMs, &exitMs,
			&t.EntryZ, &t.ExitZ, &t.SharesA, &t.SharesB, &t.EntryPxA, &t.EntryPxB, &t.ExitPxA, &t.ExitPxB,
			&reason, &t.GrossPnL, &t.Costs, &t.Slippage, &t.NetPnL, &t.ReturnPct); err != nil {
			return nil, fmt.Errorf("读取 trades 失败: %w", err)
		}
		t.Side = model.PositionState(side)
		t.ExitReason = model.ExitReason(reason)
		t.EntryTime = timeutil.MsToTime(entryMs)
		t.ExitTime = timeutil.MsToTime(exitMs)
		out = append(out, t)
	}
	return out, rows.Err()
}
