// Package config 负责加载和验证 YAML 配置文件。
// 提供回测所需的全部配置项，包括数据源、选对参数、信号阈值、成本模型和输出设置。
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pair-trading-backtester/internal/core/model"
)

// 仓位计算方式
const (
	// SizingDollarNeutral 两腿名义价值相等
	SizingDollarNeutral = "dollar_neutral"
	// SizingEqualShare A 腿 1 份对应 B 腿 hedge_ratio 份
	SizingEqualShare = "equal_share"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Data 价格数据源配置
	Data DataConfig `yaml:"data"`
	// Selection 交易对筛选配置
	Selection SelectionConfig `yaml:"selection"`
	// Signal 信号阈值配置
	Signal SignalConfig `yaml:"signal"`
	// Backtest 回测成本与资金配置
	Backtest BacktestConfig `yaml:"backtest"`
	// Performance 绩效年化配置
	Performance PerformanceConfig `yaml:"performance"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// FileConfig 单个标的的价格文件
type FileConfig struct {
	// Symbol 标的代码，如 KO
	Symbol string `yaml:"symbol"`
	// Path 文件路径，按扩展名识别 .csv 或 .parquet
	Path string `yaml:"path"`
}

// PairConfig 显式指定的候选交易对
type PairConfig struct {
	// A 因变量标的
	A string `yaml:"a"`
	// B 自变量标的
	B string `yaml:"b"`
}

// DataConfig 价格数据源配置
type DataConfig struct {
	// Files 价格文件列表
	Files []FileConfig `yaml:"files"`
	// Pairs 候选交易对；为空时枚举所有两两组合
	Pairs []PairConfig `yaml:"pairs"`
	// MinObservations 对齐后最少 K 线数
	MinObservations int `yaml:"min_observations"`
}

// SelectionConfig 交易对筛选配置
type SelectionConfig struct {
	// Significance 协整检验显著性水平
	Significance float64 `yaml:"significance"`
	// MaxLag ADF 最大滞后阶数（AIC 选择）
	MaxLag int `yaml:"max_lag"`
	// MinCorrelation 相关系数预过滤阈值，0 表示关闭
	MinCorrelation float64 `yaml:"min_correlation"`
	// Workers 并行评估数，0 表示 GOMAXPROCS
	Workers int `yaml:"workers"`
	// FallbackPValue 无严格协整对时的放宽 p 值，0 表示关闭
	FallbackPValue float64 `yaml:"fallback_pvalue"`
	// MaxHalfLife 放宽选择时允许的最大半衰期（K 线数）
	MaxHalfLife float64 `yaml:"max_half_life"`
}

// SignalConfig 信号阈值配置
type SignalConfig struct {
	// ZWindow 滚动 z-score 窗口长度
	ZWindow int `yaml:"z_window"`
	// EntryZ 入场阈值
	EntryZ float64 `yaml:"entry_z"`
	// ExitZ 平仓阈值
	ExitZ float64 `yaml:"exit_z"`
	// StopZ 止损阈值
	StopZ float64 `yaml:"stop_z"`
	// CooldownBars 止损后禁止入场的 K 线数
	CooldownBars int `yaml:"cooldown_bars"`
}

// BacktestConfig 回测成本与资金配置
type BacktestConfig struct {
	// InitialCapital 初始资金
	InitialCapital float64 `yaml:"initial_capital"`
	// TransactionCostRate 交易成本费率（按成交名义价值）
	TransactionCostRate float64 `yaml:"transaction_cost_rate"`
	// SlippageRate 滑点比例，成交价按不利方向调整
	SlippageRate float64 `yaml:"slippage_rate"`
	// AllocationFraction 每笔交易占初始资金比例
	AllocationFraction float64 `yaml:"allocation_fraction"`
	// Sizing 仓位计算方式: dollar_neutral 或 equal_share
	Sizing string `yaml:"sizing"`
	// MarginCheck 是否在权益非正时终止回测
	MarginCheck bool `yaml:"margin_check"`
}

// PerformanceConfig 绩效年化配置
type PerformanceConfig struct {
	// RiskFreeRate 年化无风险利率
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	// PeriodsPerYear 每年 K 线数，日线为 252
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// SignalsEnabled 是否输出信号文件
	SignalsEnabled bool `yaml:"signals_enabled"`
	// TradesEnabled 是否输出成交文件
	TradesEnabled bool `yaml:"trades_enabled"`
	// EquityEnabled 是否输出权益曲线文件
	EquityEnabled bool `yaml:"equity_enabled"`
	// MetricsEnabled 是否输出指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
	// SQLitePath 回测记录数据库路径，空表示不落库
	SQLitePath string `yaml:"sqlite_path"`
}

// Default 返回全部字段取默认值的配置
// YAML 中未出现的键保持默认值。
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "pair-trading-backtester",
			LogLevel: "info",
		},
		Data: DataConfig{
			MinObservations: 30,
		},
		Selection: SelectionConfig{
			Significance: 0.05,
			MaxLag:       1,
			MaxHalfLife:  252,
		},
		Signal: SignalConfig{
			ZWindow: 20,
			EntryZ:  2.0,
			ExitZ:   0.5,
			StopZ:   3.5,
		},
		Backtest: BacktestConfig{
			InitialCapital:      100000,
			TransactionCostRate: 0.001,
			SlippageRate:        0.0005,
			AllocationFraction:  1.0,
			Sizing:              SizingDollarNeutral,
		},
		Performance: PerformanceConfig{
			PeriodsPerYear: 252,
		},
		Output: OutputConfig{
			Dir:            "./output",
			SignalsEnabled: true,
			TradesEnabled:  true,
			EquityEnabled:  true,
			MetricsEnabled: true,
			BufferSize:     1000,
		},
	}
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 在默认值之上解析 YAML
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// setDefaults 补全显式写成空值但不允许为空的字段
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pair-trading-backtester"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Data.MinObservations == 0 {
		c.Data.MinObservations = 30
	}

	if c.Selection.Significance == 0 {
		c.Selection.Significance = 0.05
	}
	if c.Selection.MaxHalfLife == 0 {
		c.Selection.MaxHalfLife = 252
	}

	if c.Signal.ZWindow == 0 {
		c.Signal.ZWindow = 20
	}

	if c.Backtest.AllocationFraction == 0 {
		c.Backtest.AllocationFraction = 1.0
	}
	if c.Backtest.Sizing == "" {
		c.Backtest.Sizing = SizingDollarNeutral
	}

	if c.Performance.PeriodsPerYear == 0 {
		c.Performance.PeriodsPerYear = 252
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证数据源
	if len(c.Data.Files) < 2 {
		errs = append(errs, "data.files: 至少需要两个标的的价格文件")
	}
	// 键与价格缓存一致：BRK-B 与 BRKB 视为同一标的
	seen := make(map[string]bool, len(c.Data.Files))
	for i, f := range c.Data.Files {
		if f.Symbol == "" {
			errs = append(errs, fmt.Sprintf("data.files[%d].symbol: 标的代码不能为空", i))
		}
		if f.Path == "" {
			errs = append(errs, fmt.Sprintf("data.files[%d].path: 文件路径不能为空", i))
		}
		key := model.NormalizeSymbol(f.Symbol)
		if f.Symbol != "" && seen[key] {
			errs = append(errs, fmt.Sprintf("data.files[%d].symbol: 标的 '%s' 重复", i, f.Symbol))
		}
		seen[key] = true
	}
	for i, p := range c.Data.Pairs {
		a, b := model.NormalizeSymbol(p.A), model.NormalizeSymbol(p.B)
		switch {
		case a == "" || b == "":
			errs = append(errs, fmt.Sprintf("data.pairs[%d]: a 和 b 不能为空", i))
		case a == b:
			errs = append(errs, fmt.Sprintf("data.pairs[%d]: a 和 b 不能相同", i))
		default:
			for _, sym := range []string{p.A, p.B} {
				if !seen[model.NormalizeSymbol(sym)] {
					errs = append(errs, fmt.Sprintf("data.pairs[%d]: 标的 '%s' 不在 data.files 中", i, sym))
				}
			}
		}
	}
	if c.Data.MinObservations < 3 {
		errs = append(errs, "data.min_observations: 至少为 3")
	}

	// 验证筛选参数
	if c.Selection.Significance <= 0 || c.Selection.Significance >= 1 {
		errs = append(errs, "selection.significance: 显著性水平必须在 (0, 1) 之间")
	}
	if c.Selection.MaxLag < 0 {
		errs = append(errs, "selection.max_lag: 滞后阶数不能为负数")
	}
	if c.Selection.MinCorrelation < 0 || c.Selection.MinCorrelation > 1 {
		errs = append(errs, "selection.min_correlation: 相关系数阈值必须在 [0, 1] 之间")
	}
	if c.Selection.Workers < 0 {
		errs = append(errs, "selection.workers: 并发数不能为负数")
	}
	if c.Selection.FallbackPValue < 0 || c.Selection.FallbackPValue >= 1 {
		errs = append(errs, "selection.fallback_pvalue: 必须在 [0, 1) 之间")
	}
	if c.Selection.MaxHalfLife <= 0 {
		errs = append(errs, "selection.max_half_life: 最大半衰期必须为正数")
	}

	// 验证信号参数，规则与信号生成器一致
	sigErr := c.SignalParams().Validate()
	if sigErr != nil {
		errs = append(errs, "signal: "+sigErr.Error())
	}

	// 验证回测参数
	if !(c.Backtest.InitialCapital > 0) || math.IsInf(c.Backtest.InitialCapital, 0) {
		errs = append(errs, "backtest.initial_capital: 初始资金必须为正数")
	}
	if err := validateRate(c.Backtest.TransactionCostRate, "backtest.transaction_cost_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRate(c.Backtest.SlippageRate, "backtest.slippage_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Backtest.AllocationFraction <= 0 || c.Backtest.AllocationFraction > 1 {
		errs = append(errs, "backtest.allocation_fraction: 资金占比必须在 (0, 1] 之间")
	}
	if c.Backtest.Sizing != SizingDollarNeutral && c.Backtest.Sizing != SizingEqualShare {
		errs = append(errs, fmt.Sprintf("backtest.sizing: 无效的仓位方式 '%s'，有效值: %s, %s", c.Backtest.Sizing, SizingDollarNeutral, SizingEqualShare))
	}

	// 验证年化参数
	if c.Performance.PeriodsPerYear <= 0 {
		errs = append(errs, "performance.periods_per_year: 每年周期数必须为正数")
	}
	if c.Performance.RiskFreeRate < -1 || c.Performance.RiskFreeRate > 1 {
		errs = append(errs, "performance.risk_free_rate: 无风险利率必须在 [-1, 1] 之间")
	}

	if c.Output.BufferSize < 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小不能为负数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return &ValidationError{Problems: errs, cause: sigErr}
	}

	return nil
}

// ValidationError 汇总全部配置问题
// 信号参数非法时可用 errors.Is 匹配 model.ErrInvalidThreshold。
type ValidationError struct {
	// Problems 每项一条，格式为 "字段: 描述"
	Problems []string
	cause    error
}

func (e *ValidationError) Error() string {
	return "配置验证错误:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// validateRate 验证费率范围 [0, 1)
// 参数 rate: 费率值
// 参数 field: 字段名称，用于错误消息
func validateRate(rate float64, field string) error {
	if math.IsNaN(rate) || rate < 0 || rate >= 1 {
		return fmt.Errorf("%s: 费率必须在 [0, 1) 之间，当前值: %f", field, rate)
	}
	return nil
}
