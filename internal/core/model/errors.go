package model

import "errors"

// 输入校验错误：立即返回，不做默认替换
var (
	// ErrInsufficientData 观测数量少于配置下限
	ErrInsufficientData = errors.New("数据不足")
	// ErrMisalignedSeries 序列时间戳不一致或未严格递增
	ErrMisalignedSeries = errors.New("序列未对齐")
	// ErrInvalidThreshold z 阈值不满足 exitZ < entryZ < stopZ
	ErrInvalidThreshold = errors.New("阈值非法")
	// ErrSeriesLengthMismatch 信号序列与价格序列长度不同
	ErrSeriesLengthMismatch = errors.New("序列长度不一致")
)

// 数值与选择失败
var (
	// ErrDegenerateSeries 回归输入方差为零
	ErrDegenerateSeries = errors.New("序列退化")
	// ErrNoCointegratedPair 没有候选交易对通过协整检验
	ErrNoCointegratedPair = errors.New("没有协整交易对")
	// ErrEquityExhausted 启用 margin_check 时权益跌至零或以下
	ErrEquityExhausted = errors.New("权益耗尽")
)

// ErrInvalidSignalSequence 模拟器收到不可能的状态转换
// 说明信号生成器存在缺陷，不可恢复。
var ErrInvalidSignalSequence = errors.New("信号序列非法")
