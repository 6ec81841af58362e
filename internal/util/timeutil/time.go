// Package timeutil 提供时间戳解析与转换的工具函数。
// 主要用于行情文件的日期列解析和导出记录的毫秒时间戳。
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// layouts 支持的日期时间格式，按常见程度排序
var layouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
	"20060102",
}

// msThreshold 数值时间戳大于此值视为毫秒，否则视为秒
const msThreshold = 100_000_000_000

// ParseTimestamp 解析行情文件中的时间列
// 支持日期字符串和 Unix 秒/毫秒数值；不带时区的格式按 UTC 解析。
// 参数 s: 原始字符串，如 "2024-01-02" 或 "1704153600000"
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("时间戳为空")
	}

	if len(s) != 8 {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n > msThreshold || n < -msThreshold {
				return MsToTime(n), nil
			}
			return time.Unix(n, 0).UTC(), nil
		}
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间戳: %q", s)
}

// MsToTime 将毫秒时间戳转换为 UTC time.Time
// 参数 ms: 毫秒时间戳
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMs 将 time.Time 转换为毫秒时间戳，零值返回 0
func TimeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FormatDate 格式化为 RFC3339；零值返回空字符串
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
