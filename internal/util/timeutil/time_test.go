// Package timeutil 时间工具测试
package timeutil

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02",
		" 2024-01-02 ",
		"2024-01-02T00:00:00Z",
		"2024-01-02 00:00:00",
		"2024/01/02",
		"20240102",
		"1704153600",
		"1704153600000",
	} {
		got, err := ParseTimestamp(s)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) err=%v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q)=%v, want %v", s, got, want)
		}
	}
}

func TestParseTimestamp_WithOffset(t *testing.T) {
	got, err := ParseTimestamp("2024-01-02 09:30:00-05:00")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	want := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v, want %v", got, want)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2024-13-40"} {
		if _, err := ParseTimestamp(s); err == nil {
			t.Fatalf("ParseTimestamp(%q) 应返回错误", s)
		}
	}
}

func TestMsConversion(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	ms := TimeToMs(ts)
	if !MsToTime(ms).Equal(ts) {
		t.Fatalf("MsToTime(TimeToMs(ts))=%v, want %v", MsToTime(ms), ts)
	}
	if TimeToMs(time.Time{}) != 0 {
		t.Fatalf("零值应返回 0")
	}
	if FormatDate(time.Time{}) != "" || FormatDate(ts) != "2023-06-01T12:00:00Z" {
		t.Fatalf("FormatDate=%q", FormatDate(ts))
	}
}
