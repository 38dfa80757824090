package util

import (
	"math"
	"time"
)

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage total 为 0 时返回 0
func Percentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

// ParseDate 解析 YYYY-MM-DD 或 RFC3339，空串返回 nil
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(DateFormat, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ClampPage 分页参数兜底
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
