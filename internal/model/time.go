package model

import (
	"fmt"
	"time"
)

// LocalTime 仅用于 WebSocket 通知的展示格式（"YYYY-MM-DD HH:MM:SS"）。
// 持久化一律使用 time.Time 的 RFC3339 编码，保证精确往返。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// NowLocal 返回当前时间的展示封装。
func NowLocal() LocalTime {
	return LocalTime(time.Now())
}

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	formatted := fmt.Sprintf("\"%s\"", time.Time(t).Format(timeFormat))
	return []byte(formatted), nil
}
