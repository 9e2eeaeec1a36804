// Package model 包含了应用的数据模型定义。
package model

import "time"

// LocalTime 是自定义的时间类型，序列化为 "YYYY-MM-DD HH:MM:SS" 格式。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(time.Time(t).Format(`"` + timeFormat + `"`)), nil
}
