package model

import (
	"strings"
	"time"
)

// EntityType 实体类型
type EntityType string

const (
	EntityUnknown    EntityType = ""           // 对照表未命中
	EntityIndividual EntityType = "Individual" // 医生个人
	EntityClinic     EntityType = "Clinic"     // 诊所汇总
)

// ParseEntityType 解析实体类型（大小写不敏感），无法识别时返回 EntityUnknown
func ParseEntityType(s string) EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "individual":
		return EntityIndividual
	case "clinic":
		return EntityClinic
	default:
		return EntityUnknown
	}
}

// NameEntry 名称对照表条目
type NameEntry struct {
	RawID  string     `json:"rawId"`
	Name   string     `json:"name"`
	Type   EntityType `json:"type"`
	Clinic string     `json:"clinic"`
}

// MetricEntry 指标对照表条目
type MetricEntry struct {
	RawCode string   `json:"rawCode"`
	Name    string   `json:"name"`
	Target  *float64 `json:"target,omitempty"` // nil 表示该指标没有目标线
}

// HasTarget 是否配置了目标值
func (m MetricEntry) HasTarget() bool {
	return m.Target != nil
}

// Observation 长表中的一条观测记录：(实体, 指标, 日期) → 百分比
//
// 显示字段为空字符串表示对照表未命中。
type Observation struct {
	Name       string     `json:"name"`
	Type       EntityType `json:"type"`
	Clinic     string     `json:"clinic"`
	Metric     string     `json:"metric"`
	Percentage *float64   `json:"percentage"` // 分母为 0 或缺失时为 nil
	Date       time.Time  `json:"date"`
}

// Value 返回百分比及其是否有效
func (o Observation) Value() (float64, bool) {
	if o.Percentage == nil {
		return 0, false
	}
	return *o.Percentage, true
}

// Float64Ptr 返回 f 的指针
func Float64Ptr(f float64) *float64 { return &f }
