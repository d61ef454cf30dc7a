package model

import "time"

// CanonicalRow 单个来源文件对某个 mentor/周期 的贡献
type CanonicalRow struct {
	Source      SourceType `json:"source"`
	File        string     `json:"file"`
	RowNo       int        `json:"rowNo"`
	MentorName  string     `json:"mentorName"`  // 规范化姓名（合并键）
	DisplayName string     `json:"displayName"` // 原始展示名
	TeamName    string     `json:"teamName,omitempty"`
	PeriodDate  time.Time  `json:"periodDate"`
	WeekOfMonth int        `json:"weekOfMonth"`
	Checksum    string     `json:"checksum"`

	Values MetricValues `json:"values"`
}

// MetricValues 指标字段集合，nil 表示该来源未提供
type MetricValues struct {
	CCPct                  *float64 `json:"ccPct,omitempty" validate:"omitempty,gte=0,lte=200"`
	SCPct                  *float64 `json:"scPct,omitempty" validate:"omitempty,gte=0,lte=200"`
	UPPct                  *float64 `json:"upPct,omitempty" validate:"omitempty,gte=0,lte=200"`
	FixedPct               *float64 `json:"fixedPct,omitempty" validate:"omitempty,gte=0,lte=100"`
	ReferralLeads          *float64 `json:"referralLeads,omitempty" validate:"omitempty,gte=0"`
	ReferralShowups        *float64 `json:"referralShowups,omitempty" validate:"omitempty,gte=0"`
	ReferralPaid           *float64 `json:"referralPaid,omitempty" validate:"omitempty,gte=0"`
	ReferralAchievementPct *float64 `json:"referralAchievementPct,omitempty" validate:"omitempty,gte=0,lte=200"`
	TotalLeads             *float64 `json:"totalLeads,omitempty" validate:"omitempty,gte=0"`
	RecoveredLeads         *float64 `json:"recoveredLeads,omitempty" validate:"omitempty,gte=0"`
	UnrecoveredLeads       *float64 `json:"unrecoveredLeads,omitempty" validate:"omitempty,gte=0"`
	ConversionPct          *float64 `json:"conversionPct,omitempty" validate:"omitempty,gte=0,lte=200"`
	Notes                  []string `json:"notes,omitempty"`
}

// HasAny 是否至少存在一个指标
func (v MetricValues) HasAny() bool {
	for _, p := range v.pointers() {
		if p != nil {
			return true
		}
	}
	return false
}

// HasReferral 是否包含转介绍字段
func (v MetricValues) HasReferral() bool {
	return v.ReferralLeads != nil || v.ReferralShowups != nil || v.ReferralPaid != nil || v.ReferralAchievementPct != nil
}

// HasLeads 是否包含线索字段
func (v MetricValues) HasLeads() bool {
	return v.TotalLeads != nil || v.RecoveredLeads != nil || v.UnrecoveredLeads != nil || v.ConversionPct != nil
}

func (v MetricValues) pointers() []*float64 {
	return []*float64{
		v.CCPct, v.SCPct, v.UPPct, v.FixedPct,
		v.ReferralLeads, v.ReferralShowups, v.ReferralPaid, v.ReferralAchievementPct,
		v.TotalLeads, v.RecoveredLeads, v.UnrecoveredLeads, v.ConversionPct,
	}
}

// MergedMetric 某 mentor 在某周期的唯一权威记录
type MergedMetric struct {
	MentorName  string       `json:"mentorName"`
	DisplayName string       `json:"displayName"`
	TeamName    string       `json:"teamName,omitempty"`
	PeriodDate  time.Time    `json:"periodDate"`
	WeekOfMonth int          `json:"weekOfMonth"`
	Checksum    string       `json:"checksum"`
	Sources     []SourceType `json:"sources"`

	Values MetricValues `json:"values"`
}

// Float 便捷构造指针
func Float(v float64) *float64 {
	return &v
}
