package model

import (
	"strconv"
	"strings"
)

// SourceType 输入文件来源类型
type SourceType string

const (
	SourceNone     SourceType = ""
	SourceCC       SourceType = "CC"        // 课消 / 超级课消
	SourceFixed    SourceType = "FIXED"     // 固定率
	SourceUP       SourceType = "UP"        // 升级率
	SourceRE       SourceType = "RE"        // 转介绍漏斗
	SourceAllLeads SourceType = "ALL_LEADS" // 线索回收
	SourceTeams    SourceType = "TEAMS"     // 团队映射
)

// AllSources 固定处理顺序
var AllSources = []SourceType{SourceCC, SourceFixed, SourceUP, SourceRE, SourceAllLeads, SourceTeams}

// ParseSourceType 解析来源类型（大小写不敏感，支持常见别名）
func ParseSourceType(s string) (SourceType, bool) {
	switch normalizeSourceToken(s) {
	case "CC":
		return SourceCC, true
	case "FIXED":
		return SourceFixed, true
	case "UP", "UPGRADE":
		return SourceUP, true
	case "RE", "REFERRAL":
		return SourceRE, true
	case "ALL_LEADS", "ALLLEADS", "LEADS":
		return SourceAllLeads, true
	case "TEAMS", "TEAM":
		return SourceTeams, true
	}
	return SourceNone, false
}

func normalizeSourceToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == '-' || c == ' ':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// Field 规范字段名
type Field string

const (
	FieldMentorName             Field = "mentorName"
	FieldTeamName               Field = "teamName"
	FieldPeriodDate             Field = "periodDate"
	FieldCCPct                  Field = "ccPct"
	FieldSCPct                  Field = "scPct"
	FieldUPPct                  Field = "upPct"
	FieldFixedCount             Field = "fixedCount"
	FieldTotalCount             Field = "totalCount"
	FieldReferralLeads          Field = "referralLeads"
	FieldReferralShowups        Field = "referralShowups"
	FieldReferralPaid           Field = "referralPaid"
	FieldReferralAchievementPct Field = "referralAchievementPct"
	FieldTotalLeads             Field = "totalLeads"
	FieldRecoveredLeads         Field = "recoveredLeads"
	FieldUnrecoveredLeads       Field = "unrecoveredLeads"
	FieldConversionPct          Field = "conversionPct"
	FieldNotes                  Field = "notes"
)

// ColumnMapping 规范字段 -> 原始列名
type ColumnMapping map[Field]string

// RawRow 一行原始数据：列名 -> 单元格原始值
//
// 数值单元格保留为 float64，其余为 string。
type RawRow map[string]any

// Text 单元格文本
func (r RawRow) Text(col string) string {
	return CellText(r[col])
}

// CellText 单元格值转文本；数值按最短十进制格式输出
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return ""
}
