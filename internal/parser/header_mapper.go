package parser

import (
	"regexp"
	"strings"

	"cmpulse/internal/model"
)

var (
	headerSepRe     = regexp.MustCompile(`[\s_]+`)
	headerNonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// fieldVariants 每个规范字段可识别的列名变体（已规范化，按优先级排序）
var fieldVariants = map[model.Field][]string{
	model.FieldMentorName: {
		"mentor_name", "mentor", "cm_name", "cm", "agent_name", "agent",
		"name", "full_name", "staff_name", "lp_name", "lp",
	},
	model.FieldTeamName: {
		"team_name", "team", "group_name", "group", "squad", "team_lead_group",
	},
	model.FieldPeriodDate: {
		"period_date", "date", "period", "report_date", "stat_date", "day", "snapshot_date",
	},
	model.FieldCCPct: {
		"cc", "cc_pct", "cc_percent", "cc_rate", "class_consumption", "class_consumption_pct",
		"class_consumption_rate", "consumption", "consumption_pct", "cc_achievement",
	},
	model.FieldSCPct: {
		"sc", "sc_pct", "sc_percent", "sc_rate", "super_cc", "super_cc_pct", "super_consumption",
		"super_class_consumption", "super_consumption_pct", "super_class_consumption_pct",
	},
	model.FieldUPPct: {
		"up", "up_pct", "up_percent", "up_rate", "upgrade", "upgrade_pct", "upgrade_rate", "upgrade_percent",
	},
	model.FieldFixedCount: {
		"fixed", "fixed_count", "fixed_students", "fixed_num", "fixed_number", "fixed_stu",
	},
	model.FieldTotalCount: {
		"total", "total_students", "total_count", "students", "student_count", "active_students", "total_stu",
	},
	model.FieldReferralLeads: {
		"leads", "referral_leads", "ref_leads", "re_leads", "referrals", "referral",
	},
	model.FieldReferralShowups: {
		"show_up", "showup", "showups", "show_ups", "referral_showups", "shows",
	},
	model.FieldReferralPaid: {
		"paid", "referral_paid", "paid_count", "paid_referrals", "conversions",
	},
	model.FieldReferralAchievementPct: {
		"leads_ach", "leads_achievement", "achievement", "achievement_pct", "ach", "ach_pct",
		"referral_achievement", "referral_achievement_pct",
	},
	model.FieldTotalLeads: {
		"total_leads", "all_leads", "leads_total", "leads", "assigned_leads", "total_lead",
	},
	model.FieldRecoveredLeads: {
		"recovered", "recovered_leads", "recovered_count", "recovered_lead",
	},
	model.FieldUnrecoveredLeads: {
		"unrecovered", "unrecovered_leads", "not_recovered", "unrecovered_count", "unrecovered_lead",
	},
	model.FieldConversionPct: {
		"conversion", "conversion_pct", "conversion_rate", "recovery_rate", "recovery_pct",
	},
	model.FieldNotes: {
		"notes", "note", "remarks", "remark", "comments", "comment", "reasons", "reason",
	},
}

// sourceFields 各来源参与映射的字段（顺序即输出顺序）
var sourceFields = map[model.SourceType][]model.Field{
	model.SourceCC: {
		model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
		model.FieldCCPct, model.FieldSCPct,
	},
	model.SourceFixed: {
		model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
		model.FieldFixedCount, model.FieldTotalCount,
	},
	model.SourceUP: {
		model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
		model.FieldUPPct,
	},
	model.SourceRE: {
		model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
		model.FieldReferralLeads, model.FieldReferralShowups, model.FieldReferralPaid,
		model.FieldReferralAchievementPct,
	},
	model.SourceAllLeads: {
		model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
		model.FieldTotalLeads, model.FieldRecoveredLeads, model.FieldUnrecoveredLeads,
		model.FieldConversionPct, model.FieldNotes,
	},
	model.SourceTeams: {
		model.FieldMentorName, model.FieldTeamName,
	},
}

// requiredFields 各来源必填字段（mentorName 对所有来源必填）
var requiredFields = map[model.SourceType][]model.Field{
	model.SourceCC:       {model.FieldCCPct},
	model.SourceFixed:    {model.FieldFixedCount, model.FieldTotalCount},
	model.SourceUP:       {model.FieldUPPct},
	model.SourceRE:       {model.FieldReferralLeads},
	model.SourceAllLeads: {model.FieldTotalLeads},
	model.SourceTeams:    {model.FieldTeamName},
}

// 未指定来源时的全量字段顺序
var allFields = []model.Field{
	model.FieldMentorName, model.FieldTeamName, model.FieldPeriodDate,
	model.FieldCCPct, model.FieldSCPct, model.FieldUPPct,
	model.FieldFixedCount, model.FieldTotalCount,
	model.FieldReferralLeads, model.FieldReferralShowups, model.FieldReferralPaid, model.FieldReferralAchievementPct,
	model.FieldTotalLeads, model.FieldRecoveredLeads, model.FieldUnrecoveredLeads, model.FieldConversionPct,
	model.FieldNotes,
}

// MappingResult 列映射结果
type MappingResult struct {
	Mapping          model.ColumnMapping `json:"mapping"`
	DetectedFields   []model.Field       `json:"detectedFields"`
	UnmappedRequired []model.Field       `json:"unmappedRequiredFields"`
}

// NormalizeHeader 规范化列名：小写、空白/下划线折叠为 "_"、去除非单词字符
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerSepRe.ReplaceAllString(h, "_")
	h = headerNonWordRe.ReplaceAllString(h, "")
	h = headerSepRe.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// RequiredFields 返回来源的必填字段（含 mentorName）
func RequiredFields(source model.SourceType) []model.Field {
	return append([]model.Field{model.FieldMentorName}, requiredFields[source]...)
}

// AutoMap 推断列映射；显式覆盖优先，其次按变体优先级精确匹配规范化列名
func AutoMap(headers []string, hint model.SourceType, overrides model.ColumnMapping) MappingResult {
	byNorm := make(map[string]string, len(headers))
	for _, h := range headers {
		n := NormalizeHeader(h)
		if n == "" {
			continue
		}
		if _, exists := byNorm[n]; !exists {
			byNorm[n] = h
		}
	}

	fields := allFields
	if fs, ok := sourceFields[hint]; ok {
		fields = fs
	}

	result := MappingResult{Mapping: model.ColumnMapping{}}
	for _, field := range fields {
		if col, ok := overrides[field]; ok {
			if orig, found := byNorm[NormalizeHeader(col)]; found {
				result.Mapping[field] = orig
				result.DetectedFields = append(result.DetectedFields, field)
				continue
			}
		}
		for _, variant := range fieldVariants[field] {
			if orig, found := byNorm[variant]; found {
				result.Mapping[field] = orig
				result.DetectedFields = append(result.DetectedFields, field)
				break
			}
		}
	}

	for _, field := range RequiredFields(hint) {
		if _, ok := result.Mapping[field]; !ok {
			result.UnmappedRequired = append(result.UnmappedRequired, field)
		}
	}

	return result
}

// isVariantOf 规范化列名是否为某字段的变体
func isVariantOf(normHeader string, field model.Field) bool {
	for _, v := range fieldVariants[field] {
		if v == normHeader {
			return true
		}
	}
	return false
}
