package parser

import (
	"strings"

	"cmpulse/internal/model"
)

type detectRule struct {
	Type  model.SourceType
	Match func(headers []string) bool
}

// detectRules 按固定优先级排列；转介绍签名须先于团队兜底判断
var detectRules = []detectRule{
	{Type: model.SourceCC, Match: func(hs []string) bool {
		return anyHeader(hs, isConsumptionHeader) && anyHeader(hs, isSuperConsumptionHeader)
	}},
	{Type: model.SourceUP, Match: func(hs []string) bool {
		return anyHeader(hs, func(h string) bool {
			return h == "up" || strings.HasPrefix(h, "up_") || strings.Contains(h, "upgrade")
		})
	}},
	{Type: model.SourceRE, Match: func(hs []string) bool {
		return anyHeader(hs, func(h string) bool {
			return strings.Contains(h, "referral") ||
				strings.Contains(h, "showup") || strings.Contains(h, "show_up") ||
				strings.Contains(h, "achievement") || strings.HasSuffix(h, "_ach") || h == "ach"
		})
	}},
	{Type: model.SourceFixed, Match: func(hs []string) bool {
		return anyHeader(hs, func(h string) bool { return strings.Contains(h, "fixed") })
	}},
	{Type: model.SourceAllLeads, Match: func(hs []string) bool {
		return anyHeader(hs, func(h string) bool { return strings.Contains(h, "recovered") })
	}},
	{Type: model.SourceTeams, Match: func(hs []string) bool {
		return len(hs) <= 5 &&
			anyHeader(hs, func(h string) bool { return isVariantOf(h, model.FieldTeamName) }) &&
			anyHeader(hs, func(h string) bool { return isVariantOf(h, model.FieldMentorName) })
	}},
}

// DetectSourceType 根据列名签名识别来源类型；无法识别返回 SourceNone
func DetectSourceType(headers []string) model.SourceType {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		if n := NormalizeHeader(h); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return model.SourceNone
	}

	for _, rule := range detectRules {
		if rule.Match(normalized) {
			return rule.Type
		}
	}
	return model.SourceNone
}

func isSuperConsumptionHeader(h string) bool {
	return h == "sc" || strings.HasPrefix(h, "sc_") || strings.Contains(h, "super")
}

func isConsumptionHeader(h string) bool {
	if isSuperConsumptionHeader(h) {
		return false
	}
	return h == "cc" || strings.HasPrefix(h, "cc_") || strings.Contains(h, "consumption")
}

func anyHeader(headers []string, match func(string) bool) bool {
	for _, h := range headers {
		if match(h) {
			return true
		}
	}
	return false
}
