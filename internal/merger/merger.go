package merger

import (
	"time"

	"cmpulse/internal/model"
	"cmpulse/internal/parser"
)

// 覆盖率统计的指标族
const (
	FamilyCC       = "CC"
	FamilySC       = "SC"
	FamilyUP       = "UP"
	FamilyFixed    = "Fixed"
	FamilyReferral = "Referral"
	FamilyLeads    = "Leads"
)

// Result 合并结果
type Result struct {
	Merged      []model.MergedMetric `json:"merged"`
	Coverage    map[string]int       `json:"coverage"`
	MentorCount int                  `json:"mentorCount"`
	TeamMapping map[string]string    `json:"teamMapping"` // 规范化姓名 -> 团队
}

type mergeKey struct {
	mentor string
	day    time.Time
}

// MergeAll 将所有来源的规范行按 (mentor, 日期) 合并为唯一记录
func MergeAll(results []*parser.TransformResult) *Result {
	teams := buildTeamMapping(results)

	index := make(map[mergeKey]int)
	var merged []model.MergedMetric

	for _, res := range results {
		if res == nil || res.Source == model.SourceTeams {
			continue
		}
		for _, row := range res.Accepted {
			key := mergeKey{mentor: row.MentorName, day: parser.TruncateDay(row.PeriodDate)}
			idx, ok := index[key]
			if !ok {
				idx = len(merged)
				index[key] = idx
				merged = append(merged, model.MergedMetric{
					MentorName:  row.MentorName,
					DisplayName: row.DisplayName,
					TeamName:    teams[row.MentorName],
					PeriodDate:  key.day,
					WeekOfMonth: parser.WeekOfMonth(key.day),
					Checksum:    parser.Checksum(row.MentorName, key.day),
				})
			}
			fold(&merged[idx], row)
		}
	}

	mentors := make(map[string]struct{}, len(merged))
	for _, m := range merged {
		mentors[m.MentorName] = struct{}{}
	}

	return &Result{
		Merged:      merged,
		Coverage:    Coverage(merged),
		MentorCount: len(mentors),
		TeamMapping: teams,
	}
}

// buildTeamMapping 团队映射：TEAMS 来源优先，其次取首个提供团队的其他来源
func buildTeamMapping(results []*parser.TransformResult) map[string]string {
	teams := make(map[string]string)

	for _, res := range results {
		if res == nil || res.Source != model.SourceTeams {
			continue
		}
		for _, row := range res.Accepted {
			if row.TeamName != "" {
				teams[row.MentorName] = row.TeamName
			}
		}
	}

	for _, res := range results {
		if res == nil || res.Source == model.SourceTeams {
			continue
		}
		for _, row := range res.Accepted {
			if row.TeamName == "" {
				continue
			}
			if _, ok := teams[row.MentorName]; !ok {
				teams[row.MentorName] = row.TeamName
			}
		}
	}
	return teams
}

// fold 将单个来源行写入合并记录，同名字段后写覆盖
func fold(dst *model.MergedMetric, row model.CanonicalRow) {
	v := row.Values
	switch row.Source {
	case model.SourceCC:
		overwrite(&dst.Values.CCPct, v.CCPct)
		overwrite(&dst.Values.SCPct, v.SCPct)
	case model.SourceFixed:
		overwrite(&dst.Values.FixedPct, v.FixedPct)
	case model.SourceUP:
		overwrite(&dst.Values.UPPct, v.UPPct)
	case model.SourceRE:
		overwrite(&dst.Values.ReferralLeads, v.ReferralLeads)
		overwrite(&dst.Values.ReferralShowups, v.ReferralShowups)
		overwrite(&dst.Values.ReferralPaid, v.ReferralPaid)
		overwrite(&dst.Values.ReferralAchievementPct, v.ReferralAchievementPct)
	case model.SourceAllLeads:
		overwrite(&dst.Values.TotalLeads, v.TotalLeads)
		overwrite(&dst.Values.RecoveredLeads, v.RecoveredLeads)
		overwrite(&dst.Values.UnrecoveredLeads, v.UnrecoveredLeads)
		overwrite(&dst.Values.ConversionPct, v.ConversionPct)
		if len(v.Notes) > 0 {
			dst.Values.Notes = append([]string(nil), v.Notes...)
		}
	default:
		return
	}

	if dst.DisplayName == "" {
		dst.DisplayName = row.DisplayName
	}
	for _, s := range dst.Sources {
		if s == row.Source {
			return
		}
	}
	dst.Sources = append(dst.Sources, row.Source)
}

func overwrite(dst **float64, src *float64) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// Coverage 各指标族在合并记录中的覆盖率（0-100 整数）
func Coverage(merged []model.MergedMetric) map[string]int {
	coverage := make(map[string]int)
	if len(merged) == 0 {
		return coverage
	}

	counts := map[string]int{}
	for _, m := range merged {
		v := m.Values
		if v.CCPct != nil {
			counts[FamilyCC]++
		}
		if v.SCPct != nil {
			counts[FamilySC]++
		}
		if v.UPPct != nil {
			counts[FamilyUP]++
		}
		if v.FixedPct != nil {
			counts[FamilyFixed]++
		}
		if v.HasReferral() {
			counts[FamilyReferral]++
		}
		if v.HasLeads() {
			counts[FamilyLeads]++
		}
	}

	for _, family := range []string{FamilyCC, FamilySC, FamilyUP, FamilyFixed, FamilyReferral, FamilyLeads} {
		if n := counts[family]; n > 0 {
			coverage[family] = (n*100 + len(merged)/2) / len(merged)
		}
	}
	return coverage
}
