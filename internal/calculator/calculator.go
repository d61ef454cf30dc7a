package calculator

import (
	"math"

	"cmpulse/internal/model"
)

// MaxRatio 单项达成率上限
const MaxRatio = 1.5

const epsilon = 1e-9

// paceDivisor 月内周次 -> 月度目标除数
var paceDivisor = map[int]float64{1: 4, 2: 3, 3: 2, 4: 1}

// coreActuals 取出四项核心指标的实际值
func coreActuals(v model.MetricValues) [4]*float64 {
	return [4]*float64{v.CCPct, v.SCPct, v.UPPct, v.FixedPct}
}

func coreValues(c model.CoreMetrics) [4]float64 {
	return [4]float64{c.CC, c.SC, c.UP, c.Fixed}
}

// WeightedScore 加权得分 = Σ clamp(actual/target, 0, 1.5) * weight
//
// 缺失的实际值与目标 <= 0 的指标不计分。
func WeightedScore(v model.MetricValues, targets, weights model.CoreMetrics) float64 {
	actuals := coreActuals(v)
	ts := coreValues(targets)
	ws := coreValues(weights)

	score := 0.0
	for i, actual := range actuals {
		if actual == nil || ts[i] <= 0 {
			continue
		}
		ratio := math.Max(0, math.Min(*actual/ts[i], MaxRatio))
		score += ratio * ws[i]
	}
	return score
}

// Status 按 score / 权重和 与阈值比较得出状态
func Status(score float64, cfg model.ScoringConfig) model.MetricStatus {
	total := cfg.Weights.Sum()
	if total <= 0 {
		return model.StatusBelow
	}

	ratio := score / total
	switch {
	case ratio+epsilon >= cfg.AboveThreshold/100:
		return model.StatusAbove
	case ratio+epsilon >= cfg.WarningThreshold/100:
		return model.StatusWarning
	default:
		return model.StatusBelow
	}
}

// TargetsHit 实际值 >= 目标的核心指标数（缺失不计）
func TargetsHit(v model.MetricValues, targets model.CoreMetrics) int {
	ts := coreValues(targets)
	hit := 0
	for i, actual := range coreActuals(v) {
		if actual != nil && *actual >= ts[i] {
			hit++
		}
	}
	return hit
}

// PacedTarget 按月内周次折算的目标；周次越界时夹到 1..4
func PacedTarget(monthly float64, week int) float64 {
	if week < 1 {
		week = 1
	}
	if week > 4 {
		week = 4
	}
	return monthly / paceDivisor[week]
}

// PacedTargets 四项目标统一折算
func PacedTargets(monthly model.CoreMetrics, week int) model.CoreMetrics {
	return model.CoreMetrics{
		CC:    PacedTarget(monthly.CC, week),
		SC:    PacedTarget(monthly.SC, week),
		UP:    PacedTarget(monthly.UP, week),
		Fixed: PacedTarget(monthly.Fixed, week),
	}
}

// Evaluate 以周次折算后的目标计算完整评分
func Evaluate(v model.MetricValues, week int, cfg model.ScoringConfig) model.Scorecard {
	targets := PacedTargets(cfg.Targets, week)
	score := WeightedScore(v, targets, cfg.Weights)
	return model.Scorecard{
		WeightedScore: math.Round(score*100) / 100,
		Status:        Status(score, cfg),
		TargetsHit:    TargetsHit(v, targets),
		Targets:       targets,
	}
}

// StatusCounts 批量统计状态分布
func StatusCounts(records []model.MergedMetric, cfg model.ScoringConfig) map[model.MetricStatus]int {
	counts := map[model.MetricStatus]int{
		model.StatusAbove:   0,
		model.StatusWarning: 0,
		model.StatusBelow:   0,
	}
	for _, r := range records {
		counts[Evaluate(r.Values, r.WeekOfMonth, cfg).Status]++
	}
	return counts
}
