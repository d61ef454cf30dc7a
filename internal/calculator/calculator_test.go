package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cmpulse/internal/model"
)

func TestWeightedScore_MonotonicAndClamped(t *testing.T) {
	t.Parallel()

	targets := model.CoreMetrics{CC: 80, SC: 15, UP: 20, Fixed: 60}
	weights := model.CoreMetrics{CC: 40, SC: 20, UP: 20, Fixed: 20}

	prev := -1.0
	for cc := 0.0; cc <= 200; cc += 5 {
		score := WeightedScore(model.MetricValues{CCPct: model.Float(cc)}, targets, weights)
		assert.GreaterOrEqual(t, score, prev, "cc=%v", cc)
		prev = score
	}

	atCap := WeightedScore(model.MetricValues{CCPct: model.Float(120)}, targets, weights)
	beyond := WeightedScore(model.MetricValues{CCPct: model.Float(400)}, targets, weights)
	assert.InDelta(t, 60, atCap, 1e-9)
	assert.Equal(t, atCap, beyond)
}

func TestWeightedScore_SkipsMissingAndZeroTargets(t *testing.T) {
	t.Parallel()

	targets := model.CoreMetrics{CC: 80, SC: 0, UP: 20, Fixed: 60}
	weights := model.CoreMetrics{CC: 40, SC: 20, UP: 20, Fixed: 20}

	v := model.MetricValues{CCPct: model.Float(80), SCPct: model.Float(50)}
	assert.InDelta(t, 40, WeightedScore(v, targets, weights), 1e-9)
	assert.Zero(t, WeightedScore(model.MetricValues{}, targets, weights))
}

func TestStatus_Boundaries(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultScoringConfig()

	assert.Equal(t, model.StatusAbove, Status(100, cfg))
	assert.Equal(t, model.StatusWarning, Status(90, cfg))
	assert.Equal(t, model.StatusBelow, Status(89.9, cfg))
	assert.Equal(t, model.StatusAbove, Status(150, cfg))

	cfg.Weights = model.CoreMetrics{}
	assert.Equal(t, model.StatusBelow, Status(10, cfg))
}

func TestStatus_FromActuals(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultScoringConfig()
	hitAll := model.MetricValues{
		CCPct:    model.Float(80),
		SCPct:    model.Float(15),
		UPPct:    model.Float(20),
		FixedPct: model.Float(60),
	}
	score := WeightedScore(hitAll, cfg.Targets, cfg.Weights)
	assert.InDelta(t, 100, score, 1e-9)
	assert.Equal(t, model.StatusAbove, Status(score, cfg))

	ninety := hitAll
	ninety.CCPct = model.Float(60)
	score = WeightedScore(ninety, cfg.Targets, cfg.Weights)
	assert.InDelta(t, 90, score, 1e-9)
	assert.Equal(t, model.StatusWarning, Status(score, cfg))
}

func TestTargetsHit(t *testing.T) {
	t.Parallel()

	targets := model.CoreMetrics{CC: 80, SC: 15, UP: 20, Fixed: 60}
	v := model.MetricValues{CCPct: model.Float(80), SCPct: model.Float(14.9), FixedPct: model.Float(61)}
	assert.Equal(t, 2, TargetsHit(v, targets))
	assert.Zero(t, TargetsHit(model.MetricValues{}, targets))
}

func TestPacedTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20.0, PacedTarget(80, 1))
	assert.InDelta(t, 26.666666, PacedTarget(80, 2), 1e-5)
	assert.Equal(t, 40.0, PacedTarget(80, 3))
	assert.Equal(t, 80.0, PacedTarget(80, 4))
	assert.Equal(t, 80.0, PacedTarget(80, 7))
	assert.Equal(t, 20.0, PacedTarget(80, 0))
}

func TestEvaluate_UsesPacedTargets(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultScoringConfig()
	v := model.MetricValues{CCPct: model.Float(20), SCPct: model.Float(3.75), UPPct: model.Float(5), FixedPct: model.Float(15)}

	card := Evaluate(v, 1, cfg)
	assert.Equal(t, 100.0, card.WeightedScore)
	assert.Equal(t, model.StatusAbove, card.Status)
	assert.Equal(t, 4, card.TargetsHit)
	assert.Equal(t, 20.0, card.Targets.CC)

	late := Evaluate(v, 4, cfg)
	assert.Equal(t, model.StatusBelow, late.Status)
	assert.Zero(t, late.TargetsHit)
}

func TestStatusCounts(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultScoringConfig()
	counts := StatusCounts([]model.MergedMetric{
		{WeekOfMonth: 4, Values: model.MetricValues{CCPct: model.Float(200), SCPct: model.Float(30), UPPct: model.Float(30), FixedPct: model.Float(90)}},
		{WeekOfMonth: 4, Values: model.MetricValues{CCPct: model.Float(1)}},
	}, cfg)

	assert.Equal(t, 1, counts[model.StatusAbove])
	assert.Equal(t, 0, counts[model.StatusWarning])
	assert.Equal(t, 1, counts[model.StatusBelow])
}
