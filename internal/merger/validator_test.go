package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmpulse/internal/model"
)

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	merged := []model.MergedMetric{
		{DisplayName: "Ok", Values: model.MetricValues{CCPct: model.Float(199), FixedPct: model.Float(100)}},
		{DisplayName: "Empty", Values: model.MetricValues{Notes: []string{"only notes"}}},
		{DisplayName: "High CC", Values: model.MetricValues{CCPct: model.Float(201)}},
		{DisplayName: "High Fixed", Values: model.MetricValues{FixedPct: model.Float(100.5)}},
		{DisplayName: "Negative", Values: model.MetricValues{ReferralLeads: model.Float(-1)}},
		{DisplayName: "Zero", Values: model.MetricValues{UPPct: model.Float(0)}},
	}

	res := NewValidator().Validate(merged)

	require.Len(t, res.Valid, 2)
	assert.Equal(t, "Ok", res.Valid[0].DisplayName)
	assert.Equal(t, "Zero", res.Valid[1].DisplayName)

	require.Len(t, res.Invalid, 4)
	assert.Equal(t, model.InvalidRecord{Mentor: "Empty", Reason: "no metric present"}, res.Invalid[0])
	assert.Equal(t, "ccPct exceeds 200", res.Invalid[1].Reason)
	assert.Equal(t, "fixedPct exceeds 100", res.Invalid[2].Reason)
	assert.Equal(t, "referralLeads must not be negative", res.Invalid[3].Reason)
}
