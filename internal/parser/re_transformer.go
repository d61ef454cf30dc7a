package parser

import "cmpulse/internal/model"

// TransformRE 转介绍漏斗：leads 必填，到课/付费/达成率可选
func TransformRE(sheet *Sheet, opts TransformOptions) *TransformResult {
	return rowPass{
		source:      model.SourceRE,
		forwardFill: true,
		build: func(in rowInput) (model.CanonicalRow, error) {
			row := in.Base
			leads, err := in.requireNumber(model.FieldReferralLeads)
			if err != nil {
				return row, err
			}
			showups, err := in.number(model.FieldReferralShowups)
			if err != nil {
				return row, err
			}
			paid, err := in.number(model.FieldReferralPaid)
			if err != nil {
				return row, err
			}
			ach, err := in.percent(model.FieldReferralAchievementPct)
			if err != nil {
				return row, err
			}

			row.Values.ReferralLeads = leads
			row.Values.ReferralShowups = showups
			row.Values.ReferralPaid = paid
			row.Values.ReferralAchievementPct = ach
			return row, nil
		},
	}.run(sheet, opts)
}
