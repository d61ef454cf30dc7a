package parser

import "cmpulse/internal/model"

// TransformAllLeads 线索回收：计算回收转化率并拆分备注
func TransformAllLeads(sheet *Sheet, opts TransformOptions) *TransformResult {
	return rowPass{
		source: model.SourceAllLeads,
		build: func(in rowInput) (model.CanonicalRow, error) {
			row := in.Base
			total, err := in.requireNumber(model.FieldTotalLeads)
			if err != nil {
				return row, err
			}
			recovered, err := in.number(model.FieldRecoveredLeads)
			if err != nil {
				return row, err
			}
			unrecovered, err := in.number(model.FieldUnrecoveredLeads)
			if err != nil {
				return row, err
			}
			conversion, err := in.percent(model.FieldConversionPct)
			if err != nil {
				return row, err
			}
			if recovered != nil && *total > 0 {
				conversion = model.Float(roundTo(*recovered / *total * 100, 6))
			}

			row.Values.TotalLeads = total
			row.Values.RecoveredLeads = recovered
			row.Values.UnrecoveredLeads = unrecovered
			row.Values.ConversionPct = conversion
			row.Values.Notes = SplitNotes(in.cell(model.FieldNotes))
			return row, nil
		},
	}.run(sheet, opts)
}
