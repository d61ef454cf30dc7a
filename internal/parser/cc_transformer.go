package parser

import "cmpulse/internal/model"

// TransformCC 课消文件：ccPct 必填，scPct 可选，团队前向填充
func TransformCC(sheet *Sheet, opts TransformOptions) *TransformResult {
	return rowPass{
		source:      model.SourceCC,
		forwardFill: true,
		build: func(in rowInput) (model.CanonicalRow, error) {
			row := in.Base
			cc, err := in.requirePercent(model.FieldCCPct)
			if err != nil {
				return row, err
			}
			sc, err := in.percent(model.FieldSCPct)
			if err != nil {
				return row, err
			}
			row.Values.CCPct = cc
			row.Values.SCPct = sc
			return row, nil
		},
	}.run(sheet, opts)
}
