package parser

import "cmpulse/internal/model"

// TransformUP 升级率文件
func TransformUP(sheet *Sheet, opts TransformOptions) *TransformResult {
	return rowPass{
		source:      model.SourceUP,
		forwardFill: true,
		build: func(in rowInput) (model.CanonicalRow, error) {
			row := in.Base
			up, err := in.requirePercent(model.FieldUPPct)
			if err != nil {
				return row, err
			}
			row.Values.UPPct = up
			return row, nil
		},
	}.run(sheet, opts)
}
