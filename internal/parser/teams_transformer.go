package parser

import (
	"errors"

	"cmpulse/internal/model"
)

// TransformTeams 团队映射文件：mentor 与 team 均必填，不携带指标
func TransformTeams(sheet *Sheet, opts TransformOptions) *TransformResult {
	return rowPass{
		source: model.SourceTeams,
		build: func(in rowInput) (model.CanonicalRow, error) {
			row := in.Base
			if row.TeamName == "" {
				return row, errors.New("missing teamName")
			}
			return row, nil
		},
	}.run(sheet, opts)
}
