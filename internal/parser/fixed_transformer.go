package parser

import (
	"fmt"
	"strings"

	"cmpulse/internal/model"
)

// fixedAgg 单个 mentor 的固定率累计
type fixedAgg struct {
	first model.CanonicalRow
	row   SheetRow
	fixed float64
	total float64
}

// TransformFixed 固定率文件：按 mentor 汇总 fixed/total 后计算 fixedPct
func TransformFixed(sheet *Sheet, opts TransformOptions) *TransformResult {
	res, mapping := newResult(model.SourceFixed, sheet, opts)

	aggs := make(map[string]*fixedAgg)
	var order []string

	for _, row := range sheet.Rows {
		in := rowInput{Row: row, Mapping: mapping}
		name := in.cell(model.FieldMentorName)
		if !opts.KeepSummaryRows && isSummaryRow(name, opts.SummaryMarkers) {
			continue
		}
		if strings.TrimSpace(name) == "" {
			continue
		}
		res.Received++

		base, err := baseRow(model.SourceFixed, sheet.Name, in, cleanTeam(in.cell(model.FieldTeamName)), opts.Now)
		if err != nil {
			res.reject(row, err.Error())
			continue
		}
		in.Base = base

		fixed, total, err := fixedCounts(in)
		if err != nil {
			res.reject(row, err.Error())
			continue
		}

		agg, ok := aggs[base.MentorName]
		if !ok {
			agg = &fixedAgg{first: base, row: row}
			aggs[base.MentorName] = agg
			order = append(order, base.MentorName)
		}
		if agg.first.TeamName == "" && base.TeamName != "" {
			agg.first.TeamName = base.TeamName
		}
		agg.fixed += fixed
		agg.total += total
	}

	for _, name := range order {
		agg := aggs[name]
		if agg.total <= 0 {
			res.reject(agg.row, fmt.Sprintf("total students is zero for %s", agg.first.DisplayName))
			continue
		}
		out := agg.first
		out.Values.FixedPct = model.Float(roundTo(agg.fixed/agg.total*100, 6))
		res.Accepted = append(res.Accepted, out)
	}
	return res
}

func fixedCounts(in rowInput) (fixed, total float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row transform failed: %v", r)
		}
	}()

	f, err := in.requireNumber(model.FieldFixedCount)
	if err != nil {
		return 0, 0, err
	}
	t, err := in.requireNumber(model.FieldTotalCount)
	if err != nil {
		return 0, 0, err
	}
	if *f < 0 || *t < 0 {
		return 0, 0, fmt.Errorf("negative counts: fixed=%v total=%v", *f, *t)
	}
	return *f, *t, nil
}
