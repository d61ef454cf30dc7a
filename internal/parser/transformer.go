package parser

import (
	"fmt"
	"strings"
	"time"

	"cmpulse/internal/model"
)

// DefaultSummaryMarkers 汇总行标记（姓名中包含即视为汇总行）
var DefaultSummaryMarkers = []string{"total"}

// TransformOptions 转换选项
type TransformOptions struct {
	Overrides       model.ColumnMapping
	Now             time.Time // 文件无日期列时的周期日期
	KeepSummaryRows bool
	SummaryMarkers  []string
}

// TransformResult 单个文件的转换结果
type TransformResult struct {
	Source           model.SourceType     `json:"source"`
	File             string               `json:"file"`
	Received         int                  `json:"received"`
	Accepted         []model.CanonicalRow `json:"accepted"`
	Rejected         []model.RejectedRow  `json:"rejected"`
	ColumnsDetected  []string             `json:"columnsDetected"`
	ColumnsMapped    map[string]string    `json:"columnsMapped"`
	UnmappedRequired []model.Field        `json:"unmappedRequiredFields,omitempty"`
}

// Transform 按来源类型分派到对应转换器
func Transform(source model.SourceType, sheet *Sheet, opts TransformOptions) (*TransformResult, error) {
	switch source {
	case model.SourceCC:
		return TransformCC(sheet, opts), nil
	case model.SourceFixed:
		return TransformFixed(sheet, opts), nil
	case model.SourceUP:
		return TransformUP(sheet, opts), nil
	case model.SourceRE:
		return TransformRE(sheet, opts), nil
	case model.SourceAllLeads:
		return TransformAllLeads(sheet, opts), nil
	case model.SourceTeams:
		return TransformTeams(sheet, opts), nil
	}
	return nil, fmt.Errorf("no transformer for source %q", source)
}

// rowInput 单行转换输入，Base 已填充姓名/团队/日期/校验和
type rowInput struct {
	Row     SheetRow
	Mapping model.ColumnMapping
	Base    model.CanonicalRow
}

// value 单元格原始值（数值单元格为 float64）
func (in rowInput) value(f model.Field) any {
	col, ok := in.Mapping[f]
	if !ok {
		return nil
	}
	return in.Row.Cells[col]
}

func (in rowInput) cell(f model.Field) string {
	return model.CellText(in.value(f))
}

// has 列已映射且单元格非空
func (in rowInput) has(f model.Field) bool {
	return in.cell(f) != ""
}

// percent 可选百分比字段；有值但无法解析时报错
func (in rowInput) percent(f model.Field) (*float64, error) {
	raw := in.cell(f)
	if raw == "" {
		return nil, nil
	}
	v := CleanPercent(in.value(f))
	if v == nil {
		return nil, fmt.Errorf("invalid %s: %q", f, raw)
	}
	return v, nil
}

// number 可选数值字段；有值但无法解析时报错
func (in rowInput) number(f model.Field) (*float64, error) {
	raw := in.cell(f)
	if raw == "" {
		return nil, nil
	}
	v := CleanNumeric(in.value(f))
	if v == nil {
		return nil, fmt.Errorf("invalid %s: %q", f, raw)
	}
	return v, nil
}

func (in rowInput) requirePercent(f model.Field) (*float64, error) {
	v, err := in.percent(f)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("missing %s", f)
	}
	return v, nil
}

func (in rowInput) requireNumber(f model.Field) (*float64, error) {
	v, err := in.number(f)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("missing %s", f)
	}
	return v, nil
}

// rowBuilder 将单行转为规范行；返回 error 表示该行被拒绝
type rowBuilder func(in rowInput) (model.CanonicalRow, error)

// rowPass 表示逐行折叠的配置
type rowPass struct {
	source      model.SourceType
	forwardFill bool
	build       rowBuilder
}

// run 逐行折叠：currentTeam 作为累加器在行间传递
func (p rowPass) run(sheet *Sheet, opts TransformOptions) *TransformResult {
	res, mapping := newResult(p.source, sheet, opts)

	currentTeam := ""
	for _, row := range sheet.Rows {
		in := rowInput{Row: row, Mapping: mapping}

		name := in.cell(model.FieldMentorName)
		if !opts.KeepSummaryRows && isSummaryRow(name, opts.SummaryMarkers) {
			continue
		}

		team := cleanTeam(in.cell(model.FieldTeamName))
		if p.forwardFill {
			currentTeam = carryTeam(currentTeam, team)
			team = currentTeam
		}
		if strings.TrimSpace(name) == "" {
			continue
		}
		res.Received++

		base, err := baseRow(p.source, sheet.Name, in, team, opts.Now)
		if err != nil {
			res.reject(row, err.Error())
			continue
		}
		in.Base = base

		out, err := safeBuild(p.build, in)
		if err != nil {
			res.reject(row, err.Error())
			continue
		}
		res.Accepted = append(res.Accepted, out)
	}
	return res
}

// carryTeam 前向填充：非空团队覆盖当前团队
func carryTeam(current, cell string) string {
	if cell != "" {
		return cell
	}
	return current
}

// safeBuild 行级 panic 转为拒绝原因
func safeBuild(build rowBuilder, in rowInput) (row model.CanonicalRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row transform failed: %v", r)
		}
	}()
	return build(in)
}

func newResult(source model.SourceType, sheet *Sheet, opts TransformOptions) (*TransformResult, model.ColumnMapping) {
	mr := AutoMap(sheet.Headers, source, opts.Overrides)

	res := &TransformResult{
		Source:           source,
		File:             sheet.Name,
		ColumnsMapped:    make(map[string]string, len(mr.Mapping)),
		UnmappedRequired: mr.UnmappedRequired,
	}
	for _, h := range sheet.Headers {
		if h != "" {
			res.ColumnsDetected = append(res.ColumnsDetected, h)
		}
	}
	for f, col := range mr.Mapping {
		res.ColumnsMapped[string(f)] = col
	}
	return res, mr.Mapping
}

func (r *TransformResult) reject(row SheetRow, reason string) {
	data := make(map[string]any, len(row.Cells))
	for k, v := range row.Cells {
		if model.CellText(v) != "" {
			data[k] = v
		}
	}
	r.Rejected = append(r.Rejected, model.RejectedRow{
		File:   r.File,
		Row:    row.RowNo,
		Reason: reason,
		Data:   data,
	})
}

// baseRow 填充所有来源共有的身份字段
func baseRow(source model.SourceType, file string, in rowInput, team string, now time.Time) (model.CanonicalRow, error) {
	display := strings.Join(strings.Fields(in.cell(model.FieldMentorName)), " ")
	name := NormalizeName(display)
	if name == "" {
		return model.CanonicalRow{}, fmt.Errorf("invalid mentor name: %q", display)
	}

	period, err := periodDate(in, now)
	if err != nil {
		return model.CanonicalRow{}, err
	}

	return model.CanonicalRow{
		Source:      source,
		File:        file,
		RowNo:       in.Row.RowNo,
		MentorName:  name,
		DisplayName: display,
		TeamName:    team,
		PeriodDate:  period,
		WeekOfMonth: WeekOfMonth(period),
		Checksum:    Checksum(name, period),
	}, nil
}

func periodDate(in rowInput, now time.Time) (time.Time, error) {
	raw := in.cell(model.FieldPeriodDate)
	if raw == "" {
		if now.IsZero() {
			now = time.Now()
		}
		return TruncateDay(now), nil
	}
	d, ok := ParseDate(in.value(model.FieldPeriodDate))
	if !ok {
		// 形如 20240312 的数值单元格按文本再解析一次
		d, ok = ParseDate(raw)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("invalid periodDate: %q", raw)
	}
	return d, nil
}

// isSummaryRow 姓名包含汇总标记（大小写不敏感）
func isSummaryRow(name string, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultSummaryMarkers
	}
	lower := strings.ToLower(name)
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func cleanTeam(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
