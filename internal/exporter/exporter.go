package exporter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"cmpulse/internal/calculator"
	"cmpulse/internal/model"
)

// 工作表名称
const (
	SheetScorecards = "Scorecards"
	SheetTeams      = "Teams"
)

var scorecardHeaders = []any{
	"Team", "Mentor", "Period", "Week",
	"CC %", "SC %", "UP %", "Fixed %",
	"Referral Leads", "Referral Showups", "Referral Paid", "Referral Achievement %",
	"Total Leads", "Recovered Leads", "Unrecovered Leads", "Conversion %",
	"Score", "Status", "Targets Hit", "Notes",
}

var teamHeaders = []any{"Team", "Mentors", "Average Score", "ABOVE", "WARNING", "BELOW"}

// Exporter 记分板导出器
type Exporter struct {
	calc *calculator.Calculator
}

// NewExporter 创建导出器
func NewExporter(calc *calculator.Calculator) *Exporter {
	return &Exporter{calc: calc}
}

// ExportOptions 导出选项
type ExportOptions = calculator.Query

// Export 生成包含 mentor 明细与团队汇总的工作簿
func (e *Exporter) Export(ctx context.Context, opts ExportOptions, progress func(ProgressEvent)) (*excelize.File, *model.Scoreboard, error) {
	reportProgress(progress, 5, "loading")
	board, err := e.calc.Scoreboard(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetScorecards); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	reportProgress(progress, 40, "scorecards")
	if err := writeScorecards(f, board); err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	reportProgress(progress, 80, "teams")
	if _, err := f.NewSheet(SheetTeams); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeTeams(f, board); err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	f.SetActiveSheet(0)
	reportProgress(progress, 100, "done")
	return f, board, nil
}

func writeScorecards(f *excelize.File, board *model.Scoreboard) error {
	if err := f.SetSheetRow(SheetScorecards, "A1", &scorecardHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range board.Rows {
		v := r.Values
		row := []any{
			r.TeamName, r.DisplayName, r.PeriodDate, r.WeekOfMonth,
			cellValue(v.CCPct), cellValue(v.SCPct), cellValue(v.UPPct), cellValue(v.FixedPct),
			cellValue(v.ReferralLeads), cellValue(v.ReferralShowups), cellValue(v.ReferralPaid), cellValue(v.ReferralAchievementPct),
			cellValue(v.TotalLeads), cellValue(v.RecoveredLeads), cellValue(v.UnrecoveredLeads), cellValue(v.ConversionPct),
			r.Scorecard.WeightedScore, string(r.Scorecard.Status), r.Scorecard.TargetsHit, strings.Join(v.Notes, "; "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetScorecards, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetScorecards, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	return f.SetColWidth(SheetScorecards, "A", "B", 20)
}

type teamAgg struct {
	name   string
	count  int
	total  float64
	status map[model.MetricStatus]int
}

func writeTeams(f *excelize.File, board *model.Scoreboard) error {
	if err := f.SetSheetRow(SheetTeams, "A1", &teamHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	byTeam := make(map[string]*teamAgg)
	for _, r := range board.Rows {
		agg, ok := byTeam[r.TeamName]
		if !ok {
			agg = &teamAgg{name: r.TeamName, status: make(map[model.MetricStatus]int)}
			byTeam[r.TeamName] = agg
		}
		agg.count++
		agg.total += r.Scorecard.WeightedScore
		agg.status[r.Scorecard.Status]++
	}

	aggs := make([]*teamAgg, 0, len(byTeam))
	for _, a := range byTeam {
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].name < aggs[j].name })

	for i, a := range aggs {
		row := []any{
			a.name, a.count, math.Round(a.total/float64(a.count)*100) / 100,
			a.status[model.StatusAbove], a.status[model.StatusWarning], a.status[model.StatusBelow],
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetTeams, cell, &row); err != nil {
			return fmt.Errorf("failed to write team row %d: %w", i+2, err)
		}
	}
	return nil
}

// cellValue 缺失指标输出空单元格
func cellValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
