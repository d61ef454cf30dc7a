package calculator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

// Source 记分板所需的只读数据
type Source interface {
	ListTeams(ctx context.Context) ([]model.Team, error)
	ListMentors(ctx context.Context, opts store.MentorQueryOptions) ([]model.Mentor, error)
	ListMetricRecords(ctx context.Context, opts store.MetricQueryOptions) ([]model.MetricRecord, error)
	ListAvailablePeriods(ctx context.Context) ([]store.PeriodStat, error)
	GetScoringConfig(ctx context.Context) (*model.ScoringConfig, error)
}

// Calculator 基于持久化数据计算记分板
type Calculator struct {
	source Source
}

// NewCalculator 创建计算器
func NewCalculator(source Source) *Calculator {
	return &Calculator{source: source}
}

// Query 记分板查询；PeriodDate 为空时取最近有数据的日期
type Query struct {
	PeriodDate *time.Time
	TeamID     string
}

// Scoreboard 计算指定周期（可按团队过滤）的评分
func (c *Calculator) Scoreboard(ctx context.Context, q Query) (*model.Scoreboard, error) {
	cfg, err := c.source.GetScoringConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring config: %w", err)
	}

	board := &model.Scoreboard{
		Config:       *cfg,
		Rows:         []model.MentorScore{},
		StatusCounts: map[model.MetricStatus]int{model.StatusAbove: 0, model.StatusWarning: 0, model.StatusBelow: 0},
	}

	day := q.PeriodDate
	if day == nil {
		latest, err := c.latestPeriod(ctx)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return board, nil
		}
		day = latest
	}
	board.PeriodDate = day.Format(model.DateLayout)

	records, err := c.source.ListMetricRecords(ctx, store.MetricQueryOptions{PeriodDate: day, TeamID: q.TeamID})
	if err != nil {
		return nil, fmt.Errorf("failed to list metric records: %w", err)
	}
	mentors, err := c.source.ListMentors(ctx, store.MentorQueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	teams, err := c.source.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	mentorByID := make(map[string]model.Mentor, len(mentors))
	for _, m := range mentors {
		mentorByID[m.ID] = m
	}
	teamName := make(map[string]string, len(teams))
	for _, t := range teams {
		teamName[t.ID] = t.Name
	}

	for _, rec := range records {
		m := mentorByID[rec.MentorID]
		card := Evaluate(rec.MetricValues, rec.WeekOfMonth, *cfg)
		board.StatusCounts[card.Status]++
		board.Rows = append(board.Rows, model.MentorScore{
			MentorID:    rec.MentorID,
			ExternalID:  m.ExternalID,
			DisplayName: m.DisplayName,
			TeamID:      rec.TeamID,
			TeamName:    teamName[rec.TeamID],
			PeriodDate:  rec.PeriodDate.Format(model.DateLayout),
			WeekOfMonth: rec.WeekOfMonth,
			Values:      rec.MetricValues,
			Scorecard:   card,
		})
	}

	sort.SliceStable(board.Rows, func(i, j int) bool {
		a, b := board.Rows[i], board.Rows[j]
		if a.TeamName != b.TeamName {
			return a.TeamName < b.TeamName
		}
		return a.DisplayName < b.DisplayName
	})
	return board, nil
}

func (c *Calculator) latestPeriod(ctx context.Context) (*time.Time, error) {
	periods, err := c.source.ListAvailablePeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, nil
	}
	day, err := time.Parse(model.DateLayout, periods[0].PeriodDate)
	if err != nil {
		return nil, fmt.Errorf("invalid period %q: %w", periods[0].PeriodDate, err)
	}
	return &day, nil
}
