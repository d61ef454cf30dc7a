package persister

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

// ErrNoScoringConfig 全局评分配置不存在（致命前置条件）
var ErrNoScoringConfig = errors.New("no scoring configuration found")

// Repository 持久化端口
type Repository interface {
	EnsureTeam(ctx context.Context, name string) (*model.Team, error)
	FindMentor(ctx context.Context, externalID string) (*model.Mentor, error)
	UpsertMentor(ctx context.Context, m *model.Mentor) (*model.Mentor, error)
	FindMetricRecord(ctx context.Context, mentorID string, periodDate time.Time) (*model.MetricRecord, error)
	CreateMetricRecord(ctx context.Context, rec *model.MetricRecord) error
	UpdateMetricRecord(ctx context.Context, rec *model.MetricRecord) error
	GetScoringConfig(ctx context.Context) (*model.ScoringConfig, error)
	CreateImportRun(ctx context.Context, run *model.ImportRun) error
}

// Outcome 单条记录的持久化结果
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "skipped_duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Result 持久化汇总
type Result struct {
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	SkippedDuplicate int      `json:"skippedDuplicate"`
	Errors           []string `json:"errors"`

	Teams    int                        `json:"teams"`
	Outcomes map[model.SourceType]Tally `json:"outcomes"`
}

// Tally 按来源归集的更新/跳过计数
type Tally struct {
	Updated          int `json:"updated"`
	SkippedDuplicate int `json:"skippedDuplicate"`
}

func (r *Result) add(m model.MergedMetric, o Outcome) {
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeDuplicate:
		r.SkippedDuplicate++
	}
	if o != OutcomeUpdated && o != OutcomeDuplicate {
		return
	}
	for _, src := range m.Sources {
		t := r.Outcomes[src]
		if o == OutcomeUpdated {
			t.Updated++
		} else {
			t.SkippedDuplicate++
		}
		r.Outcomes[src] = t
	}
}

func (r *Result) addErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Options 持久化选项
type Options struct {
	Workers int // 并发处理的 mentor 数
}

// Persister 幂等写入 Team/Mentor/MetricRecord
type Persister struct {
	repo    Repository
	logger  *zap.Logger
	workers int
}

// New 创建 Persister
func New(repo Repository, logger *zap.Logger, opts Options) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Persister{repo: repo, logger: logger, workers: opts.Workers}
}

// ScoringConfig 读取全局评分配置；缺失返回 ErrNoScoringConfig
func (p *Persister) ScoringConfig(ctx context.Context) (*model.ScoringConfig, error) {
	cfg, err := p.repo.GetScoringConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoScoringConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring config: %w", err)
	}
	return cfg, nil
}

// Persist 写入校验通过的合并记录；单个 mentor 或记录的失败只记入 Errors
func (p *Persister) Persist(ctx context.Context, valid []model.MergedMetric) (*Result, error) {
	res := &Result{Outcomes: make(map[model.SourceType]Tally)}
	if len(valid) == 0 {
		return res, nil
	}

	teamIDs := p.ensureTeams(ctx, valid, res)

	groups, order := groupByMentor(valid)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, name := range order {
		records := groups[name]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes, errs := p.persistMentor(gctx, records, teamIDs)

			mu.Lock()
			defer mu.Unlock()
			for i, o := range outcomes {
				res.add(records[i], o)
			}
			res.Errors = append(res.Errors, errs...)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("persist cancelled: %w", err)
	}
	return res, nil
}

// ensureTeams 幂等创建所有引用的团队及兜底团队
//
// 创建失败记入 Errors；兜底团队也失败时其 ID 为空，依赖它的 mentor 在 upsertMentor 中失败。
func (p *Persister) ensureTeams(ctx context.Context, valid []model.MergedMetric, res *Result) map[string]string {
	unassignedID := ""
	unassigned, err := p.repo.EnsureTeam(ctx, model.UnassignedTeam)
	if err != nil {
		p.logger.Warn("team ensure failed", zap.String("team", model.UnassignedTeam), zap.Error(err))
		res.addErrorf("team %s: %v", model.UnassignedTeam, err)
	} else {
		unassignedID = unassigned.ID
	}

	ids := map[string]string{"": unassignedID}
	for _, m := range valid {
		if _, ok := ids[m.TeamName]; ok {
			continue
		}
		team, err := p.repo.EnsureTeam(ctx, m.TeamName)
		if err != nil {
			p.logger.Warn("team ensure failed", zap.String("team", m.TeamName), zap.Error(err))
			res.addErrorf("team %s: %v", m.TeamName, err)
			ids[m.TeamName] = unassignedID
			continue
		}
		ids[m.TeamName] = team.ID
	}
	res.Teams = countDistinct(ids)
	return ids
}

// persistMentor 同一 mentor 的记录按顺序写入
func (p *Persister) persistMentor(ctx context.Context, records []model.MergedMetric, teamIDs map[string]string) ([]Outcome, []string) {
	outcomes := make([]Outcome, len(records))
	for i := range outcomes {
		outcomes[i] = OutcomeFailed
	}

	first := records[0]
	mentor, err := p.upsertMentor(ctx, first, teamIDs)
	if err != nil {
		p.logger.Warn("mentor upsert failed", zap.String("mentor", first.MentorName), zap.Error(err))
		return outcomes, []string{fmt.Sprintf("mentor %s: %v", first.DisplayName, err)}
	}

	var errs []string
	for i, m := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Sprintf("mentor %s: %v", m.DisplayName, err))
			break
		}
		teamID := ""
		if m.TeamName != "" {
			teamID = teamIDs[m.TeamName]
		}
		o, err := p.persistRecord(ctx, mentor, m, teamID)
		if err != nil {
			p.logger.Warn("metric record persist failed",
				zap.String("mentor", m.MentorName),
				zap.String("period", m.PeriodDate.Format(model.DateLayout)),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("record %s %s: %v", m.DisplayName, m.PeriodDate.Format(model.DateLayout), err))
			continue
		}
		outcomes[i] = o
	}
	return outcomes, errs
}

// upsertMentor 团队取首条记录；无团队时不覆盖已有归属
func (p *Persister) upsertMentor(ctx context.Context, first model.MergedMetric, teamIDs map[string]string) (*model.Mentor, error) {
	teamID := teamIDs[first.TeamName]
	if first.TeamName == "" {
		existing, err := p.repo.FindMentor(ctx, first.MentorName)
		switch {
		case err == nil:
			teamID = existing.TeamID
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	if teamID == "" {
		return nil, fmt.Errorf("no team available")
	}

	return p.repo.UpsertMentor(ctx, &model.Mentor{
		ExternalID:  first.MentorName,
		DisplayName: first.DisplayName,
		TeamID:      teamID,
	})
}

// persistRecord 校验和相同则跳过；否则新建或逐字段更新
func (p *Persister) persistRecord(ctx context.Context, mentor *model.Mentor, m model.MergedMetric, teamID string) (Outcome, error) {
	if teamID == "" {
		teamID = mentor.TeamID
	}

	existing, err := p.repo.FindMetricRecord(ctx, mentor.ID, m.PeriodDate)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return OutcomeFailed, err
	}

	rec := &model.MetricRecord{
		MentorID:     mentor.ID,
		TeamID:       teamID,
		PeriodDate:   m.PeriodDate,
		WeekOfMonth:  m.WeekOfMonth,
		Checksum:     m.Checksum,
		MetricValues: m.Values,
	}

	if existing == nil {
		if err := p.repo.CreateMetricRecord(ctx, rec); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeCreated, nil
	}

	if existing.Checksum == m.Checksum {
		return OutcomeDuplicate, nil
	}

	rec.ID = existing.ID
	if err := p.repo.UpdateMetricRecord(ctx, rec); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeUpdated, nil
}

// RecordRun 写入导入审计，失败不影响本次导入结果
func (p *Persister) RecordRun(ctx context.Context, run *model.ImportRun) error {
	if err := p.repo.CreateImportRun(ctx, run); err != nil {
		p.logger.Warn("import run audit failed", zap.Error(err))
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}

func groupByMentor(valid []model.MergedMetric) (map[string][]model.MergedMetric, []string) {
	groups := make(map[string][]model.MergedMetric)
	var order []string
	for _, m := range valid {
		if _, ok := groups[m.MentorName]; !ok {
			order = append(order, m.MentorName)
		}
		groups[m.MentorName] = append(groups[m.MentorName], m)
	}
	return groups, order
}

func countDistinct(ids map[string]string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen)
}
