package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cmpulse/internal/model"
)

// Memory 内存实现，语义与 SQLite Store 一致（用于测试与 dry-run）
type Memory struct {
	mu       sync.Mutex
	teams    map[string]model.Team // name_key -> team
	mentors  map[string]model.Mentor
	records  map[string]model.MetricRecord // mentorID|date -> record
	scoring  *model.ScoringConfig
	runs     []model.ImportRun
	failWith map[string]error
	failTeam map[string]error
}

// NewMemory 创建内存存储
func NewMemory() *Memory {
	return &Memory{
		teams:    make(map[string]model.Team),
		mentors:  make(map[string]model.Mentor),
		records:  make(map[string]model.MetricRecord),
		failWith: make(map[string]error),
		failTeam: make(map[string]error),
	}
}

// FailMentor 让指定 mentor 的写入失败（测试用）
func (m *Memory) FailMentor(externalID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith[externalID] = err
}

// FailTeam 让指定团队的创建失败（测试用）
func (m *Memory) FailTeam(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTeam[teamKey(name)] = err
}

func recordKey(mentorID string, day time.Time) string {
	return mentorID + "|" + day.Format(model.DateLayout)
}

// EnsureTeam 按名称幂等创建团队
func (m *Memory) EnsureTeam(_ context.Context, name string) (*model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("team name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := teamKey(name)
	if err := m.failTeam[key]; err != nil {
		return nil, err
	}
	t, ok := m.teams[key]
	if !ok {
		t = model.Team{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
		m.teams[key] = t
	}
	return &t, nil
}

// GetTeam 按 ID 查询团队
func (m *Memory) GetTeam(_ context.Context, id string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// ListTeams 列出全部团队
func (m *Memory) ListTeams(_ context.Context) ([]model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindMentor 按外部标识查询
func (m *Memory) FindMentor(_ context.Context, externalID string) (*model.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mentor, ok := m.mentors[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &mentor, nil
}

// UpsertMentor 按 external_id 插入或更新
func (m *Memory) UpsertMentor(_ context.Context, in *model.Mentor) (*model.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWith[in.ExternalID]; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mentor, ok := m.mentors[in.ExternalID]
	if !ok {
		mentor = model.Mentor{ID: uuid.NewString(), ExternalID: in.ExternalID, CreatedAt: now}
	}
	mentor.DisplayName = in.DisplayName
	mentor.TeamID = in.TeamID
	mentor.UpdatedAt = now
	m.mentors[in.ExternalID] = mentor
	return &mentor, nil
}

// ListMentors 列出导师
func (m *Memory) ListMentors(_ context.Context, opts MentorQueryOptions) ([]model.Mentor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Mentor
	for _, mentor := range m.mentors {
		if opts.TeamID != "" && mentor.TeamID != opts.TeamID {
			continue
		}
		out = append(out, mentor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// FindMetricRecord 查询 mentor 在某日的指标记录
func (m *Memory) FindMetricRecord(_ context.Context, mentorID string, periodDate time.Time) (*model.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordKey(mentorID, periodDate)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CreateMetricRecord 新建指标记录
func (m *Memory) CreateMetricRecord(_ context.Context, rec *model.MetricRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(rec.MentorID, rec.PeriodDate)
	if _, exists := m.records[key]; exists {
		return fmt.Errorf("failed to insert metric record: duplicate (mentor, period_date)")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	m.records[key] = *rec
	return nil
}

// UpdateMetricRecord 逐字段更新；nil 指标保留原值
func (m *Memory) UpdateMetricRecord(_ context.Context, rec *model.MetricRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, cur := range m.records {
		if cur.ID != rec.ID {
			continue
		}
		cur.TeamID = rec.TeamID
		cur.WeekOfMonth = rec.WeekOfMonth
		cur.Checksum = rec.Checksum
		cur.MetricValues = coalesceValues(rec.MetricValues, cur.MetricValues)
		cur.UpdatedAt = time.Now().UTC()
		m.records[key] = cur
		return nil
	}
	return ErrNotFound
}

// ListMetricRecords 按条件列出指标记录
func (m *Memory) ListMetricRecords(_ context.Context, opts MetricQueryOptions) ([]model.MetricRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.MetricRecord
	for _, rec := range m.records {
		if opts.PeriodDate != nil && !rec.PeriodDate.Equal(*opts.PeriodDate) {
			continue
		}
		if opts.TeamID != "" && rec.TeamID != opts.TeamID {
			continue
		}
		if opts.MentorID != "" && rec.MentorID != opts.MentorID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodDate.Equal(out[j].PeriodDate) {
			return out[i].PeriodDate.After(out[j].PeriodDate)
		}
		return out[i].MentorID < out[j].MentorID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListAvailablePeriods 列出存在指标数据的日期（倒序）
func (m *Memory) ListAvailablePeriods(_ context.Context) ([]PeriodStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate := make(map[string]*PeriodStat)
	teams := make(map[string]map[string]struct{})
	for _, rec := range m.records {
		d := rec.PeriodDate.Format(model.DateLayout)
		st, ok := byDate[d]
		if !ok {
			st = &PeriodStat{PeriodDate: d}
			byDate[d] = st
			teams[d] = make(map[string]struct{})
		}
		st.Records++
		teams[d][rec.TeamID] = struct{}{}
	}

	out := make([]PeriodStat, 0, len(byDate))
	for d, st := range byDate {
		st.Teams = len(teams[d])
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate > out[j].PeriodDate })
	return out, nil
}

// GetScoringConfig 读取评分配置
func (m *Memory) GetScoringConfig(_ context.Context) (*model.ScoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scoring == nil {
		return nil, ErrNotFound
	}
	c := *m.scoring
	return &c, nil
}

// SaveScoringConfig 写入评分配置
func (m *Memory) SaveScoringConfig(_ context.Context, c model.ScoringConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoring = &c
	return nil
}

// CreateImportRun 写入导入审计
func (m *Memory) CreateImportRun(_ context.Context, run *model.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs = append(m.runs, *run)
	return nil
}

// ListImportRuns 最近的导入运行
func (m *Memory) ListImportRuns(_ context.Context, limit int) ([]model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	out := make([]model.ImportRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// coalesceValues 以 in 的非 nil 字段覆盖 cur
func coalesceValues(in, cur model.MetricValues) model.MetricValues {
	pick := func(a, b *float64) *float64 {
		if a != nil {
			return a
		}
		return b
	}
	out := model.MetricValues{
		CCPct:                  pick(in.CCPct, cur.CCPct),
		SCPct:                  pick(in.SCPct, cur.SCPct),
		UPPct:                  pick(in.UPPct, cur.UPPct),
		FixedPct:               pick(in.FixedPct, cur.FixedPct),
		ReferralLeads:          pick(in.ReferralLeads, cur.ReferralLeads),
		ReferralShowups:        pick(in.ReferralShowups, cur.ReferralShowups),
		ReferralPaid:           pick(in.ReferralPaid, cur.ReferralPaid),
		ReferralAchievementPct: pick(in.ReferralAchievementPct, cur.ReferralAchievementPct),
		TotalLeads:             pick(in.TotalLeads, cur.TotalLeads),
		RecoveredLeads:         pick(in.RecoveredLeads, cur.RecoveredLeads),
		UnrecoveredLeads:       pick(in.UnrecoveredLeads, cur.UnrecoveredLeads),
		ConversionPct:          pick(in.ConversionPct, cur.ConversionPct),
		Notes:                  cur.Notes,
	}
	if len(in.Notes) > 0 {
		out.Notes = in.Notes
	}
	return out
}
