package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cmpulse/internal/model"
)

const metricColumns = `
	id, mentor_id, team_id, period_date, week_of_month,
	cc_pct, sc_pct, up_pct, fixed_pct,
	referral_leads, referral_showups, referral_paid, referral_achievement_pct,
	total_leads, recovered_leads, unrecovered_leads, conversion_pct,
	notes, checksum, created_at, updated_at`

// FindMetricRecord 查询 mentor 在某日的指标记录
func (s *Store) FindMetricRecord(ctx context.Context, mentorID string, periodDate time.Time) (*model.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM metric_records WHERE mentor_id = ? AND period_date = ?`,
		mentorID, periodDate.Format(model.DateLayout))
	return scanMetricRecord(row)
}

// CreateMetricRecord 新建指标记录
func (s *Store) CreateMetricRecord(ctx context.Context, rec *model.MetricRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now()
	rec.CreatedAt, rec.UpdatedAt = now, now

	notes, err := encodeNotes(rec.Notes)
	if err != nil {
		return err
	}

	v := rec.MetricValues
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_records (`+metricColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.MentorID, rec.TeamID, rec.PeriodDate.Format(model.DateLayout), rec.WeekOfMonth,
		v.CCPct, v.SCPct, v.UPPct, v.FixedPct,
		v.ReferralLeads, v.ReferralShowups, v.ReferralPaid, v.ReferralAchievementPct,
		v.TotalLeads, v.RecoveredLeads, v.UnrecoveredLeads, v.ConversionPct,
		notes, rec.Checksum, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric record: %w", err)
	}
	return nil
}

// UpdateMetricRecord 逐字段更新；未提供（nil）的指标保留原值
func (s *Store) UpdateMetricRecord(ctx context.Context, rec *model.MetricRecord) error {
	notes, err := encodeNotes(rec.Notes)
	if err != nil {
		return err
	}
	rec.UpdatedAt = s.now()

	v := rec.MetricValues
	res, err := s.db.ExecContext(ctx, `
		UPDATE metric_records SET
			team_id = ?,
			week_of_month = ?,
			cc_pct = COALESCE(?, cc_pct),
			sc_pct = COALESCE(?, sc_pct),
			up_pct = COALESCE(?, up_pct),
			fixed_pct = COALESCE(?, fixed_pct),
			referral_leads = COALESCE(?, referral_leads),
			referral_showups = COALESCE(?, referral_showups),
			referral_paid = COALESCE(?, referral_paid),
			referral_achievement_pct = COALESCE(?, referral_achievement_pct),
			total_leads = COALESCE(?, total_leads),
			recovered_leads = COALESCE(?, recovered_leads),
			unrecovered_leads = COALESCE(?, unrecovered_leads),
			conversion_pct = COALESCE(?, conversion_pct),
			notes = COALESCE(?, notes),
			checksum = ?,
			updated_at = ?
		WHERE id = ?
	`,
		rec.TeamID, rec.WeekOfMonth,
		v.CCPct, v.SCPct, v.UPPct, v.FixedPct,
		v.ReferralLeads, v.ReferralShowups, v.ReferralPaid, v.ReferralAchievementPct,
		v.TotalLeads, v.RecoveredLeads, v.UnrecoveredLeads, v.ConversionPct,
		notes, rec.Checksum, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update metric record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MetricQueryOptions 查询条件
type MetricQueryOptions struct {
	PeriodDate *time.Time
	TeamID     string
	MentorID   string
	Limit      int
	Offset     int
}

// ListMetricRecords 按条件列出指标记录
func (s *Store) ListMetricRecords(ctx context.Context, opts MetricQueryOptions) ([]model.MetricRecord, error) {
	query := `SELECT ` + metricColumns + ` FROM metric_records WHERE 1=1`
	args := []any{}

	if opts.PeriodDate != nil {
		query += " AND period_date = ?"
		args = append(args, opts.PeriodDate.Format(model.DateLayout))
	}
	if opts.TeamID != "" {
		query += " AND team_id = ?"
		args = append(args, opts.TeamID)
	}
	if opts.MentorID != "" {
		query += " AND mentor_id = ?"
		args = append(args, opts.MentorID)
	}

	query += " ORDER BY period_date DESC, mentor_id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric records: %w", err)
	}
	defer rows.Close()

	var out []model.MetricRecord
	for rows.Next() {
		rec, err := scanMetricRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric records failed: %w", err)
	}
	return out, nil
}

func scanMetricRecord(r rowScanner) (*model.MetricRecord, error) {
	var (
		rec    model.MetricRecord
		period string
		notes  sql.NullString
	)
	v := &rec.MetricValues
	err := r.Scan(
		&rec.ID, &rec.MentorID, &rec.TeamID, &period, &rec.WeekOfMonth,
		&v.CCPct, &v.SCPct, &v.UPPct, &v.FixedPct,
		&v.ReferralLeads, &v.ReferralShowups, &v.ReferralPaid, &v.ReferralAchievementPct,
		&v.TotalLeads, &v.RecoveredLeads, &v.UnrecoveredLeads, &v.ConversionPct,
		&notes, &rec.Checksum, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan metric record: %w", err)
	}

	rec.PeriodDate, err = time.Parse(model.DateLayout, period)
	if err != nil {
		return nil, fmt.Errorf("invalid period_date %q: %w", period, err)
	}
	if notes.Valid && notes.String != "" {
		if err := json.Unmarshal([]byte(notes.String), &v.Notes); err != nil {
			return nil, fmt.Errorf("invalid notes: %w", err)
		}
	}
	return &rec, nil
}

// encodeNotes 备注以 JSON 数组存储；空备注返回 nil 以保留原值
func encodeNotes(notes []string) (any, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notes: %w", err)
	}
	return string(b), nil
}
