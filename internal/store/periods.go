package store

import (
	"context"
	"fmt"
)

// PeriodStat 有数据的周期统计
type PeriodStat struct {
	PeriodDate string `json:"periodDate"`
	Records    int    `json:"records"`
	Teams      int    `json:"teams"`
}

// ListAvailablePeriods 列出存在指标数据的日期（倒序）
func (s *Store) ListAvailablePeriods(ctx context.Context) ([]PeriodStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_date, COUNT(1), COUNT(DISTINCT team_id)
		FROM metric_records
		GROUP BY period_date
		ORDER BY period_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query available periods failed: %w", err)
	}
	defer rows.Close()

	var out []PeriodStat
	for rows.Next() {
		var it PeriodStat
		if err := rows.Scan(&it.PeriodDate, &it.Records, &it.Teams); err != nil {
			return nil, fmt.Errorf("scan available periods failed: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available periods failed: %w", err)
	}
	return out, nil
}
