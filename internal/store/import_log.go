package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"cmpulse/internal/model"
)

// CreateImportRun 写入一次导入运行的审计记录
func (s *Store) CreateImportRun(ctx context.Context, run *model.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	files, err := json.Marshal(nonNilStrings(run.Files))
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}
	totals, err := json.Marshal(run.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode totals: %w", err)
	}
	errs, err := json.Marshal(nonNilStrings(run.Errors))
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}
	coverage, err := json.Marshal(run.Coverage)
	if err != nil {
		return fmt.Errorf("failed to encode coverage: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, source, files, totals, errors, coverage, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, string(files), string(totals), string(errs), string(coverage), run.DurationMs, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// ListImportRuns 最近的导入运行（按时间倒序）
func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, files, totals, errors, coverage, duration_ms, created_at
		FROM import_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	var out []model.ImportRun
	for rows.Next() {
		var (
			run                             model.ImportRun
			files, totals, errs, coverageJS string
		)
		if err := rows.Scan(&run.ID, &run.Source, &files, &totals, &errs, &coverageJS, &run.DurationMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		if err := decodeJSON(files, &run.Files); err != nil {
			return nil, err
		}
		if err := decodeJSON(totals, &run.Totals); err != nil {
			return nil, err
		}
		if err := decodeJSON(errs, &run.Errors); err != nil {
			return nil, err
		}
		if err := decodeJSON(coverageJS, &run.Coverage); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import runs failed: %w", err)
	}
	return out, nil
}

func decodeJSON(raw string, dst any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode import run column: %w", err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
