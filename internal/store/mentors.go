package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cmpulse/internal/model"
)

const mentorColumns = `id, external_id, display_name, team_id, created_at, updated_at`

// FindMentor 按外部标识（规范化姓名）查询
func (s *Store) FindMentor(ctx context.Context, externalID string) (*model.Mentor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mentorColumns+` FROM mentors WHERE external_id = ?`, externalID)
	return scanMentor(row)
}

// UpsertMentor 按 external_id 插入或更新展示名与团队
func (s *Store) UpsertMentor(ctx context.Context, m *model.Mentor) (*model.Mentor, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mentors (id, external_id, display_name, team_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			display_name = excluded.display_name,
			team_id = excluded.team_id,
			updated_at = excluded.updated_at
	`, uuid.NewString(), m.ExternalID, m.DisplayName, m.TeamID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mentor: %w", err)
	}
	return s.FindMentor(ctx, m.ExternalID)
}

// MentorQueryOptions 查询条件
type MentorQueryOptions struct {
	TeamID string
}

// ListMentors 列出导师
func (s *Store) ListMentors(ctx context.Context, opts MentorQueryOptions) ([]model.Mentor, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentors WHERE 1=1`
	args := []any{}
	if opts.TeamID != "" {
		query += " AND team_id = ?"
		args = append(args, opts.TeamID)
	}
	query += " ORDER BY display_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentors: %w", err)
	}
	defer rows.Close()

	var out []model.Mentor
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentors failed: %w", err)
	}
	return out, nil
}

func scanMentor(r rowScanner) (*model.Mentor, error) {
	var m model.Mentor
	if err := r.Scan(&m.ID, &m.ExternalID, &m.DisplayName, &m.TeamID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan mentor: %w", err)
	}
	return &m, nil
}
