package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cmpulse/internal/model"
	"cmpulse/internal/parser"
)

// teamKey 团队名的身份键
func teamKey(name string) string {
	if key := parser.NormalizeName(name); key != "" {
		return key
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

// EnsureTeam 按名称幂等创建团队
func (s *Store) EnsureTeam(ctx context.Context, name string) (*model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("team name is empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, name_key, description, created_at)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(name_key) DO NOTHING
	`, uuid.NewString(), name, teamKey(name), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert team: %w", err)
	}

	return s.teamByKey(ctx, teamKey(name))
}

// GetTeam 按 ID 查询团队
func (s *Store) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM teams WHERE id = ?
	`, id)
	return scanTeam(row)
}

func (s *Store) teamByKey(ctx context.Context, key string) (*model.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM teams WHERE name_key = ?
	`, key)
	return scanTeam(row)
}

// ListTeams 列出全部团队（按名称）
func (s *Store) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM teams ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams failed: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(r rowScanner) (*model.Team, error) {
	var t model.Team
	if err := r.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return &t, nil
}
