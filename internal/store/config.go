package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cmpulse/internal/model"
)

// GetScoringConfig 读取全局评分配置；未初始化时返回 ErrNotFound
func (s *Store) GetScoringConfig(ctx context.Context) (*model.ScoringConfig, error) {
	var c model.ScoringConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT target_cc, target_sc, target_up, target_fixed,
			weight_cc, weight_sc, weight_up, weight_fixed,
			above_threshold, warning_threshold
		FROM scoring_config WHERE id = 1
	`).Scan(
		&c.Targets.CC, &c.Targets.SC, &c.Targets.UP, &c.Targets.Fixed,
		&c.Weights.CC, &c.Weights.SC, &c.Weights.UP, &c.Weights.Fixed,
		&c.AboveThreshold, &c.WarningThreshold,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query scoring config: %w", err)
	}
	return &c, nil
}

// SaveScoringConfig 写入全局评分配置
func (s *Store) SaveScoringConfig(ctx context.Context, c model.ScoringConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_config (
			id, target_cc, target_sc, target_up, target_fixed,
			weight_cc, weight_sc, weight_up, weight_fixed,
			above_threshold, warning_threshold, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_cc = excluded.target_cc,
			target_sc = excluded.target_sc,
			target_up = excluded.target_up,
			target_fixed = excluded.target_fixed,
			weight_cc = excluded.weight_cc,
			weight_sc = excluded.weight_sc,
			weight_up = excluded.weight_up,
			weight_fixed = excluded.weight_fixed,
			above_threshold = excluded.above_threshold,
			warning_threshold = excluded.warning_threshold,
			updated_at = excluded.updated_at
	`,
		c.Targets.CC, c.Targets.SC, c.Targets.UP, c.Targets.Fixed,
		c.Weights.CC, c.Weights.SC, c.Weights.UP, c.Weights.Fixed,
		c.AboveThreshold, c.WarningThreshold, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save scoring config: %w", err)
	}
	return nil
}

// SeedScoringConfig 仅在配置不存在时写入默认值
func (s *Store) SeedScoringConfig(ctx context.Context, c model.ScoringConfig) error {
	_, err := s.GetScoringConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.SaveScoringConfig(ctx, c)
}
