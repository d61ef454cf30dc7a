package util

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cmpulse/internal/config"
	"cmpulse/internal/store"
)

// NewLogger 生产模式输出 JSON；开发模式输出彩色文本并开启 debug
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// OpenStore 创建数据目录、打开 SQLite 并写入默认评分配置（已存在时不覆盖）
func OpenStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*store.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg.Scoring); err != nil {
		return nil, fmt.Errorf("invalid [scoring] config: %w", err)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, err
	}

	dbPath := config.DBPath(cfg)
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.SeedScoringConfig(ctx, cfg.Scoring); err != nil {
		_ = st.Close()
		return nil, err
	}

	logger.Info("store ready", zap.String("data_dir", dataDir), zap.String("db", dbPath))
	return st, nil
}
