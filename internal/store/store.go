package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// Store SQLite 数据库存储层
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New 创建新的 Store 实例
func New(dbPath string) (*Store, error) {
	// 确保 data 目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 单连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema 初始化数据库结构
func (s *Store) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	if _, err := s.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats 存储概况
type Stats struct {
	Teams         int    `json:"teams"`
	Mentors       int    `json:"mentors"`
	MetricRecords int    `json:"metricRecords"`
	ImportRuns    int    `json:"importRuns"`
	LatestPeriod  string `json:"latestPeriod,omitempty"`
}

// GetStats 汇总各表数量
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM teams),
			(SELECT COUNT(1) FROM mentors),
			(SELECT COUNT(1) FROM metric_records),
			(SELECT COUNT(1) FROM import_runs),
			(SELECT MAX(period_date) FROM metric_records)
	`).Scan(&st.Teams, &st.Mentors, &st.MetricRecords, &st.ImportRuns, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	st.LatestPeriod = latest.String
	return &st, nil
}
