package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"cmpulse/internal/importer"
	"cmpulse/internal/model"
)

// 环境变量
const (
	EnvPort    = "CMPULSE_PORT"
	EnvDataDir = "CMPULSE_DATA_DIR"
	EnvDBFile  = "CMPULSE_DB_FILE"
	EnvWorkers = "CMPULSE_WORKERS"
)

// AppConfig 应用配置
type AppConfig struct {
	Server  ServerConfig        `toml:"server"`
	Data    DataConfig          `toml:"data"`
	Ingest  IngestConfig        `toml:"ingest"`
	Scoring model.ScoringConfig `toml:"scoring"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int      `toml:"port"`
	DevMode     bool     `toml:"dev_mode"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
	DBFile  string `toml:"db_file"`
}

// IngestConfig 导入配置
type IngestConfig struct {
	MaxFiles       int      `toml:"max_files"`
	MaxFileBytes   int64    `toml:"max_file_bytes"`
	Workers        int      `toml:"workers"`
	SkipTotalRows  bool     `toml:"skip_total_rows"`
	SummaryMarkers []string `toml:"summary_markers"`
	HeaderScanRows int      `toml:"header_scan_rows"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        20262,
			CORSOrigins: []string{"*"},
		},
		Data: DataConfig{
			DataDir: "data",
			DBFile:  "cmpulse.db",
		},
		Ingest: IngestConfig{
			MaxFiles:       50,
			MaxFileBytes:   20 << 20,
			Workers:        4,
			SkipTotalRows:  true,
			SummaryMarkers: []string{"total"},
			HeaderScanRows: 10,
		},
		Scoring: model.DefaultScoringConfig(),
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverMap, ok := raw["server"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 加载 .env 与可执行文件同目录下的 config.toml
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	// .env 可选；已存在的环境变量优先
	_ = godotenv.Load(filepath.Join(exeDir, ".env"))
	_ = godotenv.Load()

	return LoadFile(filepath.Join(exeDir, "config.toml"))
}

// LoadFile 从指定路径加载配置；文件不存在时使用默认值，最后应用环境变量覆盖
func LoadFile(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, info, fmt.Errorf("failed to read %s: %w", path, err)
	}

	overridden, err := applyEnv(cfg)
	if err != nil {
		return nil, info, err
	}
	if overridden {
		info.PortSpecified = true
	}
	return cfg, info, nil
}

// LoadConfig 加载配置
func LoadConfig() (*AppConfig, error) {
	cfg, _, err := LoadConfigWithInfo()
	return cfg, err
}

// applyEnv 环境变量覆盖；返回端口是否被覆盖
func applyEnv(cfg *AppConfig) (bool, error) {
	portSet := false
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return false, fmt.Errorf("invalid %s: %q", EnvPort, v)
		}
		cfg.Server.Port = port
		portSet = true
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv(EnvDBFile); v != "" {
		cfg.Data.DBFile = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return false, fmt.Errorf("invalid %s: %q", EnvWorkers, v)
		}
		cfg.Ingest.Workers = n
	}
	return portSet, nil
}

// SaveConfig 保存配置到指定路径
func SaveConfig(cfg *AppConfig, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDataDir 数据目录；相对路径以可执行文件目录为基准
func ResolveDataDir(cfg *AppConfig) string {
	if filepath.IsAbs(cfg.Data.DataDir) {
		return cfg.Data.DataDir
	}
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, cfg.Data.DataDir)
}

// EnsureDataDir 确保数据目录及子目录存在
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := ResolveDataDir(cfg)
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "uploads"), filepath.Join(dataDir, "exports")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return dataDir, nil
}

// DBPath 数据库文件路径；db_file 为绝对路径时直接使用
func DBPath(cfg *AppConfig) string {
	if filepath.IsAbs(cfg.Data.DBFile) {
		return cfg.Data.DBFile
	}
	return filepath.Join(ResolveDataDir(cfg), cfg.Data.DBFile)
}

// ImporterOptions 导入协调器选项
func (c IngestConfig) ImporterOptions() importer.Options {
	return importer.Options{
		Workers:         c.Workers,
		MaxFiles:        c.MaxFiles,
		MaxFileBytes:    c.MaxFileBytes,
		HeaderScanRows:  c.HeaderScanRows,
		KeepSummaryRows: !c.SkipTotalRows,
		SummaryMarkers:  c.SummaryMarkers,
	}
}
