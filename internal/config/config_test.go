package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, info, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.False(t, info.FileFound)
	assert.False(t, info.PortSpecified)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile_Sections(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 8088

[data]
data_dir = "/var/lib/cmpulse"

[ingest]
workers = 8
skip_total_rows = false
summary_markers = ["total", "subtotal"]

[scoring]
above_threshold = 105.0

[scoring.targets]
cc = 85.0
`)

	cfg, info, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, info.FileFound)
	assert.True(t, info.PortSpecified)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "/var/lib/cmpulse", cfg.Data.DataDir)
	assert.Equal(t, "cmpulse.db", cfg.Data.DBFile)
	assert.Equal(t, filepath.Join("/var/lib/cmpulse", "cmpulse.db"), DBPath(cfg))
	assert.Equal(t, 105.0, cfg.Scoring.AboveThreshold)
	assert.Equal(t, 90.0, cfg.Scoring.WarningThreshold)
	assert.Equal(t, 85.0, cfg.Scoring.Targets.CC)
	assert.Equal(t, 15.0, cfg.Scoring.Targets.SC)

	opts := cfg.Ingest.ImporterOptions()
	assert.Equal(t, 8, opts.Workers)
	assert.True(t, opts.KeepSummaryRows)
	assert.Equal(t, []string{"total", "subtotal"}, opts.SummaryMarkers)
	assert.Equal(t, int64(20<<20), opts.MaxFileBytes)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvDBFile, "/tmp/other.db")
	t.Setenv(EnvWorkers, "2")

	cfg, info, err := LoadFile(writeConfig(t, "[server]\ndev_mode = true\n"))
	require.NoError(t, err)

	assert.True(t, info.PortSpecified)
	assert.True(t, cfg.Server.DevMode)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", DBPath(cfg))
	assert.Equal(t, 2, cfg.Ingest.Workers)
}

func TestLoadFile_Invalid(t *testing.T) {
	_, _, err := LoadFile(writeConfig(t, "[server\nport = "))
	assert.Error(t, err)

	t.Setenv(EnvPort, "not-a-port")
	_, _, err = LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, EnvPort)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 1234
	require.NoError(t, SaveConfig(cfg, path))

	loaded, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
