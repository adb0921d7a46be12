package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Session.RefreshInterval)
	assert.Equal(t, time.Hour, cfg.Session.SnapshotWindow)
	assert.Equal(t, 0.5, cfg.Session.ScoreDriftThreshold)
	assert.Equal(t, 1.0, cfg.Session.MaxShortExposure)
	assert.Equal(t, 0.04, cfg.Risk.RiskFreeRate)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoad_SparseFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := `
database:
  dsn: "postgres://localhost/paperledger?sslmode=disable"
session:
  refresh_interval: 5s
http:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/paperledger?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 5*time.Second, cfg.Session.RefreshInterval)
	assert.Equal(t, 9090, cfg.HTTP.Port)

	// Everything the file omits falls back to defaults.
	assert.Equal(t, time.Hour, cfg.Session.SnapshotWindow)
	assert.Equal(t, 3*time.Second, cfg.Session.SnapshotDebounce)
	assert.Equal(t, 12*time.Hour, cfg.Session.ScoreStaleAfter)
	assert.Equal(t, 10*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}
