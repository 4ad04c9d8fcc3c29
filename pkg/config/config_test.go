package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./hprof-analysis.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./storage", cfg.Storage.LocalPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Analysis.IncludeInternal)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  type: postgres
  host: db.example.com
  port: 5433
  database: reports
  user: analyst
storage:
  type: local
  local_path: /tmp/reports
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(configPath, content, 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "/tmp/reports", cfg.Storage.LocalPath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader("yaml", []byte(`
analysis:
  include_internal: false
database:
  type: mysql
  host: localhost
`))
	require.NoError(t, err)
	assert.False(t, cfg.Analysis.IncludeInternal)
	assert.Equal(t, "mysql", cfg.Database.Type)
}

func TestValidate(t *testing.T) {
	t.Run("sqlite requires path", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Type: "sqlite"}}
		assert.Error(t, cfg.Validate())

		cfg.Database.Path = "./x.db"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("postgres requires host", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Type: "postgres"}}
		assert.Error(t, cfg.Validate())

		cfg.Database.Host = "localhost"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Type: "oracle"}}
		assert.Error(t, cfg.Validate())
	})
}

func TestGetTaskDir(t *testing.T) {
	cfg := &Config{Analysis: AnalysisConfig{DataDir: "/data"}}
	assert.Equal(t, filepath.Join("/data", "task-1"), cfg.GetTaskDir("task-1"))
}
