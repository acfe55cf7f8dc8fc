package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: memory
jwt:
  secret: s3cret
insights:
  trending_window: 48h
`), 0o600))

	t.Setenv("PAWPRINT_CONFIG_PATH", path)
	t.Setenv("PAWPRINT_RATE_LIMIT_BURST", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 48*time.Hour, cfg.Insights.TrendingWindow)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "subscription-events", cfg.Events.Queue)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Backend: "relational"}, Database: DatabaseConfig{Driver: "mysql"}, JWT: JWTConfig{Secret: "x"}}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Backend = "disk"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Backend = "memory"
	cfg.JWT.Secret = ""
	assert.Error(t, cfg.Validate())
}
