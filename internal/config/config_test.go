package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
app:
  instance_id: board-1
  shutdown_timeout: 10s
logging:
  level: debug
  format: json
upstream:
  base_url: https://api.example.test/v1
  timeout: 8s
  max_attempts: 3
  retry_backoff: 300ms
cache:
  backend: redis
  prefix: "board:cache:"
  ttl:
    default: 20m
    created_sort: 30s
    newest: 20s
    older: 2m
    trades: 30s
    holders: 60s
  stale_factor: 10
  min_retention: 1h
sync:
  newest_interval: 12s
  older_interval: 50s
  older_limit: 20
  highlight_ttl: 3s
  max_concurrent: 8
scoring:
  weights:
    success: 0.70
    volume: 0.20
    holders: 0.08
    trades: 0.02
  tiers:
    legendary: 100
    epic: 90
  activity_window: 192h
pubsub:
  nats:
    enabled: true
    url: nats://localhost:4222
    broadcast_prefix: board
api:
  http:
    addr: ":8080"
    read_timeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "board-1", cfg.App.InstanceID)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "https://api.example.test/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 20*time.Minute, cfg.Cache.TTL.Default)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.CreatedSort)
	assert.Equal(t, 12*time.Second, cfg.Sync.NewestInterval)
	assert.Equal(t, 50*time.Second, cfg.Sync.OlderInterval)
	assert.Equal(t, 0.70, cfg.Scoring.Weights.Success)
	assert.Equal(t, 192*time.Hour, cfg.Scoring.ActivityWindow)
	assert.Equal(t, 100.0, cfg.Scoring.Tiers.Legendary)
	assert.True(t, cfg.PubSub.NATS.Enabled)
	assert.Equal(t, "board", cfg.PubSub.NATS.BroadcastPrefix)
	assert.Equal(t, ":8080", cfg.API.HTTP.Addr)
}

// omitted sections come back zero-valued; the constructors backfill defaults
func TestLoad_MinimalConfig(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
upstream:
  base_url: https://api.example.test/v1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test/v1", cfg.Upstream.BaseURL)
	assert.Zero(t, cfg.Sync.NewestInterval)
	assert.Zero(t, cfg.Cache.TTL.Default)
	assert.False(t, cfg.Stores.ClickHouse.Enabled)
	assert.False(t, cfg.Security.JWT.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "upstream: [not a mapping")

	_, err := Load(path)
	assert.Error(t, err)
}
