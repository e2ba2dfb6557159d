package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "redis://127.0.0.1:6379/0", cfg.RedisURL)
	require.Equal(t, ":8787", cfg.Gateway.Listen)
	require.Equal(t, "@every 1m", cfg.Scheduler.Trigger)
	require.NotNil(t, cfg.Scheduler.Enabled)
	require.True(t, *cfg.Scheduler.Enabled)
	require.Equal(t, time.Minute, cfg.Client.PollInterval())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kintai.yaml")
	data := `
redis_url: redis://file-host:6379/1
gateway:
  url: http://file-host:8787
client:
  user_id: u1
  poll_every: 30s
scheduler:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("KINTAI_REDIS_URL", "redis://env-host:6379/2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "redis://env-host:6379/2", cfg.RedisURL)
	require.Equal(t, "http://file-host:8787", cfg.Gateway.URL)
	require.Equal(t, "u1", cfg.Client.UserID)
	require.Equal(t, 30*time.Second, cfg.Client.PollInterval())
	require.Zero(t, cfg.Client.EncourageInterval())
	require.NotNil(t, cfg.Scheduler.Enabled)
	require.False(t, *cfg.Scheduler.Enabled)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kintai.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis_url: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
