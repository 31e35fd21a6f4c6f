package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "dispatchd", cfg.ServiceName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(5), cfg.Redis.ConnectTimeout)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, int64(8080), cfg.Admin.Port)
	assert.Empty(t, cfg.Topics)
	assert.False(t, cfg.Metrics.Enabled())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DISPATCH_REDIS_ADDR", "redis:6380")
	t.Setenv("DISPATCH_REDIS_DB", "3")
	t.Setenv("DISPATCH_TOPICS", "orders,payments")
	t.Setenv("DISPATCH_CALLBACK_TIMEOUT", "2s")
	t.Setenv("DISPATCH_METRICS_OTLP_GRPC_ENDPOINT", "collector:4317")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, int64(3), cfg.Redis.DB)
	assert.Equal(t, []string{"orders", "payments"}, cfg.Topics)
	assert.Equal(t, 2*time.Second, cfg.CallbackTimeout)
	assert.True(t, cfg.Metrics.Enabled())
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatchd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
topics:
  - orders
workers: 4
redis:
  addr: cache:6379
admin:
  port: 9090
`), 0o600))
	t.Setenv("DISPATCH_WORKERS", "8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"orders"}, cfg.Topics)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(9090), cfg.Admin.Port)
	assert.Equal(t, 8, cfg.Workers, "env overrides file")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestLoadConfig_EmptyRedisAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatchd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  addr: \"\"\n"), 0o600))

	_, err := LoadConfig(path)

	assert.ErrorContains(t, err, "REDIS.ADDR")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero workers", env: map[string]string{"DISPATCH_WORKERS": "0"}},
		{name: "unknown admin mode", env: map[string]string{"DISPATCH_ADMIN_MODE": "verbose"}},
		{name: "blank topic", env: map[string]string{"DISPATCH_TOPICS": "orders, "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}
