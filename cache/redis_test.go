package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_DB", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Zero(t, cfg.DB)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", " redis.internal:6380 ")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")

	cfg := ConfigFromEnv()
	assert.Equal(t, "redis.internal:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
}

func TestConfigFromEnvIgnoresBadDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := ConfigFromEnv()
	assert.Zero(t, cfg.DB)
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
