package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "fair")
	t.Setenv("DB_NAME", "careerfair")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "127.0.0.1", cfg.DB.Host)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 500, cfg.Tables.MaxCapacity)
	assert.Equal(t, 15, cfg.Tables.DefaultCapacity)
	assert.Equal(t, "careerfair.events", cfg.AMQP.Queue)
	assert.Equal(t, []string{"GET"}, cfg.Cache.Methods)
	assert.False(t, cfg.IsProduction())
}

func TestParseRequiresSecrets(t *testing.T) {
	t.Setenv("DB_USER", "fair")
	t.Setenv("DB_NAME", "careerfair")
	t.Setenv("JWT_SECRET", "")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestParseRejectsEmptyDatabaseSettings(t *testing.T) {
	for _, key := range []string{"DB_USER", "DB_NAME"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := Parse()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoadJWTRejectsEmptySecret(t *testing.T) {
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("JWT_SECRET", "")

	_, err := LoadJWT()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestParseRejectsDefaultAboveMax(t *testing.T) {
	setRequired(t)
	t.Setenv("TABLE_CAPACITY_MAX", "10")
	t.Setenv("TABLE_CAPACITY_DEFAULT", "15")

	_, err := Parse()
	assert.ErrorContains(t, err, "TABLE_CAPACITY_DEFAULT")
}

func TestRateLimitShorthands(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.RateLimit.Capacity)
	assert.Equal(t, 1, cfg.RateLimit.RefillTokens)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
}

func TestCacheMethods(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_METHODS", " get, head ,")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "HEAD"}, cfg.Cache.Methods)
	assert.True(t, cfg.Cache.Cacheable("head"))
	assert.False(t, cfg.Cache.Cacheable("PUT"))
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisConfig{Addr: "localhost:6379"}.Address())
	assert.Equal(t, "redis:6380", RedisConfig{Host: "redis", Port: "6380", Addr: "ignored:1"}.Address())
}
