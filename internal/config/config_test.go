package config

import (
    "context"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
    t.Setenv("DB_USER", "sync")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_NAME", "boxoffice")
    t.Setenv("RABBITMQ_URL", "amqp://u:p@mq:5672/")
    t.Setenv("DB_MIGRATE", "false")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "3306", cfg.DBPort)
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, "amqp://u:p@mq:5672/", cfg.AMQPURL)
    assert.False(t, cfg.Migrate)
    assert.Error(t, cfg.RequireJWT())

    cfg.JWTSecret = "x"
    assert.NoError(t, cfg.RequireJWT())
}

func TestLoadReportsMissing(t *testing.T) {
    t.Setenv("DB_USER", "")
    t.Setenv("DB_HOST", "")
    t.Setenv("DB_NAME", "boxoffice")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "DB_USER")
    assert.Contains(t, err.Error(), "DB_HOST")
    assert.NotContains(t, err.Error(), "DB_NAME")
}

func TestLoadSyncConfig(t *testing.T) {
    t.Setenv("SYNC_AUTO_LINK_THRESHOLD", "0.9")
    t.Setenv("SYNC_SHOW_MATCH_TOLERANCE", "90m")
    t.Setenv("SYNC_PROVIDER_BURST", "not-a-number")

    cfg := LoadSyncConfig()
    def := DefaultSyncConfig()
    assert.Equal(t, 0.9, cfg.AutoLinkThreshold)
    assert.Equal(t, 90*time.Minute, cfg.ShowMatchTolerance)
    assert.Equal(t, def.ProviderBurst, cfg.ProviderBurst)
    assert.Equal(t, def.NameWeight, cfg.NameWeight)
}

func TestLoadRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    assert.Equal(t, "provider", cfg.KeyStrategy)
    assert.Equal(t, 1, cfg.RefillTokens)
    assert.Equal(t, 2*time.Second, cfg.RefillInterval)
    assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    cfg := LoadCacheConfig()
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
    assert.Equal(t, "cache:ops", cfg.Prefix)
}

func TestInitLogger(t *testing.T) {
    _, err := InitLogger("loud", "json")
    assert.Error(t, err)

    log, err := InitLogger("debug", "console")
    require.NoError(t, err)
    assert.NotNil(t, log)
}

func TestLoadRedisConfig(t *testing.T) {
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")

    c := LoadRedisConfig()
    assert.Equal(t, "cache:6380", c.Addr)
    opt, err := c.options()
    require.NoError(t, err)
    assert.Equal(t, 2, opt.DB)

    c.URL = "redis://:pw@other:6379/3"
    opt, err = c.options()
    require.NoError(t, err)
    assert.Equal(t, "other:6379", opt.Addr)
    assert.Equal(t, "pw", opt.Password)
    assert.Equal(t, 3, opt.DB)

    c.URL = "http://nope"
    _, err = c.options()
    assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
    require.NoError(t, err)
    defer rdb.Close()

    mr.Close()
    _, err = NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
    assert.Error(t, err)
}
