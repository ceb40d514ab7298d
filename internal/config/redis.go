package config

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/rotisserie/eris"
)

// RedisConfig locates the Redis instance holding shared OAuth tokens, the
// webhook rate-limit buckets and the operator response cache.
type RedisConfig struct {
    URL      string // REDIS_URL, e.g. redis://:pass@host:6379/0; wins over the fields below
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads REDIS_* variables.  REDIS_HOST and REDIS_PORT are
// accepted as an alternative to REDIS_ADDR.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if h, p := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); h != "" && p != "" {
        addr = h + ":" + p
    }
    return RedisConfig{
        URL:      envStr("REDIS_URL", ""),
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// options converts the config into go-redis options.
func (c RedisConfig) options() (*redis.Options, error) {
    if c.URL != "" {
        opt, err := redis.ParseURL(c.URL)
        if err != nil {
            return nil, eris.Wrap(err, "config: parse REDIS_URL")
        }
        return opt, nil
    }
    opt := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
    if c.TLS {
        opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opt, nil
}

// NewRedisClient connects and pings Redis.  Callers treat an error as
// "run without Redis": tokens are then cached per process and rate
// limiting and caching are disabled.
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
    opt, err := c.options()
    if err != nil {
        return nil, err
    }
    client := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, eris.Wrapf(err, "config: ping redis at %s", opt.Addr)
    }
    return client, nil
}
