package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/iliyamo/boxoffice-sync/internal/config"
    "github.com/iliyamo/boxoffice-sync/internal/utils"
)

func newRedis(t *testing.T) *redis.Client {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return rdb
}

func do(e *echo.Echo, method, target, auth string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, nil)
    if auth != "" {
        req.Header.Set("Authorization", "Bearer "+auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestTokenBucketPerProvider(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            10 * time.Minute,
        KeyStrategy:    "provider",
        Prefix:         "rl:test",
    }
    e := echo.New()
    ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    e.POST("/webhooks/:provider_id", ok, NewTokenBucket(cfg, newRedis(t), zaptest.NewLogger(t)))

    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/webhooks/7", "").Code)
    rec := do(e, http.MethodPost, "/webhooks/7", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

    rec = do(e, http.MethodPost, "/webhooks/7", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    // A separate provider has its own bucket.
    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/webhooks/8", "").Code)
}

func TestBucketRefills(t *testing.T) {
    cfg := config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl"}
    b := NewBucket(cfg, newRedis(t))
    now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
    b.now = func() time.Time { return now }
    ctx := context.Background()

    d, err := b.Take(ctx, "rl:k")
    require.NoError(t, err)
    assert.True(t, d.Allowed)

    d, err = b.Take(ctx, "rl:k")
    require.NoError(t, err)
    assert.False(t, d.Allowed)
    assert.Equal(t, time.Minute, d.RetryAfter)

    now = now.Add(61 * time.Second)
    d, err = b.Take(ctx, "rl:k")
    require.NoError(t, err)
    assert.True(t, d.Allowed)
    assert.Equal(t, int64(0), d.Remaining)
}

func TestTokenBucketDisabled(t *testing.T) {
    e := echo.New()
    ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    e.POST("/webhooks/:provider_id", ok, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil))
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/webhooks/1", "").Code)
    }
}

func TestRedisCacheHitAndPurge(t *testing.T) {
    cfg := config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        KeyStrategy:  "route_query",
        Prefix:       "cache:test",
        MaxBodyBytes: 1 << 20,
    }
    rdb := newRedis(t)
    calls := 0
    e := echo.New()
    e.GET("/pending", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, NewRedisCache(cfg, rdb))

    rec := do(e, http.MethodGet, "/pending?provider_id=1", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    rec = do(e, http.MethodGet, "/pending?provider_id=1", "")
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
    assert.Equal(t, 1, calls)

    // Different query, different key.
    do(e, http.MethodGet, "/pending?provider_id=2", "")
    assert.Equal(t, 2, calls)

    require.NoError(t, PurgeCache(context.Background(), cfg, rdb))
    rec = do(e, http.MethodGet, "/pending?provider_id=1", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.Equal(t, 3, calls)
}

func TestJWTAuthAndRole(t *testing.T) {
    const secret = "test-secret"
    e := echo.New()
    g := e.Group("/api/ops", JWTAuth(secret), RequireRole(utils.RoleAdmin))
    g.GET("/whoami", func(c echo.Context) error {
        return c.String(http.StatusOK, Operator(c))
    })

    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/ops/whoami", "").Code)
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/ops/whoami", "garbage").Code)

    op, err := utils.NewAccessToken(secret, "ops@example.com", utils.RoleOperator, time.Hour)
    require.NoError(t, err)
    assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/api/ops/whoami", op.Token).Code)

    admin, err := utils.NewAccessToken(secret, "root@example.com", utils.RoleAdmin, time.Hour)
    require.NoError(t, err)
    rec := do(e, http.MethodGet, "/api/ops/whoami", admin.Token)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "root@example.com", rec.Body.String())
}
