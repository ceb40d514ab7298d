package handler

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
)

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer rdb.Close()

    cases := []struct {
        name   string
        db     Pinger
        rdb    *redis.Client
        status int
        body   string
    }{
        {"all up", pingFunc(func(context.Context) error { return nil }), rdb, http.StatusOK, `{"database":"ok","redis":"ok"}`},
        {"no redis", pingFunc(func(context.Context) error { return nil }), nil, http.StatusOK, `{"database":"ok","redis":"disabled"}`},
        {"db down", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), nil, http.StatusServiceUnavailable, `{"database":"dial tcp: refused","redis":"disabled"}`},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            e := echo.New()
            rec := httptest.NewRecorder()
            c := e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)
            assert.NoError(t, Ready(tc.db, tc.rdb)(c))
            assert.Equal(t, tc.status, rec.Code)
            assert.JSONEq(t, tc.body, rec.Body.String())
        })
    }
}

func TestHealth(t *testing.T) {
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
    assert.NoError(t, Health(c))
    assert.Equal(t, "ok", rec.Body.String())
}
