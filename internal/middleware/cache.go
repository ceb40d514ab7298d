package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rotisserie/eris"

    "github.com/iliyamo/boxoffice-sync/internal/config"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

// teeWriter copies what the handler writes, up to limit bytes, while
// passing it through to the client.
type teeWriter struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.overflow = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKey hashes the parts of the request selected by cfg.KeyStrategy.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    parts := []string{r.Method, c.Path(), c.Request().URL.Path, r.URL.RawQuery}
    if strings.EqualFold(cfg.KeyStrategy, "operator_route_query") {
        parts = append(parts, Operator(c))
    }
    sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewRedisCache serves repeated reads from Redis.  Only 200 responses no
// larger than cfg.MaxBodyBytes are stored; X-Cache reports HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[c.Request().Method] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(cfg, c)

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(raw, &hit) == nil {
                    h := c.Response().Header()
                    for k, vs := range hit.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vs
                    }
                    h.Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
                }
            }

            tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = tw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if tw.status != http.StatusOK || tw.overflow {
                return nil
            }
            entry, err := json.Marshal(cachedResponse{
                Status: tw.status,
                Header: c.Response().Header().Clone(),
                Body:   tw.buf.Bytes(),
            })
            if err == nil {
                // the request context may already be done once the body is written
                _ = rdb.Set(context.WithoutCancel(ctx), key, entry, cfg.TTL).Err()
            }
            return nil
        }
    }
}

// PurgeCache deletes every entry under cfg.Prefix.  Handlers that change
// what a cached listing returns call it so operators never see stale rows.
func PurgeCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) error {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    var keys []string
    iter := rdb.Scan(ctx, 0, cfg.Prefix+":*", 100).Iterator()
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        return eris.Wrap(err, "cache: scan")
    }
    if len(keys) == 0 {
        return nil
    }
    return eris.Wrap(rdb.Del(ctx, keys...).Err(), "cache: delete")
}
