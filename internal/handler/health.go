package handler

import (
    "context"  // context bounds each dependency check
    "net/http" // http defines status codes
    "time"     // time sets the check timeout

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health is a liveness endpoint for load balancers.  It returns a plain
// text "ok" with status 200 as long as the process is serving.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports whether the database and (optional) Redis are reachable.
// A nil rdb is reported as "disabled" and does not fail the check.
func Ready(db Pinger, rdb *redis.Client) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()

        status := http.StatusOK
        out := map[string]string{"database": "ok", "redis": "disabled"}
        if err := db.PingContext(ctx); err != nil {
            out["database"] = err.Error()
            status = http.StatusServiceUnavailable
        }
        if rdb != nil {
            out["redis"] = "ok"
            if err := rdb.Ping(ctx).Err(); err != nil {
                out["redis"] = err.Error()
                status = http.StatusServiceUnavailable
            }
        }
        return c.JSON(status, out)
    }
}
