package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/boxoffice-sync/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness at /healthz and dependency readiness at /readyz.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
    e.GET("/healthz", handler.Health)
    if ready != nil {
        e.GET("/readyz", ready)
    }
}

// RegisterWebhooks mounts the provider webhook endpoint.  Deliveries are
// authenticated by signature inside the handler, not by JWT; limit is the
// per-provider token bucket.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler, limit echo.MiddlewareFunc) {
    g := e.Group("/webhooks")
    if limit != nil {
        g.Use(limit)
    }
    g.POST("/:provider_id", h.Receive)
}
