package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/boxoffice-sync/internal/handler"
    "github.com/iliyamo/boxoffice-sync/internal/middleware"
    "github.com/iliyamo/boxoffice-sync/internal/utils"
)

// RegisterOps registers the operator API under /api/ops.  All routes
// require a valid JWT with the OPERATOR or ADMIN role.  cache, when non-nil,
// wraps the pending-event listing.
func RegisterOps(e *echo.Echo, h *handler.OpsHandler, jwtSecret string, cache echo.MiddlewareFunc) {
    g := e.Group(
        "/api/ops",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(utils.RoleOperator, utils.RoleAdmin),
    )

    // runs
    g.POST("/providers/:provider_id/autolink", h.RunAutoLink)
    g.POST("/providers/:provider_id/full", h.RunFull)
    g.POST("/links/:link_id/match", h.RunShowMatch)
    g.POST("/links/:link_id/import", h.RunSalesImport)
    g.POST("/sync-requests", h.EnqueueSync)

    // show-match review
    g.GET("/links/:link_id/matches", h.AnalyzeShows)
    g.POST("/links/:link_id/matches", h.ApplyShowMatches)

    // pending-event review
    if cache != nil {
        g.GET("/providers/:provider_id/pending", h.ListPending, cache)
    } else {
        g.GET("/providers/:provider_id/pending", h.ListPending)
    }
    g.POST("/pending/:id/confirm", h.ConfirmPending)
    g.POST("/pending/:id/ignore", h.IgnorePending)

    g.GET("/providers/:provider_id/sync-logs", h.ListSyncLogs)
}
