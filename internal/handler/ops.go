package handler

import (
    "context"  // context is part of the runner contract
    "net/http" // http defines status codes
    "strconv"  // strconv parses query params
    "time"     // time appears in response views

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/boxoffice-sync/internal/autolink"
    "github.com/iliyamo/boxoffice-sync/internal/model"
    "github.com/iliyamo/boxoffice-sync/internal/queue"
    "github.com/iliyamo/boxoffice-sync/internal/salesimport"
    "github.com/iliyamo/boxoffice-sync/internal/service"
    "github.com/iliyamo/boxoffice-sync/internal/showmatch"
)

// OpsRunner is the part of service.Runner the operator API drives.
type OpsRunner interface {
    RunAutoLink(ctx context.Context, providerID uint64, trigger string) (*autolink.Result, error)
    RunShowMatch(ctx context.Context, linkID uint64, trigger string) (*showmatch.AutoMatchResult, error)
    RunSalesImport(ctx context.Context, linkID uint64, trigger string) (*salesimport.Result, error)
    RunFull(ctx context.Context, providerID uint64, trigger string) (*service.FullResult, error)
    AnalyzeShows(ctx context.Context, linkID uint64) (*showmatch.Analysis, error)
    ApplyShowMatches(ctx context.Context, linkID uint64, matches []showmatch.Match) (int, error)
    ConfirmPending(ctx context.Context, pendingID, productionID uint64) (*autolink.Confirmation, error)
    IgnorePending(ctx context.Context, pendingID uint64) error
}

// OpsStore lists the rows operators review.
type OpsStore interface {
    ListPendingEvents(ctx context.Context, providerID uint64, status string) ([]model.PendingEvent, error)
    ListSyncLogs(ctx context.Context, providerID uint64, limit int) ([]model.SyncLog, error)
}

// SyncEnqueuer hands a sync request to the worker.
type SyncEnqueuer interface {
    RequestSync(ctx context.Context, req queue.SyncRequest) error
}

// OpsHandler serves the operator API under /api/ops.
type OpsHandler struct {
    runner     OpsRunner
    store      OpsStore
    enqueuer   SyncEnqueuer               // nil disables POST /sync-requests
    invalidate func(context.Context) error // drops cached pending listings; may be nil
    log        *zap.Logger
}

// NewOpsHandler constructs an OpsHandler and panics if runner or store is nil.
func NewOpsHandler(runner OpsRunner, store OpsStore, enqueuer SyncEnqueuer, invalidate func(context.Context) error, log *zap.Logger) *OpsHandler {
    if runner == nil || store == nil {
        panic("nil dependency passed to NewOpsHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &OpsHandler{runner: runner, store: store, enqueuer: enqueuer, invalidate: invalidate, log: log.Named("http.ops")}
}

// RunAutoLink handles POST /api/ops/providers/:provider_id/autolink.
func (h *OpsHandler) RunAutoLink(c echo.Context) error {
    id, err := pathID(c, "provider_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
    }
    res, err := h.runner.RunAutoLink(c.Request().Context(), id, model.TriggerManual)
    if err != nil {
        return fail(c, err)
    }
    h.purge(c.Request().Context())
    return c.JSON(http.StatusOK, res)
}

// RunFull handles POST /api/ops/providers/:provider_id/full.
func (h *OpsHandler) RunFull(c echo.Context) error {
    id, err := pathID(c, "provider_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
    }
    res, err := h.runner.RunFull(c.Request().Context(), id, model.TriggerManual)
    h.purge(c.Request().Context())
    if err != nil {
        if res != nil {
            // partial progress is still worth showing
            return c.JSON(errorStatus(err), map[string]any{"error": err.Error(), "result": res})
        }
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// RunShowMatch handles POST /api/ops/links/:link_id/match.
func (h *OpsHandler) RunShowMatch(c echo.Context) error {
    id, err := pathID(c, "link_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid link id"})
    }
    res, err := h.runner.RunShowMatch(c.Request().Context(), id, model.TriggerManual)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// RunSalesImport handles POST /api/ops/links/:link_id/import.  A run that
// aborted part way still returns its result with the mapped error status.
func (h *OpsHandler) RunSalesImport(c echo.Context) error {
    id, err := pathID(c, "link_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid link id"})
    }
    res, err := h.runner.RunSalesImport(c.Request().Context(), id, model.TriggerManual)
    if err != nil {
        return fail(c, err)
    }
    if !res.Success && !res.Skipped {
        return c.JSON(http.StatusBadGateway, res)
    }
    return c.JSON(http.StatusOK, res)
}

// AnalyzeShows handles GET /api/ops/links/:link_id/matches and returns
// proposals without applying anything.
func (h *OpsHandler) AnalyzeShows(c echo.Context) error {
    id, err := pathID(c, "link_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid link id"})
    }
    res, err := h.runner.AnalyzeShows(c.Request().Context(), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// ApplyShowMatches handles POST /api/ops/links/:link_id/matches with the
// operator's chosen subset of proposals.
func (h *OpsHandler) ApplyShowMatches(c echo.Context) error {
    id, err := pathID(c, "link_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid link id"})
    }
    var body struct {
        Matches []showmatch.Match `json:"matches"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
    }
    if len(body.Matches) == 0 {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "matches is required"})
    }
    n, err := h.runner.ApplyShowMatches(c.Request().Context(), id, body.Matches)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, map[string]int{"applied": n})
}

// pendingView is the JSON shape of a pending event.
type pendingView struct {
    ID                    uint64     `json:"id"`
    ProviderID            uint64     `json:"provider_id"`
    ExternalEventID       string     `json:"external_event_id"`
    Name                  string     `json:"name"`
    URL                   string     `json:"url,omitempty"`
    Status                string     `json:"status"`
    SuggestedProductionID *uint64    `json:"suggested_production_id"`
    Confidence            float64    `json:"confidence"`
    OccurrenceCount       int        `json:"occurrence_count"`
    FirstDate             *time.Time `json:"first_date"`
    LastDate              *time.Time `json:"last_date"`
    ProductionLinkID      *uint64    `json:"production_link_id,omitempty"`
    UpdatedAt             time.Time  `json:"updated_at"`
}

// ListPending handles GET /api/ops/providers/:provider_id/pending.  The
// status query param defaults to "pending".
func (h *OpsHandler) ListPending(c echo.Context) error {
    id, err := pathID(c, "provider_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
    }
    status := c.QueryParam("status")
    switch status {
    case "":
        status = model.PendingStatusPending
    case model.PendingStatusPending, model.PendingStatusMatched, model.PendingStatusIgnored:
    default:
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
    }
    rows, err := h.store.ListPendingEvents(c.Request().Context(), id, status)
    if err != nil {
        return fail(c, err)
    }
    out := make([]pendingView, 0, len(rows))
    for _, p := range rows {
        out = append(out, pendingView{
            ID:                    p.ID,
            ProviderID:            p.ProviderID,
            ExternalEventID:       p.ExternalEventID,
            Name:                  p.Name,
            URL:                   p.URL,
            Status:                p.Status,
            SuggestedProductionID: p.SuggestedProductionID,
            Confidence:            p.Confidence,
            OccurrenceCount:       p.OccurrenceCount,
            FirstDate:             p.FirstDate,
            LastDate:              p.LastDate,
            ProductionLinkID:      p.ProductionLinkID,
            UpdatedAt:             p.UpdatedAt,
        })
    }
    return c.JSON(http.StatusOK, out)
}

// ConfirmPending handles POST /api/ops/pending/:id/confirm with the
// production the operator chose, which need not be the suggestion.
func (h *OpsHandler) ConfirmPending(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pending event id"})
    }
    var body struct {
        ProductionID uint64 `json:"production_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
    }
    if body.ProductionID == 0 {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "production_id is required"})
    }
    res, err := h.runner.ConfirmPending(c.Request().Context(), id, body.ProductionID)
    if err != nil {
        return fail(c, err)
    }
    h.purge(c.Request().Context())
    out := map[string]any{
        "production_link_id": res.Link.ID,
        "production_id":      res.Link.ProductionID,
        "external_event_id":  res.Link.ExternalEventID,
        "shows_matched":      res.ShowsMatched,
    }
    if res.MatchError != "" {
        out["match_error"] = res.MatchError
    }
    return c.JSON(http.StatusCreated, out)
}

// IgnorePending handles POST /api/ops/pending/:id/ignore.
func (h *OpsHandler) IgnorePending(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pending event id"})
    }
    if err := h.runner.IgnorePending(c.Request().Context(), id); err != nil {
        return fail(c, err)
    }
    h.purge(c.Request().Context())
    return c.NoContent(http.StatusNoContent)
}

// syncLogView is the JSON shape of a sync log.
type syncLogView struct {
    ID               uint64     `json:"id"`
    ProductionLinkID *uint64    `json:"production_link_id,omitempty"`
    Kind             string     `json:"kind"`
    Trigger          string     `json:"trigger"`
    Status           string     `json:"status"`
    RecordsUpdated   int        `json:"records_updated"`
    RecordsFailed    int        `json:"records_failed"`
    Error            *string    `json:"error,omitempty"`
    StartedAt        time.Time  `json:"started_at"`
    CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ListSyncLogs handles GET /api/ops/providers/:provider_id/sync-logs?limit=N.
func (h *OpsHandler) ListSyncLogs(c echo.Context) error {
    id, err := pathID(c, "provider_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
    }
    limit := 50
    if v := c.QueryParam("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > 500 {
            return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
        }
        limit = n
    }
    rows, err := h.store.ListSyncLogs(c.Request().Context(), id, limit)
    if err != nil {
        return fail(c, err)
    }
    out := make([]syncLogView, 0, len(rows))
    for _, l := range rows {
        out = append(out, syncLogView{
            ID:               l.ID,
            ProductionLinkID: l.ProductionLinkID,
            Kind:             l.Kind,
            Trigger:          l.Trigger,
            Status:           l.Status,
            RecordsUpdated:   l.RecordsUpdated,
            RecordsFailed:    l.RecordsFailed,
            Error:            l.Error,
            StartedAt:        l.StartedAt,
            CompletedAt:      l.CompletedAt,
        })
    }
    return c.JSON(http.StatusOK, out)
}

// EnqueueSync handles POST /api/ops/sync-requests.  The request is handed
// to the worker and 202 is returned without waiting for the run.
func (h *OpsHandler) EnqueueSync(c echo.Context) error {
    if h.enqueuer == nil {
        return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "queue not configured"})
    }
    var req queue.SyncRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
    }
    switch req.Kind {
    case queue.KindAutoLink, queue.KindFull:
        if req.ProviderID == 0 {
            return c.JSON(http.StatusBadRequest, map[string]string{"error": "provider_id is required"})
        }
    case queue.KindShowMatch, queue.KindSalesImport:
        if req.ProductionLinkID == 0 {
            return c.JSON(http.StatusBadRequest, map[string]string{"error": "production_link_id is required"})
        }
    default:
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown kind"})
    }
    if req.Trigger == "" {
        req.Trigger = model.TriggerManual
    }
    if err := h.enqueuer.RequestSync(c.Request().Context(), req); err != nil {
        h.log.Error("enqueue sync", zap.String("kind", req.Kind), zap.Error(err))
        return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to enqueue"})
    }
    return c.JSON(http.StatusAccepted, req)
}

func (h *OpsHandler) purge(ctx context.Context) {
    if h.invalidate == nil {
        return
    }
    if err := h.invalidate(ctx); err != nil {
        h.log.Warn("purge response cache", zap.Error(err))
    }
}
