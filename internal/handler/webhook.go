package handler

import (
    "context"  // context is part of the runner contract
    "errors"   // errors matches signature and lookup failures
    "io"       // io reads the raw request body
    "net/http" // http defines status codes
    "time"     // time is passed to signature verification

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/boxoffice-sync/internal/model"
    "github.com/iliyamo/boxoffice-sync/internal/repository"
    "github.com/iliyamo/boxoffice-sync/internal/webhook"
)

// maxWebhookBody caps how much of a delivery is read.
const maxWebhookBody = 1 << 20

// Headers a provider may use to send the delivery id and event type.
// When absent the processor generates an id and reads the type from the
// payload.
var (
    deliveryIDHeaders = []string{"X-Webhook-Id", "X-Eventbrite-Delivery", "Tickettailor-Webhook-Id"}
    eventTypeHeaders  = []string{"X-Webhook-Event", "X-Eventbrite-Event"}
)

// WebhookRunner is the part of service.Runner the webhook endpoint uses.
type WebhookRunner interface {
    Provider(ctx context.Context, providerID uint64) (*model.Provider, error)
    HandleWebhook(ctx context.Context, p *model.Provider, d webhook.Delivery) webhook.Result
}

// WebhookHandler receives provider deliveries on POST /webhooks/:provider_id.
type WebhookHandler struct {
    runner WebhookRunner
    log    *zap.Logger
    now    func() time.Time
}

// NewWebhookHandler constructs a WebhookHandler and panics if runner is nil.
func NewWebhookHandler(runner WebhookRunner, log *zap.Logger) *WebhookHandler {
    if runner == nil {
        panic("nil runner passed to NewWebhookHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &WebhookHandler{runner: runner, log: log.Named("http.webhook"), now: time.Now}
}

// Receive verifies and processes a single delivery.  Processed, ignored and
// duplicate deliveries all answer 200 so the provider stops retrying; a
// processing failure answers 500 with the result body.
func (h *WebhookHandler) Receive(c echo.Context) error {
    providerID, err := pathID(c, "provider_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid provider id"})
    }
    ctx := c.Request().Context()

    p, err := h.runner.Provider(ctx, providerID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, map[string]string{"error": "provider not found"})
        }
        h.log.Error("load provider", zap.Uint64("provider_id", providerID), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load provider"})
    }
    if !p.Active {
        return c.JSON(http.StatusNotFound, map[string]string{"error": "provider not found"})
    }

    body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
    if err != nil {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
    }
    if len(body) == 0 {
        return c.JSON(http.StatusBadRequest, map[string]string{"error": "empty body"})
    }

    hdr := c.Request().Header
    if err := webhook.VerifySignature(p, hdr, body, h.now()); err != nil {
        h.log.Warn("rejected webhook", zap.Uint64("provider_id", p.ID), zap.Error(err))
        return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
    }

    res := h.runner.HandleWebhook(ctx, p, webhook.Delivery{
        ID:        firstHeader(hdr, deliveryIDHeaders),
        EventType: firstHeader(hdr, eventTypeHeaders),
        Payload:   body,
    })
    if !res.Success {
        return c.JSON(http.StatusInternalServerError, res)
    }
    return c.JSON(http.StatusOK, res)
}

func firstHeader(h http.Header, names []string) string {
    for _, n := range names {
        if v := h.Get(n); v != "" {
            return v
        }
    }
    return ""
}
