package handler

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/iliyamo/boxoffice-sync/internal/config"
    "github.com/iliyamo/boxoffice-sync/internal/model"
    "github.com/iliyamo/boxoffice-sync/internal/provider"
    "github.com/iliyamo/boxoffice-sync/internal/provider/providertest"
    "github.com/iliyamo/boxoffice-sync/internal/repository/memory"
    "github.com/iliyamo/boxoffice-sync/internal/service"
    "github.com/iliyamo/boxoffice-sync/internal/webhook"
)

const testSecret = "whsec_test"

type webhookFixture struct {
    e     *echo.Echo
    store *memory.Store
    fake  *providertest.Fake
    prov  *model.Provider
    tier  *model.TicketTier
}

func newWebhookFixture(t *testing.T) *webhookFixture {
    t.Helper()
    ctx := context.Background()
    store := memory.New()
    prov := store.AddProvider(model.Provider{Name: "EB", Type: model.ProviderEventbrite, Active: true, WebhookSecret: testSecret})
    prod := store.AddProduction("Midnight Variety Hour", time.Now())
    show := store.AddShow(prod.ID, time.Now().Add(72*time.Hour))
    link := &model.ProductionLink{ProviderID: prov.ID, ProductionID: prod.ID, ExternalEventID: "es_1", SyncEnabled: true}
    require.NoError(t, store.CreateProductionLink(ctx, link))
    require.NoError(t, store.CreateShowLink(ctx, &model.ShowLink{ProductionLinkID: link.ID, ShowID: show.ID, ExternalOccurrenceID: "ev_1"}))
    listing := store.AddListing(model.Listing{ProviderID: prov.ID, ProductionID: prod.ID, ExternalEventID: "es_1", Status: model.ListingPendingApproval})
    tier := store.AddTier(model.TicketTier{ListingID: listing.ID, ExternalTicketTypeID: "tt_a", Name: "Standard", SeatsTotal: 10, SeatsAvailable: 10})

    fake := providertest.New()
    fake.EventType = "order.placed"
    price := decimal.NewFromInt(20)
    fake.Envelope = &provider.WebhookEnvelope{
        EventType:    "order.placed",
        EventID:      "es_1",
        OccurrenceID: "ev_1",
        OrderID:      "or_1",
        Sales: []provider.SaleRow{{
            ID: "at_1", OrderID: "or_1", OfferID: "tt_a", Quantity: 2,
            Price: price, Subtotal: price.Mul(decimal.NewFromInt(2)),
        }},
    }
    factory := func(*model.Provider, ...provider.Option) (provider.Adapter, error) { return fake, nil }
    log := zaptest.NewLogger(t)
    runner := service.NewRunner(store, config.DefaultSyncConfig(), log, service.WithAdapterFactory(factory))

    e := echo.New()
    e.POST("/webhooks/:provider_id", NewWebhookHandler(runner, log).Receive)
    return &webhookFixture{e: e, store: store, fake: fake, prov: prov, tier: tier}
}

func (f *webhookFixture) post(t *testing.T, providerID uint64, body []byte, headers map[string]string) (*httptest.ResponseRecorder, webhook.Result) {
    t.Helper()
    req := httptest.NewRequest(http.MethodPost, "/webhooks/"+itoa(providerID), bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    for k, v := range headers {
        req.Header.Set(k, v)
    }
    rec := httptest.NewRecorder()
    f.e.ServeHTTP(rec, req)
    var res webhook.Result
    if rec.Code == http.StatusOK || rec.Code == http.StatusInternalServerError {
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
    }
    return rec, res
}

func signed(body []byte, extra map[string]string) map[string]string {
    h := map[string]string{webhook.HeaderSignature: "sha256=" + webhook.Sign([]byte(testSecret), body)}
    for k, v := range extra {
        h[k] = v
    }
    return h
}

func TestWebhookReceive_RecordsSaleOnce(t *testing.T) {
    f := newWebhookFixture(t)
    body := []byte(`{"config":{"action":"order.placed"},"api_url":"https://example.test/orders/or_1/"}`)
    hdr := signed(body, map[string]string{"X-Webhook-Id": "dlv_1"})

    rec, res := f.post(t, f.prov.ID, body, hdr)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.True(t, res.Success)
    assert.Equal(t, "dlv_1", res.DeliveryID)
    assert.Equal(t, webhook.CategorySale, res.Category)
    assert.Equal(t, 1, res.Created)
    assert.Equal(t, 8, f.store.Tier(f.tier.ID).SeatsAvailable)

    rec, res = f.post(t, f.prov.ID, body, hdr)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.True(t, res.Duplicate)
    assert.Equal(t, 8, f.store.Tier(f.tier.ID).SeatsAvailable)
    assert.Len(t, f.store.Sales(), 1)
}

func TestWebhookReceive_RejectsBadSignature(t *testing.T) {
    f := newWebhookFixture(t)
    body := []byte(`{"config":{"action":"order.placed"}}`)

    rec, _ := f.post(t, f.prov.ID, body, map[string]string{webhook.HeaderSignature: "deadbeef"})
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec, _ = f.post(t, f.prov.ID, body, nil)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    assert.Empty(t, f.store.WebhookLogs())
    assert.Empty(t, f.store.Sales())
}

func TestWebhookReceive_EventTypeHeaderWins(t *testing.T) {
    f := newWebhookFixture(t)
    body := []byte(`{"anything":true}`)

    rec, res := f.post(t, f.prov.ID, body, signed(body, map[string]string{"X-Webhook-Event": "attendee.checked_in"}))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.True(t, res.Ignored)
    assert.Empty(t, f.store.Sales())
}

func TestWebhookReceive_ProcessingFailureIs500(t *testing.T) {
    f := newWebhookFixture(t)
    f.fake.EnvelopeErr = assert.AnError
    body := []byte(`{"config":{"action":"order.placed"}}`)

    rec, res := f.post(t, f.prov.ID, body, signed(body, nil))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.False(t, res.Success)
    assert.NotEmpty(t, res.Error)
}

func TestWebhookReceive_UnknownOrInactiveProvider(t *testing.T) {
    f := newWebhookFixture(t)
    body := []byte(`{}`)

    rec, _ := f.post(t, 999, body, nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    off := f.store.AddProvider(model.Provider{Name: "Off", Type: model.ProviderEventbrite, Active: false})
    rec, _ = f.post(t, off.ID, body, nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    req := httptest.NewRequest(http.MethodPost, "/webhooks/abc", bytes.NewReader(body))
    r := httptest.NewRecorder()
    f.e.ServeHTTP(r, req)
    assert.Equal(t, http.StatusBadRequest, r.Code)
}
