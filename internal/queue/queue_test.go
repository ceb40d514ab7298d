package queue

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/boxoffice-sync/internal/model"
)

func TestHandleDelivery(t *testing.T) {
    var got SyncRequest
    handle := func(_ context.Context, req SyncRequest) error {
        got = req
        return nil
    }

    err := handleDelivery(context.Background(), []byte(`{"kind":"sales_import","production_link_id":7}`), handle)
    require.NoError(t, err)
    assert.Equal(t, KindSalesImport, got.Kind)
    assert.Equal(t, uint64(7), got.ProductionLinkID)

    err = handleDelivery(context.Background(), []byte(`not json`), handle)
    assert.True(t, errors.Is(err, errMalformed))

    err = handleDelivery(context.Background(), []byte(`{"provider_id":1}`), handle)
    assert.True(t, errors.Is(err, errMalformed))
}

func TestHandleDelivery_PropagatesHandlerError(t *testing.T) {
    boom := errors.New("boom")
    err := handleDelivery(context.Background(), []byte(`{"kind":"full","provider_id":1}`),
        func(context.Context, SyncRequest) error { return boom })
    assert.ErrorIs(t, err, boom)
}

func TestSaleEvent(t *testing.T) {
    tier := uint64(4)
    s := model.TicketSale{
        ID: 9, ProviderID: 1, ExternalSaleID: "or_1-it_1", ExternalOrderID: "or_1",
        ExternalEventID: "es_1", TierID: &tier, Quantity: 2, Subtotal: decimal.RequireFromString("41.50"), SeatsDeducted: 2,
    }
    ev := saleEvent(s, time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC))

    b, err := json.Marshal(ev)
    require.NoError(t, err)
    assert.JSONEq(t, `{
        "sale_id": 9, "provider_id": 1, "external_sale_id": "or_1-it_1", "external_order_id": "or_1",
        "external_event_id": "es_1", "tier_id": 4, "quantity": 2, "subtotal": "41.5",
        "seats_deducted": 2, "recorded_at": "2025-06-01T19:00:00Z"
    }`, string(b))
}
