package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/provider/providertest"
	"github.com/iliyamo/boxoffice-sync/internal/repository/memory"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sales []model.TicketSale
}

func (n *recordingNotifier) SaleRecorded(_ context.Context, s model.TicketSale) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sales = append(n.sales, s)
	return nil
}

type fixture struct {
	store      *memory.Store
	fake       *providertest.Fake
	notifier   *recordingNotifier
	proc       *Processor
	prov       *model.Provider
	listing    *model.Listing
	tier       *model.TicketTier
	showLinkID uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	prov := store.AddProvider(model.Provider{Name: "Box office", Type: model.ProviderTicketTailor, Active: true})
	prod := store.AddProduction("Midnight Variety Hour", time.Now())
	show := store.AddShow(prod.ID, time.Now().Add(72*time.Hour))

	link := &model.ProductionLink{ProviderID: prov.ID, ProductionID: prod.ID, ExternalEventID: "es_1", SyncEnabled: true}
	require.NoError(t, store.CreateProductionLink(ctx, link))
	sl := &model.ShowLink{ProductionLinkID: link.ID, ShowID: show.ID, ExternalOccurrenceID: "ev_1"}
	require.NoError(t, store.CreateShowLink(ctx, sl))

	listing := store.AddListing(model.Listing{ProviderID: prov.ID, ProductionID: prod.ID, ExternalEventID: "es_1", Status: model.ListingPendingApproval})
	tier := store.AddTier(model.TicketTier{ListingID: listing.ID, ExternalTicketTypeID: "tt_a", Name: "Standard", SeatsTotal: 10, SeatsAvailable: 10})

	n := &recordingNotifier{}
	return &fixture{
		store:      store,
		fake:       providertest.New(),
		notifier:   n,
		proc:       New(store, n, zaptest.NewLogger(t)),
		prov:       prov,
		listing:    listing,
		tier:       tier,
		showLinkID: sl.ID,
	}
}

func saleEnvelope(qty int) *provider.WebhookEnvelope {
	price := decimal.NewFromInt(20)
	return &provider.WebhookEnvelope{
		EventType:    "ORDER.CREATED",
		EventID:      "es_1",
		OccurrenceID: "ev_1",
		OrderID:      "or_1",
		Sales: []provider.SaleRow{{
			ID:       "or_1-it_1",
			OrderID:  "or_1",
			OfferID:  "tt_a",
			Quantity: qty,
			Price:    price,
			Subtotal: price.Mul(decimal.NewFromInt(int64(qty))),
		}},
	}
}

func (f *fixture) deliver(eventType string) Result {
	return f.proc.Process(context.Background(), f.prov, f.fake, Delivery{EventType: eventType, Payload: []byte(`{"id":"wh_1"}`)})
}

func TestProcess_SaleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = saleEnvelope(2)

	first := f.deliver("ORDER.CREATED")
	require.True(t, first.Success, first.Error)
	assert.Equal(t, CategorySale, first.Category)
	assert.Equal(t, 1, first.Created)
	assert.False(t, first.Duplicate)

	second := f.deliver("ORDER.CREATED")
	require.True(t, second.Success, second.Error)
	assert.True(t, second.Duplicate)
	assert.Zero(t, second.Created)

	sales := f.store.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, model.SaleConfirmed, sales[0].Status)
	assert.Equal(t, model.SaleSourceWebhook, sales[0].Source)
	require.NotNil(t, sales[0].ShowLinkID)
	assert.Equal(t, f.showLinkID, *sales[0].ShowLinkID)
	assert.Equal(t, 8, f.store.Tier(f.tier.ID).SeatsAvailable)
	assert.Len(t, f.notifier.sales, 1)

	logs := f.store.WebhookLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, model.WebhookProcessed, logs[0].Status)
	assert.Equal(t, model.WebhookDuplicate, logs[1].Status)
	assert.NotEqual(t, logs[0].DeliveryID, logs[1].DeliveryID)
}

func TestProcess_RedeliveredDeliveryID(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = saleEnvelope(1)
	d := Delivery{ID: "dlv_1", EventType: "ORDER.CREATED", Payload: []byte(`{}`)}

	require.True(t, f.proc.Process(context.Background(), f.prov, f.fake, d).Success)
	res := f.proc.Process(context.Background(), f.prov, f.fake, d)
	assert.True(t, res.Success)
	assert.True(t, res.Duplicate)
	assert.Len(t, f.store.WebhookLogs(), 1)
	assert.Equal(t, 9, f.store.Tier(f.tier.ID).SeatsAvailable)
}

func TestProcess_RefundRestoresDeductedSeats(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = saleEnvelope(2)
	require.True(t, f.deliver("ORDER.CREATED").Success)
	assert.Equal(t, 8, f.store.Tier(f.tier.ID).SeatsAvailable)

	f.fake.Envelope = &provider.WebhookEnvelope{EventType: "ORDER.REFUNDED", EventID: "es_1", OrderID: "or_1"}
	res := f.deliver("ORDER.REFUNDED")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, CategoryRefund, res.Category)
	assert.Equal(t, 1, res.Refunded)

	sales := f.store.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, model.SaleRefunded, sales[0].Status)
	assert.NotNil(t, sales[0].RefundedAt)
	assert.Equal(t, 10, f.store.Tier(f.tier.ID).SeatsAvailable)

	again := f.deliver("ORDER.REFUNDED")
	assert.True(t, again.Success)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 10, f.store.Tier(f.tier.ID).SeatsAvailable)
}

func TestProcess_OrderUpdateWithRefundedLines(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = saleEnvelope(1)
	require.True(t, f.deliver("ORDER.CREATED").Success)
	assert.Equal(t, 9, f.store.Tier(f.tier.ID).SeatsAvailable)

	updated := saleEnvelope(1)
	updated.EventType = "ORDER.UPDATED"
	updated.Sales[0].Refunded = true
	f.fake.Envelope = updated

	res := f.deliver("ORDER.UPDATED")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, CategorySale, res.Category)
	assert.Equal(t, 1, res.Refunded)
	assert.Zero(t, res.Created)
	assert.False(t, res.Duplicate)

	sales := f.store.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, model.SaleRefunded, sales[0].Status)
	assert.Equal(t, 10, f.store.Tier(f.tier.ID).SeatsAvailable)

	again := f.deliver("ORDER.UPDATED")
	assert.True(t, again.Success)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 10, f.store.Tier(f.tier.ID).SeatsAvailable)
}

func TestProcess_RefundOfUnknownOrderIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = &provider.WebhookEnvelope{EventID: "es_1", OrderID: "or_missing"}

	res := f.deliver("order.refunded")
	assert.True(t, res.Success)
	assert.True(t, res.Ignored)
}

func TestProcess_UnknownTypeHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.fake.EnvelopeErr = &provider.APIError{Provider: "fake", StatusCode: 500, Message: "must not be called"}

	res := f.deliver("barcode.checked_in")
	assert.True(t, res.Success)
	assert.True(t, res.Ignored)
	assert.Equal(t, CategoryIgnored, res.Category)
	assert.Empty(t, f.store.Sales())
	require.Len(t, f.store.WebhookLogs(), 1)
	assert.Equal(t, model.WebhookIgnored, f.store.WebhookLogs()[0].Status)
}

func TestProcess_EventTypeFromPayload(t *testing.T) {
	f := newFixture(t)
	f.fake.EventType = "ORDER.CREATED"
	f.fake.Envelope = saleEnvelope(1)

	res := f.deliver("")
	assert.True(t, res.Success)
	assert.Equal(t, CategorySale, res.Category)
	assert.Equal(t, 1, res.Created)
}

func TestProcess_SaleForUnlinkedEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	env := saleEnvelope(1)
	env.EventID = "es_other"
	f.fake.Envelope = env

	res := f.deliver("ORDER.CREATED")
	assert.True(t, res.Success)
	assert.True(t, res.Ignored)
	assert.Empty(t, f.store.Sales())
}

func TestProcess_ParseFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.fake.EnvelopeErr = &provider.AuthenticationError{Provider: "fake", Message: "token revoked"}

	res := f.deliver("ORDER.CREATED")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "token revoked")
	logs := f.store.WebhookLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.WebhookFailed, logs[0].Status)
	require.NotNil(t, logs[0].Error)
}

func TestProcess_ListingLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = &provider.WebhookEnvelope{EventID: "es_1"}

	res := f.deliver("EVENT.UPDATED")
	require.True(t, res.Success, res.Error)
	assert.True(t, f.store.Listing(f.listing.ID).NeedsReview)

	res = f.deliver("EVENT.PUBLISHED")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.ListingApproved, f.store.Listing(f.listing.ID).Status)

	res = f.deliver("event.unpublished")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, CategoryEventCancel, res.Category)
	l := f.store.Listing(f.listing.ID)
	assert.Equal(t, model.ListingEnded, l.Status)
	assert.NotNil(t, l.EndedAt)

	res = f.deliver("EVENT.CANCELLED")
	assert.True(t, res.Duplicate)
}

func TestProcess_EventForUnknownListingIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.fake.Envelope = &provider.WebhookEnvelope{EventID: "es_nope"}

	res := f.deliver("EVENT.PUBLISHED")
	assert.True(t, res.Success)
	assert.True(t, res.Ignored)
}
