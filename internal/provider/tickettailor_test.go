package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

func newTicketTailorTest(t *testing.T, h http.HandlerFunc) Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a, err := New(&model.Provider{ID: 1, Type: model.ProviderTicketTailor, APIKey: "sk_test"},
		WithBaseURL(srv.URL), WithRateLimit(1000, 100))
	require.NoError(t, err)
	return a
}

func TestTicketTailor_FetchEventsFollowsNextLink(t *testing.T) {
	t.Parallel()

	calls := 0
	a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Empty(t, pass)
		assert.Equal(t, "/v1/event_series", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("starting_after") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"es_1","name":"Midnight Variety Hour","status":"published",
				"url":"https://tt.example/es_1","total_occurrences":2,
				"start":{"unix":1748804400},"end":{"unix":1748890800}}],
				"links":{"next":"/v1/event_series?starting_after=es_1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"es_2","name":"Matinee","status":"draft"}],"links":{"next":null}}`))
	})

	events, err := a.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, calls)

	first := events[0]
	assert.Equal(t, "es_1", first.ID)
	assert.Equal(t, "Midnight Variety Hour", first.Name)
	assert.Equal(t, 2, first.OccurrenceCount)
	require.NotNil(t, first.FirstDate)
	assert.Equal(t, time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC), *first.FirstDate)
	assert.NotEmpty(t, first.Raw)
	assert.Nil(t, events[1].FirstDate)
}

func TestTicketTailor_FetchSalesConvertsCents(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.Equal(t, "ev_10", r.URL.Query().Get("event_id"))
		assert.Equal(t, "1746057600", r.URL.Query().Get("created_at.gte"))
		_, _ = w.Write([]byte(`{"data":[{
			"id":"or_1","status":"completed","created_at":1746100000,
			"event_summary":{"id":"ev_10","event_series_id":"es_1"},
			"issued_tickets":[
				{"id":"it_1","ticket_type_id":"tt_1","description":"General","status":"valid"},
				{"id":"it_2","ticket_type_id":"tt_1","description":"General","status":"voided"}],
			"line_items":[{"type":"ticket","item_id":"tt_1","description":"General","value":2550,"booking_fee":150,"quantity":2}]
		}],"links":{"next":null}}`))
	})

	rows, err := a.FetchSales(context.Background(), "es_1", "ev_10", &since)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "or_1-it_1", r.ID)
	assert.Equal(t, "or_1", r.OrderID)
	assert.Equal(t, "tt_1", r.OfferID)
	assert.Equal(t, 1, r.Quantity)
	assert.True(t, decimal.RequireFromString("25.50").Equal(r.Price))
	assert.True(t, decimal.RequireFromString("25.50").Equal(r.Subtotal))
	assert.True(t, decimal.RequireFromString("1.50").Equal(r.FeePerTicket))
	assert.False(t, r.Refunded)

	assert.Equal(t, "or_1-it_2", rows[1].ID)
	assert.True(t, rows[1].Refunded)
}

func TestTicketTailor_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, nil, func(t *testing.T, err error) {
			assert.True(t, IsAuthentication(err))
			assert.True(t, IsTopLevel(err))
		}},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, func(t *testing.T, err error) {
			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 30*time.Second, rl.RetryAfter)
			assert.True(t, IsTopLevel(err))
		}},
		{"server error", http.StatusBadGateway, nil, func(t *testing.T, err error) {
			var ae *APIError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, http.StatusBadGateway, ae.StatusCode)
			assert.False(t, IsTopLevel(err))
		}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := a.FetchEvents(context.Background())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestTicketTailor_InvalidJSONIsAPIError(t *testing.T) {
	t.Parallel()

	a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})
	_, err := a.FetchOccurrences(context.Background(), "es_1")
	assert.True(t, IsAPI(err))
}

func TestTicketTailor_FetchTicketTypes(t *testing.T) {
	t.Parallel()

	a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events/ev_10", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ev_10",
			"ticket_types": []map[string]any{
				{"id": "tt_1", "name": "General", "price": 2500, "quantity": 100, "quantity_issued": 40, "quantity_held": 5},
			},
		})
	})
	types, err := a.FetchTicketTypes(context.Background(), "ev_10")
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, 100, types[0].Capacity)
	assert.Equal(t, 40, types[0].Sold)
	assert.Equal(t, 55, types[0].Available)
	assert.True(t, decimal.NewFromInt(25).Equal(types[0].Price))
}

func TestTicketTailor_Webhook(t *testing.T) {
	t.Parallel()

	a := newTicketTailorTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "webhook parsing must not call the api", r.URL.Path)
	})
	raw := []byte(`{"id":"wh_1","event":"ORDER.UPDATED","payload":{
		"id":"or_1","status":"refunded",
		"event_summary":{"id":"ev_10","event_series_id":"es_1"},
		"issued_tickets":[{"id":"it_1","ticket_type_id":"tt_1"}],
		"line_items":[{"type":"ticket","item_id":"tt_1","value":1000}]}}`)

	evType, err := a.WebhookEventType(raw)
	require.NoError(t, err)
	assert.Equal(t, "ORDER.REFUNDED", evType)

	env, err := a.ParseWebhook(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "es_1", env.EventID)
	assert.Equal(t, "ev_10", env.OccurrenceID)
	assert.Equal(t, "or_1", env.OrderID)
	require.Len(t, env.Sales, 1)
	assert.Equal(t, "or_1-it_1", env.Sales[0].ID)
}

func TestNew_ManualProvider(t *testing.T) {
	t.Parallel()

	_, err := New(&model.Provider{Type: model.ProviderManual})
	assert.ErrorIs(t, err, ErrManualProvider)
	assert.True(t, IsTopLevel(err))
}

func TestCapabilities_Restrict(t *testing.T) {
	t.Parallel()

	all := Capabilities{FetchEvents: true, FetchOccurrences: true, FetchSales: true, FetchTicketTypes: true, Webhooks: true}
	got := all.Restrict(map[string]bool{CapFetchSales: false, CapWebhooks: true})
	assert.False(t, got.FetchSales)
	assert.True(t, got.Webhooks)
	assert.True(t, got.FetchEvents)

	a, err := New(&model.Provider{Type: model.ProviderTicketTailor, Capabilities: map[string]bool{CapFetchSales: false}})
	require.NoError(t, err)
	_, err = a.FetchSales(context.Background(), "es_1", "", nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
