package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

const ticketTailorBaseURL = "https://api.tickettailor.com"

// ticketTailor talks to the Ticket Tailor v1 API.  External events are
// event series; occurrences are the series' dated events.  Prices arrive
// as integer cents and every issued ticket is its own sale.
type ticketTailor struct {
	api  *apiClient
	caps Capabilities
}

func newTicketTailor(p *model.Provider, o *options) *ticketTailor {
	base := o.baseURL
	if base == "" {
		base = ticketTailorBaseURL
	}
	caps := Capabilities{FetchEvents: true, FetchOccurrences: true, FetchSales: true, FetchTicketTypes: true, Webhooks: true}
	return &ticketTailor{
		api:  newAPIClient("tickettailor", base, APIKeyAuth{APIKey: p.APIKey}, o),
		caps: caps.Restrict(p.Capabilities),
	}
}

type ttTime struct {
	ISO  string `json:"iso"`
	Unix int64  `json:"unix"`
}

func (t *ttTime) time() *time.Time {
	if t == nil || t.Unix == 0 {
		return nil
	}
	v := time.Unix(t.Unix, 0).UTC()
	return &v
}

type ttPage struct {
	Data  []json.RawMessage `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

type ttEventSeries struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	URL              string  `json:"url"`
	TotalOccurrences int     `json:"total_occurrences"`
	Start            *ttTime `json:"start"`
	End              *ttTime `json:"end"`
}

type ttTicketType struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	BookingFee     int64  `json:"booking_fee"`
	Quantity       int    `json:"quantity"`
	QuantityIssued int    `json:"quantity_issued"`
	QuantityHeld   int    `json:"quantity_held"`
	Status         string `json:"status"`
}

type ttOccurrence struct {
	ID            string         `json:"id"`
	EventSeriesID string         `json:"event_series_id"`
	Status        string         `json:"status"`
	Start         *ttTime        `json:"start"`
	End           *ttTime        `json:"end"`
	TicketTypes   []ttTicketType `json:"ticket_types"`
}

type ttOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"created_at"`
	EventSummary struct {
		ID            string `json:"id"`
		EventSeriesID string `json:"event_series_id"`
	} `json:"event_summary"`
	IssuedTickets []struct {
		ID           string `json:"id"`
		TicketTypeID string `json:"ticket_type_id"`
		Description  string `json:"description"`
		Status       string `json:"status"`
	} `json:"issued_tickets"`
	LineItems []struct {
		Type        string `json:"type"`
		ItemID      string `json:"item_id"`
		Description string `json:"description"`
		Value       int64  `json:"value"`
		BookingFee  int64  `json:"booking_fee"`
		Quantity    int    `json:"quantity"`
	} `json:"line_items"`
}

type ttWebhook struct {
	ID          string          `json:"id"`
	Event       string          `json:"event"`
	ResourceURL string          `json:"resource_url"`
	Payload     json.RawMessage `json:"payload"`
}

func (t *ticketTailor) Type() model.ProviderType { return model.ProviderTicketTailor }
func (t *ticketTailor) Capabilities() Capabilities { return t.caps }

func (t *ticketTailor) Authenticate(ctx context.Context) error {
	return t.api.getJSON(ctx, "/v1/overview", nil, nil)
}

// each walks every page of a list endpoint, following links.next.
func (t *ticketTailor) each(ctx context.Context, path string, query url.Values, fn func(json.RawMessage) error) error {
	next := path
	for next != "" {
		var page ttPage
		if err := t.api.getJSON(ctx, next, query, &page); err != nil {
			return err
		}
		for _, item := range page.Data {
			if err := fn(item); err != nil {
				return err
			}
		}
		next = ""
		query = nil // the next link carries the full query
		if page.Links.Next != nil {
			next = *page.Links.Next
		}
	}
	return nil
}

func (t *ticketTailor) normalizeSeries(raw json.RawMessage) (*Event, error) {
	var s ttEventSeries
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &APIError{Provider: "tickettailor", Message: "decode event series", Err: err}
	}
	return &Event{
		ID:              s.ID,
		Name:            s.Name,
		Status:          s.Status,
		URL:             s.URL,
		OccurrenceCount: s.TotalOccurrences,
		FirstDate:       s.Start.time(),
		LastDate:        s.End.time(),
		Raw:             raw,
	}, nil
}

func (t *ticketTailor) FetchEvents(ctx context.Context) ([]Event, error) {
	if !t.caps.FetchEvents {
		return nil, ErrUnsupported
	}
	var out []Event
	err := t.each(ctx, "/v1/event_series", nil, func(raw json.RawMessage) error {
		ev, err := t.normalizeSeries(raw)
		if err != nil {
			return err
		}
		out = append(out, *ev)
		return nil
	})
	return out, err
}

func (t *ticketTailor) FetchEvent(ctx context.Context, id string) (*Event, error) {
	var raw json.RawMessage
	if err := t.api.getJSON(ctx, "/v1/event_series/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return t.normalizeSeries(raw)
}

func (t *ticketTailor) FetchOccurrences(ctx context.Context, eventID string) ([]Occurrence, error) {
	if !t.caps.FetchOccurrences {
		return nil, ErrUnsupported
	}
	var out []Occurrence
	err := t.each(ctx, "/v1/event_series/"+url.PathEscape(eventID)+"/events", nil, func(raw json.RawMessage) error {
		var o ttOccurrence
		if err := json.Unmarshal(raw, &o); err != nil {
			return &APIError{Provider: "tickettailor", Message: "decode event", Err: err}
		}
		start := o.Start.time()
		if start == nil {
			return nil
		}
		out = append(out, Occurrence{ID: o.ID, EventID: eventID, StartsAt: *start, EndsAt: o.End.time(), Status: o.Status})
		return nil
	})
	return out, err
}

func (t *ticketTailor) FetchSales(ctx context.Context, eventID, occurrenceID string, since *time.Time) ([]SaleRow, error) {
	if !t.caps.FetchSales {
		return nil, ErrUnsupported
	}
	q := url.Values{}
	if occurrenceID != "" {
		q.Set("event_id", occurrenceID)
	} else {
		q.Set("event_series_id", eventID)
	}
	if since != nil {
		q.Set("created_at.gte", strconv.FormatInt(since.Unix(), 10))
	}
	var out []SaleRow
	err := t.each(ctx, "/v1/orders", q, func(raw json.RawMessage) error {
		var o ttOrder
		if err := json.Unmarshal(raw, &o); err != nil {
			return &APIError{Provider: "tickettailor", Message: "decode order", Err: err}
		}
		out = append(out, ticketTailorSaleRows(&o)...)
		return nil
	})
	return out, err
}

// ticketTailorSaleRows expands an order into one row per issued ticket,
// keyed "<order id>-<issued ticket id>".
func ticketTailorSaleRows(o *ttOrder) []SaleRow {
	orderRefunded := o.Status == "cancelled" || o.Status == "refunded"
	var purchased *time.Time
	if o.CreatedAt > 0 {
		v := time.Unix(o.CreatedAt, 0).UTC()
		purchased = &v
	}
	rows := make([]SaleRow, 0, len(o.IssuedTickets))
	for _, it := range o.IssuedTickets {
		row := SaleRow{
			ID:           o.ID + "-" + it.ID,
			OrderID:      o.ID,
			EventID:      o.EventSummary.EventSeriesID,
			OccurrenceID: o.EventSummary.ID,
			OfferID:      it.TicketTypeID,
			OfferName:    it.Description,
			Quantity:     1,
			Refunded:     orderRefunded || it.Status == "voided",
			PurchasedAt:  purchased,
		}
		for _, li := range o.LineItems {
			if li.ItemID != it.TicketTypeID || (li.Type != "" && li.Type != "ticket") {
				continue
			}
			row.Price = fromMinor(li.Value)
			row.FeePerTicket = fromMinor(li.BookingFee)
			if row.OfferName == "" {
				row.OfferName = li.Description
			}
			break
		}
		row.Subtotal = row.Price
		row.Fees = row.FeePerTicket
		rows = append(rows, row)
	}
	return rows
}

func (t *ticketTailor) FetchTicketTypes(ctx context.Context, eventOrOccurrenceID string) ([]TicketType, error) {
	if !t.caps.FetchTicketTypes {
		return nil, ErrUnsupported
	}
	var o ttOccurrence
	if err := t.api.getJSON(ctx, "/v1/events/"+url.PathEscape(eventOrOccurrenceID), nil, &o); err != nil {
		return nil, err
	}
	out := make([]TicketType, 0, len(o.TicketTypes))
	for _, tt := range o.TicketTypes {
		avail := tt.Quantity - tt.QuantityIssued - tt.QuantityHeld
		if avail < 0 {
			avail = 0
		}
		out = append(out, TicketType{
			ID:        tt.ID,
			Name:      tt.Name,
			Price:     fromMinor(tt.Price),
			Capacity:  tt.Quantity,
			Sold:      tt.QuantityIssued,
			Available: avail,
		})
	}
	return out, nil
}

// WebhookEventType reports ORDER.UPDATED deliveries for cancelled or
// refunded orders under a type that says so.
func (t *ticketTailor) WebhookEventType(raw []byte) (string, error) {
	var w ttWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", eris.Wrap(err, "tickettailor: decode webhook")
	}
	ev := strings.ToUpper(strings.TrimSpace(w.Event))
	if ev == "ORDER.UPDATED" {
		var o struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Payload, &o); err == nil {
			switch o.Status {
			case "cancelled":
				return "ORDER.CANCELLED", nil
			case "refunded":
				return "ORDER.REFUNDED", nil
			}
		}
	}
	return ev, nil
}

func (t *ticketTailor) ParseWebhook(_ context.Context, raw []byte) (*WebhookEnvelope, error) {
	if !t.caps.Webhooks {
		return nil, ErrUnsupported
	}
	var w ttWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, eris.Wrap(err, "tickettailor: decode webhook")
	}
	evType, err := t.WebhookEventType(raw)
	if err != nil {
		return nil, err
	}
	env := &WebhookEnvelope{EventType: evType}

	switch {
	case strings.HasPrefix(evType, "ORDER."):
		var o ttOrder
		if err := json.Unmarshal(w.Payload, &o); err != nil {
			return nil, eris.Wrap(err, "tickettailor: decode order payload")
		}
		env.EventID = o.EventSummary.EventSeriesID
		env.OccurrenceID = o.EventSummary.ID
		env.OrderID = o.ID
		env.Sales = ticketTailorSaleRows(&o)
	case strings.HasPrefix(evType, "EVENT_SERIES."):
		var s ttEventSeries
		if err := json.Unmarshal(w.Payload, &s); err != nil {
			return nil, eris.Wrap(err, "tickettailor: decode event series payload")
		}
		env.EventID = s.ID
	default:
		var o ttOccurrence
		if err := json.Unmarshal(w.Payload, &o); err != nil {
			return nil, eris.Wrap(err, "tickettailor: decode event payload")
		}
		env.EventID = o.EventSeriesID
		env.OccurrenceID = o.ID
		if env.EventID == "" {
			env.EventID = o.ID
		}
	}
	return env, nil
}
