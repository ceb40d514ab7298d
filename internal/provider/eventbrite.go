package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

const (
	eventbriteBaseURL  = "https://www.eventbriteapi.com"
	eventbriteTokenURL = "https://www.eventbrite.com/oauth/token"
)

// eventbrite talks to the Eventbrite v3 API with an OAuth bearer token.
// A recurring event is a series parent with one child event per
// occurrence; the series id is the external event id.  Costs arrive as
// nested objects and every attendee is its own sale.
type eventbrite struct {
	api  *apiClient
	org  string
	caps Capabilities
}

func newEventbrite(p *model.Provider, o *options) *eventbrite {
	base := o.baseURL
	if base == "" {
		base = eventbriteBaseURL
	}
	tokenURL := o.tokenURL
	if tokenURL == "" {
		tokenURL = eventbriteTokenURL
	}
	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	tok := &oauth2.Token{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: "Bearer"}
	if p.TokenExpiresAt != nil {
		tok.Expiry = *p.TokenExpiresAt
	}
	auth := NewOAuthAuth(p.ID, cfg, tok, o.httpClient(), o.tokenStore, o.persist)

	caps := Capabilities{FetchEvents: true, FetchOccurrences: true, FetchSales: true, FetchTicketTypes: true, Webhooks: true}
	return &eventbrite{
		api:  newAPIClient("eventbrite", base, auth, o),
		org:  p.OrganizationID,
		caps: caps.Restrict(p.Capabilities),
	}
}

type ebText struct {
	Text string `json:"text"`
}

type ebTime struct {
	UTC string `json:"utc"`
}

func (t *ebTime) time() *time.Time {
	if t == nil || t.UTC == "" {
		return nil
	}
	v, err := time.Parse(time.RFC3339, t.UTC)
	if err != nil {
		return nil
	}
	v = v.UTC()
	return &v
}

type ebPagination struct {
	HasMoreItems bool   `json:"has_more_items"`
	Continuation string `json:"continuation"`
}

type ebEvent struct {
	ID             string  `json:"id"`
	Name           ebText  `json:"name"`
	URL            string  `json:"url"`
	Status         string  `json:"status"`
	Start          *ebTime `json:"start"`
	End            *ebTime `json:"end"`
	IsSeriesParent bool    `json:"is_series_parent"`
	SeriesID       string  `json:"series_id"`
}

type ebAttendee struct {
	ID              string `json:"id"`
	EventID         string `json:"event_id"`
	TicketClassID   string `json:"ticket_class_id"`
	TicketClassName string `json:"ticket_class_name"`
	Quantity        int    `json:"quantity"`
	Status          string `json:"status"`
	Refunded        bool   `json:"refunded"`
	Cancelled       bool   `json:"cancelled"`
	Costs           struct {
		BasePrice     *moneyValue `json:"base_price"`
		EventbriteFee *moneyValue `json:"eventbrite_fee"`
		PaymentFee    *moneyValue `json:"payment_fee"`
	} `json:"costs"`
}

type ebOrder struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Status    string       `json:"status"`
	Created   string       `json:"created"`
	Attendees []ebAttendee `json:"attendees"`
}

type ebTicketClass struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	QuantityTotal int         `json:"quantity_total"`
	QuantitySold  int         `json:"quantity_sold"`
	Cost          *moneyValue `json:"cost"`
}

type ebWebhook struct {
	Config struct {
		Action string `json:"action"`
	} `json:"config"`
	APIURL string `json:"api_url"`
}

func (e *eventbrite) Type() model.ProviderType { return model.ProviderEventbrite }
func (e *eventbrite) Capabilities() Capabilities { return e.caps }

func (e *eventbrite) Authenticate(ctx context.Context) error {
	return e.api.getJSON(ctx, "/v3/users/me/", nil, nil)
}

// pages walks a continuation-paged endpoint.  decode receives each raw
// page and returns its pagination block.
func (e *eventbrite) pages(ctx context.Context, path string, query url.Values, decode func(json.RawMessage) (ebPagination, error)) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	for {
		var raw json.RawMessage
		if err := e.api.getJSON(ctx, path, q, &raw); err != nil {
			return err
		}
		pg, err := decode(raw)
		if err != nil {
			return &APIError{Provider: "eventbrite", Message: "decode page", Err: err}
		}
		if !pg.HasMoreItems || pg.Continuation == "" {
			return nil
		}
		q.Set("continuation", pg.Continuation)
	}
}

func (e *eventbrite) listEvents(ctx context.Context, path string, query url.Values) ([]ebEvent, []json.RawMessage, error) {
	var (
		events []ebEvent
		raws   []json.RawMessage
	)
	err := e.pages(ctx, path, query, func(raw json.RawMessage) (ebPagination, error) {
		var page struct {
			Events     []json.RawMessage `json:"events"`
			Pagination ebPagination      `json:"pagination"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return ebPagination{}, err
		}
		for _, r := range page.Events {
			var ev ebEvent
			if err := json.Unmarshal(r, &ev); err != nil {
				return ebPagination{}, err
			}
			events = append(events, ev)
			raws = append(raws, r)
		}
		return page.Pagination, nil
	})
	return events, raws, err
}

// FetchEvents groups the organisation's events by series so that a
// recurring event is reported once with its occurrence range.
func (e *eventbrite) FetchEvents(ctx context.Context) ([]Event, error) {
	if !e.caps.FetchEvents {
		return nil, ErrUnsupported
	}
	if e.org == "" {
		return nil, &APIError{Provider: "eventbrite", Message: "organization id is not configured"}
	}
	q := url.Values{"status": {"live,started,ended,completed"}, "page_size": {"50"}}
	events, raws, err := e.listEvents(ctx, "/v3/organizations/"+url.PathEscape(e.org)+"/events/", q)
	if err != nil {
		return nil, err
	}

	byID := map[string]*Event{}
	var order []string
	for i, ev := range events {
		key := ev.ID
		if ev.SeriesID != "" {
			key = ev.SeriesID
		}
		agg, ok := byID[key]
		if !ok {
			agg = &Event{ID: key}
			byID[key] = agg
			order = append(order, key)
		}
		if ev.IsSeriesParent || ev.ID == key || agg.Name == "" {
			agg.Name = ev.Name.Text
			agg.URL = ev.URL
			agg.Status = ev.Status
			agg.Raw = raws[i]
		}
		if ev.IsSeriesParent {
			continue
		}
		agg.OccurrenceCount++
		extendRange(agg, ev.Start.time(), ev.End.time())
	}

	out := make([]Event, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

func extendRange(ev *Event, start, end *time.Time) {
	if start == nil {
		return
	}
	if end == nil {
		end = start
	}
	if ev.FirstDate == nil || start.Before(*ev.FirstDate) {
		s := *start
		ev.FirstDate = &s
	}
	if ev.LastDate == nil || end.After(*ev.LastDate) {
		e := *end
		ev.LastDate = &e
	}
}

func (e *eventbrite) getEvent(ctx context.Context, id string) (*ebEvent, json.RawMessage, error) {
	var raw json.RawMessage
	if err := e.api.getJSON(ctx, "/v3/events/"+url.PathEscape(id)+"/", nil, &raw); err != nil {
		return nil, nil, err
	}
	var ev ebEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, nil, &APIError{Provider: "eventbrite", Message: "decode event", Err: err}
	}
	return &ev, raw, nil
}

func (e *eventbrite) FetchEvent(ctx context.Context, id string) (*Event, error) {
	ev, raw, err := e.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Event{ID: ev.ID, Name: ev.Name.Text, URL: ev.URL, Status: ev.Status, Raw: raw}
	occs, err := e.FetchOccurrences(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, o := range occs {
		out.OccurrenceCount++
		start := o.StartsAt
		extendRange(out, &start, o.EndsAt)
	}
	return out, nil
}

func (e *eventbrite) FetchOccurrences(ctx context.Context, eventID string) ([]Occurrence, error) {
	if !e.caps.FetchOccurrences {
		return nil, ErrUnsupported
	}
	ev, _, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	children := []ebEvent{*ev}
	if ev.IsSeriesParent {
		children, _, err = e.listEvents(ctx, "/v3/series/"+url.PathEscape(eventID)+"/events/", url.Values{"page_size": {"50"}})
		if err != nil {
			return nil, err
		}
	}
	out := make([]Occurrence, 0, len(children))
	for _, c := range children {
		start := c.Start.time()
		if start == nil || c.IsSeriesParent {
			continue
		}
		out = append(out, Occurrence{ID: c.ID, EventID: eventID, StartsAt: *start, EndsAt: c.End.time(), Status: c.Status})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (e *eventbrite) FetchSales(ctx context.Context, eventID, occurrenceID string, since *time.Time) ([]SaleRow, error) {
	if !e.caps.FetchSales {
		return nil, ErrUnsupported
	}
	target := occurrenceID
	if target == "" {
		target = eventID
	}
	q := url.Values{"expand": {"attendees"}}
	if since != nil {
		q.Set("changed_since", since.UTC().Format("2006-01-02T15:04:05Z"))
	}
	var out []SaleRow
	err := e.pages(ctx, "/v3/events/"+url.PathEscape(target)+"/orders/", q, func(raw json.RawMessage) (ebPagination, error) {
		var page struct {
			Orders     []ebOrder    `json:"orders"`
			Pagination ebPagination `json:"pagination"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return ebPagination{}, err
		}
		for i := range page.Orders {
			out = append(out, eventbriteSaleRows(&page.Orders[i], eventID)...)
		}
		return page.Pagination, nil
	})
	return out, err
}

// eventbriteSaleRows expands an order into one row per attendee, keyed by
// the attendee id.
func eventbriteSaleRows(o *ebOrder, eventID string) []SaleRow {
	var purchased *time.Time
	if t, err := time.Parse(time.RFC3339, o.Created); err == nil {
		t = t.UTC()
		purchased = &t
	}
	orderRefunded := o.Status == "refunded" || o.Status == "deleted"
	rows := make([]SaleRow, 0, len(o.Attendees))
	for _, a := range o.Attendees {
		qty := a.Quantity
		if qty <= 0 {
			qty = 1
		}
		price := a.Costs.BasePrice.Major()
		fee := a.Costs.EventbriteFee.Major().Add(a.Costs.PaymentFee.Major())
		occ := a.EventID
		if occ == "" {
			occ = o.EventID
		}
		rows = append(rows, SaleRow{
			ID:           a.ID,
			OrderID:      o.ID,
			EventID:      eventID,
			OccurrenceID: occ,
			OfferID:      a.TicketClassID,
			OfferName:    a.TicketClassName,
			Quantity:     qty,
			Price:        price,
			Subtotal:     price.Mul(decimalInt(qty)),
			FeePerTicket: fee,
			Fees:         fee.Mul(decimalInt(qty)),
			Refunded:     orderRefunded || a.Refunded || a.Cancelled,
			PurchasedAt:  purchased,
		})
	}
	return rows
}

func (e *eventbrite) FetchTicketTypes(ctx context.Context, eventOrOccurrenceID string) ([]TicketType, error) {
	if !e.caps.FetchTicketTypes {
		return nil, ErrUnsupported
	}
	var out []TicketType
	err := e.pages(ctx, "/v3/events/"+url.PathEscape(eventOrOccurrenceID)+"/ticket_classes/", nil, func(raw json.RawMessage) (ebPagination, error) {
		var page struct {
			TicketClasses []ebTicketClass `json:"ticket_classes"`
			Pagination    ebPagination    `json:"pagination"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return ebPagination{}, err
		}
		for _, tc := range page.TicketClasses {
			avail := tc.QuantityTotal - tc.QuantitySold
			if avail < 0 {
				avail = 0
			}
			out = append(out, TicketType{
				ID:        tc.ID,
				Name:      tc.Name,
				Price:     tc.Cost.Major(),
				Capacity:  tc.QuantityTotal,
				Sold:      tc.QuantitySold,
				Available: avail,
			})
		}
		return page.Pagination, nil
	})
	return out, err
}

func (e *eventbrite) WebhookEventType(raw []byte) (string, error) {
	var w ebWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", eris.Wrap(err, "eventbrite: decode webhook")
	}
	return strings.TrimSpace(w.Config.Action), nil
}

// ParseWebhook follows api_url: deliveries only reference the changed
// order or event.
func (e *eventbrite) ParseWebhook(ctx context.Context, raw []byte) (*WebhookEnvelope, error) {
	if !e.caps.Webhooks {
		return nil, ErrUnsupported
	}
	var w ebWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, eris.Wrap(err, "eventbrite: decode webhook")
	}
	if w.APIURL == "" {
		return nil, eris.New("eventbrite: webhook has no api_url")
	}
	env := &WebhookEnvelope{EventType: strings.TrimSpace(w.Config.Action)}

	if strings.HasPrefix(env.EventType, "event.") {
		var ev ebEvent
		if err := e.api.getJSON(ctx, w.APIURL, nil, &ev); err != nil {
			return nil, err
		}
		if ev.IsSeriesParent {
			env.EventID = ev.ID
			return env, nil
		}
		env.EventID, env.OccurrenceID = e.seriesOf(&ev), ev.ID
		return env, nil
	}

	var o ebOrder
	if err := e.api.getJSON(ctx, w.APIURL, url.Values{"expand": {"attendees"}}, &o); err != nil {
		return nil, err
	}
	occurrenceID := o.EventID
	ev, _, err := e.getEvent(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	env.EventID = e.seriesOf(ev)
	env.OccurrenceID = occurrenceID
	env.OrderID = o.ID
	env.Sales = eventbriteSaleRows(&o, env.EventID)
	return env, nil
}

// seriesOf returns the production-level id of an event.
func (e *eventbrite) seriesOf(ev *ebEvent) string {
	if ev.SeriesID != "" {
		return ev.SeriesID
	}
	return ev.ID
}
