// Package provider defines the uniform contract every box-office
// integration implements and the adapters for the supported platforms.
// Adapters only talk HTTP and normalise payloads; they never touch
// storage, and their failures always surface as one of the error types in
// errors.go.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// Capability names, as used in the providers.capabilities column.
const (
	CapFetchEvents      = "fetch_events"
	CapFetchOccurrences = "fetch_occurrences"
	CapFetchSales       = "fetch_sales"
	CapFetchTicketTypes = "fetch_ticket_types"
	CapWebhooks         = "webhooks"
)

// Capabilities describes which operations an adapter supports.
type Capabilities struct {
	FetchEvents      bool `json:"fetch_events"`
	FetchOccurrences bool `json:"fetch_occurrences"`
	FetchSales       bool `json:"fetch_sales"`
	FetchTicketTypes bool `json:"fetch_ticket_types"`
	Webhooks         bool `json:"webhooks"`
}

// Restrict turns off every capability explicitly disabled in flags.
// Missing keys leave the adapter default untouched.
func (c Capabilities) Restrict(flags map[string]bool) Capabilities {
	off := func(name string, v bool) bool {
		if enabled, ok := flags[name]; ok && !enabled {
			return false
		}
		return v
	}
	return Capabilities{
		FetchEvents:      off(CapFetchEvents, c.FetchEvents),
		FetchOccurrences: off(CapFetchOccurrences, c.FetchOccurrences),
		FetchSales:       off(CapFetchSales, c.FetchSales),
		FetchTicketTypes: off(CapFetchTicketTypes, c.FetchTicketTypes),
		Webhooks:         off(CapWebhooks, c.Webhooks),
	}
}

// Event is an external event normalised to the provider-agnostic shape.
type Event struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Status          string          `json:"status"`
	URL             string          `json:"url"`
	OccurrenceCount int             `json:"occurrence_count"`
	FirstDate       *time.Time      `json:"first_date"`
	LastDate        *time.Time      `json:"last_date"`
	Raw             json.RawMessage `json:"raw"`
}

// Occurrence is one dated instance of an external event.
type Occurrence struct {
	ID       string     `json:"id"`
	EventID  string     `json:"event_id"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Status   string     `json:"status"`
}

// SaleRow is the canonical sale row.  ID is the deterministic external
// sale id; pricing is in major currency units.
type SaleRow struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	EventID      string          `json:"event_id"`
	OccurrenceID string          `json:"occurrence_id"`
	OfferID      string          `json:"offer_id"`
	OfferName    string          `json:"offer_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	FeePerTicket decimal.Decimal `json:"fee_per_ticket"`
	Fees         decimal.Decimal `json:"fees"`
	Refunded     bool            `json:"refunded"`
	PurchasedAt  *time.Time      `json:"purchased_at,omitempty"`
}

// TicketType is an offer on an external occurrence with its inventory.
type TicketType struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Capacity  int             `json:"capacity"`
	Sold      int             `json:"sold"`
	Available int             `json:"available"`
}

// WebhookEnvelope is a webhook delivery resolved into the references the
// processor needs.  EventID is the external event (the production-level
// id); OccurrenceID is set when the delivery concerns one occurrence.
type WebhookEnvelope struct {
	EventType    string
	EventID      string
	OccurrenceID string
	OrderID      string
	Sales        []SaleRow
}

// Adapter is implemented once per provider type.
type Adapter interface {
	Type() model.ProviderType
	Capabilities() Capabilities
	// Authenticate verifies the credentials with a cheap API call.
	Authenticate(ctx context.Context) error
	FetchEvents(ctx context.Context) ([]Event, error)
	FetchEvent(ctx context.Context, id string) (*Event, error)
	FetchOccurrences(ctx context.Context, eventID string) ([]Occurrence, error)
	// FetchSales returns sale rows for an event, narrowed to one
	// occurrence when occurrenceID is set and to changes after since when
	// since is non-nil.
	FetchSales(ctx context.Context, eventID, occurrenceID string, since *time.Time) ([]SaleRow, error)
	// FetchTicketTypes returns the offers and inventory of an event or
	// occurrence id.
	FetchTicketTypes(ctx context.Context, eventOrOccurrenceID string) ([]TicketType, error)
	// WebhookEventType extracts the event type string of a delivery
	// without any network access.
	WebhookEventType(raw []byte) (string, error)
	// ParseWebhook resolves a delivery, following up with API calls when
	// the provider only sends references.
	ParseWebhook(ctx context.Context, raw []byte) (*WebhookEnvelope, error)
}

// TicketSale converts the row into a ledger entry for providerID.  Listing,
// tier and show link are left for the caller to resolve.
func (r SaleRow) TicketSale(providerID uint64, source string) *model.TicketSale {
	qty := r.Quantity
	if qty <= 0 {
		qty = 1
	}
	return &model.TicketSale{
		ProviderID:           providerID,
		ExternalSaleID:       r.ID,
		ExternalOrderID:      r.OrderID,
		ExternalEventID:      r.EventID,
		ExternalOccurrenceID: r.OccurrenceID,
		OfferID:              r.OfferID,
		OfferName:            r.OfferName,
		Quantity:             qty,
		Price:                r.Price,
		Subtotal:             r.Subtotal,
		FeePerTicket:         r.FeePerTicket,
		Fees:                 r.Fees,
		Status:               model.SaleConfirmed,
		Source:               source,
		PurchasedAt:          r.PurchasedAt,
	}
}
