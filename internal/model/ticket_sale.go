package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketSale statuses.  A sale only ever moves confirmed -> refunded.
const (
	SaleConfirmed = "confirmed"
	SaleRefunded  = "refunded"
)

// TicketSale sources.
const (
	SaleSourceWebhook = "webhook"
	SaleSourceImport  = "import"
)

// TicketSale is one normalized purchase unit.  ExternalSaleID is unique per
// provider and is the idempotency key shared by webhook delivery and the
// sales importer.  SeatsDeducted records exactly what was taken from the
// tier so that a refund can give back the same amount.
type TicketSale struct {
	ID                   uint64          // ticket_sales.id
	ProviderID           uint64          // ticket_sales.provider_id
	ExternalSaleID       string          // ticket_sales.external_sale_id
	ExternalOrderID      string          // ticket_sales.external_order_id
	ExternalEventID      string          // ticket_sales.external_event_id
	ExternalOccurrenceID string          // ticket_sales.external_occurrence_id
	OfferID              string          // ticket_sales.offer_id (external ticket type)
	OfferName            string          // ticket_sales.offer_name
	ListingID            *uint64         // ticket_sales.listing_id
	TierID               *uint64         // ticket_sales.tier_id
	ShowLinkID           *uint64         // ticket_sales.show_link_id
	Quantity             int             // ticket_sales.quantity
	Price                decimal.Decimal // ticket_sales.price
	Subtotal             decimal.Decimal // ticket_sales.subtotal
	FeePerTicket         decimal.Decimal // ticket_sales.fee_per_ticket
	Fees                 decimal.Decimal // ticket_sales.fees
	SeatsDeducted        int             // ticket_sales.seats_deducted
	Status               string          // ticket_sales.status
	Source               string          // ticket_sales.source
	PurchasedAt          *time.Time      // ticket_sales.purchased_at
	RefundedAt           *time.Time      // ticket_sales.refunded_at
	CreatedAt            time.Time       // ticket_sales.created_at
}
