// Package queue defines message payloads exchanged over the message broker.
package queue

import "github.com/shopspring/decimal"

// Queue names.
const (
    SyncRequestedQueue = "ticketsync.sync.requested"
    SaleRecordedQueue  = "ticketsync.sale.recorded"
)

// Sync request kinds.
const (
    KindAutoLink    = "auto_link"
    KindShowMatch   = "show_match"
    KindSalesImport = "sales_import"
    KindFull        = "full"
)

// SyncRequest is published by the external scheduler to ask the worker
// for a sync run.  ProductionLinkID is required for show_match and
// sales_import; ProviderID for auto_link and full.
type SyncRequest struct {
    Kind             string `json:"kind"`
    ProviderID       uint64 `json:"provider_id,omitempty"`
    ProductionLinkID uint64 `json:"production_link_id,omitempty"`
    Trigger          string `json:"trigger,omitempty"`
}

// SaleRecordedEvent is published whenever a webhook creates a new ticket
// sale.  It carries enough for downstream consumers to notify or update
// analytics without querying the primary database.
type SaleRecordedEvent struct {
    SaleID               uint64          `json:"sale_id"`
    ProviderID           uint64          `json:"provider_id"`
    ExternalSaleID       string          `json:"external_sale_id"`
    ExternalOrderID      string          `json:"external_order_id"`
    ExternalEventID      string          `json:"external_event_id"`
    ExternalOccurrenceID string          `json:"external_occurrence_id,omitempty"`
    ListingID            *uint64         `json:"listing_id,omitempty"`
    TierID               *uint64         `json:"tier_id,omitempty"`
    ShowLinkID           *uint64         `json:"show_link_id,omitempty"`
    OfferName            string          `json:"offer_name,omitempty"`
    Quantity             int             `json:"quantity"`
    Subtotal             decimal.Decimal `json:"subtotal"`
    SeatsDeducted        int             `json:"seats_deducted"`
    RecordedAt           string          `json:"recorded_at"`
}
