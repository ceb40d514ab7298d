package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing states.
const (
	ListingPendingApproval = "pending_approval"
	ListingApproved        = "approved"
	ListingEnded           = "ended"
)

// Listing is the internal ticket listing of a production on a provider.
// Webhooks resolve it by (provider_id, external_event_id).  Its lifecycle
// is owned by the catalog; the engine only flips the narrow fields below.
type Listing struct {
	ID              uint64     // listings.id
	ProviderID      uint64     // listings.provider_id
	ProductionID    uint64     // listings.production_id
	ExternalEventID string     // listings.external_event_id
	Status          string     // listings.status
	NeedsReview     bool       // listings.needs_review
	EndedAt         *time.Time // listings.ended_at
	UpdatedAt       time.Time  // listings.updated_at
}

// TicketTier is an offer within a listing with a finite seat inventory.
// SeatsAvailable is decremented by confirmed sales and incremented by
// refunds, always through conditional updates.
type TicketTier struct {
	ID                   uint64          // ticket_tiers.id
	ListingID            uint64          // ticket_tiers.listing_id
	ExternalTicketTypeID string          // ticket_tiers.external_ticket_type_id
	Name                 string          // ticket_tiers.name
	Price                decimal.Decimal // ticket_tiers.price
	SeatsTotal           int             // ticket_tiers.seats_total
	SeatsAvailable       int             // ticket_tiers.seats_available
}
