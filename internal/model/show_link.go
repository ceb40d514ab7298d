package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShowLink sync states.
const (
	ShowSyncPending = "pending"
	ShowSyncSynced  = "synced"
	ShowSyncError   = "error"
)

// ShowLink match methods.
const (
	MatchAuto   = "auto"
	MatchManual = "manual"
)

// TicketTypeBreakdown is one row of the per-ticket-type sales breakdown
// stored on a ShowLink.  Currency fields are in major units.
type TicketTypeBreakdown struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	FeePerTicket decimal.Decimal `json:"fee_per_ticket"`
	Fees         decimal.Decimal `json:"fees"`
}

// SalesSnapshot is the set of derived sales metrics written onto a
// ShowLink by the importer.  Capacity and TicketsAvailable are nil when the
// provider offers no inventory lookup.
type SalesSnapshot struct {
	TicketsSold      int
	TicketsAvailable *int
	Capacity         *int
	GrossRevenue     decimal.Decimal
	NetRevenue       decimal.Decimal
	Breakdown        []TicketTypeBreakdown
}

// ShowLink associates one internal show with one external occurrence
// inside a ProductionLink.  Both (production_link_id, show_id) and
// (production_link_id, external_occurrence_id) are unique.
type ShowLink struct {
	ID                   uint64                // show_links.id
	ProductionLinkID     uint64                // show_links.production_link_id
	ShowID               uint64                // show_links.show_id
	ExternalOccurrenceID string                // show_links.external_occurrence_id
	MatchConfidence      float64               // show_links.match_confidence
	MatchMethod          string                // show_links.match_method
	SyncStatus           string                // show_links.sync_status
	SyncError            *string               // show_links.sync_error
	TicketsSold          int                   // show_links.tickets_sold
	TicketsAvailable     *int                  // show_links.tickets_available
	Capacity             *int                  // show_links.capacity
	GrossRevenue         decimal.Decimal       // show_links.gross_revenue
	NetRevenue           decimal.Decimal       // show_links.net_revenue
	Breakdown            []TicketTypeBreakdown // show_links.ticket_breakdown (JSON)
	LastSyncedAt         *time.Time            // show_links.last_synced_at
	CreatedAt            time.Time             // show_links.created_at
	UpdatedAt            time.Time             // show_links.updated_at
}

// ShowLinkTarget is a ShowLink joined with the start time of its show, as
// returned to the sales importer.
type ShowLinkTarget struct {
	ShowLink
	ShowStartsAt time.Time
}

// SnapshotFromSales aggregates confirmed ledger rows into per-offer
// breakdown rows and totals.  Rows keep the order in which offers first
// appear; net revenue is gross minus fees.
func SnapshotFromSales(sales []TicketSale) SalesSnapshot {
	var snap SalesSnapshot
	idx := map[string]int{}
	fees := decimal.Zero
	for _, s := range sales {
		if s.Status != SaleConfirmed {
			continue
		}
		i, ok := idx[s.OfferID]
		if !ok {
			i = len(snap.Breakdown)
			idx[s.OfferID] = i
			snap.Breakdown = append(snap.Breakdown, TicketTypeBreakdown{
				ID:           s.OfferID,
				Name:         s.OfferName,
				Price:        s.Price,
				FeePerTicket: s.FeePerTicket,
			})
		}
		b := &snap.Breakdown[i]
		b.Quantity += s.Quantity
		b.Subtotal = b.Subtotal.Add(s.Subtotal)
		b.Fees = b.Fees.Add(s.Fees)

		snap.TicketsSold += s.Quantity
		snap.GrossRevenue = snap.GrossRevenue.Add(s.Subtotal)
		fees = fees.Add(s.Fees)
	}
	snap.NetRevenue = snap.GrossRevenue.Sub(fees)
	return snap
}
