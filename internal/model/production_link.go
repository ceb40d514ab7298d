package model

import (
	"encoding/json"
	"time"
)

// ProductionLink is the confirmed association between one external
// provider event and one internal production.  (provider_id,
// external_event_id) is unique.
type ProductionLink struct {
	ID                uint64          // production_links.id
	ProviderID        uint64          // production_links.provider_id
	ProductionID      uint64          // production_links.production_id
	ExternalEventID   string          // production_links.external_event_id
	ExternalEventName string          // production_links.external_event_name
	ExternalEventURL  string          // production_links.external_event_url
	RawPayload        json.RawMessage // production_links.raw_payload
	SyncEnabled       bool            // production_links.sync_enabled
	SyncTicketSales   bool            // production_links.sync_ticket_sales
	LastSyncedAt      *time.Time      // production_links.last_synced_at
	CreatedAt         time.Time       // production_links.created_at
	UpdatedAt         time.Time       // production_links.updated_at
}
