package model

import (
	"encoding/json"
	"time"
)

// WebhookLog outcomes.
const (
	WebhookReceived  = "received"
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
	WebhookFailed    = "failed"
)

// WebhookLog stores a raw inbound delivery, how it was classified and what
// came of it.
type WebhookLog struct {
	ID               uint64          // webhook_logs.id
	DeliveryID       string          // webhook_logs.delivery_id (uuid)
	ProviderID       uint64          // webhook_logs.provider_id
	EventType        string          // webhook_logs.event_type (as sent)
	Category         string          // webhook_logs.category (classified)
	Payload          json.RawMessage // webhook_logs.payload
	Status           string          // webhook_logs.status
	Error            *string         // webhook_logs.error
	ListingID        *uint64         // webhook_logs.listing_id
	ShowLinkID       *uint64         // webhook_logs.show_link_id
	ProductionLinkID *uint64         // webhook_logs.production_link_id
	CreatedAt        time.Time       // webhook_logs.created_at
	ProcessedAt      *time.Time      // webhook_logs.processed_at
}
