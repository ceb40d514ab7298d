package model

import (
	"encoding/json"
	"time"
)

// PendingEvent statuses.
const (
	PendingStatusPending = "pending"
	PendingStatusMatched = "matched"
	PendingStatusIgnored = "ignored"
)

// PendingEvent is an external event that has not been linked yet.  It
// carries the best production suggestion (if any cleared the suggestion
// threshold) for operator review.  Exactly one row exists per
// (provider_id, external_event_id); rows are never deleted by the engine.
type PendingEvent struct {
	ID                    uint64          // pending_events.id
	ProviderID            uint64          // pending_events.provider_id
	ExternalEventID       string          // pending_events.external_event_id
	Name                  string          // pending_events.name
	URL                   string          // pending_events.url
	Status                string          // pending_events.status
	SuggestedProductionID *uint64         // pending_events.suggested_production_id (nullable)
	Confidence            float64         // pending_events.confidence, 0 when no suggestion
	OccurrenceCount       int             // pending_events.occurrence_count
	FirstDate             *time.Time      // pending_events.first_date
	LastDate              *time.Time      // pending_events.last_date
	RawPayload            json.RawMessage // pending_events.raw_payload
	ProductionLinkID      *uint64         // pending_events.production_link_id once matched
	CreatedAt             time.Time       // pending_events.created_at
	UpdatedAt             time.Time       // pending_events.updated_at
}
