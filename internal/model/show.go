package model

import "time"

// Production is the narrow, read-only view of an internal production that
// the sync engine needs.  Productions are owned by the catalog service.
type Production struct {
	ID        uint64    // productions.id
	Name      string    // productions.name
	CreatedAt time.Time // productions.created_at
}

// ProductionCandidate is a production together with the date range of its
// recent shows.  FirstShowAt and LastShowAt are nil when the production has
// no shows inside the lookback window.
type ProductionCandidate struct {
	Production
	FirstShowAt *time.Time
	LastShowAt  *time.Time
}

// Show represents one scheduled occurrence of a production.
//
// Fields:
//  ID           – primary key identifier.
//  ProductionID – owning production.
//  StartsAt     – when the show begins (UTC).
//  Status       – catalog status (SCHEDULED, CANCELLED, FINISHED).
type Show struct {
	ID           uint64    // shows.id
	ProductionID uint64    // shows.production_id
	StartsAt     time.Time // shows.starts_at
	Status       string    // shows.status
}
