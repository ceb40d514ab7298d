package model

import "time"

// Sync run kinds.
const (
	SyncKindAutoLink    = "auto_link"
	SyncKindShowMatch   = "show_match"
	SyncKindSalesImport = "sales_import"
)

// Sync triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// SyncLog states.
const (
	SyncLogRunning = "running"
	SyncLogSuccess = "success"
	SyncLogFailed  = "failed"
)

// SyncLog is the audit record of one sync attempt.
type SyncLog struct {
	ID               uint64     // sync_logs.id
	ProviderID       uint64     // sync_logs.provider_id
	ProductionLinkID *uint64    // sync_logs.production_link_id
	Kind             string     // sync_logs.kind
	Trigger          string     // sync_logs.trigger
	Status           string     // sync_logs.status
	RecordsUpdated   int        // sync_logs.records_updated
	RecordsFailed    int        // sync_logs.records_failed
	Error            *string    // sync_logs.error
	StartedAt        time.Time  // sync_logs.started_at
	CompletedAt      *time.Time // sync_logs.completed_at
}
