package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// The interfaces below are the storage contracts consumed by the sync
// components.  The MySQL repositories in this package satisfy them, and so
// does repository/memory.

// ProviderStore reads provider configuration and records sync outcomes.
type ProviderStore interface {
	GetProvider(ctx context.Context, id uint64) (*model.Provider, error)
	ListActiveProviders(ctx context.Context) ([]model.Provider, error)
	RecordProviderSync(ctx context.Context, id uint64, status string, errMsg *string, at time.Time) error
	UpdateProviderTokens(ctx context.Context, id uint64, access, refresh string, expiresAt *time.Time) error
}

// CatalogStore is read access to productions and shows.
type CatalogStore interface {
	// ListCandidateProductions returns productions created at or after
	// createdSince together with the date range of their shows starting at
	// or after showsSince.
	ListCandidateProductions(ctx context.Context, createdSince, showsSince time.Time) ([]model.ProductionCandidate, error)
	// ListShowsForProduction returns shows starting at or after since,
	// ordered by start time.
	ListShowsForProduction(ctx context.Context, productionID uint64, since time.Time) ([]model.Show, error)
}

// ProductionLinkStore persists confirmed event links.
type ProductionLinkStore interface {
	GetProductionLink(ctx context.Context, id uint64) (*model.ProductionLink, error)
	FindProductionLinkByExternalID(ctx context.Context, providerID uint64, externalEventID string) (*model.ProductionLink, error)
	CreateProductionLink(ctx context.Context, l *model.ProductionLink) error
	UpdateProductionLinkName(ctx context.Context, id uint64, name, url string) error
	TouchProductionLinkSynced(ctx context.Context, id uint64, at time.Time) error
	ListProductionLinks(ctx context.Context, providerID uint64) ([]model.ProductionLink, error)
}

// PendingEventStore persists unlinked external events.
type PendingEventStore interface {
	GetPendingEvent(ctx context.Context, id uint64) (*model.PendingEvent, error)
	FindPendingEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.PendingEvent, error)
	CreatePendingEvent(ctx context.Context, p *model.PendingEvent) error
	UpdatePendingEvent(ctx context.Context, p *model.PendingEvent) error
	// ListPendingEvents filters by provider (0 = all) and status ("" = all).
	ListPendingEvents(ctx context.Context, providerID uint64, status string) ([]model.PendingEvent, error)
}

// ShowLinkStore persists show-to-occurrence links and their sales metrics.
type ShowLinkStore interface {
	ListShowLinks(ctx context.Context, productionLinkID uint64) ([]model.ShowLink, error)
	CreateShowLink(ctx context.Context, l *model.ShowLink) error
	FindShowLinkByOccurrence(ctx context.Context, productionLinkID uint64, occurrenceID string) (*model.ShowLink, error)
	// ListSyncableShowLinks returns links with a non-blank occurrence id
	// whose show starts at or after showsSince, in show order.
	ListSyncableShowLinks(ctx context.Context, productionLinkID uint64, showsSince time.Time) ([]model.ShowLinkTarget, error)
	SaveShowLinkSales(ctx context.Context, id uint64, snap model.SalesSnapshot, at time.Time) error
	MarkShowLinkError(ctx context.Context, id uint64, msg string) error
}

// ListingStore exposes the narrow listing lifecycle and tier lookups.
type ListingStore interface {
	FindListingByExternalEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.Listing, error)
	// FindTier resolves the tier of a listing for an external ticket type.
	// A listing with a single tier resolves to it regardless of the id.
	FindTier(ctx context.Context, listingID uint64, externalTicketTypeID string) (*model.TicketTier, error)
	// MarkListingApproved moves a pending_approval listing to approved and
	// reports whether anything changed.
	MarkListingApproved(ctx context.Context, id uint64) (bool, error)
	EndListing(ctx context.Context, id uint64, at time.Time) error
	FlagListingForReview(ctx context.Context, id uint64) error
}

// TicketSaleStore is the sale ledger.  It owns tier inventory mutation so
// that a sale and its seat deduction are applied atomically.
type TicketSaleStore interface {
	FindSale(ctx context.Context, providerID uint64, externalSaleID string) (*model.TicketSale, error)
	// RecordSale inserts a confirmed sale and deducts its seats from the
	// tier.  created is false when the external sale id already exists, in
	// which case nothing else is changed except attaching a missing show
	// link.
	RecordSale(ctx context.Context, s *model.TicketSale) (created bool, err error)
	// RefundSale marks a confirmed sale refunded and restores exactly the
	// seats it deducted.  refunded is false if it was already refunded.
	RefundSale(ctx context.Context, providerID uint64, externalSaleID string, at time.Time) (refunded bool, err error)
	ListSalesByOrder(ctx context.Context, providerID uint64, externalOrderID string) ([]model.TicketSale, error)
	// ListConfirmedSalesForShowLink returns the confirmed ledger rows that
	// make up a show link's totals.
	ListConfirmedSalesForShowLink(ctx context.Context, showLinkID uint64) ([]model.TicketSale, error)
}

// SyncLogStore writes the audit trail of sync runs.
type SyncLogStore interface {
	StartSyncLog(ctx context.Context, l *model.SyncLog) error
	CompleteSyncLog(ctx context.Context, id uint64, updated, failed int, at time.Time) error
	FailSyncLog(ctx context.Context, id uint64, updated, failed int, errMsg string, at time.Time) error
	ListSyncLogs(ctx context.Context, providerID uint64, limit int) ([]model.SyncLog, error)
}

// WebhookLogStore writes the audit trail of webhook deliveries.
type WebhookLogStore interface {
	CreateWebhookLog(ctx context.Context, l *model.WebhookLog) error
	FinishWebhookLog(ctx context.Context, l *model.WebhookLog) error
}

// Store is the full persistence surface used by the sync runner, the
// webhook processor and the operator API.
type Store interface {
	ProviderStore
	CatalogStore
	ProductionLinkStore
	PendingEventStore
	ShowLinkStore
	ListingStore
	TicketSaleStore
	SyncLogStore
	WebhookLogStore
}

// SQLStore bundles the MySQL repositories into a Store.
type SQLStore struct {
	*ProviderRepo
	*CatalogRepo
	*ProductionLinkRepo
	*PendingEventRepo
	*ShowLinkRepo
	*ListingRepo
	*TicketSaleRepo
	*SyncLogRepo
	*WebhookLogRepo
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wires every repository to db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		ProviderRepo:       NewProviderRepo(db),
		CatalogRepo:        NewCatalogRepo(db),
		ProductionLinkRepo: NewProductionLinkRepo(db),
		PendingEventRepo:   NewPendingEventRepo(db),
		ShowLinkRepo:       NewShowLinkRepo(db),
		ListingRepo:        NewListingRepo(db),
		TicketSaleRepo:     NewTicketSaleRepo(db),
		SyncLogRepo:        NewSyncLogRepo(db),
		WebhookLogRepo:     NewWebhookLogRepo(db),
	}
}
