// Package salesimport pulls ticket sales for the linked occurrences of a
// production link, records them in the sale ledger and refreshes the
// sales metrics on each show link.
package salesimport

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
)

// Store is the storage the importer needs.
type Store interface {
	RecordProviderSync(ctx context.Context, id uint64, status string, errMsg *string, at time.Time) error
	TouchProductionLinkSynced(ctx context.Context, id uint64, at time.Time) error

	ListSyncableShowLinks(ctx context.Context, productionLinkID uint64, showsSince time.Time) ([]model.ShowLinkTarget, error)
	SaveShowLinkSales(ctx context.Context, id uint64, snap model.SalesSnapshot, at time.Time) error
	MarkShowLinkError(ctx context.Context, id uint64, msg string) error

	FindListingByExternalEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.Listing, error)
	FindTier(ctx context.Context, listingID uint64, externalTicketTypeID string) (*model.TicketTier, error)

	RecordSale(ctx context.Context, s *model.TicketSale) (bool, error)
	RefundSale(ctx context.Context, providerID uint64, externalSaleID string, at time.Time) (bool, error)
	ListConfirmedSalesForShowLink(ctx context.Context, showLinkID uint64) ([]model.TicketSale, error)

	StartSyncLog(ctx context.Context, l *model.SyncLog) error
	CompleteSyncLog(ctx context.Context, id uint64, updated, failed int, at time.Time) error
	FailSyncLog(ctx context.Context, id uint64, updated, failed int, errMsg string, at time.Time) error
}

// Config controls which shows are imported.
type Config struct {
	// Window skips shows that started longer ago than this.
	Window time.Duration
}

// ShowOutcome is the per-show result of a run.
type ShowOutcome struct {
	ShowLinkID   uint64 `json:"show_link_id"`
	ShowID       uint64 `json:"show_id"`
	OccurrenceID string `json:"occurrence_id"`
	Success      bool   `json:"success"`
	NewSales     int    `json:"new_sales"`
	Refunds      int    `json:"refunds"`
	TicketsSold  int    `json:"tickets_sold"`
	Error        string `json:"error,omitempty"`
}

// Result summarises a run.
type Result struct {
	Success bool `json:"success"`
	// Skipped is set when the link has sync disabled; nothing was written.
	Skipped        bool          `json:"skipped,omitempty"`
	SyncLogID      uint64        `json:"sync_log_id,omitempty"`
	RecordsUpdated int           `json:"records_updated"`
	RecordsFailed  int           `json:"records_failed"`
	Shows          []ShowOutcome `json:"shows"`
	Error          string        `json:"error,omitempty"`
}

// Importer runs sales imports.
type Importer struct {
	store Store
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// New constructs an Importer.
func New(store Store, cfg Config, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, cfg: cfg, log: log.Named("salesimport"), now: time.Now}
}

// Run imports sales for every syncable show link of link.  A failure on
// one show is recorded on that show link and the run continues.
// Authentication and rate-limit errors abort the run, fail the sync log
// and the provider's sync status, and are returned together with a
// Result whose Success is false.
func (im *Importer) Run(ctx context.Context, adapter provider.Adapter, link *model.ProductionLink, trigger string) (*Result, error) {
	if !link.SyncEnabled || !link.SyncTicketSales {
		return &Result{Success: true, Skipped: true, Shows: []ShowOutcome{}}, nil
	}

	started := im.now()
	sl := &model.SyncLog{
		ProviderID:       link.ProviderID,
		ProductionLinkID: &link.ID,
		Kind:             model.SyncKindSalesImport,
		Trigger:          trigger,
		StartedAt:        started,
	}
	if err := im.store.StartSyncLog(ctx, sl); err != nil {
		return nil, eris.Wrap(err, "salesimport: start sync log")
	}
	res := &Result{SyncLogID: sl.ID, Shows: []ShowOutcome{}}
	log := im.log.With(zap.Uint64("production_link_id", link.ID), zap.Uint64("sync_log_id", sl.ID))

	if !adapter.Capabilities().FetchSales {
		return im.abort(ctx, link, sl, res, eris.Wrap(provider.ErrUnsupported, "salesimport: provider cannot fetch sales"))
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return im.abort(ctx, link, sl, res, eris.Wrap(err, "salesimport: authenticate"))
	}
	targets, err := im.store.ListSyncableShowLinks(ctx, link.ID, started.Add(-im.cfg.Window))
	if err != nil {
		return im.abort(ctx, link, sl, res, eris.Wrap(err, "salesimport: list show links"))
	}
	listing, err := im.store.FindListingByExternalEvent(ctx, link.ProviderID, link.ExternalEventID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return im.abort(ctx, link, sl, res, eris.Wrap(err, "salesimport: find listing"))
	}

	for _, t := range targets {
		out, err := im.importShow(ctx, adapter, link, listing, t)
		if err != nil {
			if provider.IsTopLevel(err) {
				res.Shows = append(res.Shows, out)
				return im.abort(ctx, link, sl, res, err)
			}
			log.Warn("show import failed",
				zap.Uint64("show_link_id", t.ID),
				zap.String("occurrence_id", t.ExternalOccurrenceID),
				zap.Error(err))
			if merr := im.store.MarkShowLinkError(ctx, t.ID, err.Error()); merr != nil {
				log.Error("mark show link error", zap.Uint64("show_link_id", t.ID), zap.Error(merr))
			}
			out.Error = err.Error()
			res.RecordsFailed++
		} else {
			res.RecordsUpdated++
		}
		res.Shows = append(res.Shows, out)
	}

	finished := im.now()
	if err := im.store.CompleteSyncLog(ctx, sl.ID, res.RecordsUpdated, res.RecordsFailed, finished); err != nil {
		log.Error("complete sync log", zap.Error(err))
	}
	if err := im.store.RecordProviderSync(ctx, link.ProviderID, model.SyncStatusSuccess, nil, finished); err != nil {
		log.Error("record provider sync", zap.Error(err))
	}
	if err := im.store.TouchProductionLinkSynced(ctx, link.ID, finished); err != nil {
		log.Error("touch production link", zap.Error(err))
	}
	res.Success = true
	log.Info("sales import finished",
		zap.Int("records_updated", res.RecordsUpdated),
		zap.Int("records_failed", res.RecordsFailed),
		zap.Duration("took", finished.Sub(started)))
	return res, nil
}

// abort fails the sync log and the provider status.  It never retries.
func (im *Importer) abort(ctx context.Context, link *model.ProductionLink, sl *model.SyncLog, res *Result, cause error) (*Result, error) {
	at := im.now()
	msg := cause.Error()
	im.log.Error("sales import aborted",
		zap.Uint64("production_link_id", link.ID),
		zap.Bool("authentication", provider.IsAuthentication(cause)),
		zap.Bool("rate_limited", provider.IsRateLimit(cause)),
		zap.Error(cause))
	if err := im.store.FailSyncLog(ctx, sl.ID, res.RecordsUpdated, res.RecordsFailed, msg, at); err != nil {
		im.log.Error("fail sync log", zap.Error(err))
	}
	if err := im.store.RecordProviderSync(ctx, link.ProviderID, model.SyncStatusFailed, &msg, at); err != nil {
		im.log.Error("record provider sync", zap.Error(err))
	}
	res.Success = false
	res.Error = msg
	return res, cause
}

// importShow fetches the occurrence's sales, folds them into the ledger and
// rewrites the show link totals from the ledger.  Sales are fetched since
// the show link last synced successfully, so a show that failed last time
// is caught up in full.
func (im *Importer) importShow(ctx context.Context, adapter provider.Adapter, link *model.ProductionLink, listing *model.Listing, t model.ShowLinkTarget) (ShowOutcome, error) {
	out := ShowOutcome{ShowLinkID: t.ID, ShowID: t.ShowID, OccurrenceID: t.ExternalOccurrenceID}

	rows, err := adapter.FetchSales(ctx, link.ExternalEventID, t.ExternalOccurrenceID, t.LastSyncedAt)
	if err != nil {
		return out, eris.Wrapf(err, "salesimport: fetch sales for %s", t.ExternalOccurrenceID)
	}

	for _, row := range rows {
		sale := row.TicketSale(link.ProviderID, model.SaleSourceImport)
		if sale.ExternalEventID == "" {
			sale.ExternalEventID = link.ExternalEventID
		}
		if sale.ExternalOccurrenceID == "" {
			sale.ExternalOccurrenceID = t.ExternalOccurrenceID
		}
		showLinkID := t.ID
		sale.ShowLinkID = &showLinkID
		if listing != nil {
			if err := im.attachTier(ctx, listing, sale); err != nil {
				return out, err
			}
		}

		created, err := im.store.RecordSale(ctx, sale)
		if err != nil {
			return out, eris.Wrapf(err, "salesimport: record sale %s", row.ID)
		}
		if created {
			out.NewSales++
		}
		if row.Refunded {
			refunded, err := im.store.RefundSale(ctx, link.ProviderID, row.ID, im.now())
			if err != nil {
				return out, eris.Wrapf(err, "salesimport: refund sale %s", row.ID)
			}
			if refunded {
				out.Refunds++
			}
		}
	}

	ledger, err := im.store.ListConfirmedSalesForShowLink(ctx, t.ID)
	if err != nil {
		return out, eris.Wrap(err, "salesimport: load ledger")
	}
	snap := model.SnapshotFromSales(ledger)

	if adapter.Capabilities().FetchTicketTypes {
		types, err := adapter.FetchTicketTypes(ctx, t.ExternalOccurrenceID)
		switch {
		case err == nil:
			capacity, available := 0, 0
			for _, tt := range types {
				capacity += tt.Capacity
				available += tt.Available
			}
			snap.Capacity = &capacity
			snap.TicketsAvailable = &available
		case provider.IsTopLevel(err):
			return out, eris.Wrap(err, "salesimport: fetch ticket types")
		default:
			// capacity is optional; keep the sales figures
			im.log.Warn("ticket type lookup failed",
				zap.String("occurrence_id", t.ExternalOccurrenceID), zap.Error(err))
		}
	}

	if err := im.store.SaveShowLinkSales(ctx, t.ID, snap, im.now()); err != nil {
		return out, eris.Wrap(err, "salesimport: save show link sales")
	}
	out.Success = true
	out.TicketsSold = snap.TicketsSold
	return out, nil
}

func (im *Importer) attachTier(ctx context.Context, listing *model.Listing, sale *model.TicketSale) error {
	listingID := listing.ID
	sale.ListingID = &listingID
	tier, err := im.store.FindTier(ctx, listing.ID, sale.OfferID)
	switch {
	case err == nil:
		tierID := tier.ID
		sale.TierID = &tierID
	case errors.Is(err, repository.ErrNotFound):
	default:
		return eris.Wrapf(err, "salesimport: find tier for %s", sale.OfferID)
	}
	return nil
}
