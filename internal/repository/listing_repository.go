package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// ListingRepo exposes the listing lifecycle fields the webhook processor
// may change and the tier lookups used to attribute sales.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo constructs a ListingRepo with the given DB handle.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// FindListingByExternalEvent returns the listing for an external event or ErrNotFound.
func (r *ListingRepo) FindListingByExternalEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.Listing, error) {
	const q = `SELECT id, provider_id, production_id, external_event_id, status, needs_review, ended_at, updated_at
               FROM listings WHERE provider_id = ? AND external_event_id = ?`
	var (
		l     model.Listing
		ended sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, providerID, externalEventID).Scan(
		&l.ID, &l.ProviderID, &l.ProductionID, &l.ExternalEventID, &l.Status, &l.NeedsReview, &ended, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.EndedAt = timePtr(ended)
	return &l, nil
}

// FindTier resolves the tier selling an external ticket type.  When no
// tier carries that id and the listing has exactly one tier, that tier is
// returned.
func (r *ListingRepo) FindTier(ctx context.Context, listingID uint64, externalTicketTypeID string) (*model.TicketTier, error) {
	const q = `SELECT id, listing_id, external_ticket_type_id, name, price, seats_total, seats_available
               FROM ticket_tiers WHERE listing_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []model.TicketTier
	for rows.Next() {
		var t model.TicketTier
		if err := rows.Scan(&t.ID, &t.ListingID, &t.ExternalTicketTypeID, &t.Name, &t.Price, &t.SeatsTotal, &t.SeatsAvailable); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tiers {
		if externalTicketTypeID != "" && tiers[i].ExternalTicketTypeID == externalTicketTypeID {
			return &tiers[i], nil
		}
	}
	if len(tiers) == 1 {
		return &tiers[0], nil
	}
	return nil, ErrNotFound
}

// MarkListingApproved approves a listing that is pending approval.
func (r *ListingRepo) MarkListingApproved(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE listings SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.ListingApproved, id, model.ListingPendingApproval)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// EndListing ends a listing.  Ending an ended listing keeps its first end time.
func (r *ListingRepo) EndListing(ctx context.Context, id uint64, at time.Time) error {
	const q = `UPDATE listings SET status = ?, ended_at = COALESCE(ended_at, ?) WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, model.ListingEnded, at, id)
	return err
}

// FlagListingForReview marks a listing as changed upstream.
func (r *ListingRepo) FlagListingForReview(ctx context.Context, id uint64) error {
	const q = `UPDATE listings SET needs_review = 1 WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// deductSeatsTx takes qty seats from a tier only if that many are
// available.  It reports whether the seats were taken.
func deductSeatsTx(ctx context.Context, tx *sql.Tx, tierID uint64, qty int) (bool, error) {
	const q = `UPDATE ticket_tiers SET seats_available = seats_available - ? WHERE id = ? AND seats_available >= ?`
	res, err := tx.ExecContext(ctx, q, qty, tierID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// restoreSeatsTx gives qty seats back to a tier, never above its total.
func restoreSeatsTx(ctx context.Context, tx *sql.Tx, tierID uint64, qty int) error {
	const q = `UPDATE ticket_tiers SET seats_available = LEAST(seats_total, seats_available + ?) WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, qty, tierID)
	return err
}
