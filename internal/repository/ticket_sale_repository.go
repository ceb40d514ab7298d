package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// TicketSaleRepo is the sale ledger shared by webhook delivery and the
// sales importer.  The unique key on (provider_id, external_sale_id) is
// the idempotency guard; inventory changes happen in the same transaction
// as the ledger write.
type TicketSaleRepo struct {
	db *sql.DB
}

// NewTicketSaleRepo constructs a TicketSaleRepo with the given DB handle.
func NewTicketSaleRepo(db *sql.DB) *TicketSaleRepo { return &TicketSaleRepo{db: db} }

const ticketSaleColumns = `id, provider_id, external_sale_id, external_order_id, external_event_id,
       external_occurrence_id, offer_id, offer_name, listing_id, tier_id, show_link_id, quantity,
       price, subtotal, fee_per_ticket, fees, seats_deducted, status, source, purchased_at,
       refunded_at, created_at`

func scanTicketSale(row rowScanner) (*model.TicketSale, error) {
	var (
		s                             model.TicketSale
		listingID, tierID, showLinkID sql.NullInt64
		purchased, refunded           sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ProviderID, &s.ExternalSaleID, &s.ExternalOrderID, &s.ExternalEventID,
		&s.ExternalOccurrenceID, &s.OfferID, &s.OfferName, &listingID, &tierID, &showLinkID, &s.Quantity,
		&s.Price, &s.Subtotal, &s.FeePerTicket, &s.Fees, &s.SeatsDeducted, &s.Status, &s.Source, &purchased,
		&refunded, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ListingID = uintPtr(listingID)
	s.TierID = uintPtr(tierID)
	s.ShowLinkID = uintPtr(showLinkID)
	s.PurchasedAt = timePtr(purchased)
	s.RefundedAt = timePtr(refunded)
	return &s, nil
}

func (r *TicketSaleRepo) querySales(ctx context.Context, q string, args ...any) ([]model.TicketSale, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TicketSale
	for rows.Next() {
		s, err := scanTicketSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// FindSale returns a sale by its external id or ErrNotFound.
func (r *TicketSaleRepo) FindSale(ctx context.Context, providerID uint64, externalSaleID string) (*model.TicketSale, error) {
	q := `SELECT ` + ticketSaleColumns + ` FROM ticket_sales WHERE provider_id = ? AND external_sale_id = ?`
	s, err := scanTicketSale(r.db.QueryRowContext(ctx, q, providerID, externalSaleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// RecordSale inserts s as a confirmed sale and, when it is attributed to a
// tier, deducts its quantity from the tier in the same transaction.  If the
// tier cannot cover the quantity the sale is still recorded with
// SeatsDeducted = 0.  A duplicate external id returns created=false; the
// existing row only gains a show link if it had none.
func (r *TicketSaleRepo) RecordSale(ctx context.Context, s *model.TicketSale) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	s.Status = model.SaleConfirmed
	s.SeatsDeducted = 0
	const ins = `INSERT INTO ticket_sales
                 (provider_id, external_sale_id, external_order_id, external_event_id, external_occurrence_id,
                  offer_id, offer_name, listing_id, tier_id, show_link_id, quantity, price, subtotal,
                  fee_per_ticket, fees, seats_deducted, status, source, purchased_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, s.ProviderID, s.ExternalSaleID, s.ExternalOrderID, s.ExternalEventID,
		s.ExternalOccurrenceID, s.OfferID, s.OfferName, nullUint(s.ListingID), nullUint(s.TierID),
		nullUint(s.ShowLinkID), s.Quantity, s.Price, s.Subtotal, s.FeePerTicket, s.Fees, 0,
		s.Status, s.Source, nullTime(s.PurchasedAt))
	if err != nil {
		if !isDuplicate(err) {
			return false, err
		}
		_ = tx.Rollback()
		if s.ShowLinkID != nil {
			const attach = `UPDATE ticket_sales SET show_link_id = ?
                            WHERE provider_id = ? AND external_sale_id = ? AND show_link_id IS NULL`
			if _, err := r.db.ExecContext(ctx, attach, *s.ShowLinkID, s.ProviderID, s.ExternalSaleID); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	s.ID = uint64(id)

	if s.TierID != nil && s.Quantity > 0 {
		ok, err := deductSeatsTx(ctx, tx, *s.TierID, s.Quantity)
		if err != nil {
			return false, err
		}
		if ok {
			s.SeatsDeducted = s.Quantity
			const upd = `UPDATE ticket_sales SET seats_deducted = ? WHERE id = ?`
			if _, err := tx.ExecContext(ctx, upd, s.SeatsDeducted, s.ID); err != nil {
				return false, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.CreatedAt = time.Now().UTC()
	return true, nil
}

// RefundSale marks a sale refunded and restores exactly SeatsDeducted
// seats.  The row is locked so a concurrent refund of the same sale
// cannot restore twice.
func (r *TicketSaleRepo) RefundSale(ctx context.Context, providerID uint64, externalSaleID string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id       uint64
		status   string
		tierID   sql.NullInt64
		deducted int
	)
	const sel = `SELECT id, status, tier_id, seats_deducted FROM ticket_sales
                 WHERE provider_id = ? AND external_sale_id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, sel, providerID, externalSaleID).Scan(&id, &status, &tierID, &deducted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if status == model.SaleRefunded {
		return false, nil
	}

	const upd = `UPDATE ticket_sales SET status = ?, refunded_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, model.SaleRefunded, at, id); err != nil {
		return false, err
	}
	if tierID.Valid && deducted > 0 {
		if err := restoreSeatsTx(ctx, tx, uint64(tierID.Int64), deducted); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ListSalesByOrder returns every ledger row of an external order.
func (r *TicketSaleRepo) ListSalesByOrder(ctx context.Context, providerID uint64, externalOrderID string) ([]model.TicketSale, error) {
	q := `SELECT ` + ticketSaleColumns + ` FROM ticket_sales
          WHERE provider_id = ? AND external_order_id = ? ORDER BY id`
	return r.querySales(ctx, q, providerID, externalOrderID)
}

// ListConfirmedSalesForShowLink returns the confirmed sales of a show link.
func (r *TicketSaleRepo) ListConfirmedSalesForShowLink(ctx context.Context, showLinkID uint64) ([]model.TicketSale, error) {
	q := `SELECT ` + ticketSaleColumns + ` FROM ticket_sales
          WHERE show_link_id = ? AND status = ? ORDER BY id`
	return r.querySales(ctx, q, showLinkID, model.SaleConfirmed)
}
