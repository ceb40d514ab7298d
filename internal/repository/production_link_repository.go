package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// ProductionLinkRepo manages the production_links table.  Uniqueness of
// (provider_id, external_event_id) is enforced by the schema and reported
// as ErrDuplicate.
type ProductionLinkRepo struct {
	db *sql.DB
}

// NewProductionLinkRepo constructs a ProductionLinkRepo with the given DB handle.
func NewProductionLinkRepo(db *sql.DB) *ProductionLinkRepo { return &ProductionLinkRepo{db: db} }

const productionLinkColumns = `id, provider_id, production_id, external_event_id, external_event_name,
       external_event_url, raw_payload, sync_enabled, sync_ticket_sales, last_synced_at,
       created_at, updated_at`

func scanProductionLink(row rowScanner) (*model.ProductionLink, error) {
	var (
		l      model.ProductionLink
		raw    []byte
		synced sql.NullTime
	)
	err := row.Scan(&l.ID, &l.ProviderID, &l.ProductionID, &l.ExternalEventID, &l.ExternalEventName,
		&l.ExternalEventURL, &raw, &l.SyncEnabled, &l.SyncTicketSales, &synced,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.RawPayload = raw
	l.LastSyncedAt = timePtr(synced)
	return &l, nil
}

// GetProductionLink returns a link by id or ErrNotFound.
func (r *ProductionLinkRepo) GetProductionLink(ctx context.Context, id uint64) (*model.ProductionLink, error) {
	q := `SELECT ` + productionLinkColumns + ` FROM production_links WHERE id = ?`
	l, err := scanProductionLink(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// FindProductionLinkByExternalID returns the link for an external event or ErrNotFound.
func (r *ProductionLinkRepo) FindProductionLinkByExternalID(ctx context.Context, providerID uint64, externalEventID string) (*model.ProductionLink, error) {
	q := `SELECT ` + productionLinkColumns + ` FROM production_links WHERE provider_id = ? AND external_event_id = ?`
	l, err := scanProductionLink(r.db.QueryRowContext(ctx, q, providerID, externalEventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// CreateProductionLink inserts a link and assigns its id and timestamps.
func (r *ProductionLinkRepo) CreateProductionLink(ctx context.Context, l *model.ProductionLink) error {
	const q = `INSERT INTO production_links
               (provider_id, production_id, external_event_id, external_event_name, external_event_url,
                raw_payload, sync_enabled, sync_ticket_sales)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.ProviderID, l.ProductionID, l.ExternalEventID, l.ExternalEventName,
		l.ExternalEventURL, nullJSON(l.RawPayload), l.SyncEnabled, l.SyncTicketSales)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	return nil
}

// UpdateProductionLinkName refreshes the cached external name and url.
func (r *ProductionLinkRepo) UpdateProductionLinkName(ctx context.Context, id uint64, name, url string) error {
	const q = `UPDATE production_links SET external_event_name = ?, external_event_url = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, name, url, id)
	return err
}

// TouchProductionLinkSynced stamps the time of the last successful import.
func (r *ProductionLinkRepo) TouchProductionLinkSynced(ctx context.Context, id uint64, at time.Time) error {
	const q = `UPDATE production_links SET last_synced_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}

// ListProductionLinks returns the links of a provider ordered by id.
func (r *ProductionLinkRepo) ListProductionLinks(ctx context.Context, providerID uint64) ([]model.ProductionLink, error) {
	q := `SELECT ` + productionLinkColumns + ` FROM production_links WHERE provider_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProductionLink
	for rows.Next() {
		l, err := scanProductionLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
