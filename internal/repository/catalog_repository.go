package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// CatalogRepo is read-only access to the productions and shows owned by
// the catalog service.  The sync engine never writes these tables.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ListCandidateProductions returns recent productions with the range of
// their shows inside the lookback window.  Productions without such shows
// are still returned with a nil range so name similarity can score them.
func (r *CatalogRepo) ListCandidateProductions(ctx context.Context, createdSince, showsSince time.Time) ([]model.ProductionCandidate, error) {
	const q = `SELECT p.id, p.name, p.created_at, MIN(s.starts_at), MAX(s.starts_at)
               FROM productions p
               LEFT JOIN shows s ON s.production_id = p.id AND s.starts_at >= ?
               WHERE p.created_at >= ?
               GROUP BY p.id, p.name, p.created_at
               ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, q, showsSince, createdSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProductionCandidate
	for rows.Next() {
		var (
			c           model.ProductionCandidate
			first, last sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &first, &last); err != nil {
			return nil, err
		}
		c.FirstShowAt = timePtr(first)
		c.LastShowAt = timePtr(last)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListShowsForProduction returns the production's shows from since onward
// ordered by start time.  Cancelled shows are excluded.
func (r *CatalogRepo) ListShowsForProduction(ctx context.Context, productionID uint64, since time.Time) ([]model.Show, error) {
	const q = `SELECT id, production_id, starts_at, status
               FROM shows
               WHERE production_id = ? AND starts_at >= ? AND status <> 'CANCELLED'
               ORDER BY starts_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, productionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.ProductionID, &s.StartsAt, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
