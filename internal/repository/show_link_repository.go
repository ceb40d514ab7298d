package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// ShowLinkRepo manages the show_links table.  The schema keeps at most one
// link per show and one per external occurrence within a production link.
type ShowLinkRepo struct {
	db *sql.DB
}

// NewShowLinkRepo constructs a ShowLinkRepo with the given DB handle.
func NewShowLinkRepo(db *sql.DB) *ShowLinkRepo { return &ShowLinkRepo{db: db} }

const showLinkColumns = `sl.id, sl.production_link_id, sl.show_id, sl.external_occurrence_id,
       sl.match_confidence, sl.match_method, sl.sync_status, sl.sync_error, sl.tickets_sold,
       sl.tickets_available, sl.capacity, sl.gross_revenue, sl.net_revenue, sl.ticket_breakdown,
       sl.last_synced_at, sl.created_at, sl.updated_at`

// scanShowLink scans showLinkColumns followed by any extra destinations.
func scanShowLink(row rowScanner, extra ...any) (*model.ShowLink, error) {
	var (
		l                   model.ShowLink
		syncErr             sql.NullString
		available, capacity sql.NullInt64
		breakdown           []byte
		synced              sql.NullTime
	)
	dest := []any{&l.ID, &l.ProductionLinkID, &l.ShowID, &l.ExternalOccurrenceID,
		&l.MatchConfidence, &l.MatchMethod, &l.SyncStatus, &syncErr, &l.TicketsSold,
		&available, &capacity, &l.GrossRevenue, &l.NetRevenue, &breakdown,
		&synced, &l.CreatedAt, &l.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.SyncError = stringPtr(syncErr)
	l.TicketsAvailable = intPtr(available)
	l.Capacity = intPtr(capacity)
	l.LastSyncedAt = timePtr(synced)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &l.Breakdown); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

func (r *ShowLinkRepo) queryShowLinks(ctx context.Context, q string, args ...any) ([]model.ShowLink, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ShowLink
	for rows.Next() {
		l, err := scanShowLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// ListShowLinks returns every show link of a production link.
func (r *ShowLinkRepo) ListShowLinks(ctx context.Context, productionLinkID uint64) ([]model.ShowLink, error) {
	q := `SELECT ` + showLinkColumns + ` FROM show_links sl WHERE sl.production_link_id = ? ORDER BY sl.id`
	return r.queryShowLinks(ctx, q, productionLinkID)
}

// CreateShowLink inserts a link.  A second link for the same show or the
// same occurrence returns ErrDuplicate.
func (r *ShowLinkRepo) CreateShowLink(ctx context.Context, l *model.ShowLink) error {
	const q = `INSERT INTO show_links
               (production_link_id, show_id, external_occurrence_id, match_confidence, match_method, sync_status)
               VALUES (?, ?, ?, ?, ?, ?)`
	if l.SyncStatus == "" {
		l.SyncStatus = model.ShowSyncPending
	}
	res, err := r.db.ExecContext(ctx, q, l.ProductionLinkID, l.ShowID, l.ExternalOccurrenceID,
		l.MatchConfidence, l.MatchMethod, l.SyncStatus)
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

// FindShowLinkByOccurrence returns the link for an external occurrence or ErrNotFound.
func (r *ShowLinkRepo) FindShowLinkByOccurrence(ctx context.Context, productionLinkID uint64, occurrenceID string) (*model.ShowLink, error) {
	q := `SELECT ` + showLinkColumns + ` FROM show_links sl
          WHERE sl.production_link_id = ? AND sl.external_occurrence_id = ?`
	l, err := scanShowLink(r.db.QueryRowContext(ctx, q, productionLinkID, occurrenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// ListSyncableShowLinks returns the links the importer should refresh,
// ordered by show start time.
func (r *ShowLinkRepo) ListSyncableShowLinks(ctx context.Context, productionLinkID uint64, showsSince time.Time) ([]model.ShowLinkTarget, error) {
	q := `SELECT ` + showLinkColumns + `, s.starts_at
          FROM show_links sl
          JOIN shows s ON s.id = sl.show_id
          WHERE sl.production_link_id = ? AND TRIM(sl.external_occurrence_id) <> '' AND s.starts_at >= ?
          ORDER BY s.starts_at ASC, sl.id ASC`
	rows, err := r.db.QueryContext(ctx, q, productionLinkID, showsSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ShowLinkTarget
	for rows.Next() {
		var startsAt time.Time
		l, err := scanShowLink(rows, &startsAt)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ShowLinkTarget{ShowLink: *l, ShowStartsAt: startsAt})
	}
	return out, rows.Err()
}

// SaveShowLinkSales writes a sales snapshot and marks the link synced.
func (r *ShowLinkRepo) SaveShowLinkSales(ctx context.Context, id uint64, snap model.SalesSnapshot, at time.Time) error {
	breakdown, err := json.Marshal(snap.Breakdown)
	if err != nil {
		return err
	}
	const q = `UPDATE show_links
               SET tickets_sold = ?, tickets_available = ?, capacity = ?, gross_revenue = ?, net_revenue = ?,
                   ticket_breakdown = ?, sync_status = ?, sync_error = NULL, last_synced_at = ?
               WHERE id = ?`
	_, err = r.db.ExecContext(ctx, q, snap.TicketsSold, nullInt(snap.TicketsAvailable), nullInt(snap.Capacity),
		snap.GrossRevenue, snap.NetRevenue, breakdown, model.ShowSyncSynced, at, id)
	return err
}

// MarkShowLinkError records a failed import on the link.  Previously
// imported metrics are left untouched.
func (r *ShowLinkRepo) MarkShowLinkError(ctx context.Context, id uint64, msg string) error {
	const q = `UPDATE show_links SET sync_status = ?, sync_error = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, model.ShowSyncError, msg, id)
	return err
}
