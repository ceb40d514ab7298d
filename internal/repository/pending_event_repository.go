package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// PendingEventRepo manages the pending_events table.  One row exists per
// (provider_id, external_event_id); rows are updated in place, never deleted.
type PendingEventRepo struct {
	db *sql.DB
}

// NewPendingEventRepo constructs a PendingEventRepo with the given DB handle.
func NewPendingEventRepo(db *sql.DB) *PendingEventRepo { return &PendingEventRepo{db: db} }

const pendingEventColumns = `id, provider_id, external_event_id, name, url, status,
       suggested_production_id, confidence, occurrence_count, first_date, last_date,
       raw_payload, production_link_id, created_at, updated_at`

func scanPendingEvent(row rowScanner) (*model.PendingEvent, error) {
	var (
		p                 model.PendingEvent
		suggested, linkID sql.NullInt64
		first, last       sql.NullTime
		raw               []byte
	)
	err := row.Scan(&p.ID, &p.ProviderID, &p.ExternalEventID, &p.Name, &p.URL, &p.Status,
		&suggested, &p.Confidence, &p.OccurrenceCount, &first, &last,
		&raw, &linkID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SuggestedProductionID = uintPtr(suggested)
	p.ProductionLinkID = uintPtr(linkID)
	p.FirstDate = timePtr(first)
	p.LastDate = timePtr(last)
	p.RawPayload = raw
	return &p, nil
}

// GetPendingEvent returns a pending event by id or ErrNotFound.
func (r *PendingEventRepo) GetPendingEvent(ctx context.Context, id uint64) (*model.PendingEvent, error) {
	q := `SELECT ` + pendingEventColumns + ` FROM pending_events WHERE id = ?`
	p, err := scanPendingEvent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindPendingEvent returns the pending event for an external event or ErrNotFound.
func (r *PendingEventRepo) FindPendingEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.PendingEvent, error) {
	q := `SELECT ` + pendingEventColumns + ` FROM pending_events WHERE provider_id = ? AND external_event_id = ?`
	p, err := scanPendingEvent(r.db.QueryRowContext(ctx, q, providerID, externalEventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// CreatePendingEvent inserts a pending event.  A second row for the same
// external event returns ErrDuplicate.
func (r *PendingEventRepo) CreatePendingEvent(ctx context.Context, p *model.PendingEvent) error {
	const q = `INSERT INTO pending_events
               (provider_id, external_event_id, name, url, status, suggested_production_id, confidence,
                occurrence_count, first_date, last_date, raw_payload, production_link_id)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if p.Status == "" {
		p.Status = model.PendingStatusPending
	}
	res, err := r.db.ExecContext(ctx, q, p.ProviderID, p.ExternalEventID, p.Name, p.URL, p.Status,
		nullUint(p.SuggestedProductionID), p.Confidence, p.OccurrenceCount,
		nullTime(p.FirstDate), nullTime(p.LastDate), nullJSON(p.RawPayload), nullUint(p.ProductionLinkID))
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
	p.ID = uint64(id)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// UpdatePendingEvent writes back every mutable field of p.
func (r *PendingEventRepo) UpdatePendingEvent(ctx context.Context, p *model.PendingEvent) error {
	const q = `UPDATE pending_events
               SET name = ?, url = ?, status = ?, suggested_production_id = ?, confidence = ?,
                   occurrence_count = ?, first_date = ?, last_date = ?, raw_payload = ?, production_link_id = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.URL, p.Status, nullUint(p.SuggestedProductionID), p.Confidence,
		p.OccurrenceCount, nullTime(p.FirstDate), nullTime(p.LastDate), nullJSON(p.RawPayload),
		nullUint(p.ProductionLinkID), p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows for an unchanged row, so only a
	// missing id is treated as an error.
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pending_events WHERE id = ?)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// ListPendingEvents lists pending events, newest first.  providerID 0 and
// status "" disable the respective filter.
func (r *PendingEventRepo) ListPendingEvents(ctx context.Context, providerID uint64, status string) ([]model.PendingEvent, error) {
	q := `SELECT ` + pendingEventColumns + ` FROM pending_events
          WHERE (? = 0 OR provider_id = ?) AND (? = '' OR status = ?)
          ORDER BY updated_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, providerID, providerID, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PendingEvent
	for rows.Next() {
		p, err := scanPendingEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
