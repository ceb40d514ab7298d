package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// SyncLogRepo manages the sync_logs audit table.
type SyncLogRepo struct {
	db *sql.DB
}

// NewSyncLogRepo constructs a SyncLogRepo with the given DB handle.
func NewSyncLogRepo(db *sql.DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

// StartSyncLog inserts a running log entry and assigns its id.
func (r *SyncLogRepo) StartSyncLog(ctx context.Context, l *model.SyncLog) error {
	const q = "INSERT INTO sync_logs (provider_id, production_link_id, kind, `trigger`, status, started_at) VALUES (?, ?, ?, ?, ?, ?)"
	l.Status = model.SyncLogRunning
	res, err := r.db.ExecContext(ctx, q, l.ProviderID, nullUint(l.ProductionLinkID), l.Kind, l.Trigger, l.Status, l.StartedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// CompleteSyncLog closes a log entry as successful.
func (r *SyncLogRepo) CompleteSyncLog(ctx context.Context, id uint64, updated, failed int, at time.Time) error {
	const q = `UPDATE sync_logs SET status = ?, records_updated = ?, records_failed = ?, completed_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, model.SyncLogSuccess, updated, failed, at, id)
	return err
}

// FailSyncLog closes a log entry as failed.
func (r *SyncLogRepo) FailSyncLog(ctx context.Context, id uint64, updated, failed int, errMsg string, at time.Time) error {
	const q = `UPDATE sync_logs SET status = ?, records_updated = ?, records_failed = ?, error = ?, completed_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, model.SyncLogFailed, updated, failed, errMsg, at, id)
	return err
}

// ListSyncLogs returns the latest entries of a provider (0 = all), newest first.
func (r *SyncLogRepo) ListSyncLogs(ctx context.Context, providerID uint64, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = "SELECT id, provider_id, production_link_id, kind, `trigger`, status, records_updated, records_failed, error, started_at, completed_at " +
		"FROM sync_logs WHERE (? = 0 OR provider_id = ?) ORDER BY started_at DESC, id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, q, providerID, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLog
	for rows.Next() {
		var (
			l         model.SyncLog
			linkID    sql.NullInt64
			errMsg    sql.NullString
			completed sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.ProviderID, &linkID, &l.Kind, &l.Trigger, &l.Status,
			&l.RecordsUpdated, &l.RecordsFailed, &errMsg, &l.StartedAt, &completed); err != nil {
			return nil, err
		}
		l.ProductionLinkID = uintPtr(linkID)
		l.Error = stringPtr(errMsg)
		l.CompletedAt = timePtr(completed)
		out = append(out, l)
	}
	return out, rows.Err()
}
