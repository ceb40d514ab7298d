package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// WebhookLogRepo manages the webhook_logs table.
type WebhookLogRepo struct {
	db *sql.DB
}

// NewWebhookLogRepo constructs a WebhookLogRepo with the given DB handle.
func NewWebhookLogRepo(db *sql.DB) *WebhookLogRepo { return &WebhookLogRepo{db: db} }

// CreateWebhookLog stores a received delivery and assigns its id.
func (r *WebhookLogRepo) CreateWebhookLog(ctx context.Context, l *model.WebhookLog) error {
	const q = `INSERT INTO webhook_logs (delivery_id, provider_id, event_type, category, payload, status, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.DeliveryID, l.ProviderID, l.EventType, l.Category,
		nullJSON(l.Payload), l.Status, l.CreatedAt)
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
	return nil
}

// FinishWebhookLog stores the outcome of processing a delivery.
func (r *WebhookLogRepo) FinishWebhookLog(ctx context.Context, l *model.WebhookLog) error {
	const q = `UPDATE webhook_logs
               SET category = ?, status = ?, error = ?, listing_id = ?, show_link_id = ?, production_link_id = ?, processed_at = ?
               WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, l.Category, l.Status, nullString(l.Error), nullUint(l.ListingID),
		nullUint(l.ShowLinkID), nullUint(l.ProductionLinkID), nullTime(l.ProcessedAt), l.ID)
	return err
}
