package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
)

// ProviderRepo manages the providers table.
type ProviderRepo struct {
	db *sql.DB
}

// NewProviderRepo constructs a ProviderRepo with the given DB handle.
func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

const providerColumns = `id, name, type, active, api_key, client_id, client_secret,
       access_token, refresh_token, token_expires_at, organization_id, base_url,
       webhook_secret, capabilities, last_sync_at, last_sync_status, last_sync_error,
       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*model.Provider, error) {
	var (
		p                     model.Provider
		typ                   string
		access, refresh, lerr sql.NullString
		expires, lastSync     sql.NullTime
		caps                  []byte
	)
	err := row.Scan(&p.ID, &p.Name, &typ, &p.Active, &p.APIKey, &p.ClientID, &p.ClientSecret,
		&access, &refresh, &expires, &p.OrganizationID, &p.BaseURL,
		&p.WebhookSecret, &caps, &lastSync, &p.LastSyncStatus, &lerr,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = model.ProviderType(typ)
	p.AccessToken = access.String
	p.RefreshToken = refresh.String
	p.TokenExpiresAt = timePtr(expires)
	p.LastSyncAt = timePtr(lastSync)
	p.LastSyncError = stringPtr(lerr)
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &p.Capabilities); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// GetProvider returns a provider by id or ErrNotFound.
func (r *ProviderRepo) GetProvider(ctx context.Context, id uint64) (*model.Provider, error) {
	q := `SELECT ` + providerColumns + ` FROM providers WHERE id = ?`
	p, err := scanProvider(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListActiveProviders returns every active provider ordered by id.
func (r *ProviderRepo) ListActiveProviders(ctx context.Context) ([]model.Provider, error) {
	q := `SELECT ` + providerColumns + ` FROM providers WHERE active = 1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RecordProviderSync stores the outcome of the latest import run.
func (r *ProviderRepo) RecordProviderSync(ctx context.Context, id uint64, status string, errMsg *string, at time.Time) error {
	const q = `UPDATE providers SET last_sync_at = ?, last_sync_status = ?, last_sync_error = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, at, status, nullString(errMsg), id)
	return err
}

// UpdateProviderTokens persists refreshed OAuth credentials.
func (r *ProviderRepo) UpdateProviderTokens(ctx context.Context, id uint64, access, refresh string, expiresAt *time.Time) error {
	const q = `UPDATE providers SET access_token = ?, refresh_token = ?, token_expires_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, access, refresh, nullTime(expiresAt), id)
	return err
}
