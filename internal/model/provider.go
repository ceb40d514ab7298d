package model

import "time"

// ProviderType selects the adapter used for an integration.
type ProviderType string

const (
	ProviderManual       ProviderType = "manual"
	ProviderTicketTailor ProviderType = "tickettailor"
	ProviderEventbrite   ProviderType = "eventbrite"
)

// Provider sync states recorded after each import run.
const (
	SyncStatusNever   = "never"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// Provider is a configured box-office integration.  Credentials are stored
// per provider; which of them is used depends on Type.  This struct
// corresponds to a row in the `providers` table.
//
// Capabilities, when non-empty, restricts what the adapter is allowed to do
// for this integration (for example disabling sales import while keeping
// event linking).
type Provider struct {
	ID             uint64          // providers.id
	Name           string          // providers.name
	Type           ProviderType    // providers.type
	Active         bool            // providers.active
	APIKey         string          // providers.api_key (basic-auth providers)
	ClientID       string          // providers.client_id (oauth providers)
	ClientSecret   string          // providers.client_secret
	AccessToken    string          // providers.access_token
	RefreshToken   string          // providers.refresh_token
	TokenExpiresAt *time.Time      // providers.token_expires_at (nullable)
	OrganizationID string          // providers.organization_id
	BaseURL        string          // providers.base_url (empty = provider default)
	WebhookSecret  string          // providers.webhook_secret (empty = unsigned)
	Capabilities   map[string]bool // providers.capabilities (JSON, nullable)
	LastSyncAt     *time.Time      // providers.last_sync_at
	LastSyncStatus string          // providers.last_sync_status
	LastSyncError  *string         // providers.last_sync_error
	CreatedAt      time.Time       // providers.created_at
	UpdatedAt      time.Time       // providers.updated_at
}
