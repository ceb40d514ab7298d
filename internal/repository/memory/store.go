// Package memory is an in-process implementation of every repository
// contract.  It enforces the same uniqueness keys and conditional seat
// updates as the MySQL schema and is used by component tests and dry runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
)

// Store holds all tables behind a single mutex.
type Store struct {
	mu sync.Mutex

	seq uint64

	providers       map[uint64]*model.Provider
	productions     map[uint64]*model.Production
	shows           map[uint64]*model.Show
	productionLinks map[uint64]*model.ProductionLink
	pendingEvents   map[uint64]*model.PendingEvent
	showLinks       map[uint64]*model.ShowLink
	listings        map[uint64]*model.Listing
	tiers           map[uint64]*model.TicketTier
	sales           map[uint64]*model.TicketSale
	syncLogs        map[uint64]*model.SyncLog
	webhookLogs     map[uint64]*model.WebhookLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		providers:       map[uint64]*model.Provider{},
		productions:     map[uint64]*model.Production{},
		shows:           map[uint64]*model.Show{},
		productionLinks: map[uint64]*model.ProductionLink{},
		pendingEvents:   map[uint64]*model.PendingEvent{},
		showLinks:       map[uint64]*model.ShowLink{},
		listings:        map[uint64]*model.Listing{},
		tiers:           map[uint64]*model.TicketTier{},
		sales:           map[uint64]*model.TicketSale{},
		syncLogs:        map[uint64]*model.SyncLog{},
		webhookLogs:     map[uint64]*model.WebhookLog{},
	}
}

var (
	_ repository.ProviderStore       = (*Store)(nil)
	_ repository.CatalogStore        = (*Store)(nil)
	_ repository.ProductionLinkStore = (*Store)(nil)
	_ repository.PendingEventStore   = (*Store)(nil)
	_ repository.ShowLinkStore       = (*Store)(nil)
	_ repository.ListingStore        = (*Store)(nil)
	_ repository.TicketSaleStore     = (*Store)(nil)
	_ repository.SyncLogStore        = (*Store)(nil)
	_ repository.WebhookLogStore     = (*Store)(nil)
	_ repository.Store               = (*Store)(nil)
)

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func sortedIDs[T any](m map[uint64]T) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Seeding helpers for the catalog-owned tables.

// AddProvider stores p, assigning an id when zero.
func (s *Store) AddProvider(p model.Provider) *model.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	if p.LastSyncStatus == "" {
		p.LastSyncStatus = model.SyncStatusNever
	}
	s.providers[p.ID] = &p
	cp := p
	return &cp
}

// AddProduction stores a production created at createdAt.
func (s *Store) AddProduction(name string, createdAt time.Time) *model.Production {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Production{ID: s.nextID(), Name: name, CreatedAt: createdAt}
	s.productions[p.ID] = p
	cp := *p
	return &cp
}

// AddShow stores a scheduled show of a production.
func (s *Store) AddShow(productionID uint64, startsAt time.Time) *model.Show {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := &model.Show{ID: s.nextID(), ProductionID: productionID, StartsAt: startsAt, Status: "SCHEDULED"}
	s.shows[sh.ID] = sh
	cp := *sh
	return &cp
}

// AddListing stores a listing, assigning an id when zero.
func (s *Store) AddListing(l model.Listing) *model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.nextID()
	}
	s.listings[l.ID] = &l
	cp := l
	return &cp
}

// AddTier stores a ticket tier, assigning an id when zero.
func (s *Store) AddTier(t model.TicketTier) *model.TicketTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.tiers[t.ID] = &t
	cp := t
	return &cp
}

// Tier returns a copy of a tier, or nil.
func (s *Store) Tier(id uint64) *model.TicketTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// Listing returns a copy of a listing, or nil.
func (s *Store) Listing(id uint64) *model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

// Sales returns copies of every ledger row in insertion order.
func (s *Store) Sales() []model.TicketSale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TicketSale, 0, len(s.sales))
	for _, id := range sortedIDs(s.sales) {
		out = append(out, *s.sales[id])
	}
	return out
}

// ShowLink returns a copy of a show link, or nil.
func (s *Store) ShowLink(id uint64) *model.ShowLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.showLinks[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

// WebhookLogs returns copies of every webhook log in insertion order.
func (s *Store) WebhookLogs() []model.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebhookLog, 0, len(s.webhookLogs))
	for _, id := range sortedIDs(s.webhookLogs) {
		out = append(out, *s.webhookLogs[id])
	}
	return out
}

// providers

func (s *Store) GetProvider(_ context.Context, id uint64) (*model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListActiveProviders(_ context.Context) ([]model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Provider
	for _, id := range sortedIDs(s.providers) {
		if p := s.providers[id]; p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) RecordProviderSync(_ context.Context, id uint64, status string, errMsg *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastSyncAt = &at
	p.LastSyncStatus = status
	p.LastSyncError = errMsg
	return nil
}

func (s *Store) UpdateProviderTokens(_ context.Context, id uint64, access, refresh string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.AccessToken, p.RefreshToken, p.TokenExpiresAt = access, refresh, expiresAt
	return nil
}

// catalog

func (s *Store) ListCandidateProductions(_ context.Context, createdSince, showsSince time.Time) ([]model.ProductionCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProductionCandidate
	for _, id := range sortedIDs(s.productions) {
		p := s.productions[id]
		if p.CreatedAt.Before(createdSince) {
			continue
		}
		c := model.ProductionCandidate{Production: *p}
		for _, sh := range s.shows {
			if sh.ProductionID != p.ID || sh.StartsAt.Before(showsSince) {
				continue
			}
			t := sh.StartsAt
			if c.FirstShowAt == nil || t.Before(*c.FirstShowAt) {
				c.FirstShowAt = &t
			}
			if c.LastShowAt == nil || t.After(*c.LastShowAt) {
				c.LastShowAt = &t
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) ListShowsForProduction(_ context.Context, productionID uint64, since time.Time) ([]model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Show
	for _, sh := range s.shows {
		if sh.ProductionID == productionID && !sh.StartsAt.Before(since) && sh.Status != "CANCELLED" {
			out = append(out, *sh)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

// production links

func (s *Store) GetProductionLink(_ context.Context, id uint64) (*model.ProductionLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.productionLinks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) FindProductionLinkByExternalID(_ context.Context, providerID uint64, externalEventID string) (*model.ProductionLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.productionLinks {
		if l.ProviderID == providerID && l.ExternalEventID == externalEventID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) CreateProductionLink(_ context.Context, l *model.ProductionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.productionLinks {
		if e.ProviderID == l.ProviderID && e.ExternalEventID == l.ExternalEventID {
			return repository.ErrDuplicate
		}
	}
	l.ID = s.nextID()
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	cp := *l
	s.productionLinks[l.ID] = &cp
	return nil
}

func (s *Store) UpdateProductionLinkName(_ context.Context, id uint64, name, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.productionLinks[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.ExternalEventName, l.ExternalEventURL = name, url
	return nil
}

func (s *Store) TouchProductionLinkSynced(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.productionLinks[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.LastSyncedAt = &at
	return nil
}

func (s *Store) ListProductionLinks(_ context.Context, providerID uint64) ([]model.ProductionLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProductionLink
	for _, id := range sortedIDs(s.productionLinks) {
		if l := s.productionLinks[id]; l.ProviderID == providerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// pending events

func (s *Store) GetPendingEvent(_ context.Context, id uint64) (*model.PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendingEvents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) FindPendingEvent(_ context.Context, providerID uint64, externalEventID string) (*model.PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pendingEvents {
		if p.ProviderID == providerID && p.ExternalEventID == externalEventID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) CreatePendingEvent(_ context.Context, p *model.PendingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.pendingEvents {
		if e.ProviderID == p.ProviderID && e.ExternalEventID == p.ExternalEventID {
			return repository.ErrDuplicate
		}
	}
	if p.Status == "" {
		p.Status = model.PendingStatusPending
	}
	p.ID = s.nextID()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.pendingEvents[p.ID] = &cp
	return nil
}

func (s *Store) UpdatePendingEvent(_ context.Context, p *model.PendingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingEvents[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.pendingEvents[p.ID] = &cp
	return nil
}

func (s *Store) ListPendingEvents(_ context.Context, providerID uint64, status string) ([]model.PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PendingEvent
	ids := sortedIDs(s.pendingEvents)
	for i := len(ids) - 1; i >= 0; i-- {
		p := s.pendingEvents[ids[i]]
		if providerID != 0 && p.ProviderID != providerID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// show links

func (s *Store) ListShowLinks(_ context.Context, productionLinkID uint64) ([]model.ShowLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ShowLink
	for _, id := range sortedIDs(s.showLinks) {
		if l := s.showLinks[id]; l.ProductionLinkID == productionLinkID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *Store) CreateShowLink(_ context.Context, l *model.ShowLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.showLinks {
		if e.ProductionLinkID != l.ProductionLinkID {
			continue
		}
		if e.ShowID == l.ShowID || e.ExternalOccurrenceID == l.ExternalOccurrenceID {
			return repository.ErrDuplicate
		}
	}
	if l.SyncStatus == "" {
		l.SyncStatus = model.ShowSyncPending
	}
	l.ID = s.nextID()
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	cp := *l
	s.showLinks[l.ID] = &cp
	return nil
}

func (s *Store) FindShowLinkByOccurrence(_ context.Context, productionLinkID uint64, occurrenceID string) (*model.ShowLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.showLinks {
		if l.ProductionLinkID == productionLinkID && l.ExternalOccurrenceID == occurrenceID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListSyncableShowLinks(_ context.Context, productionLinkID uint64, showsSince time.Time) ([]model.ShowLinkTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ShowLinkTarget
	for _, l := range s.showLinks {
		if l.ProductionLinkID != productionLinkID || strings.TrimSpace(l.ExternalOccurrenceID) == "" {
			continue
		}
		sh, ok := s.shows[l.ShowID]
		if !ok || sh.StartsAt.Before(showsSince) {
			continue
		}
		out = append(out, model.ShowLinkTarget{ShowLink: *l, ShowStartsAt: sh.StartsAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShowStartsAt.Equal(out[j].ShowStartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ShowStartsAt.Before(out[j].ShowStartsAt)
	})
	return out, nil
}

func (s *Store) SaveShowLinkSales(_ context.Context, id uint64, snap model.SalesSnapshot, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.showLinks[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.TicketsSold = snap.TicketsSold
	l.TicketsAvailable = snap.TicketsAvailable
	l.Capacity = snap.Capacity
	l.GrossRevenue = snap.GrossRevenue
	l.NetRevenue = snap.NetRevenue
	l.Breakdown = append([]model.TicketTypeBreakdown(nil), snap.Breakdown...)
	l.SyncStatus = model.ShowSyncSynced
	l.SyncError = nil
	l.LastSyncedAt = &at
	return nil
}

func (s *Store) MarkShowLinkError(_ context.Context, id uint64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.showLinks[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.SyncStatus = model.ShowSyncError
	l.SyncError = &msg
	return nil
}

// listings

func (s *Store) FindListingByExternalEvent(_ context.Context, providerID uint64, externalEventID string) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.ProviderID == providerID && l.ExternalEventID == externalEventID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindTier(_ context.Context, listingID uint64, externalTicketTypeID string) (*model.TicketTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tiers []*model.TicketTier
	for _, id := range sortedIDs(s.tiers) {
		if t := s.tiers[id]; t.ListingID == listingID {
			tiers = append(tiers, t)
		}
	}
	for _, t := range tiers {
		if externalTicketTypeID != "" && t.ExternalTicketTypeID == externalTicketTypeID {
			cp := *t
			return &cp, nil
		}
	}
	if len(tiers) == 1 {
		cp := *tiers[0]
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) MarkListingApproved(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.Status != model.ListingPendingApproval {
		return false, nil
	}
	l.Status = model.ListingApproved
	return true, nil
}

func (s *Store) EndListing(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; ok {
		l.Status = model.ListingEnded
		if l.EndedAt == nil {
			l.EndedAt = &at
		}
	}
	return nil
}

func (s *Store) FlagListingForReview(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; ok {
		l.NeedsReview = true
	}
	return nil
}

// ticket sales

func (s *Store) findSaleLocked(providerID uint64, externalSaleID string) *model.TicketSale {
	for _, sale := range s.sales {
		if sale.ProviderID == providerID && sale.ExternalSaleID == externalSaleID {
			return sale
		}
	}
	return nil
}

func (s *Store) FindSale(_ context.Context, providerID uint64, externalSaleID string) (*model.TicketSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale := s.findSaleLocked(providerID, externalSaleID)
	if sale == nil {
		return nil, repository.ErrNotFound
	}
	cp := *sale
	return &cp, nil
}

func (s *Store) RecordSale(_ context.Context, sale *model.TicketSale) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findSaleLocked(sale.ProviderID, sale.ExternalSaleID); existing != nil {
		if existing.ShowLinkID == nil && sale.ShowLinkID != nil {
			id := *sale.ShowLinkID
			existing.ShowLinkID = &id
		}
		return false, nil
	}
	sale.ID = s.nextID()
	sale.Status = model.SaleConfirmed
	sale.SeatsDeducted = 0
	sale.CreatedAt = time.Now().UTC()
	if sale.TierID != nil && sale.Quantity > 0 {
		if t, ok := s.tiers[*sale.TierID]; ok && t.SeatsAvailable >= sale.Quantity {
			t.SeatsAvailable -= sale.Quantity
			sale.SeatsDeducted = sale.Quantity
		}
	}
	cp := *sale
	s.sales[sale.ID] = &cp
	return true, nil
}

func (s *Store) RefundSale(_ context.Context, providerID uint64, externalSaleID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale := s.findSaleLocked(providerID, externalSaleID)
	if sale == nil {
		return false, repository.ErrNotFound
	}
	if sale.Status == model.SaleRefunded {
		return false, nil
	}
	sale.Status = model.SaleRefunded
	sale.RefundedAt = &at
	if sale.TierID != nil && sale.SeatsDeducted > 0 {
		if t, ok := s.tiers[*sale.TierID]; ok {
			t.SeatsAvailable += sale.SeatsDeducted
			if t.SeatsAvailable > t.SeatsTotal {
				t.SeatsAvailable = t.SeatsTotal
			}
		}
	}
	return true, nil
}

func (s *Store) ListSalesByOrder(_ context.Context, providerID uint64, externalOrderID string) ([]model.TicketSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TicketSale
	for _, id := range sortedIDs(s.sales) {
		sale := s.sales[id]
		if sale.ProviderID == providerID && sale.ExternalOrderID == externalOrderID {
			out = append(out, *sale)
		}
	}
	return out, nil
}

func (s *Store) ListConfirmedSalesForShowLink(_ context.Context, showLinkID uint64) ([]model.TicketSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TicketSale
	for _, id := range sortedIDs(s.sales) {
		sale := s.sales[id]
		if sale.ShowLinkID != nil && *sale.ShowLinkID == showLinkID && sale.Status == model.SaleConfirmed {
			out = append(out, *sale)
		}
	}
	return out, nil
}

// sync logs

func (s *Store) StartSyncLog(_ context.Context, l *model.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.nextID()
	l.Status = model.SyncLogRunning
	cp := *l
	s.syncLogs[l.ID] = &cp
	return nil
}

func (s *Store) CompleteSyncLog(_ context.Context, id uint64, updated, failed int, at time.Time) error {
	return s.finishSyncLog(id, model.SyncLogSuccess, updated, failed, nil, at)
}

func (s *Store) FailSyncLog(_ context.Context, id uint64, updated, failed int, errMsg string, at time.Time) error {
	return s.finishSyncLog(id, model.SyncLogFailed, updated, failed, &errMsg, at)
}

func (s *Store) finishSyncLog(id uint64, status string, updated, failed int, errMsg *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.syncLogs[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = status
	l.RecordsUpdated, l.RecordsFailed = updated, failed
	l.Error = errMsg
	l.CompletedAt = &at
	return nil
}

func (s *Store) ListSyncLogs(_ context.Context, providerID uint64, limit int) ([]model.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []model.SyncLog
	ids := sortedIDs(s.syncLogs)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		l := s.syncLogs[ids[i]]
		if providerID == 0 || l.ProviderID == providerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// webhook logs

func (s *Store) CreateWebhookLog(_ context.Context, l *model.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.webhookLogs {
		if e.DeliveryID == l.DeliveryID {
			return repository.ErrDuplicate
		}
	}
	l.ID = s.nextID()
	cp := *l
	s.webhookLogs[l.ID] = &cp
	return nil
}

func (s *Store) FinishWebhookLog(_ context.Context, l *model.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhookLogs[l.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *l
	s.webhookLogs[l.ID] = &cp
	return nil
}
