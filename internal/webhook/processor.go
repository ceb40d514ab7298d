// Package webhook turns provider webhook deliveries into ledger and
// listing changes.  Processing never returns an error to the caller: every
// outcome, including failures, is reported as a Result so the HTTP layer
// can always acknowledge the delivery.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
)

// Store is the storage the processor needs.
type Store interface {
	FindProductionLinkByExternalID(ctx context.Context, providerID uint64, externalEventID string) (*model.ProductionLink, error)
	FindShowLinkByOccurrence(ctx context.Context, productionLinkID uint64, occurrenceID string) (*model.ShowLink, error)

	FindListingByExternalEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.Listing, error)
	FindTier(ctx context.Context, listingID uint64, externalTicketTypeID string) (*model.TicketTier, error)
	MarkListingApproved(ctx context.Context, id uint64) (bool, error)
	EndListing(ctx context.Context, id uint64, at time.Time) error
	FlagListingForReview(ctx context.Context, id uint64) error

	FindSale(ctx context.Context, providerID uint64, externalSaleID string) (*model.TicketSale, error)
	RecordSale(ctx context.Context, s *model.TicketSale) (bool, error)
	RefundSale(ctx context.Context, providerID uint64, externalSaleID string, at time.Time) (bool, error)
	ListSalesByOrder(ctx context.Context, providerID uint64, externalOrderID string) ([]model.TicketSale, error)

	CreateWebhookLog(ctx context.Context, l *model.WebhookLog) error
	FinishWebhookLog(ctx context.Context, l *model.WebhookLog) error
}

// SaleNotifier is told about every newly created sale.  Failures are
// logged and never fail the delivery.
type SaleNotifier interface {
	SaleRecorded(ctx context.Context, sale model.TicketSale) error
}

// Delivery is one inbound webhook.  ID is the provider's delivery id when
// it sends one; EventType may be empty, in which case it is read from the
// payload.
type Delivery struct {
	ID        string
	EventType string
	Payload   []byte
}

// Result is the outcome of a delivery.
type Result struct {
	Success    bool     `json:"success"`
	Duplicate  bool     `json:"duplicate,omitempty"`
	Ignored    bool     `json:"ignored,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
	DeliveryID string   `json:"delivery_id,omitempty"`
	Category   Category `json:"category,omitempty"`
	Created    int      `json:"created,omitempty"`
	Refunded   int      `json:"refunded,omitempty"`
}

// Processor handles deliveries for any provider.
type Processor struct {
	store    Store
	notifier SaleNotifier
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a Processor.  notifier may be nil.
func New(store Store, notifier SaleNotifier, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{store: store, notifier: notifier, log: log.Named("webhook"), now: time.Now}
}

// Process handles one delivery.  It always returns a Result; unexpected
// failures, including panics, become Success=false with Error set.
func (p *Processor) Process(ctx context.Context, prov *model.Provider, adapter provider.Adapter, d Delivery) (res Result) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	res.DeliveryID = d.ID
	log := p.log.With(zap.Uint64("provider_id", prov.ID), zap.String("delivery_id", d.ID))

	entry := &model.WebhookLog{
		DeliveryID: d.ID,
		ProviderID: prov.ID,
		Payload:    payloadJSON(d.Payload),
		Status:     model.WebhookReceived,
		CreatedAt:  p.now(),
	}
	logged := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook panic", zap.Any("panic", r))
			res = Result{DeliveryID: d.ID, Category: res.Category, Error: fmt.Sprintf("internal error: %v", r)}
		}
		if logged {
			p.finish(ctx, log, entry, res)
		}
	}()

	eventType := d.EventType
	if eventType == "" {
		t, err := adapter.WebhookEventType(d.Payload)
		if err != nil {
			return Result{DeliveryID: d.ID, Error: err.Error()}
		}
		eventType = t
	}
	res.Category = Classify(eventType)
	entry.EventType = eventType
	entry.Category = string(res.Category)

	if err := p.store.CreateWebhookLog(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("delivery already received")
			return Result{Success: true, Duplicate: true, DeliveryID: d.ID, Category: res.Category, Reason: "delivery already received"}
		}
		// the audit row is best effort; keep processing
		log.Warn("create webhook log", zap.Error(err))
	} else {
		logged = true
	}

	if res.Category == CategoryIgnored {
		res.Success, res.Ignored = true, true
		res.Reason = fmt.Sprintf("unhandled event type %q", eventType)
		return res
	}

	env, err := adapter.ParseWebhook(ctx, d.Payload)
	if err != nil {
		log.Warn("parse webhook", zap.String("event_type", eventType), zap.Error(err))
		res.Error = eris.Wrap(err, "webhook: parse").Error()
		return res
	}

	switch res.Category {
	case CategorySale:
		err = p.handleSale(ctx, prov, env, entry, &res)
	case CategoryRefund:
		err = p.handleRefund(ctx, prov, env, &res)
	default:
		err = p.handleEvent(ctx, prov, env, res.Category, entry, &res)
	}
	if err != nil {
		log.Error("webhook failed", zap.String("category", string(res.Category)), zap.Error(err))
		res.Success = false
		res.Error = err.Error()
		return res
	}
	res.Success = true
	log.Info("webhook processed",
		zap.String("category", string(res.Category)),
		zap.Int("created", res.Created),
		zap.Int("refunded", res.Refunded),
		zap.Bool("duplicate", res.Duplicate),
		zap.Bool("ignored", res.Ignored))
	return res
}

func (p *Processor) finish(ctx context.Context, log *zap.Logger, entry *model.WebhookLog, res Result) {
	switch {
	case !res.Success:
		entry.Status = model.WebhookFailed
		msg := res.Error
		entry.Error = &msg
	case res.Ignored:
		entry.Status = model.WebhookIgnored
	case res.Duplicate:
		entry.Status = model.WebhookDuplicate
	default:
		entry.Status = model.WebhookProcessed
	}
	at := p.now()
	entry.ProcessedAt = &at
	if err := p.store.FinishWebhookLog(ctx, entry); err != nil {
		log.Warn("finish webhook log", zap.Error(err))
	}
}

// handleSale records each ticket line of the delivery once.  A line whose
// external sale id already exists is skipped without touching inventory.
// Order updates carry refunded lines too; those are refunded in place.
func (p *Processor) handleSale(ctx context.Context, prov *model.Provider, env *provider.WebhookEnvelope, entry *model.WebhookLog, res *Result) error {
	link, err := p.store.FindProductionLinkByExternalID(ctx, prov.ID, env.EventID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return eris.Wrap(err, "webhook: find production link")
	}
	listing, err := p.store.FindListingByExternalEvent(ctx, prov.ID, env.EventID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return eris.Wrap(err, "webhook: find listing")
	}
	if link == nil && listing == nil {
		res.Ignored = true
		res.Reason = fmt.Sprintf("event %s is not linked", env.EventID)
		return nil
	}
	if link != nil {
		entry.ProductionLinkID = &link.ID
	}
	if listing != nil {
		entry.ListingID = &listing.ID
	}

	showLinks := map[string]*uint64{}
	resolveShowLink := func(occurrenceID string) (*uint64, error) {
		if link == nil || occurrenceID == "" {
			return nil, nil
		}
		if id, ok := showLinks[occurrenceID]; ok {
			return id, nil
		}
		sl, err := p.store.FindShowLinkByOccurrence(ctx, link.ID, occurrenceID)
		switch {
		case err == nil:
			showLinks[occurrenceID] = &sl.ID
			return &sl.ID, nil
		case errors.Is(err, repository.ErrNotFound):
			showLinks[occurrenceID] = nil
			return nil, nil
		default:
			return nil, eris.Wrap(err, "webhook: find show link")
		}
	}

	duplicates := 0
	for _, row := range env.Sales {
		if row.Refunded {
			ok, err := p.store.RefundSale(ctx, prov.ID, row.ID, p.now())
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return eris.Wrapf(err, "webhook: refund sale %s", row.ID)
			case ok:
				res.Refunded++
			default:
				duplicates++
			}
			continue
		}
		if _, err := p.store.FindSale(ctx, prov.ID, row.ID); err == nil {
			duplicates++
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return eris.Wrapf(err, "webhook: find sale %s", row.ID)
		}

		sale := row.TicketSale(prov.ID, model.SaleSourceWebhook)
		if sale.ExternalEventID == "" {
			sale.ExternalEventID = env.EventID
		}
		if sale.ExternalOccurrenceID == "" {
			sale.ExternalOccurrenceID = env.OccurrenceID
		}
		if sale.ExternalOrderID == "" {
			sale.ExternalOrderID = env.OrderID
		}
		if sale.ShowLinkID, err = resolveShowLink(sale.ExternalOccurrenceID); err != nil {
			return err
		}
		if sale.ShowLinkID != nil {
			entry.ShowLinkID = sale.ShowLinkID
		}
		if listing != nil {
			listingID := listing.ID
			sale.ListingID = &listingID
			tier, err := p.store.FindTier(ctx, listing.ID, sale.OfferID)
			switch {
			case err == nil:
				tierID := tier.ID
				sale.TierID = &tierID
			case !errors.Is(err, repository.ErrNotFound):
				return eris.Wrapf(err, "webhook: find tier for %s", sale.OfferID)
			}
		}

		created, err := p.store.RecordSale(ctx, sale)
		if err != nil {
			return eris.Wrapf(err, "webhook: record sale %s", row.ID)
		}
		if !created {
			// lost a race with a concurrent delivery or import
			duplicates++
			continue
		}
		res.Created++
		if p.notifier != nil {
			if err := p.notifier.SaleRecorded(ctx, *sale); err != nil {
				p.log.Warn("sale notification failed", zap.String("external_sale_id", sale.ExternalSaleID), zap.Error(err))
			}
		}
	}
	if res.Created == 0 && res.Refunded == 0 && duplicates > 0 {
		res.Duplicate = true
		res.Reason = "sales already recorded"
	}
	return nil
}

// handleRefund refunds every confirmed sale of the order, restoring the
// seats each one deducted.
func (p *Processor) handleRefund(ctx context.Context, prov *model.Provider, env *provider.WebhookEnvelope, res *Result) error {
	var sales []model.TicketSale
	if env.OrderID != "" {
		var err error
		sales, err = p.store.ListSalesByOrder(ctx, prov.ID, env.OrderID)
		if err != nil {
			return eris.Wrapf(err, "webhook: list sales for order %s", env.OrderID)
		}
	}
	if len(sales) == 0 {
		for _, row := range env.Sales {
			s, err := p.store.FindSale(ctx, prov.ID, row.ID)
			switch {
			case err == nil:
				sales = append(sales, *s)
			case !errors.Is(err, repository.ErrNotFound):
				return eris.Wrapf(err, "webhook: find sale %s", row.ID)
			}
		}
	}
	if len(sales) == 0 {
		res.Ignored = true
		res.Reason = "no recorded sales for order"
		return nil
	}

	at := p.now()
	for _, s := range sales {
		if s.Status == model.SaleRefunded {
			continue
		}
		ok, err := p.store.RefundSale(ctx, prov.ID, s.ExternalSaleID, at)
		if err != nil {
			return eris.Wrapf(err, "webhook: refund sale %s", s.ExternalSaleID)
		}
		if ok {
			res.Refunded++
		}
	}
	if res.Refunded == 0 {
		res.Duplicate = true
		res.Reason = "order already refunded"
	}
	return nil
}

// handleEvent applies listing lifecycle changes.
func (p *Processor) handleEvent(ctx context.Context, prov *model.Provider, env *provider.WebhookEnvelope, cat Category, entry *model.WebhookLog, res *Result) error {
	listing, err := p.store.FindListingByExternalEvent(ctx, prov.ID, env.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		res.Ignored = true
		res.Reason = fmt.Sprintf("no listing for event %s", env.EventID)
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "webhook: find listing")
	}
	entry.ListingID = &listing.ID

	switch cat {
	case CategoryEventPublish:
		changed, err := p.store.MarkListingApproved(ctx, listing.ID)
		if err != nil {
			return eris.Wrap(err, "webhook: approve listing")
		}
		if !changed {
			res.Reason = "listing not pending approval"
		}
	case CategoryEventCancel:
		if listing.Status == model.ListingEnded {
			res.Duplicate = true
			res.Reason = "listing already ended"
			return nil
		}
		if err := p.store.EndListing(ctx, listing.ID, p.now()); err != nil {
			return eris.Wrap(err, "webhook: end listing")
		}
	case CategoryEventUpdate:
		if err := p.store.FlagListingForReview(ctx, listing.ID); err != nil {
			return eris.Wrap(err, "webhook: flag listing")
		}
	}
	return nil
}

// payloadJSON keeps the body for the audit row; bodies that are not JSON
// are stored as a JSON string.
func payloadJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	s, _ := json.Marshal(string(b))
	return s
}
