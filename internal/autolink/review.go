package autolink

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
)

// ErrAlreadyLinked is returned when reviewing a pending event that has
// already been matched.
var ErrAlreadyLinked = errors.New("pending event already linked")

// Confirmation is the result of an operator confirming a suggestion.
type Confirmation struct {
	Link         *model.ProductionLink `json:"production_link"`
	ShowsMatched int                   `json:"shows_matched"`
	// MatchError is set when the link was created but show matching failed.
	MatchError string `json:"match_error,omitempty"`
}

// Confirm links a pending event to productionID, marks it matched and runs
// show auto-matching on the new link.  An ignored event may still be
// confirmed.
func (e *Engine) Confirm(ctx context.Context, adapter provider.Adapter, pendingID, productionID uint64) (*Confirmation, error) {
	p, err := e.store.GetPendingEvent(ctx, pendingID)
	if err != nil {
		return nil, eris.Wrapf(err, "autolink: load pending event %d", pendingID)
	}
	if p.Status == model.PendingStatusMatched {
		return nil, ErrAlreadyLinked
	}

	l := &model.ProductionLink{
		ProviderID:        p.ProviderID,
		ProductionID:      productionID,
		ExternalEventID:   p.ExternalEventID,
		ExternalEventName: p.Name,
		ExternalEventURL:  p.URL,
		RawPayload:        p.RawPayload,
		SyncEnabled:       true,
		SyncTicketSales:   true,
	}
	if err := e.store.CreateProductionLink(ctx, l); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyLinked
		}
		return nil, eris.Wrap(err, "autolink: create production link")
	}

	p.Status = model.PendingStatusMatched
	p.ProductionLinkID = &l.ID
	if err := e.store.UpdatePendingEvent(ctx, p); err != nil {
		return nil, eris.Wrap(err, "autolink: resolve pending event")
	}
	e.log.Info("pending event confirmed",
		zap.Uint64("pending_event_id", p.ID),
		zap.Uint64("production_id", productionID))

	c := &Confirmation{Link: l}
	n, err := e.autoMatch(ctx, adapter, l)
	if err != nil {
		e.log.Warn("auto match after confirm failed", zap.Uint64("production_link_id", l.ID), zap.Error(err))
		c.MatchError = err.Error()
	}
	c.ShowsMatched = n
	return c, nil
}

// Ignore marks a pending event as ignored.  Ignored events keep their
// cached fields fresh on later runs but are never re-scored.
func (e *Engine) Ignore(ctx context.Context, pendingID uint64) error {
	p, err := e.store.GetPendingEvent(ctx, pendingID)
	if err != nil {
		return eris.Wrapf(err, "autolink: load pending event %d", pendingID)
	}
	if p.Status == model.PendingStatusMatched {
		return ErrAlreadyLinked
	}
	if p.Status == model.PendingStatusIgnored {
		return nil
	}
	p.Status = model.PendingStatusIgnored
	if err := e.store.UpdatePendingEvent(ctx, p); err != nil {
		return eris.Wrap(err, "autolink: ignore pending event")
	}
	return nil
}
