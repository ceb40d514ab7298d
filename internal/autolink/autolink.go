// Package autolink matches a provider's external events against internal
// productions.  Confident matches become production links straight away;
// everything else is parked as a pending event for an operator to review.
package autolink

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/matching"
	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
	"github.com/iliyamo/boxoffice-sync/internal/showmatch"
)

// Store is the storage the engine needs.
type Store interface {
	ListCandidateProductions(ctx context.Context, createdSince, showsSince time.Time) ([]model.ProductionCandidate, error)

	FindProductionLinkByExternalID(ctx context.Context, providerID uint64, externalEventID string) (*model.ProductionLink, error)
	CreateProductionLink(ctx context.Context, l *model.ProductionLink) error
	UpdateProductionLinkName(ctx context.Context, id uint64, name, url string) error

	GetPendingEvent(ctx context.Context, id uint64) (*model.PendingEvent, error)
	FindPendingEvent(ctx context.Context, providerID uint64, externalEventID string) (*model.PendingEvent, error)
	CreatePendingEvent(ctx context.Context, p *model.PendingEvent) error
	UpdatePendingEvent(ctx context.Context, p *model.PendingEvent) error
}

// ShowMatcher runs show auto-matching on a freshly created link.
type ShowMatcher interface {
	AutoMatch(ctx context.Context, adapter provider.Adapter, link *model.ProductionLink) (*showmatch.AutoMatchResult, error)
}

// Config holds the scoring weights and thresholds.
type Config struct {
	NameWeight        float64
	DateWeight        float64
	DateTolerance     time.Duration
	AutoLinkThreshold float64
	SuggestThreshold  float64
	CandidateWindow   time.Duration
	ShowLookback      time.Duration
}

// Outcome describes what happened to one external event.
type Outcome struct {
	ExternalEventID  string          `json:"external_event_id"`
	Name             string          `json:"name"`
	ProductionID     *uint64         `json:"production_id,omitempty"`
	ProductionLinkID *uint64         `json:"production_link_id,omitempty"`
	PendingEventID   *uint64         `json:"pending_event_id,omitempty"`
	Score            *matching.Score `json:"score,omitempty"`
	ShowsMatched     int             `json:"shows_matched,omitempty"`
}

// ItemError is a failure confined to one external event.
type ItemError struct {
	ExternalEventID string `json:"external_event_id"`
	Error           string `json:"error"`
}

// Result summarises a run.
type Result struct {
	Linked  []Outcome   `json:"linked"`
	Pending []Outcome   `json:"pending"`
	Updated []Outcome   `json:"updated"`
	Errors  []ItemError `json:"errors"`
}

type bucket int

const (
	bucketNone bucket = iota
	bucketLinked
	bucketPending
	bucketUpdated
)

// suggestion is the best-scoring production for an event.
type suggestion struct {
	productionID uint64
	score        matching.Score
}

// Engine runs auto-linking for one provider at a time.
type Engine struct {
	store   Store
	matcher ShowMatcher
	cfg     Config
	scorer  matching.Scorer
	log     *zap.Logger
	now     func() time.Time
}

// New constructs an Engine.  matcher may be nil, in which case new links
// are left for a later show-match run.
func New(store Store, matcher ShowMatcher, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   store,
		matcher: matcher,
		cfg:     cfg,
		scorer:  matching.Scorer{NameWeight: cfg.NameWeight, DateWeight: cfg.DateWeight, DateTolerance: cfg.DateTolerance},
		log:     log.Named("autolink"),
		now:     time.Now,
	}
}

// Run processes every external event of the provider.  Failing to list
// the events or the candidate productions aborts the run; a failure on a
// single event is recorded in Result.Errors and the run moves on.
func (e *Engine) Run(ctx context.Context, adapter provider.Adapter, providerID uint64) (*Result, error) {
	events, err := adapter.FetchEvents(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "autolink: fetch events")
	}
	now := e.now()
	candidates, err := e.store.ListCandidateProductions(ctx, now.Add(-e.cfg.CandidateWindow), now.Add(-e.cfg.ShowLookback))
	if err != nil {
		return nil, eris.Wrap(err, "autolink: list candidate productions")
	}

	res := &Result{Linked: []Outcome{}, Pending: []Outcome{}, Updated: []Outcome{}, Errors: []ItemError{}}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		b, out, err := e.processEvent(ctx, adapter, providerID, ev, candidates)
		if err != nil {
			e.log.Warn("event failed", zap.String("external_event_id", ev.ID), zap.Error(err))
			res.Errors = append(res.Errors, ItemError{ExternalEventID: ev.ID, Error: err.Error()})
		}
		switch b {
		case bucketLinked:
			res.Linked = append(res.Linked, out)
		case bucketPending:
			res.Pending = append(res.Pending, out)
		case bucketUpdated:
			res.Updated = append(res.Updated, out)
		}
	}

	e.log.Info("auto link finished",
		zap.Uint64("provider_id", providerID),
		zap.Int("events", len(events)),
		zap.Int("linked", len(res.Linked)),
		zap.Int("pending", len(res.Pending)),
		zap.Int("updated", len(res.Updated)),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

func (e *Engine) processEvent(ctx context.Context, adapter provider.Adapter, providerID uint64, ev provider.Event, candidates []model.ProductionCandidate) (bucket, Outcome, error) {
	out := Outcome{ExternalEventID: ev.ID, Name: ev.Name}

	link, err := e.store.FindProductionLinkByExternalID(ctx, providerID, ev.ID)
	switch {
	case err == nil:
		return e.refreshLink(ctx, link, ev, out)
	case !errors.Is(err, repository.ErrNotFound):
		return bucketNone, out, eris.Wrap(err, "autolink: find production link")
	}

	pending, err := e.store.FindPendingEvent(ctx, providerID, ev.ID)
	switch {
	case err == nil:
		return e.refreshPending(ctx, adapter, pending, ev, candidates, out)
	case !errors.Is(err, repository.ErrNotFound):
		return bucketNone, out, eris.Wrap(err, "autolink: find pending event")
	}

	best := e.bestMatch(ev, candidates)
	if best != nil && best.score.Confidence >= e.cfg.AutoLinkThreshold {
		return e.link(ctx, adapter, providerID, ev, best, nil, out)
	}

	p := &model.PendingEvent{ProviderID: providerID, Status: model.PendingStatusPending}
	applyEvent(p, ev)
	applySuggestion(p, best)
	if err := e.store.CreatePendingEvent(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// created concurrently; treat it as an existing row
			existing, ferr := e.store.FindPendingEvent(ctx, providerID, ev.ID)
			if ferr != nil {
				return bucketNone, out, eris.Wrap(ferr, "autolink: reload pending event")
			}
			return e.refreshPending(ctx, adapter, existing, ev, candidates, out)
		}
		return bucketNone, out, eris.Wrap(err, "autolink: create pending event")
	}
	out.PendingEventID = &p.ID
	if best != nil {
		out.ProductionID = &best.productionID
		out.Score = &best.score
	}
	return bucketPending, out, nil
}

// refreshLink keeps the cached name and url of an existing link current.
func (e *Engine) refreshLink(ctx context.Context, link *model.ProductionLink, ev provider.Event, out Outcome) (bucket, Outcome, error) {
	out.ProductionLinkID = &link.ID
	out.ProductionID = &link.ProductionID
	if link.ExternalEventName == ev.Name && link.ExternalEventURL == ev.URL {
		return bucketNone, out, nil
	}
	if err := e.store.UpdateProductionLinkName(ctx, link.ID, ev.Name, ev.URL); err != nil {
		return bucketNone, out, eris.Wrap(err, "autolink: update link name")
	}
	return bucketUpdated, out, nil
}

// refreshPending updates the cached fields of a pending event and, while
// it is still unresolved, re-scores it.
func (e *Engine) refreshPending(ctx context.Context, adapter provider.Adapter, p *model.PendingEvent, ev provider.Event, candidates []model.ProductionCandidate, out Outcome) (bucket, Outcome, error) {
	out.PendingEventID = &p.ID
	applyEvent(p, ev)

	if p.Status == model.PendingStatusPending {
		best := e.bestMatch(ev, candidates)
		if best != nil && best.score.Confidence >= e.cfg.AutoLinkThreshold {
			return e.link(ctx, adapter, p.ProviderID, ev, best, p, out)
		}
		applySuggestion(p, best)
		if best != nil {
			out.ProductionID = &best.productionID
			out.Score = &best.score
		}
	}
	if err := e.store.UpdatePendingEvent(ctx, p); err != nil {
		return bucketNone, out, eris.Wrap(err, "autolink: update pending event")
	}
	return bucketUpdated, out, nil
}

// link creates the production link for a confident match, resolves the
// pending event if there is one and runs show auto-matching.
func (e *Engine) link(ctx context.Context, adapter provider.Adapter, providerID uint64, ev provider.Event, best *suggestion, pending *model.PendingEvent, out Outcome) (bucket, Outcome, error) {
	l := &model.ProductionLink{
		ProviderID:        providerID,
		ProductionID:      best.productionID,
		ExternalEventID:   ev.ID,
		ExternalEventName: ev.Name,
		ExternalEventURL:  ev.URL,
		RawPayload:        ev.Raw,
		SyncEnabled:       true,
		SyncTicketSales:   true,
	}
	if err := e.store.CreateProductionLink(ctx, l); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return bucketNone, out, eris.Wrap(err, "autolink: create production link")
		}
		existing, ferr := e.store.FindProductionLinkByExternalID(ctx, providerID, ev.ID)
		if ferr != nil {
			return bucketNone, out, eris.Wrap(ferr, "autolink: reload production link")
		}
		return e.refreshLink(ctx, existing, ev, out)
	}
	out.ProductionLinkID = &l.ID
	out.ProductionID = &l.ProductionID
	out.Score = &best.score

	if pending != nil {
		pending.Status = model.PendingStatusMatched
		pending.ProductionLinkID = &l.ID
		applySuggestion(pending, best)
		if err := e.store.UpdatePendingEvent(ctx, pending); err != nil {
			return bucketLinked, out, eris.Wrap(err, "autolink: resolve pending event")
		}
	}

	e.log.Info("event linked",
		zap.String("external_event_id", ev.ID),
		zap.Uint64("production_id", l.ProductionID),
		zap.Float64("confidence", best.score.Confidence))

	n, err := e.autoMatch(ctx, adapter, l)
	out.ShowsMatched = n
	return bucketLinked, out, err
}

func (e *Engine) autoMatch(ctx context.Context, adapter provider.Adapter, l *model.ProductionLink) (int, error) {
	if e.matcher == nil || adapter == nil {
		return 0, nil
	}
	r, err := e.matcher.AutoMatch(ctx, adapter, l)
	if err != nil {
		return 0, eris.Wrapf(err, "autolink: auto match link %d", l.ID)
	}
	return r.Applied, nil
}

// bestMatch returns the highest scoring candidate, or nil when none
// reaches the suggestion threshold.  Ties keep the earlier candidate.
func (e *Engine) bestMatch(ev provider.Event, candidates []model.ProductionCandidate) *suggestion {
	var evRange *matching.Range
	if r, ok := matching.NewRange(ev.FirstDate, ev.LastDate); ok {
		evRange = &r
	}

	var best *suggestion
	for _, c := range candidates {
		var prodRange *matching.Range
		if r, ok := matching.NewRange(c.FirstShowAt, c.LastShowAt); ok {
			prodRange = &r
		}
		sc := e.scorer.Score(ev.Name, c.Name, evRange, prodRange)
		if best == nil || sc.Confidence > best.score.Confidence {
			best = &suggestion{productionID: c.ID, score: sc}
		}
	}
	if best == nil || best.score.Confidence < e.cfg.SuggestThreshold {
		return nil
	}
	return best
}

func applyEvent(p *model.PendingEvent, ev provider.Event) {
	p.ExternalEventID = ev.ID
	p.Name = ev.Name
	p.URL = ev.URL
	p.OccurrenceCount = ev.OccurrenceCount
	p.FirstDate = ev.FirstDate
	p.LastDate = ev.LastDate
	p.RawPayload = ev.Raw
}

func applySuggestion(p *model.PendingEvent, s *suggestion) {
	if s == nil {
		p.SuggestedProductionID = nil
		p.Confidence = 0
		return
	}
	id := s.productionID
	p.SuggestedProductionID = &id
	p.Confidence = s.score.Confidence
}
