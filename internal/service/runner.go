// Package service wires the sync components to storage and to provider
// adapters.  The HTTP handlers, the queue worker and the CLI all drive the
// engine through a Runner.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/iliyamo/boxoffice-sync/internal/autolink"
	"github.com/iliyamo/boxoffice-sync/internal/config"
	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/queue"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
	"github.com/iliyamo/boxoffice-sync/internal/salesimport"
	"github.com/iliyamo/boxoffice-sync/internal/showmatch"
	"github.com/iliyamo/boxoffice-sync/internal/webhook"
)

var (
	// ErrProviderInactive is returned for runs against a disabled provider.
	ErrProviderInactive = errors.New("service: provider is inactive")
	// ErrUnknownKind is returned for sync requests of an unknown kind.
	ErrUnknownKind = errors.New("service: unknown sync kind")
)

// AdapterFactory builds the adapter of a provider record.
type AdapterFactory func(p *model.Provider, opts ...provider.Option) (provider.Adapter, error)

// Runner runs sync jobs and webhook deliveries against one store.
type Runner struct {
	store      repository.Store
	cfg        config.SyncConfig
	tokens     provider.TokenStore
	notifier   webhook.SaleNotifier
	invalidate func(context.Context) error
	newAdapter AdapterFactory
	log        *zap.Logger

	AutoLink *autolink.Engine
	Matcher  *showmatch.Matcher
	Importer *salesimport.Importer
	Webhooks *webhook.Processor

	now func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTokenStore shares OAuth tokens between processes.
func WithTokenStore(ts provider.TokenStore) RunnerOption {
	return func(r *Runner) { r.tokens = ts }
}

// WithSaleNotifier publishes newly recorded webhook sales.
func WithSaleNotifier(n webhook.SaleNotifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithPendingInvalidator is called after auto-link runs change pending
// events, so cached pending listings are dropped.
func WithPendingInvalidator(f func(context.Context) error) RunnerOption {
	return func(r *Runner) { r.invalidate = f }
}

// WithAdapterFactory replaces provider.New, mainly for tests.
func WithAdapterFactory(f AdapterFactory) RunnerOption {
	return func(r *Runner) { r.newAdapter = f }
}

// NewRunner builds the components from cfg.
func NewRunner(store repository.Store, cfg config.SyncConfig, log *zap.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	matcher := showmatch.New(store, showmatch.Config{
		Tolerance:          cfg.ShowMatchTolerance,
		AutoMatchThreshold: cfg.AutoMatchThreshold,
		PastWindow:         cfg.ShowMatchPastWindow,
	}, log)
	r := &Runner{
		store:      store,
		cfg:        cfg,
		newAdapter: provider.New,
		log:        log.Named("runner"),
		Matcher:    matcher,
		AutoLink: autolink.New(store, matcher, autolink.Config{
			NameWeight:        cfg.NameWeight,
			DateWeight:        cfg.DateWeight,
			DateTolerance:     cfg.DateTolerance,
			AutoLinkThreshold: cfg.AutoLinkThreshold,
			SuggestThreshold:  cfg.SuggestThreshold,
			CandidateWindow:   cfg.CandidateWindow,
			ShowLookback:      cfg.ShowLookback,
		}, log),
		Importer: salesimport.New(store, salesimport.Config{Window: cfg.SalesImportWindow}, log),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Webhooks = webhook.New(store, r.notifier, log)
	return r
}

// Adapter loads a provider and builds its adapter.
func (r *Runner) Adapter(ctx context.Context, providerID uint64) (*model.Provider, provider.Adapter, error) {
	p, err := r.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "service: load provider %d", providerID)
	}
	if !p.Active {
		return p, nil, ErrProviderInactive
	}
	a, err := r.adapterFor(p)
	return p, a, err
}

func (r *Runner) adapterFor(p *model.Provider) (provider.Adapter, error) {
	opts := []provider.Option{
		provider.WithTimeout(r.cfg.ProviderTimeout),
		provider.WithRateLimit(r.cfg.ProviderRPS, r.cfg.ProviderBurst),
		provider.WithLogger(r.log),
		provider.WithTokenPersister(r.persistToken),
	}
	if r.tokens != nil {
		opts = append(opts, provider.WithTokenStore(r.tokens))
	}
	return r.newAdapter(p, opts...)
}

// persistToken writes a refreshed OAuth token back to the provider row.
func (r *Runner) persistToken(ctx context.Context, providerID uint64, tok *oauth2.Token) error {
	var exp *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		exp = &e
	}
	return r.store.UpdateProviderTokens(ctx, providerID, tok.AccessToken, tok.RefreshToken, exp)
}

func (r *Runner) link(ctx context.Context, linkID uint64) (*model.ProductionLink, *model.Provider, provider.Adapter, error) {
	l, err := r.store.GetProductionLink(ctx, linkID)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "service: load production link %d", linkID)
	}
	p, a, err := r.Adapter(ctx, l.ProviderID)
	return l, p, a, err
}

// startLog opens a sync log; failures only cost the audit row.
func (r *Runner) startLog(ctx context.Context, providerID uint64, linkID *uint64, kind, trigger string) *model.SyncLog {
	sl := &model.SyncLog{ProviderID: providerID, ProductionLinkID: linkID, Kind: kind, Trigger: trigger, StartedAt: r.now()}
	if err := r.store.StartSyncLog(ctx, sl); err != nil {
		r.log.Error("start sync log", zap.String("kind", kind), zap.Error(err))
		return nil
	}
	return sl
}

func (r *Runner) finishLog(ctx context.Context, sl *model.SyncLog, updated, failed int, runErr error) {
	if sl == nil {
		return
	}
	var err error
	if runErr != nil {
		err = r.store.FailSyncLog(ctx, sl.ID, updated, failed, runErr.Error(), r.now())
	} else {
		err = r.store.CompleteSyncLog(ctx, sl.ID, updated, failed, r.now())
	}
	if err != nil {
		r.log.Error("finish sync log", zap.Uint64("sync_log_id", sl.ID), zap.Error(err))
	}
}

func (r *Runner) recordProviderFailure(ctx context.Context, providerID uint64, cause error) {
	msg := cause.Error()
	if err := r.store.RecordProviderSync(ctx, providerID, model.SyncStatusFailed, &msg, r.now()); err != nil {
		r.log.Error("record provider sync", zap.Uint64("provider_id", providerID), zap.Error(err))
	}
}

// RunAutoLink runs the auto-link engine for a provider.
func (r *Runner) RunAutoLink(ctx context.Context, providerID uint64, trigger string) (*autolink.Result, error) {
	p, a, err := r.Adapter(ctx, providerID)
	if err != nil {
		if p != nil && provider.IsTopLevel(err) {
			r.recordProviderFailure(ctx, p.ID, err)
		}
		return nil, err
	}
	sl := r.startLog(ctx, p.ID, nil, model.SyncKindAutoLink, trigger)
	res, err := r.AutoLink.Run(ctx, a, p.ID)
	if err != nil {
		r.finishLog(ctx, sl, 0, 0, err)
		if provider.IsTopLevel(err) {
			r.recordProviderFailure(ctx, p.ID, err)
		}
		return nil, err
	}
	r.finishLog(ctx, sl, len(res.Linked)+len(res.Pending)+len(res.Updated), len(res.Errors), nil)
	if r.invalidate != nil {
		if err := r.invalidate(ctx); err != nil {
			r.log.Warn("invalidate pending cache", zap.Error(err))
		}
	}
	return res, nil
}

// AnalyzeShows proposes show matches for a production link.
func (r *Runner) AnalyzeShows(ctx context.Context, linkID uint64) (*showmatch.Analysis, error) {
	l, _, a, err := r.link(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return r.Matcher.Analyze(ctx, a, l)
}

// ApplyShowMatches applies operator-chosen matches.
func (r *Runner) ApplyShowMatches(ctx context.Context, linkID uint64, matches []showmatch.Match) (int, error) {
	l, err := r.store.GetProductionLink(ctx, linkID)
	if err != nil {
		return 0, eris.Wrapf(err, "service: load production link %d", linkID)
	}
	return r.Matcher.ApplyMatches(ctx, l, matches, model.MatchManual)
}

// RunShowMatch auto-matches the shows of a production link.
func (r *Runner) RunShowMatch(ctx context.Context, linkID uint64, trigger string) (*showmatch.AutoMatchResult, error) {
	l, _, a, err := r.link(ctx, linkID)
	if err != nil {
		return nil, err
	}
	sl := r.startLog(ctx, l.ProviderID, &l.ID, model.SyncKindShowMatch, trigger)
	res, err := r.Matcher.AutoMatch(ctx, a, l)
	if err != nil {
		r.finishLog(ctx, sl, 0, 0, err)
		return nil, err
	}
	r.finishLog(ctx, sl, res.Applied, 0, nil)
	return res, nil
}

// RunSalesImport imports sales for a production link.
func (r *Runner) RunSalesImport(ctx context.Context, linkID uint64, trigger string) (*salesimport.Result, error) {
	l, p, a, err := r.link(ctx, linkID)
	if err != nil {
		if p != nil && provider.IsTopLevel(err) {
			r.recordProviderFailure(ctx, p.ID, err)
		}
		return nil, err
	}
	return r.Importer.Run(ctx, a, l, trigger)
}

// LinkOutcome is the per-link part of a full run.
type LinkOutcome struct {
	ProductionLinkID uint64                     `json:"production_link_id"`
	ShowMatch        *showmatch.AutoMatchResult `json:"show_match,omitempty"`
	Sales            *salesimport.Result        `json:"sales,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// FullResult summarises RunFull.
type FullResult struct {
	AutoLink *autolink.Result `json:"auto_link"`
	Links    []LinkOutcome    `json:"links"`
}

// RunFull runs auto-link for a provider, then show matching and sales
// import for each of its sync-enabled links.  A failing link does not stop
// the others; an authentication or rate-limit failure stops the run.
func (r *Runner) RunFull(ctx context.Context, providerID uint64, trigger string) (*FullResult, error) {
	al, err := r.RunAutoLink(ctx, providerID, trigger)
	if err != nil {
		return nil, err
	}
	out := &FullResult{AutoLink: al, Links: []LinkOutcome{}}
	links, err := r.store.ListProductionLinks(ctx, providerID)
	if err != nil {
		return out, eris.Wrap(err, "service: list production links")
	}
	for _, l := range links {
		if !l.SyncEnabled {
			continue
		}
		lo := LinkOutcome{ProductionLinkID: l.ID}
		lo.ShowMatch, err = r.RunShowMatch(ctx, l.ID, trigger)
		if err == nil {
			lo.Sales, err = r.RunSalesImport(ctx, l.ID, trigger)
		}
		if err != nil {
			lo.Error = err.Error()
			out.Links = append(out.Links, lo)
			if provider.IsTopLevel(err) {
				return out, err
			}
			r.log.Warn("link sync failed", zap.Uint64("production_link_id", l.ID), zap.Error(err))
			continue
		}
		out.Links = append(out.Links, lo)
	}
	return out, nil
}

// ConfirmPending links a pending event to a production.
func (r *Runner) ConfirmPending(ctx context.Context, pendingID, productionID uint64) (*autolink.Confirmation, error) {
	pe, err := r.store.GetPendingEvent(ctx, pendingID)
	if err != nil {
		return nil, eris.Wrapf(err, "service: load pending event %d", pendingID)
	}
	_, a, err := r.Adapter(ctx, pe.ProviderID)
	if err != nil {
		// the link is still worth creating; shows can be matched later
		r.log.Warn("confirm without adapter", zap.Uint64("provider_id", pe.ProviderID), zap.Error(err))
	}
	return r.AutoLink.Confirm(ctx, a, pendingID, productionID)
}

// IgnorePending marks a pending event ignored.
func (r *Runner) IgnorePending(ctx context.Context, pendingID uint64) error {
	return r.AutoLink.Ignore(ctx, pendingID)
}

// Provider loads a provider record.
func (r *Runner) Provider(ctx context.Context, providerID uint64) (*model.Provider, error) {
	return r.store.GetProvider(ctx, providerID)
}

// HandleWebhook processes a delivery for an already loaded provider.
func (r *Runner) HandleWebhook(ctx context.Context, p *model.Provider, d webhook.Delivery) webhook.Result {
	a, err := r.adapterFor(p)
	if err != nil {
		return webhook.Result{DeliveryID: d.ID, Error: err.Error()}
	}
	return r.Webhooks.Process(ctx, p, a, d)
}

// Dispatch executes a queued sync request.
func (r *Runner) Dispatch(ctx context.Context, req queue.SyncRequest) error {
	trigger := req.Trigger
	if trigger == "" {
		trigger = model.TriggerScheduled
	}
	var err error
	switch req.Kind {
	case queue.KindAutoLink:
		_, err = r.RunAutoLink(ctx, req.ProviderID, trigger)
	case queue.KindShowMatch:
		_, err = r.RunShowMatch(ctx, req.ProductionLinkID, trigger)
	case queue.KindSalesImport:
		_, err = r.RunSalesImport(ctx, req.ProductionLinkID, trigger)
	case queue.KindFull:
		_, err = r.RunFull(ctx, req.ProviderID, trigger)
	default:
		return eris.Wrapf(ErrUnknownKind, "service: kind %q", req.Kind)
	}
	return err
}
