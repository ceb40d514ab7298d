package autolink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/provider/providertest"
	"github.com/iliyamo/boxoffice-sync/internal/repository/memory"
	"github.com/iliyamo/boxoffice-sync/internal/showmatch"
)

const day = 24 * time.Hour

var testConfig = Config{
	NameWeight:        0.6,
	DateWeight:        0.4,
	DateTolerance:     7 * day,
	AutoLinkThreshold: 0.85,
	SuggestThreshold:  0.5,
	CandidateWindow:   730 * day,
	ShowLookback:      365 * day,
}

type fixture struct {
	store  *memory.Store
	fake   *providertest.Fake
	engine *Engine
	base   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	matcher := showmatch.New(store, showmatch.Config{
		Tolerance: 2 * time.Hour, AutoMatchThreshold: 0.9, PastWindow: 30 * day,
	}, zaptest.NewLogger(t))
	return &fixture{
		store:  store,
		fake:   providertest.New(),
		engine: New(store, matcher, testConfig, zaptest.NewLogger(t)),
		base:   time.Now().UTC().Truncate(day).Add(30*day + 19*time.Hour),
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestRun_ExactMatchLinksAndMatchesShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("Midnight Variety Hour", time.Now())
	show := f.store.AddShow(prod.ID, f.base)
	f.fake.Events = []provider.Event{{ID: "es_1", Name: "Midnight Variety Hour", FirstDate: ptr(f.base), LastDate: ptr(f.base)}}
	f.fake.Occurrences["es_1"] = []provider.Occurrence{{ID: "ev_1", EventID: "es_1", StartsAt: f.base}}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Linked, 1)
	assert.Empty(t, res.Pending)
	assert.InDelta(t, 1.0, res.Linked[0].Score.Confidence, 1e-9)
	assert.Equal(t, 1, res.Linked[0].ShowsMatched)

	link, err := f.store.FindProductionLinkByExternalID(ctx, 1, "es_1")
	require.NoError(t, err)
	assert.Equal(t, prod.ID, link.ProductionID)
	assert.True(t, link.SyncEnabled)

	links, err := f.store.ListShowLinks(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, show.ID, links[0].ShowID)
}

func TestRun_SubstringNameWithPartialOverlapIsSuggested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("The Variety Show", time.Now())
	f.store.AddShow(prod.ID, f.base.Add(4*day))
	f.store.AddShow(prod.ID, f.base.Add(19*day))
	f.fake.Events = []provider.Event{{ID: "es_2", Name: "Variety", FirstDate: ptr(f.base), LastDate: ptr(f.base.Add(10 * day))}}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Linked)
	require.Len(t, res.Pending, 1)
	assert.InDelta(t, 0.78, res.Pending[0].Score.Confidence, 1e-9)

	p, err := f.store.FindPendingEvent(ctx, 1, "es_2")
	require.NoError(t, err)
	require.NotNil(t, p.SuggestedProductionID)
	assert.Equal(t, prod.ID, *p.SuggestedProductionID)
	assert.Equal(t, model.PendingStatusPending, p.Status)

	_, err = f.store.FindProductionLinkByExternalID(ctx, 1, "es_2")
	assert.Error(t, err)
}

func TestRun_NoCandidateLeavesPendingWithoutSuggestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("Hamlet", time.Now())
	f.store.AddShow(prod.ID, f.base)
	f.fake.Events = []provider.Event{{ID: "es_3", Name: "Jazz Night", FirstDate: ptr(f.base.Add(60 * day))}}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Pending, 1)
	assert.Nil(t, res.Pending[0].Score)

	p, err := f.store.FindPendingEvent(ctx, 1, "es_3")
	require.NoError(t, err)
	assert.Nil(t, p.SuggestedProductionID)
	assert.Zero(t, p.Confidence)
}

func TestRun_OldProductionsAreNotCandidates(t *testing.T) {
	f := newFixture(t)
	f.store.AddProduction("Midnight Variety Hour", time.Now().Add(-800*day))
	f.fake.Events = []provider.Event{{ID: "es_1", Name: "Midnight Variety Hour"}}

	res, err := f.engine.Run(context.Background(), f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Pending, 1)
	assert.Nil(t, res.Pending[0].ProductionID)
}

func TestRun_RescoresPendingAndPromotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("Midnight Variety Hour", time.Now())
	f.fake.Events = []provider.Event{{ID: "es_1", Name: "Midnight Variety Hour", FirstDate: ptr(f.base)}}

	// no shows yet: name alone scores 0.6
	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Pending, 1)
	assert.InDelta(t, 0.6, res.Pending[0].Score.Confidence, 1e-9)

	f.store.AddShow(prod.ID, f.base)
	res, err = f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Linked, 1)

	p, err := f.store.FindPendingEvent(ctx, 1, "es_1")
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusMatched, p.Status)
	require.NotNil(t, p.ProductionLinkID)
	assert.Equal(t, *res.Linked[0].ProductionLinkID, *p.ProductionLinkID)
}

func TestRun_IgnoredPendingIsRefreshedNotRescored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.Events = []provider.Event{{ID: "es_9", Name: "Old Name"}}
	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Pending, 1)
	require.NoError(t, f.engine.Ignore(ctx, *res.Pending[0].PendingEventID))

	prod := f.store.AddProduction("New Name", time.Now())
	f.store.AddShow(prod.ID, f.base)
	f.fake.Events[0].Name = "New Name"
	f.fake.Events[0].FirstDate = ptr(f.base)

	res, err = f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Linked)
	require.Len(t, res.Updated, 1)

	p, err := f.store.FindPendingEvent(ctx, 1, "es_9")
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusIgnored, p.Status)
	assert.Equal(t, "New Name", p.Name)
}

func TestRun_ExistingLinkNameRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := &model.ProductionLink{ProviderID: 1, ProductionID: 7, ExternalEventID: "es_1", ExternalEventName: "Before"}
	require.NoError(t, f.store.CreateProductionLink(ctx, link))
	f.fake.Events = []provider.Event{
		{ID: "es_1", Name: "After"},
	}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Updated, 1)
	assert.Empty(t, res.Pending)

	got, err := f.store.GetProductionLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.ExternalEventName)

	// unchanged name is not reported again
	res, err = f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
}

func TestRun_PerEventFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("Midnight Variety Hour", time.Now())
	f.store.AddShow(prod.ID, f.base)
	f.fake.Events = []provider.Event{
		{ID: "es_1", Name: "Midnight Variety Hour", FirstDate: ptr(f.base)},
		{ID: "es_2", Name: "Something Else"},
	}
	f.fake.OccurrencesErr = &provider.APIError{Provider: "fake", StatusCode: 502, Message: "bad gateway"}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "es_1", res.Errors[0].ExternalEventID)
	assert.Len(t, res.Linked, 1)
	assert.Len(t, res.Pending, 1)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.fake.EventsErr = &provider.AuthenticationError{Provider: "fake", Message: "expired"}

	res, err := f.engine.Run(context.Background(), f.fake, 1)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, provider.IsAuthentication(err))
}

func TestConfirmAndIgnore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.store.AddProduction("Hamlet", time.Now())
	f.store.AddShow(prod.ID, f.base)
	f.fake.Events = []provider.Event{{ID: "es_5", Name: "Unrelated"}}
	f.fake.Occurrences["es_5"] = []provider.Occurrence{{ID: "ev_5", StartsAt: f.base.Add(5 * time.Minute)}}

	res, err := f.engine.Run(ctx, f.fake, 1)
	require.NoError(t, err)
	require.Len(t, res.Pending, 1)
	id := *res.Pending[0].PendingEventID

	c, err := f.engine.Confirm(ctx, f.fake, id, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, prod.ID, c.Link.ProductionID)
	assert.Equal(t, 1, c.ShowsMatched)
	assert.Empty(t, c.MatchError)

	p, err := f.store.GetPendingEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusMatched, p.Status)

	_, err = f.engine.Confirm(ctx, f.fake, id, prod.ID)
	assert.True(t, errors.Is(err, ErrAlreadyLinked))
	assert.True(t, errors.Is(f.engine.Ignore(ctx, id), ErrAlreadyLinked))
}
