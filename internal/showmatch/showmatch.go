// Package showmatch pairs the internal shows of a linked production with
// the provider's occurrences of the linked event by start time.
package showmatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
)

// Store is the storage the matcher needs.
type Store interface {
	ListShowsForProduction(ctx context.Context, productionID uint64, since time.Time) ([]model.Show, error)
	ListShowLinks(ctx context.Context, productionLinkID uint64) ([]model.ShowLink, error)
	CreateShowLink(ctx context.Context, l *model.ShowLink) error
}

// Config holds the matching tolerances.
type Config struct {
	// Tolerance is the largest start-time difference that still matches.
	Tolerance time.Duration
	// AutoMatchThreshold is the confidence AutoMatch requires.
	AutoMatchThreshold float64
	// PastWindow limits matching to shows starting no earlier than this
	// long ago.
	PastWindow time.Duration
}

// Match is a proposed show-to-occurrence pairing.
type Match struct {
	ShowID             uint64    `json:"show_id"`
	ShowStartsAt       time.Time `json:"show_starts_at"`
	OccurrenceID       string    `json:"occurrence_id"`
	OccurrenceStartsAt time.Time `json:"occurrence_starts_at"`
	Confidence         float64   `json:"confidence"`
}

// Analysis is the outcome of Analyze.
type Analysis struct {
	ProductionLinkID     uint64                `json:"production_link_id"`
	Matches              []Match               `json:"matches"`
	UnmatchedShows       []model.Show          `json:"unmatched_shows"`
	UnmatchedOccurrences []provider.Occurrence `json:"unmatched_occurrences"`
}

// AutoMatchResult summarises an AutoMatch run.
type AutoMatchResult struct {
	Proposed             int `json:"proposed"`
	Applied              int `json:"applied"`
	BelowThreshold       int `json:"below_threshold"`
	UnmatchedShows       int `json:"unmatched_shows"`
	UnmatchedOccurrences int `json:"unmatched_occurrences"`
}

// Matcher runs show matching for production links.
type Matcher struct {
	store Store
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// New constructs a Matcher.
func New(store Store, cfg Config, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{store: store, cfg: cfg, log: log.Named("showmatch"), now: time.Now}
}

// confidenceFor maps an absolute start-time difference to a confidence.
func confidenceFor(diff time.Duration) float64 {
	switch {
	case diff < time.Minute:
		return 1.0
	case diff < 15*time.Minute:
		return 0.95
	case diff < time.Hour:
		return 0.8
	default:
		return 0.6
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Analyze proposes matches for the unlinked shows of a production link.
// Shows are taken in order and each takes the first unlinked occurrence
// within tolerance, so no occurrence is proposed twice.
func (m *Matcher) Analyze(ctx context.Context, adapter provider.Adapter, link *model.ProductionLink) (*Analysis, error) {
	occurrences, err := adapter.FetchOccurrences(ctx, link.ExternalEventID)
	if err != nil {
		return nil, eris.Wrapf(err, "showmatch: fetch occurrences for %s", link.ExternalEventID)
	}
	shows, err := m.store.ListShowsForProduction(ctx, link.ProductionID, m.now().Add(-m.cfg.PastWindow))
	if err != nil {
		return nil, eris.Wrap(err, "showmatch: list shows")
	}
	existing, err := m.store.ListShowLinks(ctx, link.ID)
	if err != nil {
		return nil, eris.Wrap(err, "showmatch: list show links")
	}

	linkedShows := make(map[uint64]bool, len(existing))
	linkedOccurrences := make(map[string]bool, len(existing))
	for _, l := range existing {
		linkedShows[l.ShowID] = true
		linkedOccurrences[l.ExternalOccurrenceID] = true
	}

	pool := make([]provider.Occurrence, 0, len(occurrences))
	for _, o := range occurrences {
		if !linkedOccurrences[o.ID] {
			pool = append(pool, o)
		}
	}

	out := &Analysis{ProductionLinkID: link.ID}
	for _, show := range shows {
		if linkedShows[show.ID] {
			continue
		}
		idx := -1
		for i, o := range pool {
			if absDuration(o.StartsAt.Sub(show.StartsAt)) <= m.cfg.Tolerance {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.UnmatchedShows = append(out.UnmatchedShows, show)
			continue
		}
		occ := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		out.Matches = append(out.Matches, Match{
			ShowID:             show.ID,
			ShowStartsAt:       show.StartsAt,
			OccurrenceID:       occ.ID,
			OccurrenceStartsAt: occ.StartsAt,
			Confidence:         confidenceFor(absDuration(occ.StartsAt.Sub(show.StartsAt))),
		})
	}
	out.UnmatchedOccurrences = pool
	return out, nil
}

// ApplyMatches creates a show link per match and returns how many were
// created.  Matches whose show or occurrence is already linked are
// skipped, so applying the same matches twice is harmless.  So are
// matches naming a show of another production or no occurrence.
func (m *Matcher) ApplyMatches(ctx context.Context, link *model.ProductionLink, matches []Match, method string) (int, error) {
	shows, err := m.store.ListShowsForProduction(ctx, link.ProductionID, time.Unix(0, 0).UTC())
	if err != nil {
		return 0, eris.Wrap(err, "showmatch: list shows")
	}
	own := make(map[uint64]bool, len(shows))
	for _, s := range shows {
		own[s.ID] = true
	}
	existing, err := m.store.ListShowLinks(ctx, link.ID)
	if err != nil {
		return 0, eris.Wrap(err, "showmatch: list show links")
	}
	linked := make(map[uint64]bool, len(existing))
	taken := make(map[string]bool, len(existing))
	for _, l := range existing {
		linked[l.ShowID] = true
		taken[l.ExternalOccurrenceID] = true
	}

	applied := 0
	for _, mt := range matches {
		occurrenceID := strings.TrimSpace(mt.OccurrenceID)
		if !own[mt.ShowID] || occurrenceID == "" {
			m.log.Warn("rejected show match",
				zap.Uint64("production_link_id", link.ID),
				zap.Uint64("show_id", mt.ShowID), zap.String("occurrence_id", mt.OccurrenceID))
			continue
		}
		if linked[mt.ShowID] || taken[occurrenceID] {
			continue
		}
		sl := &model.ShowLink{
			ProductionLinkID:     link.ID,
			ShowID:               mt.ShowID,
			ExternalOccurrenceID: occurrenceID,
			MatchConfidence:      mt.Confidence,
			MatchMethod:          method,
			SyncStatus:           model.ShowSyncPending,
		}
		if err := m.store.CreateShowLink(ctx, sl); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				m.log.Debug("show link already exists",
					zap.Uint64("show_id", mt.ShowID), zap.String("occurrence_id", mt.OccurrenceID))
				continue
			}
			return applied, eris.Wrapf(err, "showmatch: create show link for show %d", mt.ShowID)
		}
		linked[mt.ShowID] = true
		taken[occurrenceID] = true
		applied++
	}
	return applied, nil
}

// AutoMatch applies the proposals that reach the auto-match threshold.
func (m *Matcher) AutoMatch(ctx context.Context, adapter provider.Adapter, link *model.ProductionLink) (*AutoMatchResult, error) {
	a, err := m.Analyze(ctx, adapter, link)
	if err != nil {
		return nil, err
	}
	res := &AutoMatchResult{
		Proposed:             len(a.Matches),
		UnmatchedShows:       len(a.UnmatchedShows),
		UnmatchedOccurrences: len(a.UnmatchedOccurrences),
	}
	var confident []Match
	for _, mt := range a.Matches {
		if mt.Confidence >= m.cfg.AutoMatchThreshold {
			confident = append(confident, mt)
		} else {
			res.BelowThreshold++
		}
	}
	res.Applied, err = m.ApplyMatches(ctx, link, confident, model.MatchAuto)
	if err != nil {
		return res, err
	}
	m.log.Info("auto match finished",
		zap.Uint64("production_link_id", link.ID),
		zap.Int("proposed", res.Proposed),
		zap.Int("applied", res.Applied),
		zap.Int("below_threshold", res.BelowThreshold))
	return res, nil
}
