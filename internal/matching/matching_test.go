package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scorer = Scorer{NameWeight: 0.6, DateWeight: 0.4, DateTolerance: 7 * day}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 19, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "midnight variety hour", Normalize("  Midnight   Variety Hour!! "))
	assert.Equal(t, "the variety show", Normalize("The Variety Show"))
	assert.Equal(t, "rockandroll", Normalize("Rock-and-Roll"))
	assert.Equal(t, "café 2025", Normalize("Café: 2025"))
	assert.Empty(t, Normalize("?!"))
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Midnight Variety Hour", "midnight variety hour", 1},
		{"Variety", "The Variety Show", 0.9},
		{"Hamlet Live", "Live at the Hamlet", 0.5},
		{"Hamlet", "", 0},
		{"", "", 0},
		{"Swan Lake Ballet", "Swan Lake Gala", 0.5},
		{"Macbeth", "Othello", 0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, NameSimilarity(tc.a, tc.b), 1e-9, "%q vs %q", tc.a, tc.b)
	}
}

func TestDateOverlap(t *testing.T) {
	tol := 7 * day

	// single show inside a single-day event
	assert.InDelta(t, 1.0, DateOverlap(
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 1)},
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 1)}, tol), 1e-9)

	// production covers 6 of the event's 10 days
	assert.InDelta(t, 0.6, DateOverlap(
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 11)},
		Range{Start: date(2025, 6, 5), End: date(2025, 6, 20)}, tol), 1e-9)

	// outside tolerance
	assert.Zero(t, DateOverlap(
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 2)},
		Range{Start: date(2025, 6, 10), End: date(2025, 6, 12)}, tol))

	// near miss inside tolerance scores the one-day floor
	assert.InDelta(t, 0.25, DateOverlap(
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 5)},
		Range{Start: date(2025, 6, 8), End: date(2025, 6, 9)}, tol), 1e-9)

	// never above 1
	assert.InDelta(t, 1.0, DateOverlap(
		Range{Start: date(2025, 6, 1), End: date(2025, 6, 2)},
		Range{Start: date(2025, 5, 1), End: date(2025, 8, 1)}, tol), 1e-9)
}

func TestScore(t *testing.T) {
	ev, ok := NewRange(ptr(date(2025, 6, 1)), nil)
	require.True(t, ok)
	prod := Range{Start: date(2025, 6, 1), End: date(2025, 6, 1)}

	s := scorer.Score("Midnight Variety Hour", "Midnight Variety Hour", &ev, &prod)
	assert.InDelta(t, 1.0, s.Confidence, 1e-9)

	// substring name with 60% date overlap
	ev = Range{Start: date(2025, 6, 1), End: date(2025, 6, 11)}
	prod = Range{Start: date(2025, 6, 5), End: date(2025, 6, 20)}
	s = scorer.Score("Variety", "The Variety Show", &ev, &prod)
	assert.InDelta(t, 0.9, s.Name, 1e-9)
	assert.InDelta(t, 0.6, s.Date, 1e-9)
	assert.InDelta(t, 0.78, s.Confidence, 1e-9)

	// no dates on one side
	s = scorer.Score("Variety", "Variety", nil, &prod)
	assert.Zero(t, s.Date)
	assert.InDelta(t, 0.6, s.Confidence, 1e-9)

	_, ok = NewRange(nil, nil)
	assert.False(t, ok)
}

func ptr(t time.Time) *time.Time { return &t }
