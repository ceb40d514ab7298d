// Package matching scores how likely an external event is the same thing
// as an internal production.  The weights and tolerances are supplied by
// the caller from configuration.
package matching

import (
	"regexp"
	"strings"
	"time"
)

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

const day = 24 * time.Hour

// Normalize lowercases a name, strips punctuation and collapses whitespace.
func Normalize(name string) string {
	n := strings.ToLower(name)
	n = punctuation.ReplaceAllString(n, "")
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NameSimilarity returns 1 for equal normalised names, 0.9 when one
// contains the other, and the Jaccard index of their word sets otherwise.
// An empty name scores 0.
func NameSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	wa := wordSet(na)
	wb := wordSet(nb)
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

// Range is a closed time interval.  End before Start is treated as a
// single instant at Start.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range from optional bounds.  It returns false when
// start is nil; a nil end collapses the range to start.
func NewRange(start, end *time.Time) (Range, bool) {
	if start == nil {
		return Range{}, false
	}
	r := Range{Start: *start, End: *start}
	if end != nil && end.After(*start) {
		r.End = *end
	}
	return r, true
}

func (r Range) duration() time.Duration {
	d := r.End.Sub(r.Start)
	if d < day {
		return day
	}
	return d
}

// DateOverlap scores how much of the event's date range is covered by
// the production's show range.  Ranges further apart than tolerance score
// 0; otherwise the overlap (floored at one day) is divided by the event
// duration (floored at one day) and capped at 1.
func DateOverlap(event, production Range, tolerance time.Duration) float64 {
	if event.End.Before(event.Start) {
		event.End = event.Start
	}
	if production.End.Before(production.Start) {
		production.End = production.Start
	}
	if event.End.Before(production.Start.Add(-tolerance)) || event.Start.After(production.End.Add(tolerance)) {
		return 0
	}

	start := maxTime(event.Start, production.Start)
	end := minTime(event.End, production.End)
	overlap := end.Sub(start)
	if overlap < day {
		overlap = day
	}
	ratio := float64(overlap) / float64(event.duration())
	if ratio > 1 {
		return 1
	}
	return ratio
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Scorer blends name and date scores into a confidence.
type Scorer struct {
	NameWeight    float64
	DateWeight    float64
	DateTolerance time.Duration
}

// Score is the breakdown of one candidate's confidence.
type Score struct {
	Name       float64 `json:"name_similarity"`
	Date       float64 `json:"date_overlap"`
	Confidence float64 `json:"confidence"`
}

// Score rates an event against a production.  A nil event range or a nil
// production range yields a date score of 0.
func (s Scorer) Score(eventName, productionName string, event, production *Range) Score {
	sc := Score{Name: NameSimilarity(eventName, productionName)}
	if event != nil && production != nil {
		sc.Date = DateOverlap(*event, *production, s.DateTolerance)
	}
	sc.Confidence = s.NameWeight*sc.Name + s.DateWeight*sc.Date
	return sc
}
