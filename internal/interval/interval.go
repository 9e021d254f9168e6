// Package interval provides minute-precision half-open interval arithmetic.
// All spans are [start, end): the start instant is included, the end instant
// is not.
package interval

import (
	"fmt"
	"sort"
	"time"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// New builds a span and validates start < end.
func New(start, end time.Time) (Span, error) {
	if !start.Before(end) {
		return Span{}, fmt.Errorf("invalid span: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Span{Start: start, End: end}, nil
}

// Minutes returns the span length in whole minutes.
func (s Span) Minutes() int64 {
	return int64(s.End.Sub(s.Start) / time.Minute)
}

// IsZero reports whether the span is the zero value.
func (s Span) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Overlaps reports whether two half-open spans share at least one instant.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Intersect returns the overlap of a and b. The second result is false when
// the overlap is empty or inverted.
func Intersect(a, b Span) (Span, bool) {
	start := maxTime(a.Start, b.Start)
	end := minTime(a.End, b.End)
	if !start.Before(end) {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}

// Subtract returns the ordered parts of base not covered by any cut.
// Cuts may be unsorted, overlapping, or entirely outside base; an empty cut
// list returns base unchanged.
func Subtract(base Span, cuts []Span) []Span {
	if len(cuts) == 0 {
		return []Span{base}
	}

	sorted := make([]Span, len(cuts))
	copy(sorted, cuts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var out []Span
	cursor := base.Start
	for _, cut := range sorted {
		if !cut.Start.Before(base.End) {
			break
		}
		if cut.Start.After(cursor) {
			gapEnd := minTime(cut.Start, base.End)
			if cursor.Before(gapEnd) {
				out = append(out, Span{Start: cursor, End: gapEnd})
			}
		}
		if cut.End.After(cursor) {
			cursor = cut.End
		}
	}
	if cursor.Before(base.End) {
		out = append(out, Span{Start: cursor, End: base.End})
	}
	return out
}

// ClipToDay clips s to the calendar day starting at day 00:00 local.
// The second result is false when s does not touch the day.
func ClipToDay(s Span, day time.Time) (Span, bool) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return Intersect(s, Span{Start: dayStart, End: dayEnd})
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
