// Package availability decides whether a candidate reservation span lies
// fully within a room's published weekly business hours.
package availability

import (
	"time"

	"studiobook/internal/interval"
	"studiobook/internal/model"
)

// FitsWithinBusinessHours reports whether span is fully open on every
// calendar day it touches. hours is keyed by 1..7 Monday-first weekday.
//
// A missing row, a holiday row, or a row without times closes the whole day
// and rejects the candidate. The close instant itself is a valid end-of-use
// moment, so the upper bound comparison is inclusive. Closures are a
// separate layer and are deliberately not consulted here.
func FitsWithinBusinessHours(hours map[model.Weekday]model.BusinessHour, span interval.Span) bool {
	if !span.Start.Before(span.End) {
		return false
	}

	day := startOfDay(span.Start)
	// A span ending exactly at midnight does not touch the next day.
	lastDay := startOfDay(span.End.Add(-time.Minute))

	for !day.After(lastDay) {
		seg, ok := interval.ClipToDay(span, day)
		if !ok {
			return false
		}

		bh, ok := hours[model.WeekdayOf(day)]
		if !ok {
			return false
		}
		window, ok := bh.Window(day)
		if !ok {
			return false
		}

		if seg.Start.Before(window.Start) || seg.End.After(window.End) {
			return false
		}

		day = day.AddDate(0, 0, 1)
	}
	return true
}

// HoursByWeekday indexes business hour rows by weekday, keeping the last row
// per day (upsert semantics make duplicates unlikely but harmless).
func HoursByWeekday(rows []model.BusinessHour) map[model.Weekday]model.BusinessHour {
	out := make(map[model.Weekday]model.BusinessHour, len(rows))
	for _, row := range rows {
		if row.DayIndex.Specific() {
			out[row.DayIndex] = row
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
