// Package stats computes room utilization: the share of open minutes
// consumed by paid reservations.
package stats

import (
	"context"
	"fmt"
	"time"

	"studiobook/internal/interval"
	"studiobook/internal/model"
)

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a "YYYY-MM" label.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// First returns the first instant of the month.
func (ym YearMonth) First() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.Local)
}

// Next returns the first instant of the following month.
func (ym YearMonth) Next() time.Time {
	return ym.First().AddDate(0, 1, 0)
}

// Store is the read-only data access the calculator needs. All lookups are
// bulk so a multi-month dashboard costs a fixed number of queries.
type Store interface {
	BusinessHoursByRoom(ctx context.Context, roomIDs []int64) (map[int64][]model.BusinessHour, error)
	ClosuresOverlapping(ctx context.Context, roomIDs []int64, from, to time.Time) ([]model.Closure, error)
	ReservationsByStatusOverlapping(ctx context.Context, roomIDs []int64, status string, from, to time.Time) ([]model.Reservation, error)
}

// Calculator aggregates paid/open minutes into monthly percentages.
type Calculator struct {
	store Store
}

// NewCalculator creates a utilization calculator.
func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// Utilization returns the utilization percentage per requested month.
// A single room yields that room's rate. Several rooms yield the arithmetic
// mean of each room's individually computed rate, not a minutes-weighted
// pool, so a small room counts as much as a large one.
func (c *Calculator) Utilization(ctx context.Context, roomIDs []int64, months []YearMonth) (map[YearMonth]float64, error) {
	out := make(map[YearMonth]float64, len(months))
	if len(roomIDs) == 0 || len(months) == 0 {
		for _, ym := range months {
			out[ym] = 0
		}
		return out, nil
	}

	data, err := c.fetch(ctx, roomIDs, months)
	if err != nil {
		return nil, err
	}

	for _, ym := range months {
		var sum float64
		for _, roomID := range roomIDs {
			sum += data.monthlyRate(roomID, ym)
		}
		out[ym] = sum / float64(len(roomIDs))
	}
	return out, nil
}

// PooledRate returns one rate per month for the room set as a whole:
// 100 × Σ paidMinutes / Σ openMinutes over all rooms. This is the host
// dashboard view, where minutes are pooled rather than averaged.
func (c *Calculator) PooledRate(ctx context.Context, roomIDs []int64, months []YearMonth) (map[YearMonth]float64, error) {
	out := make(map[YearMonth]float64, len(months))
	if len(roomIDs) == 0 || len(months) == 0 {
		for _, ym := range months {
			out[ym] = 0
		}
		return out, nil
	}

	data, err := c.fetch(ctx, roomIDs, months)
	if err != nil {
		return nil, err
	}

	for _, ym := range months {
		var open, paid int64
		for _, roomID := range roomIDs {
			o, p := data.monthlyMinutes(roomID, ym)
			open += o
			paid += p
		}
		if open <= 0 {
			out[ym] = 0
			continue
		}
		out[ym] = float64(paid) * 100.0 / float64(open)
	}
	return out, nil
}

type monthData struct {
	hours        map[int64]map[model.Weekday]model.BusinessHour
	closures     map[int64][]model.Closure
	reservations map[int64][]model.Reservation
}

func (c *Calculator) fetch(ctx context.Context, roomIDs []int64, months []YearMonth) (*monthData, error) {
	from, to := monthRange(months)

	hoursByRoom, err := c.store.BusinessHoursByRoom(ctx, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}
	closures, err := c.store.ClosuresOverlapping(ctx, roomIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("load closures: %w", err)
	}
	reservations, err := c.store.ReservationsByStatusOverlapping(ctx, roomIDs, model.StatusPaid, from, to)
	if err != nil {
		return nil, fmt.Errorf("load paid reservations: %w", err)
	}

	data := &monthData{
		hours:        make(map[int64]map[model.Weekday]model.BusinessHour, len(roomIDs)),
		closures:     make(map[int64][]model.Closure),
		reservations: make(map[int64][]model.Reservation),
	}
	for roomID, rows := range hoursByRoom {
		byDay := make(map[model.Weekday]model.BusinessHour, len(rows))
		for _, row := range rows {
			if row.DayIndex.Specific() {
				byDay[row.DayIndex] = row
			}
		}
		data.hours[roomID] = byDay
	}
	for _, cl := range closures {
		data.closures[cl.RoomID] = append(data.closures[cl.RoomID], cl)
	}
	for _, r := range reservations {
		data.reservations[r.RoomID] = append(data.reservations[r.RoomID], r)
	}
	return data, nil
}

// monthlyRate computes one room's utilization percentage for one month.
func (d *monthData) monthlyRate(roomID int64, ym YearMonth) float64 {
	open, paid := d.monthlyMinutes(roomID, ym)
	if open <= 0 {
		return 0
	}
	return float64(paid) * 100.0 / float64(open)
}

// monthlyMinutes walks every day of the month, building the day's open
// segments (business hours minus closures) and intersecting paid
// reservations with them. Reserved minutes outside open hours count toward
// neither numerator nor denominator.
func (d *monthData) monthlyMinutes(roomID int64, ym YearMonth) (openMinutes, paidMinutes int64) {
	hours := d.hours[roomID]
	if len(hours) == 0 {
		return 0, 0
	}

	for day := ym.First(); day.Before(ym.Next()); day = day.AddDate(0, 0, 1) {
		bh, ok := hours[model.WeekdayOf(day)]
		if !ok {
			continue
		}
		window, ok := bh.Window(day)
		if !ok {
			continue
		}

		var cuts []interval.Span
		for _, cl := range d.closures[roomID] {
			if interval.Overlaps(cl.Span(), window) {
				cuts = append(cuts, cl.Span())
			}
		}
		openSegs := interval.Subtract(window, cuts)
		for _, seg := range openSegs {
			openMinutes += seg.Minutes()
		}

		for _, r := range d.reservations[roomID] {
			seg, ok := interval.ClipToDay(r.Span(), day)
			if !ok {
				continue
			}
			for _, open := range openSegs {
				if overlap, ok := interval.Intersect(open, seg); ok {
					paidMinutes += overlap.Minutes()
				}
			}
		}
	}
	return openMinutes, paidMinutes
}

func monthRange(months []YearMonth) (time.Time, time.Time) {
	from, to := months[0].First(), months[0].Next()
	for _, ym := range months[1:] {
		if f := ym.First(); f.Before(from) {
			from = f
		}
		if n := ym.Next(); n.After(to) {
			to = n
		}
	}
	return from, to
}
