// Package model defines the persisted domain types for the studio booking
// core: rooms, weekly business hours, closures, price rules, reservations
// with their charge breakdown, and the audit trail.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"studiobook/internal/interval"
)

// Reservation status values.
const (
	StatusBooked   = "booked"
	StatusPaid     = "paid"
	StatusCanceled = "canceled"
)

// Charge item kinds.
const (
	KindBase       = "base"
	KindFlatFee    = "flat_fee"
	KindMultiplier = "multiplier"
	KindTax        = "tax"
)

// Weekday is a day-of-week selector for price rules and business hours.
// 1=Monday .. 7=Sunday; WeekdayAny means "every day". The 1..7 Monday-first
// convention is a contract shared with rule matching: a mismatched convention
// silently shifts every rule by one or more days.
type Weekday int

const (
	WeekdayAny Weekday = 0
	Monday     Weekday = 1
	Tuesday    Weekday = 2
	Wednesday  Weekday = 3
	Thursday   Weekday = 4
	Friday     Weekday = 5
	Saturday   Weekday = 6
	Sunday     Weekday = 7
)

// WeekdayOf converts a calendar date to the 1..7 Monday-first index.
func WeekdayOf(t time.Time) Weekday {
	w := int(t.Weekday())
	if w == 0 {
		w = 7 // Sunday
	}
	return Weekday(w)
}

// Matches reports whether the selector applies on the given concrete day.
func (w Weekday) Matches(day Weekday) bool {
	return w == WeekdayAny || w == day
}

// Specific reports whether the selector names a single day.
func (w Weekday) Specific() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	names := [...]string{"any", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if w < 0 || int(w) >= len(names) {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return names[w]
}

// Room is the unit being booked. HourlyRate is yen per hour.
type Room struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Name       string    `json:"name"`
	HourlyRate int64     `json:"hourly_rate"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BusinessHour is one weekly opening window, one row per (room, weekday).
// Holiday rows carry no times. EndTime "00:00" is the 24:00 sentinel meaning
// open until next-day midnight.
type BusinessHour struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	DayIndex  Weekday   `json:"day_index"`
	Holiday   bool      `json:"holiday"`
	StartTime string    `json:"start_time,omitempty"` // "HH:MM"
	EndTime   string    `json:"end_time,omitempty"`   // "HH:MM"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Window resolves the opening window for a concrete day, applying the 24:00
// rule. Returns false for holiday or malformed rows.
func (b BusinessHour) Window(day time.Time) (interval.Span, bool) {
	if b.Holiday || b.StartTime == "" || b.EndTime == "" {
		return interval.Span{}, false
	}
	open, err := AtTimeOfDay(day, b.StartTime)
	if err != nil {
		return interval.Span{}, false
	}
	close, err := closeInstant(day, b.EndTime)
	if err != nil {
		return interval.Span{}, false
	}
	if !open.Before(close) {
		return interval.Span{}, false
	}
	return interval.Span{Start: open, End: close}, true
}

// Closure blocks a room for an explicit [StartAt, EndAt) interval regardless
// of business hours. Closures may overlap each other; consumers union them.
type Closure struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Span returns the closure as a half-open interval.
func (c Closure) Span() interval.Span {
	return interval.Span{Start: c.StartAt, End: c.EndAt}
}

// Charge is the shape of a price rule: either a FlatFee or a Multiplier.
// Modeling the two shapes as a closed variant keeps "flat fee with a time
// window" and similar invalid rows unrepresentable.
type Charge interface {
	isCharge()
}

// FlatFee is a fixed yen amount added once per applicable calendar day.
type FlatFee struct {
	Amount int64
}

func (FlatFee) isCharge() {}

// Multiplier surcharges the base hourly rate by Factor for the minutes
// overlapping the [StartHour, EndHour) wall-clock window. Empty hours mean
// the full day; EndHour "00:00" means 24:00.
type Multiplier struct {
	StartHour string // "HH:MM", empty = 00:00
	EndHour   string // "HH:MM", empty = 24:00
	Factor    decimal.Decimal
}

func (Multiplier) isCharge() {}

// Window resolves the multiplier window for a concrete day.
func (m Multiplier) Window(day time.Time) (interval.Span, error) {
	startStr := m.StartHour
	if startStr == "" {
		startStr = "00:00"
	}
	start, err := AtTimeOfDay(day, startStr)
	if err != nil {
		return interval.Span{}, err
	}
	endStr := m.EndHour
	if endStr == "" {
		endStr = "00:00" // full day: 24:00 sentinel
	}
	end, err := closeInstant(day, endStr)
	if err != nil {
		return interval.Span{}, err
	}
	if !start.Before(end) {
		return interval.Span{}, fmt.Errorf("multiplier window %s-%s is empty", startStr, endStr)
	}
	return interval.Span{Start: start, End: end}, nil
}

// PriceRule attaches a Charge to a room, optionally limited to one weekday.
type PriceRule struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	Weekday   Weekday   `json:"weekday"` // WeekdayAny = every day
	Charge    Charge    `json:"-"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Type returns the storage discriminant for the rule's charge shape.
func (r PriceRule) Type() string {
	switch r.Charge.(type) {
	case FlatFee:
		return KindFlatFee
	case Multiplier:
		return KindMultiplier
	default:
		return ""
	}
}

// Validate checks a rule before persistence. Multiplier windows must be on
// 15-minute boundaries; flat fees must be positive.
func (r PriceRule) Validate() error {
	if r.Weekday != WeekdayAny && !r.Weekday.Specific() {
		return fmt.Errorf("invalid weekday %d", int(r.Weekday))
	}
	switch c := r.Charge.(type) {
	case FlatFee:
		if c.Amount <= 0 {
			return fmt.Errorf("flat fee must be positive, got %d", c.Amount)
		}
	case Multiplier:
		if c.Factor.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("multiplier factor must be positive, got %s", c.Factor)
		}
		for _, hhmm := range []string{c.StartHour, c.EndHour} {
			if hhmm == "" {
				continue
			}
			minute, err := parseTimeOfDay(hhmm)
			if err != nil {
				return err
			}
			if minute%15 != 0 {
				return fmt.Errorf("rule window time %q is not on a 15-minute boundary", hhmm)
			}
		}
	case nil:
		return fmt.Errorf("price rule has no charge")
	default:
		return fmt.Errorf("unknown charge shape %T", c)
	}
	return nil
}

// Reservation is created by reconciliation from a confirmed payment.
// Amount is the authoritative charged total. PaymentRef is the external
// payment reference used as the idempotency key (unique in storage).
type Reservation struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"room_id"`
	UserID      int64     `json:"user_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	PaymentRef  string    `json:"payment_ref,omitempty"`
	CheckoutRef string    `json:"checkout_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Span returns the reserved interval.
func (r Reservation) Span() interval.Span {
	return interval.Span{Start: r.StartAt, End: r.EndAt}
}

// ChargeItem is one ordered breakdown row of a reservation's price.
// Written once at reservation creation, never mutated. Tax rows have no
// time slice.
type ChargeItem struct {
	ID              int64      `json:"id"`
	ReservationID   int64      `json:"reservation_id"`
	Kind            string     `json:"kind"`
	Description     string     `json:"description"`
	SliceStart      *time.Time `json:"slice_start,omitempty"`
	SliceEnd        *time.Time `json:"slice_end,omitempty"`
	Amount          int64      `json:"amount"`
	UnitRatePerHour *int64     `json:"unit_rate_per_hour,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AuditEntry is an append-only record of a significant state change.
type AuditEntry struct {
	ID       int64     `json:"id"`
	TS       time.Time `json:"ts"`
	ActorID  int64     `json:"actor_id"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID int64     `json:"entity_id"`
	Note     string    `json:"note,omitempty"`
}

// AtTimeOfDay combines a calendar day with an "HH:MM" wall-clock time.
func AtTimeOfDay(day time.Time, hhmm string) (time.Time, error) {
	minute, err := parseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location()), nil
}

// closeInstant resolves a closing time, mapping "00:00" to next-day midnight.
func closeInstant(day time.Time, hhmm string) (time.Time, error) {
	minute, err := parseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	if minute == 0 {
		return dayStart.AddDate(0, 0, 1), nil
	}
	return dayStart.Add(time.Duration(minute) * time.Minute), nil
}

func parseTimeOfDay(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour*60 + minute, nil
}
