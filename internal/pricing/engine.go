// Package pricing decomposes a reservation span into priced line items:
// a base charge over the whole span, per-day flat fees, time-windowed
// multiplier surcharges, and tax.
//
// Rounding policy: half-up to the whole yen, applied independently to each
// line item before summation. Reconciliation regenerates items from persisted
// data, so this policy must stay byte-for-byte stable.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"studiobook/internal/interval"
	"studiobook/internal/model"
)

// Settings is the injected configuration snapshot for one quote computation.
// Pricing never reads ambient state.
type Settings struct {
	// TaxRate is a plain decimal fraction: 0.10 means 10%.
	TaxRate decimal.Decimal
	// RulesEnabled disables flat-fee and multiplier items wholesale when false.
	RulesEnabled bool
	// BillingUnitMinutes rounds the billable minute count up to the next
	// unit before base pricing. 1 means per-minute billing.
	BillingUnitMinutes int
}

// DefaultSettings returns per-minute billing with rules on and no tax.
func DefaultSettings() Settings {
	return Settings{TaxRate: decimal.Zero, RulesEnabled: true, BillingUnitMinutes: 1}
}

// LineItem is one row of a priced quote.
type LineItem struct {
	Kind            string     `json:"kind"`
	Description     string     `json:"description"`
	Amount          int64      `json:"amount"`
	SliceStart      *time.Time `json:"slice_start,omitempty"`
	SliceEnd        *time.Time `json:"slice_end,omitempty"`
	UnitRatePerHour *int64     `json:"unit_rate_per_hour,omitempty"`
}

// Quote is the priced decomposition of a reservation span.
type Quote struct {
	RoomID       int64      `json:"room_id"`
	RoomName     string     `json:"room_name"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        time.Time  `json:"end_at"`
	HourlyRate   int64      `json:"hourly_rate"`
	DisplayHours int64      `json:"display_hours"` // whole hours rounded up, for rendering only
	Items        []LineItem `json:"items"`
	Subtotal     int64      `json:"subtotal"`
	Tax          int64      `json:"tax"`
	Total        int64      `json:"total"`
}

// Engine prices reservation spans. Stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a pricing engine.
func NewEngine() *Engine {
	return &Engine{}
}

var sixty = decimal.NewFromInt(60)

// Price builds the quote for span at the room's hourly rate under the given
// rules and settings. The span must satisfy start < end; callers validate
// that at the boundary.
func (e *Engine) Price(room model.Room, span interval.Span, rules []model.PriceRule, settings Settings) (*Quote, error) {
	if !span.Start.Before(span.End) {
		return nil, fmt.Errorf("invalid span: start %s is not before end %s",
			span.Start.Format(time.RFC3339), span.End.Format(time.RFC3339))
	}

	rate := decimal.NewFromInt(room.HourlyRate)
	perMinute := rate.DivRound(sixty, 10)

	minutes := span.Minutes()
	if settings.BillingUnitMinutes > 1 {
		unit := int64(settings.BillingUnitMinutes)
		minutes = (minutes + unit - 1) / unit * unit
	}

	q := &Quote{
		RoomID:       room.ID,
		RoomName:     room.Name,
		StartAt:      span.Start,
		EndAt:        span.End,
		HourlyRate:   room.HourlyRate,
		DisplayHours: (span.Minutes() + 59) / 60,
	}

	baseAmount := roundYen(perMinute.Mul(decimal.NewFromInt(minutes)))
	q.Items = append(q.Items, LineItem{
		Kind:            model.KindBase,
		Description:     fmt.Sprintf("Base rate (%d yen/h, %d min)", room.HourlyRate, minutes),
		Amount:          baseAmount,
		SliceStart:      timePtr(span.Start),
		SliceEnd:        timePtr(span.End),
		UnitRatePerHour: int64Ptr(room.HourlyRate),
	})

	rulesTotal := int64(0)
	if settings.RulesEnabled {
		for day := startOfDay(span.Start); !day.After(startOfDay(span.End.Add(-time.Minute))); day = day.AddDate(0, 0, 1) {
			seg, ok := interval.ClipToDay(span, day)
			if !ok {
				continue
			}
			weekday := model.WeekdayOf(day)

			// Flat fees are pre-summed into one item per day.
			flat := int64(0)
			for _, rule := range rules {
				fee, isFlat := rule.Charge.(model.FlatFee)
				if !isFlat || !rule.Weekday.Matches(weekday) {
					continue
				}
				flat += fee.Amount
			}
			if flat > 0 {
				rulesTotal += flat
				q.Items = append(q.Items, LineItem{
					Kind:        model.KindFlatFee,
					Description: fmt.Sprintf("Flat fee (%s)", day.Format("2006-01-02")),
					Amount:      flat,
					SliceStart:  timePtr(seg.Start),
					SliceEnd:    timePtr(seg.End),
				})
			}

			// Multiplier rules are additive: every matching rule contributes
			// its own item for the overlapping minutes.
			for _, rule := range rules {
				mul, isMul := rule.Charge.(model.Multiplier)
				if !isMul || !rule.Weekday.Matches(weekday) {
					continue
				}
				window, err := mul.Window(day)
				if err != nil {
					continue // malformed window never fails the quote
				}
				overlap, ok := interval.Intersect(seg, window)
				if !ok {
					continue
				}
				ovMinutes := overlap.Minutes()
				extraPerHour := rate.Mul(mul.Factor)
				extra := roundYen(extraPerHour.DivRound(sixty, 10).Mul(decimal.NewFromInt(ovMinutes)))
				if extra <= 0 {
					continue
				}
				rulesTotal += extra
				q.Items = append(q.Items, LineItem{
					Kind: model.KindMultiplier,
					Description: fmt.Sprintf("Time-window surcharge (%sx, %d min, %s)",
						mul.Factor.String(), ovMinutes, day.Format("2006-01-02")),
					Amount:          extra,
					SliceStart:      timePtr(overlap.Start),
					SliceEnd:        timePtr(overlap.End),
					UnitRatePerHour: int64Ptr(extraPerHour.IntPart()),
				})
			}
		}
	}

	q.Subtotal = baseAmount + rulesTotal

	if settings.TaxRate.GreaterThan(decimal.Zero) {
		q.Tax = roundYen(decimal.NewFromInt(q.Subtotal).Mul(settings.TaxRate))
		q.Items = append(q.Items, LineItem{
			Kind:        model.KindTax,
			Description: fmt.Sprintf("Tax (%s%%)", settings.TaxRate.Mul(decimal.NewFromInt(100)).Round(0).String()),
			Amount:      q.Tax,
		})
	}

	q.Total = q.Subtotal + q.Tax
	return q, nil
}

// roundYen rounds half-up to the whole currency unit. Amounts are never
// negative here, so decimal's round-half-away-from-zero is half-up.
func roundYen(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func timePtr(t time.Time) *time.Time { return &t }

func int64Ptr(v int64) *int64 { return &v }
