package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/interval"
	"studiobook/internal/model"
)

// 2026-03-02 is a Monday.
func ts(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
}

func factor(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func itemsByKind(q *Quote, kind string) []LineItem {
	var out []LineItem
	for _, it := range q.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func TestPricePlainCase(t *testing.T) {
	room := model.Room{ID: 1, Name: "Studio A", HourlyRate: 3000}
	span := interval.Span{Start: ts(2, 10, 0), End: ts(2, 12, 30)} // 150 min

	q, err := NewEngine().Price(room, span, nil, DefaultSettings())
	require.NoError(t, err)

	require.Len(t, q.Items, 1)
	assert.Equal(t, model.KindBase, q.Items[0].Kind)
	assert.Equal(t, int64(7500), q.Items[0].Amount)
	assert.Equal(t, int64(7500), q.Subtotal)
	assert.Equal(t, int64(0), q.Tax)
	assert.Equal(t, int64(7500), q.Total)
	assert.Equal(t, int64(3), q.DisplayHours, "150 min renders as 3 hours")
}

func TestPriceRejectsInvertedSpan(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 3000}
	_, err := NewEngine().Price(room, interval.Span{Start: ts(2, 12, 0), End: ts(2, 10, 0)}, nil, DefaultSettings())
	assert.Error(t, err)
}

func TestPriceMultiplierOverlap(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 2000}
	span := interval.Span{Start: ts(2, 20, 0), End: ts(2, 23, 0)} // Monday, 180 min
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.Monday, Charge: model.Multiplier{StartHour: "18:00", EndHour: "22:00", Factor: factor("1.5")}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)

	base := itemsByKind(q, model.KindBase)
	require.Len(t, base, 1)
	assert.Equal(t, int64(6000), base[0].Amount, "2000/60*180")

	muls := itemsByKind(q, model.KindMultiplier)
	require.Len(t, muls, 1)
	assert.Equal(t, int64(6000), muls[0].Amount, "2000*1.5/60*120")
	assert.Equal(t, ts(2, 20, 0), *muls[0].SliceStart)
	assert.Equal(t, ts(2, 22, 0), *muls[0].SliceEnd)
	require.NotNil(t, muls[0].UnitRatePerHour)
	assert.Equal(t, int64(3000), *muls[0].UnitRatePerHour)

	assert.Equal(t, int64(12000), q.Subtotal)
}

func TestPriceMultiplierWrongWeekdayDoesNotApply(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 2000}
	span := interval.Span{Start: ts(2, 20, 0), End: ts(2, 23, 0)} // Monday
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.Sunday, Charge: model.Multiplier{StartHour: "18:00", EndHour: "22:00", Factor: factor("1.5")}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)
	assert.Empty(t, itemsByKind(q, model.KindMultiplier))
	assert.Equal(t, int64(6000), q.Subtotal)
}

func TestPriceOverlappingMultipliersAreAdditive(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 3000}
	span := interval.Span{Start: ts(2, 18, 0), End: ts(2, 20, 0)} // 120 min
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.Multiplier{StartHour: "18:00", EndHour: "22:00", Factor: factor("0.5")}},
		{RoomID: 1, Weekday: model.Monday, Charge: model.Multiplier{StartHour: "19:00", EndHour: "21:00", Factor: factor("0.25")}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)

	muls := itemsByKind(q, model.KindMultiplier)
	require.Len(t, muls, 2, "overlapping rules each emit their own item")
	assert.Equal(t, int64(3000), muls[0].Amount, "3000*0.5/60*120")
	assert.Equal(t, int64(750), muls[1].Amount, "3000*0.25/60*60")
	assert.Equal(t, int64(6000+3000+750), q.Subtotal)
}

func TestPriceMultiDayFlatFee(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 1200}
	// Monday 23:00 through Wednesday 01:00: touches Mon, Tue, Wed.
	span := interval.Span{Start: ts(2, 23, 0), End: ts(4, 1, 0)}
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.FlatFee{Amount: 500}},
		{RoomID: 1, Weekday: model.Tuesday, Charge: model.FlatFee{Amount: 300}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)

	flats := itemsByKind(q, model.KindFlatFee)
	require.Len(t, flats, 3, "one pre-summed item per touched day")
	assert.Equal(t, int64(500), flats[0].Amount)
	assert.Equal(t, int64(800), flats[1].Amount, "Any + Tuesday rules summed")
	assert.Equal(t, int64(500), flats[2].Amount)
}

func TestPriceFlatFeeNotEmittedWhenSpanEndsAtMidnight(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 1200}
	span := interval.Span{Start: ts(2, 20, 0), End: ts(3, 0, 0)} // ends exactly at midnight
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.Tuesday, Charge: model.FlatFee{Amount: 500}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)
	assert.Empty(t, itemsByKind(q, model.KindFlatFee), "Tuesday is not touched")
}

func TestPriceTaxRoundsHalfUp(t *testing.T) {
	// 4938/60*150 = 12345, tax 10% = 1234.5 -> 1235 (half-up, not half-even).
	room := model.Room{ID: 1, HourlyRate: 4938}
	span := interval.Span{Start: ts(2, 10, 0), End: ts(2, 12, 30)}
	settings := DefaultSettings()
	settings.TaxRate = factor("0.10")

	q, err := NewEngine().Price(room, span, nil, settings)
	require.NoError(t, err)

	assert.Equal(t, int64(12345), q.Subtotal)
	assert.Equal(t, int64(1235), q.Tax)
	assert.Equal(t, int64(13580), q.Total)

	taxItems := itemsByKind(q, model.KindTax)
	require.Len(t, taxItems, 1)
	assert.Equal(t, "Tax (10%)", taxItems[0].Description)
	assert.Nil(t, taxItems[0].SliceStart, "tax has no time slice")
}

func TestPriceBillingUnitRoundsMinutesUp(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 3000}
	span := interval.Span{Start: ts(2, 10, 0), End: ts(2, 10, 50)} // 50 min
	settings := DefaultSettings()
	settings.BillingUnitMinutes = 30

	q, err := NewEngine().Price(room, span, nil, settings)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), q.Subtotal, "50 min bills as 60")
}

func TestPriceRulesDisabled(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 3000}
	span := interval.Span{Start: ts(2, 18, 0), End: ts(2, 20, 0)}
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.FlatFee{Amount: 500}},
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.Multiplier{Factor: factor("1.5")}},
	}
	settings := DefaultSettings()
	settings.RulesEnabled = false

	q, err := NewEngine().Price(room, span, rules, settings)
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.Equal(t, model.KindBase, q.Items[0].Kind)
}

func TestPriceMultiplierDefaultWindowIsFullDay(t *testing.T) {
	room := model.Room{ID: 1, HourlyRate: 3000}
	span := interval.Span{Start: ts(2, 10, 0), End: ts(2, 11, 0)}
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.Multiplier{Factor: factor("2")}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)

	muls := itemsByKind(q, model.KindMultiplier)
	require.Len(t, muls, 1)
	assert.Equal(t, int64(6000), muls[0].Amount, "3000*2/60*60")
}

func TestPriceItemRoundingIsPerItem(t *testing.T) {
	// 100 yen/h for 31 min = 51.67 -> 52; surcharge 0.5x over the same 31
	// min = 25.83 -> 26. Summed after rounding: 78, not round(77.5).
	room := model.Room{ID: 1, HourlyRate: 100}
	span := interval.Span{Start: ts(2, 10, 0), End: ts(2, 10, 31)}
	rules := []model.PriceRule{
		{RoomID: 1, Weekday: model.WeekdayAny, Charge: model.Multiplier{Factor: factor("0.5")}},
	}

	q, err := NewEngine().Price(room, span, rules, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, int64(52+26), q.Subtotal)
}
