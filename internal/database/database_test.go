package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRoom(t *testing.T, db *DB) *model.Room {
	t.Helper()
	room := &model.Room{OwnerID: 10, Name: "Studio A", HourlyRate: 3000}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}

func TestRoomRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	room := testRoom(t, db)
	require.NotZero(t, room.ID)

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Studio A", got.Name)
	assert.Equal(t, int64(3000), got.HourlyRate)

	_, err = db.GetRoom(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureDefaultBusinessHours(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	require.NoError(t, db.EnsureDefaultBusinessHours(ctx, room.ID))
	// Re-running must not duplicate or overwrite.
	require.NoError(t, db.EnsureDefaultBusinessHours(ctx, room.ID))

	rows, err := db.GetBusinessHours(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	for _, bh := range rows {
		assert.False(t, bh.Holiday)
		assert.Equal(t, "09:00", bh.StartTime)
		assert.Equal(t, "18:00", bh.EndTime)
	}
}

func TestUpsertBusinessHours(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	err := db.UpsertBusinessHours(ctx, room.ID, []model.BusinessHour{
		{RoomID: room.ID, DayIndex: model.Monday, StartTime: "10:00", EndTime: "22:00"},
		{RoomID: room.ID, DayIndex: model.Saturday, StartTime: "10:00", EndTime: "00:00"}, // open until midnight
	})
	require.NoError(t, err)

	rows, err := db.GetBusinessHours(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7, "missing weekdays stored as holidays")

	byDay := map[model.Weekday]model.BusinessHour{}
	for _, bh := range rows {
		byDay[bh.DayIndex] = bh
	}
	assert.Equal(t, "10:00", byDay[model.Monday].StartTime)
	assert.False(t, byDay[model.Monday].Holiday)
	assert.Equal(t, "00:00", byDay[model.Saturday].EndTime)
	assert.True(t, byDay[model.Tuesday].Holiday)
	assert.Empty(t, byDay[model.Tuesday].StartTime)

	// Replacing Monday keeps a single row per weekday.
	err = db.UpsertBusinessHours(ctx, room.ID, []model.BusinessHour{
		{RoomID: room.ID, DayIndex: model.Monday, StartTime: "09:00", EndTime: "18:00"},
	})
	require.NoError(t, err)
	rows, err = db.GetBusinessHours(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)
}

func TestUpsertBusinessHoursRejectsInvertedWindow(t *testing.T) {
	db := testDB(t)
	room := testRoom(t, db)

	err := db.UpsertBusinessHours(context.Background(), room.ID, []model.BusinessHour{
		{RoomID: room.ID, DayIndex: model.Monday, StartTime: "18:00", EndTime: "09:00"},
	})
	assert.Error(t, err)
}

func TestCreateClosureValidation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	err := db.CreateClosure(ctx, &model.Closure{RoomID: room.ID, StartAt: start, EndAt: start})
	assert.Error(t, err, "empty interval rejected")

	err = db.CreateClosure(ctx, &model.Closure{RoomID: room.ID, StartAt: start, EndAt: start.AddDate(0, 0, 120)})
	assert.Error(t, err, "timed closure over 90 days rejected")

	// An all-day closure may run up to a year.
	allDayStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	err = db.CreateClosure(ctx, &model.Closure{RoomID: room.ID, StartAt: allDayStart, EndAt: allDayStart.AddDate(0, 0, 120)})
	assert.NoError(t, err)
}

func TestClosuresOverlapping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }

	inside := &model.Closure{RoomID: room.ID, StartAt: day(10, 9), EndAt: day(10, 12), Reason: "maintenance"}
	require.NoError(t, db.CreateClosure(ctx, inside))
	outside := &model.Closure{RoomID: room.ID, StartAt: day(20, 9), EndAt: day(20, 12)}
	require.NoError(t, db.CreateClosure(ctx, outside))

	got, err := db.ClosuresOverlapping(ctx, []int64{room.ID}, day(9, 0), day(11, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)
	assert.Equal(t, "maintenance", got[0].Reason)

	got, err = db.ClosuresOverlapping(ctx, nil, day(1, 0), day(31, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPriceRuleRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	flat := &model.PriceRule{RoomID: room.ID, Weekday: model.Saturday, Charge: model.FlatFee{Amount: 500}, Note: "weekend cleaning"}
	require.NoError(t, db.CreatePriceRule(ctx, flat))

	mult := &model.PriceRule{
		RoomID:  room.ID,
		Weekday: model.WeekdayAny,
		Charge:  model.Multiplier{StartHour: "18:00", EndHour: "22:00", Factor: decimal.RequireFromString("1.5")},
	}
	require.NoError(t, db.CreatePriceRule(ctx, mult))

	rules, err := db.PriceRulesByRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	gotFlat, ok := rules[0].Charge.(model.FlatFee)
	require.True(t, ok)
	assert.Equal(t, int64(500), gotFlat.Amount)
	assert.Equal(t, model.Saturday, rules[0].Weekday)
	assert.Equal(t, "weekend cleaning", rules[0].Note)

	gotMult, ok := rules[1].Charge.(model.Multiplier)
	require.True(t, ok)
	assert.Equal(t, "18:00", gotMult.StartHour)
	assert.True(t, gotMult.Factor.Equal(decimal.RequireFromString("1.5")))
}

func TestFlatFeeUniquePerWeekday(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	first := &model.PriceRule{RoomID: room.ID, Weekday: model.Saturday, Charge: model.FlatFee{Amount: 500}}
	require.NoError(t, db.CreatePriceRule(ctx, first))

	dup := &model.PriceRule{RoomID: room.ID, Weekday: model.Saturday, Charge: model.FlatFee{Amount: 800}}
	err := db.CreatePriceRule(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateFlatFee)

	// Different weekday, and multipliers on the same weekday, are fine.
	otherDay := &model.PriceRule{RoomID: room.ID, Weekday: model.Sunday, Charge: model.FlatFee{Amount: 800}}
	assert.NoError(t, db.CreatePriceRule(ctx, otherDay))
	mult := &model.PriceRule{RoomID: room.ID, Weekday: model.Saturday, Charge: model.Multiplier{Factor: decimal.RequireFromString("2")}}
	assert.NoError(t, db.CreatePriceRule(ctx, mult))
}

func TestLoadPricingSettings(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// No rows: defaults.
	settings, err := db.LoadPricingSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.IsZero())
	assert.True(t, settings.RulesEnabled)
	assert.Equal(t, 1, settings.BillingUnitMinutes)

	require.NoError(t, db.SetSetting(ctx, SettingTaxRate, "0.10"))
	require.NoError(t, db.SetSetting(ctx, SettingPriceRulesEnabled, "false"))
	require.NoError(t, db.SetSetting(ctx, SettingBillingUnitMinutes, "30"))

	settings, err = db.LoadPricingSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.10")))
	assert.False(t, settings.RulesEnabled)
	assert.Equal(t, 30, settings.BillingUnitMinutes)

	// Garbage values fall back instead of erroring.
	require.NoError(t, db.SetSetting(ctx, SettingTaxRate, "ten percent"))
	settings, err = db.LoadPricingSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.TaxRate.IsZero())
}

func TestInsertReservationIdempotency(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	span := func(h int) (time.Time, time.Time) {
		s := time.Date(2026, 3, 2, h, 0, 0, 0, time.UTC)
		return s, s.Add(2 * time.Hour)
	}
	start, end := span(10)

	first := &model.Reservation{
		RoomID: room.ID, UserID: 42, StartAt: start, EndAt: end,
		Amount: 6000, Status: model.StatusPaid, PaymentRef: "pay_abc123",
	}
	require.NoError(t, db.InsertReservation(ctx, first))
	require.NotZero(t, first.ID)

	dup := &model.Reservation{
		RoomID: room.ID, UserID: 42, StartAt: start, EndAt: end,
		Amount: 6000, Status: model.StatusPaid, PaymentRef: "pay_abc123",
	}
	err := db.InsertReservation(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	got, err := db.GetReservationByPaymentRef(ctx, "pay_abc123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = db.GetReservationByPaymentRef(ctx, "pay_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationsByStatusOverlapping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	mk := func(h int, status, ref string) {
		s := time.Date(2026, 3, 2, h, 0, 0, 0, time.UTC)
		r := &model.Reservation{RoomID: room.ID, UserID: 1, StartAt: s, EndAt: s.Add(time.Hour), Amount: 3000, Status: status, PaymentRef: ref}
		require.NoError(t, db.InsertReservation(ctx, r))
	}
	mk(10, model.StatusPaid, "ref-1")
	mk(12, model.StatusBooked, "ref-2")
	mk(20, model.StatusPaid, "ref-3")

	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	got, err := db.ReservationsByStatusOverlapping(ctx, []int64{room.ID}, model.StatusPaid, from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ref-1", got[0].PaymentRef)
}

func TestChargeItemsRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	room := testRoom(t, db)

	start := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	res := &model.Reservation{RoomID: room.ID, UserID: 1, StartAt: start, EndAt: end, Amount: 12000, Status: model.StatusPaid, PaymentRef: "ref-items"}
	require.NoError(t, db.InsertReservation(ctx, res))

	sliceEnd := start.Add(2 * time.Hour)
	unitRate := int64(3000)
	items := []model.ChargeItem{
		{Kind: model.KindBase, Description: "Room fee (180 min)", Amount: 6000},
		{Kind: model.KindMultiplier, Description: "Time-window surcharge (1.5x, 120 min, 18:00-22:00)", SliceStart: &start, SliceEnd: &sliceEnd, Amount: 6000, UnitRatePerHour: &unitRate},
	}
	require.NoError(t, db.SaveChargeItems(ctx, res.ID, items))

	got, err := db.ChargeItemsByReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.KindBase, got[0].Kind)
	assert.Nil(t, got[0].SliceStart)
	require.NotNil(t, got[1].UnitRatePerHour)
	assert.Equal(t, int64(3000), *got[1].UnitRatePerHour)
	assert.Equal(t, start.Unix(), got[1].SliceStart.Unix())
}

func TestAuditTrail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	e := &model.AuditEntry{ActorID: 42, Action: "reservation_created", Entity: "reservation", EntityID: 7, Note: "calcTotal=12000, paid=12000"}
	require.NoError(t, db.AppendAudit(ctx, e))
	require.NotZero(t, e.ID)
	assert.False(t, e.TS.IsZero())

	got, err := db.ListAuditEntries(ctx, "reservation", 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "reservation_created", got[0].Action)
	assert.Equal(t, "calcTotal=12000, paid=12000", got[0].Note)
}

func TestGetTableData(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	testRoom(t, db)

	names, err := db.GetTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "reservations")

	data, columns, err := db.GetTableData(ctx, "rooms")
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Contains(t, columns, "hourly_rate")
	assert.EqualValues(t, int64(3000), data[0]["hourly_rate"])

	_, _, err = db.GetTableData(ctx, "sqlite_master")
	assert.Error(t, err, "only allowlisted tables export")
}
