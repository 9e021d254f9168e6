package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// GetReservation returns one reservation or ErrNotFound.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, start_at, end_at, amount, status, payment_ref, checkout_ref, created_at, updated_at
		FROM reservations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// GetReservationByPaymentRef looks up the reservation created for an external
// payment reference, or ErrNotFound.
func (db *DB) GetReservationByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, start_at, end_at, amount, status, payment_ref, checkout_ref, created_at, updated_at
		FROM reservations WHERE payment_ref = ?`, ref))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation by ref %q: %w", ref, err)
	}
	return r, nil
}

// InsertReservation persists a reservation. The UNIQUE constraint on
// payment_ref doubles as the idempotency check: a ref seen before surfaces
// as ErrDuplicateReference with no row written.
func (db *DB) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return insertReservation(ctx, db.DB, r)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return insertReservation(ctx, t.tx, r)
}

func insertReservation(ctx context.Context, q execer, r *model.Reservation) error {
	now := time.Now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO reservations (room_id, user_id, start_at, end_at, amount, status, payment_ref, checkout_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.UserID, r.StartAt, r.EndAt, r.Amount, r.Status,
		nullString(r.PaymentRef), nullString(r.CheckoutRef), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID, err = res.LastInsertId()
	r.CreatedAt = now
	r.UpdatedAt = now
	return err
}

// UpdateReservationStatus transitions a reservation's status.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update reservation %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReservationsByStatusOverlapping returns reservations with the given status
// that overlap [from, to) for the given rooms.
func (db *DB) ReservationsByStatusOverlapping(ctx context.Context, roomIDs []int64, status string, from, to time.Time) ([]model.Reservation, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, room_id, user_id, start_at, end_at, amount, status, payment_ref, checkout_ref, created_at, updated_at
		FROM reservations
		WHERE room_id IN (%s) AND status = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at`, placeholders(len(roomIDs)))

	args := append(int64Args(roomIDs), status, to, from)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SaveChargeItems writes a reservation's price breakdown in one transaction,
// preserving slice order.
func (db *DB) SaveChargeItems(ctx context.Context, reservationID int64, items []model.ChargeItem) error {
	return db.InTx(ctx, func(tx Tx) error {
		return tx.SaveChargeItems(ctx, reservationID, items)
	})
}

func (t *sqlTx) SaveChargeItems(ctx context.Context, reservationID int64, items []model.ChargeItem) error {
	now := time.Now()
	for _, it := range items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO reservation_charge_items (reservation_id, kind, description, slice_start, slice_end, amount, unit_rate_per_hour, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			reservationID, it.Kind, it.Description, it.SliceStart, it.SliceEnd, it.Amount, it.UnitRatePerHour, now,
		)
		if err != nil {
			return fmt.Errorf("insert charge item: %w", err)
		}
	}
	return nil
}

// ChargeItemsByReservation returns the stored breakdown in write order.
func (db *DB) ChargeItemsByReservation(ctx context.Context, reservationID int64) ([]model.ChargeItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, reservation_id, kind, description, slice_start, slice_end, amount, unit_rate_per_hour, created_at
		FROM reservation_charge_items WHERE reservation_id = ? ORDER BY id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load charge items for reservation %d: %w", reservationID, err)
	}
	defer rows.Close()

	var out []model.ChargeItem
	for rows.Next() {
		var it model.ChargeItem
		var sliceStart, sliceEnd sql.NullTime
		var unitRate sql.NullInt64
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.Kind, &it.Description, &sliceStart, &sliceEnd, &it.Amount, &unitRate, &it.CreatedAt); err != nil {
			return nil, err
		}
		if sliceStart.Valid {
			t := sliceStart.Time
			it.SliceStart = &t
		}
		if sliceEnd.Valid {
			t := sliceEnd.Time
			it.SliceEnd = &t
		}
		if unitRate.Valid {
			v := unitRate.Int64
			it.UnitRatePerHour = &v
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var paymentRef, checkoutRef sql.NullString
	err := row.Scan(&r.ID, &r.RoomID, &r.UserID, &r.StartAt, &r.EndAt, &r.Amount,
		&r.Status, &paymentRef, &checkoutRef, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.PaymentRef = paymentRef.String
	r.CheckoutRef = checkoutRef.String
	return &r, nil
}
