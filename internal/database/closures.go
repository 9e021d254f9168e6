package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// Closure length caps. All-day maintenance blocks may run long, but a timed
// closure past 90 days is almost always a fat-fingered year or month.
const (
	maxTimedClosure  = 90 * 24 * time.Hour
	maxAllDayClosure = 366 * 24 * time.Hour
)

// CreateClosure validates and inserts a closure block.
func (db *DB) CreateClosure(ctx context.Context, c *model.Closure) error {
	if !c.StartAt.Before(c.EndAt) {
		return fmt.Errorf("closure end %s is not after start %s", c.EndAt.Format(time.RFC3339), c.StartAt.Format(time.RFC3339))
	}
	limit := maxTimedClosure
	if isAllDay(c.StartAt, c.EndAt) {
		limit = maxAllDayClosure
	}
	if c.EndAt.Sub(c.StartAt) > limit {
		return fmt.Errorf("closure longer than %s", limit)
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO closures (room_id, start_at, end_at, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.RoomID, c.StartAt, c.EndAt, nullString(c.Reason), now,
	)
	if err != nil {
		return fmt.Errorf("create closure: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = now
	return err
}

// DeleteClosure removes one closure or returns ErrNotFound.
func (db *DB) DeleteClosure(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM closures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete closure %d: %w", id, err)
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

// ClosuresOverlapping returns closures for the given rooms that overlap
// [from, to), ordered by start.
func (db *DB) ClosuresOverlapping(ctx context.Context, roomIDs []int64, from, to time.Time) ([]model.Closure, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, room_id, start_at, end_at, reason, created_at
		FROM closures
		WHERE room_id IN (%s) AND start_at < ? AND end_at > ?
		ORDER BY start_at`, placeholders(len(roomIDs)))

	args := append(int64Args(roomIDs), to, from)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load closures: %w", err)
	}
	defer rows.Close()

	var out []model.Closure
	for rows.Next() {
		var c model.Closure
		var reason sql.NullString
		if err := rows.Scan(&c.ID, &c.RoomID, &c.StartAt, &c.EndAt, &reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Reason = reason.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListClosures returns every closure for one room, newest first.
func (db *DB) ListClosures(ctx context.Context, roomID int64) ([]model.Closure, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, start_at, end_at, reason, created_at
		FROM closures WHERE room_id = ? ORDER BY start_at DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list closures for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var out []model.Closure
	for rows.Next() {
		var c model.Closure
		var reason sql.NullString
		if err := rows.Scan(&c.ID, &c.RoomID, &c.StartAt, &c.EndAt, &reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Reason = reason.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// isAllDay reports whether both bounds fall on local midnight.
func isAllDay(start, end time.Time) bool {
	return atMidnight(start) && atMidnight(end)
}

func atMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
