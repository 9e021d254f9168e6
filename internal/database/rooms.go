package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// CreateRoom inserts a room and fills in its ID.
func (db *DB) CreateRoom(ctx context.Context, room *model.Room) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO rooms (owner_id, name, hourly_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		room.OwnerID, room.Name, room.HourlyRate, now, now,
	)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	room.ID, err = res.LastInsertId()
	room.CreatedAt = now
	room.UpdatedAt = now
	return err
}

// GetRoom returns one room or ErrNotFound.
func (db *DB) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var r model.Room
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, hourly_rate, created_at, updated_at
		FROM rooms WHERE id = ?`, id,
	).Scan(&r.ID, &r.OwnerID, &r.Name, &r.HourlyRate, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %d: %w", id, err)
	}
	return &r, nil
}

// ListRooms returns all rooms ordered by id.
func (db *DB) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, name, hourly_rate, created_at, updated_at
		FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.HourlyRate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRoomsByOwner returns the rooms belonging to one host.
func (db *DB) ListRoomsByOwner(ctx context.Context, ownerID int64) ([]model.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, name, hourly_rate, created_at, updated_at
		FROM rooms WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rooms for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.HourlyRate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DefaultBusinessHours is the seed window for rooms without explicit hours.
var DefaultBusinessHours = struct {
	StartTime string
	EndTime   string
}{
	StartTime: "09:00",
	EndTime:   "18:00",
}

// EnsureDefaultBusinessHours creates the 09:00-18:00 open-all-week rows for
// any room that has none yet.
func (db *DB) EnsureDefaultBusinessHours(ctx context.Context, roomID int64) error {
	for day := model.Monday; day <= model.Sunday; day++ {
		_, err := db.ExecContext(ctx, `
			INSERT INTO room_business_hours (room_id, day_index, holiday, start_time, end_time)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT(room_id, day_index) DO NOTHING`,
			roomID, int(day), DefaultBusinessHours.StartTime, DefaultBusinessHours.EndTime,
		)
		if err != nil {
			return fmt.Errorf("seed business hours for room %d day %d: %w", roomID, int(day), err)
		}
	}
	return nil
}

// UpsertBusinessHours replaces the weekly schedule for a room. Open rows
// need valid start < end times ("00:00" end means 24:00 and is accepted);
// holiday rows get their times cleared; weekdays missing from rows are
// stored as holidays.
func (db *DB) UpsertBusinessHours(ctx context.Context, roomID int64, rows []model.BusinessHour) error {
	byDay := make(map[model.Weekday]model.BusinessHour, 7)
	for _, row := range rows {
		if !row.DayIndex.Specific() {
			continue // out-of-range day indexes are dropped
		}
		if !row.Holiday {
			if row.StartTime == "" || row.EndTime == "" {
				return fmt.Errorf("open day %s needs start and end times", row.DayIndex)
			}
			if _, ok := row.Window(time.Now()); !ok {
				return fmt.Errorf("invalid window %s-%s for %s", row.StartTime, row.EndTime, row.DayIndex)
			}
		} else {
			row.StartTime = ""
			row.EndTime = ""
		}
		byDay[row.DayIndex] = row // duplicate day: last row wins
	}

	now := time.Now()
	for day := model.Monday; day <= model.Sunday; day++ {
		row, ok := byDay[day]
		if !ok {
			row = model.BusinessHour{RoomID: roomID, DayIndex: day, Holiday: true}
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO room_business_hours (room_id, day_index, holiday, start_time, end_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(room_id, day_index) DO UPDATE SET
				holiday = excluded.holiday,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				updated_at = excluded.updated_at`,
			roomID, int(day), row.Holiday, nullString(row.StartTime), nullString(row.EndTime), now, now,
		)
		if err != nil {
			return fmt.Errorf("upsert business hours for room %d day %d: %w", roomID, int(day), err)
		}
	}
	return nil
}

// GetBusinessHours returns a room's weekly schedule ordered by weekday.
func (db *DB) GetBusinessHours(ctx context.Context, roomID int64) ([]model.BusinessHour, error) {
	byRoom, err := db.BusinessHoursByRoom(ctx, []int64{roomID})
	if err != nil {
		return nil, err
	}
	return byRoom[roomID], nil
}

// BusinessHoursByRoom bulk-loads schedules for a set of rooms.
func (db *DB) BusinessHoursByRoom(ctx context.Context, roomIDs []int64) (map[int64][]model.BusinessHour, error) {
	out := make(map[int64][]model.BusinessHour, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT id, room_id, day_index, holiday, start_time, end_time, created_at, updated_at
		FROM room_business_hours
		WHERE room_id IN (%s)
		ORDER BY room_id, day_index`, placeholders(len(roomIDs)))

	rows, err := db.QueryContext(ctx, query, int64Args(roomIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bh model.BusinessHour
		var dayIndex int
		var start, end sql.NullString
		if err := rows.Scan(&bh.ID, &bh.RoomID, &dayIndex, &bh.Holiday, &start, &end, &bh.CreatedAt, &bh.UpdatedAt); err != nil {
			return nil, err
		}
		bh.DayIndex = model.Weekday(dayIndex)
		bh.StartTime = start.String
		bh.EndTime = end.String
		out[bh.RoomID] = append(out[bh.RoomID], bh)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
