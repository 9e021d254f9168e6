package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"studiobook/internal/model"
)

// CreatePriceRule validates and inserts a rule. A second flat fee on the same
// (room, weekday) hits the partial unique index and comes back as
// ErrDuplicateFlatFee.
func (db *DB) CreatePriceRule(ctx context.Context, r *model.PriceRule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	var startHour, endHour, multiplier any
	var flatFee any
	switch c := r.Charge.(type) {
	case model.FlatFee:
		flatFee = c.Amount
	case model.Multiplier:
		startHour = nullString(c.StartHour)
		endHour = nullString(c.EndHour)
		multiplier = c.Factor.String()
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO price_rules (room_id, rule_type, weekday, start_hour, end_hour, multiplier, flat_fee, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.Type(), int(r.Weekday), startHour, endHour, multiplier, flatFee, nullString(r.Note), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateFlatFee
		}
		return fmt.Errorf("create price rule: %w", err)
	}
	r.ID, err = res.LastInsertId()
	r.CreatedAt = now
	return err
}

// DeletePriceRule removes one rule or returns ErrNotFound.
func (db *DB) DeletePriceRule(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM price_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete price rule %d: %w", id, err)
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

// PriceRulesByRoom returns a room's rules in creation order, which is also
// the order the pricing engine evaluates them in.
func (db *DB) PriceRulesByRoom(ctx context.Context, roomID int64) ([]model.PriceRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, rule_type, weekday, start_hour, end_hour, multiplier, flat_fee, note, created_at
		FROM price_rules WHERE room_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load price rules for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var out []model.PriceRule
	for rows.Next() {
		rule, err := scanPriceRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanPriceRule(rows *sql.Rows) (model.PriceRule, error) {
	var r model.PriceRule
	var ruleType string
	var weekday int
	var startHour, endHour, multiplier, note sql.NullString
	var flatFee sql.NullInt64
	if err := rows.Scan(&r.ID, &r.RoomID, &ruleType, &weekday, &startHour, &endHour, &multiplier, &flatFee, &note, &r.CreatedAt); err != nil {
		return model.PriceRule{}, err
	}
	r.Weekday = model.Weekday(weekday)
	r.Note = note.String

	switch ruleType {
	case model.KindFlatFee:
		r.Charge = model.FlatFee{Amount: flatFee.Int64}
	case model.KindMultiplier:
		factor, err := decimal.NewFromString(multiplier.String)
		if err != nil {
			return model.PriceRule{}, fmt.Errorf("rule %d has bad multiplier %q: %w", r.ID, multiplier.String, err)
		}
		r.Charge = model.Multiplier{
			StartHour: startHour.String,
			EndHour:   endHour.String,
			Factor:    factor,
		}
	default:
		return model.PriceRule{}, fmt.Errorf("rule %d has unknown type %q", r.ID, ruleType)
	}
	return r, nil
}
