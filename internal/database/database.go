// Package database is the sqlite-backed storage layer for rooms, schedules,
// price rules, reservations and the audit trail.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"studiobook/internal/model"
)

// Sentinel errors surfaced to callers. Unique-constraint violations are part
// of the control flow: reconciliation treats ErrDuplicateReference as the
// idempotent-skip path.
var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateReference   = errors.New("payment reference already reconciled")
	ErrDuplicateFlatFee     = errors.New("flat fee rule already exists for this weekday")
	ErrDuplicateBusinessDay = errors.New("business hour row already exists for this weekday")
)

// DB wraps sql.DB for the booking service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			hourly_rate INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per (room, weekday); weekday is 1=Mon..7=Sun.
		`CREATE TABLE IF NOT EXISTS room_business_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			day_index INTEGER NOT NULL,
			holiday BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT,
			end_time TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(room_id, day_index),
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS closures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		// weekday 0 means "every day". multiplier is stored as decimal text.
		`CREATE TABLE IF NOT EXISTS price_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			rule_type TEXT NOT NULL,
			weekday INTEGER NOT NULL DEFAULT 0,
			start_hour TEXT,
			end_hour TEXT,
			multiplier TEXT,
			flat_fee INTEGER,
			note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS admin_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// payment_ref uniqueness is the idempotency guard for webhook
		// reconciliation; the insert itself is the check-and-set.
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			amount INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'booked',
			payment_ref TEXT UNIQUE,
			checkout_ref TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservation_charge_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reservation_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			description TEXT NOT NULL,
			slice_start DATETIME,
			slice_end DATETIME,
			amount INTEGER NOT NULL,
			unit_rate_per_hour INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (reservation_id) REFERENCES reservations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			actor_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			note TEXT
		)`,

		// At most one flat fee per (room, weekday), the "every day" bucket
		// included.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_price_rules_flat_unique
			ON price_rules(room_id, weekday) WHERE rule_type = 'flat_fee'`,

		`CREATE INDEX IF NOT EXISTS idx_business_hours_room ON room_business_hours(room_id, day_index)`,
		`CREATE INDEX IF NOT EXISTS idx_closures_room_times ON closures(room_id, start_at, end_at)`,
		`CREATE INDEX IF NOT EXISTS idx_price_rules_room ON price_rules(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_times ON reservations(room_id, start_at, end_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_charge_items_reservation ON reservation_charge_items(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity, entity_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Tx is the write scope InTx hands to its callback. All writes made through
// it commit or roll back as one unit.
type Tx interface {
	InsertReservation(ctx context.Context, r *model.Reservation) error
	SaveChargeItems(ctx context.Context, reservationID int64, items []model.ChargeItem) error
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
}

// execer is the query surface shared by sql.DB and sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlTx struct {
	tx *sql.Tx
}

// InTx runs fn inside a single transaction. A non-nil error from fn rolls
// everything back and is returned as-is, so sentinel checks like
// errors.Is(err, ErrDuplicateReference) still work on the result.
func (db *DB) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// placeholders returns "?,?,..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64Args converts ids for use with a placeholders() IN clause.
func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
