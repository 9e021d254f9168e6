package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// AppendAudit writes one append-only audit record.
func (db *DB) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	return appendAudit(ctx, db.DB, e)
}

func (t *sqlTx) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}

func appendAudit(ctx context.Context, q execer, e *model.AuditEntry) error {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO audit_log (ts, actor_id, action, entity, entity_id, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.TS, e.ActorID, e.Action, e.Entity, e.EntityID, nullString(e.Note),
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListAuditEntries returns the audit trail for one entity, oldest first.
func (db *DB) ListAuditEntries(ctx context.Context, entity string, entityID int64) ([]model.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, ts, actor_id, action, entity, entity_id, note
		FROM audit_log WHERE entity = ? AND entity_id = ? ORDER BY id`, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for %s %d: %w", entity, entityID, err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &note); err != nil {
			return nil, err
		}
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOldAuditEntries drops audit rows older than the retention window and
// returns how many were removed.
func (db *DB) DeleteOldAuditEntries(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := db.ExecContext(ctx, `DELETE FROM audit_log WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// exportTables are the tables included in the monthly export, in sheet order.
var exportTables = []string{
	"rooms",
	"room_business_hours",
	"closures",
	"price_rules",
	"reservations",
	"reservation_charge_items",
	"audit_log",
}

// GetTableNames returns the tables to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return exportTables, nil
}

// GetTableData returns every row of a table as column-keyed maps, plus the
// column order. Only tables on the export allowlist are readable this way.
func (db *DB) GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error) {
	allowed := false
	for _, t := range exportTables {
		if t == tableName {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil, fmt.Errorf("table %q is not exportable", tableName)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("query table %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		data = append(data, row)
	}
	return data, columns, rows.Err()
}

// GetDB exposes the underlying handle for custom export queries.
func (db *DB) GetDB() *sql.DB {
	return db.DB
}
