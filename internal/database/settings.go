package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studiobook/internal/pricing"
)

// Admin setting keys.
const (
	SettingTaxRate            = "tax_rate"
	SettingPriceRulesEnabled  = "price_rules_enabled"
	SettingBillingUnitMinutes = "billing_unit_minutes"
)

// GetSetting returns one setting value or ErrNotFound.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM admin_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts one setting value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// LoadPricingSettings assembles engine settings from admin_settings. Missing
// or unparseable values fall back to the defaults rather than failing a
// quote: a typo in the admin panel must not take pricing down.
func (db *DB) LoadPricingSettings(ctx context.Context) (pricing.Settings, error) {
	settings := pricing.DefaultSettings()

	if raw, err := db.GetSetting(ctx, SettingTaxRate); err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil && !rate.IsNegative() {
			settings.TaxRate = rate
		}
	} else if err != ErrNotFound {
		return settings, err
	}

	if raw, err := db.GetSetting(ctx, SettingPriceRulesEnabled); err == nil {
		if enabled, perr := strconv.ParseBool(raw); perr == nil {
			settings.RulesEnabled = enabled
		}
	} else if err != ErrNotFound {
		return settings, err
	}

	if raw, err := db.GetSetting(ctx, SettingBillingUnitMinutes); err == nil {
		if unit, perr := strconv.Atoi(raw); perr == nil && unit > 0 {
			settings.BillingUnitMinutes = unit
		}
	} else if err != ErrNotFound {
		return settings, err
	}

	return settings, nil
}
