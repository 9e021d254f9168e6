// Package ledger turns confirmed external payments into reservations with a
// durable, itemized charge breakdown. Reconciliation is idempotent per
// external payment reference.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"studiobook/internal/database"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
)

// MetadataTimeLayout is the timestamp format payment metadata carries.
const MetadataTimeLayout = "2006-01-02T15:04"

// Metadata keys the payment step must supply.
const (
	MetaRoomID  = "room_id"
	MetaUserID  = "user_id"
	MetaStartAt = "start_at"
	MetaEndAt   = "end_at"
	MetaAmount  = "amount"
)

// Audit actions written during reconciliation.
const (
	ActionReservationCreated   = "reservation_created"
	ActionChargeItemsGenerated = "charge_items_generated"
)

// ErrInvalidPayment marks confirmations that can never reconcile no matter
// how often they are redelivered: bad metadata, an unknown room, a missing
// reference. Callers use it to separate payload faults from store faults.
var ErrInvalidPayment = errors.New("invalid payment confirmation")

// Store is the persistence surface reconciliation needs. InTx scopes the
// writes of one confirmation: reservation, breakdown and audit trail land
// together or not at all.
type Store interface {
	GetReservationByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error)
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	PriceRulesByRoom(ctx context.Context, roomID int64) ([]model.PriceRule, error)
	LoadPricingSettings(ctx context.Context) (pricing.Settings, error)
	InTx(ctx context.Context, fn func(database.Tx) error) error
}

// Ledger reconciles payment confirmations into reservations.
type Ledger struct {
	store  Store
	engine *pricing.Engine
	logger zerolog.Logger
}

// NewLedger creates a reconciliation ledger.
func NewLedger(store Store, engine *pricing.Engine, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, engine: engine, logger: logger}
}

// Reconcile processes one payment confirmation. The returned bool reports
// whether a reservation was created; an already-seen externalRef returns the
// existing reservation and false.
//
// Concurrent deliveries of the same reference are resolved by the storage
// unique constraint, not by in-process locking: whoever inserts first wins,
// the loser re-reads and takes the skip path.
func (l *Ledger) Reconcile(ctx context.Context, metadata map[string]string, externalRef string, paidAmount *int64) (*model.Reservation, bool, error) {
	if externalRef == "" {
		return nil, false, fmt.Errorf("%w: empty external payment reference", ErrInvalidPayment)
	}

	if existing, err := l.store.GetReservationByPaymentRef(ctx, externalRef); err == nil {
		l.logger.Info().Str("payment_ref", externalRef).Int64("reservation_id", existing.ID).
			Msg("payment reference already reconciled, skipping")
		return existing, false, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, false, fmt.Errorf("look up payment ref %q: %w", externalRef, err)
	}

	parsed, err := parseMetadata(metadata)
	if err != nil {
		return nil, false, fmt.Errorf("%w: metadata for ref %q: %w", ErrInvalidPayment, externalRef, err)
	}

	// External truth wins over whatever the checkout step declared.
	amount := parsed.amount
	if paidAmount != nil {
		amount = *paidAmount
	}

	reservation := &model.Reservation{
		RoomID:     parsed.roomID,
		UserID:     parsed.userID,
		StartAt:    parsed.startAt,
		EndAt:      parsed.endAt,
		Amount:     amount,
		Status:     model.StatusBooked,
		PaymentRef: externalRef,
	}

	// Price from persisted data before touching storage. The recomputed total
	// may differ from the paid amount when rules changed between quote and
	// payment; the audit note records both so divergence stays visible.
	quote, err := l.priceReservation(ctx, reservation)
	if err != nil {
		return nil, false, err
	}

	// Reservation, breakdown and audit trail commit as one unit. A failure
	// anywhere rolls the payment_ref row back, so the provider's redelivery
	// gets a clean retry instead of the idempotent-skip path.
	err = l.store.InTx(ctx, func(tx database.Tx) error {
		if err := tx.InsertReservation(ctx, reservation); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &model.AuditEntry{
			ActorID:  reservation.UserID,
			Action:   ActionReservationCreated,
			Entity:   "reservation",
			EntityID: reservation.ID,
			Note:     fmt.Sprintf("ref=%s", externalRef),
		}); err != nil {
			return fmt.Errorf("audit reservation %d: %w", reservation.ID, err)
		}
		if err := tx.SaveChargeItems(ctx, reservation.ID, chargeItemsFromQuote(reservation.ID, quote)); err != nil {
			return fmt.Errorf("save charge items for reservation %d: %w", reservation.ID, err)
		}
		if err := tx.AppendAudit(ctx, &model.AuditEntry{
			ActorID:  reservation.UserID,
			Action:   ActionChargeItemsGenerated,
			Entity:   "reservation",
			EntityID: reservation.ID,
			Note:     fmt.Sprintf("calcTotal=%d, paid=%d", quote.Total, reservation.Amount),
		}); err != nil {
			return fmt.Errorf("audit charge items for reservation %d: %w", reservation.ID, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateReference) {
			// Lost the insert race; the winner's row is authoritative.
			existing, lookupErr := l.store.GetReservationByPaymentRef(ctx, externalRef)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("re-read reservation after duplicate ref %q: %w", externalRef, lookupErr)
			}
			l.logger.Info().Str("payment_ref", externalRef).Int64("reservation_id", existing.ID).
				Msg("concurrent reconciliation won the insert, skipping")
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("reconcile ref %q: %w", externalRef, err)
	}

	l.logger.Info().
		Str("payment_ref", externalRef).
		Int64("reservation_id", reservation.ID).
		Int64("paid", reservation.Amount).
		Int64("calc_total", quote.Total).
		Msg("reconciled payment into reservation")

	return reservation, true, nil
}

func (l *Ledger) priceReservation(ctx context.Context, r *model.Reservation) (*pricing.Quote, error) {
	room, err := l.store.GetRoom(ctx, r.RoomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown room %d", ErrInvalidPayment, r.RoomID)
		}
		return nil, fmt.Errorf("load room %d: %w", r.RoomID, err)
	}
	rules, err := l.store.PriceRulesByRoom(ctx, r.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load price rules for room %d: %w", r.RoomID, err)
	}
	settings, err := l.store.LoadPricingSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing settings: %w", err)
	}

	quote, err := l.engine.Price(*room, r.Span(), rules, settings)
	if err != nil {
		return nil, fmt.Errorf("price reservation for ref %q: %w", r.PaymentRef, err)
	}
	return quote, nil
}

func chargeItemsFromQuote(reservationID int64, quote *pricing.Quote) []model.ChargeItem {
	items := make([]model.ChargeItem, 0, len(quote.Items))
	for _, it := range quote.Items {
		items = append(items, model.ChargeItem{
			ReservationID:   reservationID,
			Kind:            it.Kind,
			Description:     it.Description,
			SliceStart:      it.SliceStart,
			SliceEnd:        it.SliceEnd,
			Amount:          it.Amount,
			UnitRatePerHour: it.UnitRatePerHour,
		})
	}
	return items
}

type parsedMetadata struct {
	roomID, userID int64
	startAt, endAt time.Time
	amount         int64
}

// parseMetadata extracts the reservation fields from payment metadata.
// Every key is required; nothing is silently defaulted.
func parseMetadata(metadata map[string]string) (parsedMetadata, error) {
	var p parsedMetadata
	var err error

	if p.roomID, err = requireInt(metadata, MetaRoomID); err != nil {
		return p, err
	}
	if p.userID, err = requireInt(metadata, MetaUserID); err != nil {
		return p, err
	}
	if p.amount, err = requireInt(metadata, MetaAmount); err != nil {
		return p, err
	}
	if p.startAt, err = requireTime(metadata, MetaStartAt); err != nil {
		return p, err
	}
	if p.endAt, err = requireTime(metadata, MetaEndAt); err != nil {
		return p, err
	}
	if !p.startAt.Before(p.endAt) {
		return p, fmt.Errorf("end_at %s is not after start_at %s",
			p.endAt.Format(MetadataTimeLayout), p.startAt.Format(MetadataTimeLayout))
	}
	return p, nil
}

func requireInt(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("missing required key %q", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: invalid integer %q", key, raw)
	}
	return v, nil
}

func requireTime(metadata map[string]string, key string) (time.Time, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("missing required key %q", key)
	}
	t, err := time.ParseInLocation(MetadataTimeLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("key %q: invalid timestamp %q", key, raw)
	}
	return t, nil
}
