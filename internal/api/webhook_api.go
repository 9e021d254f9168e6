package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studiobook/internal/ledger"
	"studiobook/internal/metrics"
)

// PaymentWebhookRequest is the confirmation payload the payment provider
// delivers. Metadata carries the reservation fields set at checkout time.
type PaymentWebhookRequest struct {
	Reference  string            `json:"reference"`
	PaidAmount *int64            `json:"paid_amount,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

// PaymentWebhookResponse reports the reconciliation outcome. Duplicate
// deliveries succeed with created=false.
type PaymentWebhookResponse struct {
	ReservationID int64 `json:"reservation_id"`
	Created       bool  `json:"created"`
}

// handlePaymentWebhook reconciles one payment confirmation.
// POST /api/webhook/payment
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req PaymentWebhookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	ctx := r.Context()
	reservation, created, err := s.ledger.Reconcile(ctx, req.Metadata, req.Reference, req.PaidAmount)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("reference", req.Reference).Msg("reconciliation failed")
		if errors.Is(err, ledger.ErrInvalidPayment) {
			// Malformed metadata is the caller's fault; a 4xx stops the
			// provider from retrying a payload that can never succeed.
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Anything else is a fault on our side; a 5xx asks the provider to
		// redeliver, which the transactional ledger makes safe.
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	if created {
		metrics.IncReservationCreated()
	} else {
		metrics.IncReconcileDuplicate()
	}

	writeJSON(w, http.StatusOK, PaymentWebhookResponse{
		ReservationID: reservation.ID,
		Created:       created,
	})
}
