package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studiobook/internal/availability"
	"studiobook/internal/database"
	"studiobook/internal/interval"
	"studiobook/internal/metrics"
)

// QuoteRequest is the request body for POST /api/quote.
type QuoteRequest struct {
	RoomID  int64  `json:"room_id"`
	StartAt string `json:"start_at"` // Format: 2006-01-02T15:04
	EndAt   string `json:"end_at"`
}

// handleQuote prices a candidate reservation span for the confirm screen.
// POST /api/quote
func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req QuoteRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, end, err := parseSpanTimes(req.StartAt, req.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span := interval.Span{Start: start, End: end}

	ctx := r.Context()
	room, err := s.db.GetRoom(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("room_id", req.RoomID).Msg("failed to load room")
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	hours, err := s.db.GetBusinessHours(ctx, room.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("room_id", room.ID).Msg("failed to load business hours")
		writeError(w, http.StatusInternalServerError, "failed to load business hours")
		return
	}
	if !availability.FitsWithinBusinessHours(availability.HoursByWeekday(hours), span) {
		writeError(w, http.StatusConflict, "requested span is outside business hours")
		return
	}

	rules, err := s.db.PriceRulesByRoom(ctx, room.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("room_id", room.ID).Msg("failed to load price rules")
		writeError(w, http.StatusInternalServerError, "failed to load price rules")
		return
	}
	settings, err := s.db.LoadPricingSettings(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load pricing settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	quote, err := s.engine.Price(*room, span, rules, settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.IncQuoteGenerated()
	zerolog.Ctx(ctx).Info().
		Int64("room_id", room.ID).
		Int64("total", quote.Total).
		Msg("quote generated")

	writeJSON(w, http.StatusOK, quote)
}
