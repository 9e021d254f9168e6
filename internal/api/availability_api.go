package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studiobook/internal/availability"
	"studiobook/internal/database"
	"studiobook/internal/interval"
)

// AvailabilityRequest is the request body for POST /api/availability.
type AvailabilityRequest struct {
	RoomID  int64  `json:"room_id"`
	StartAt string `json:"start_at"` // Format: 2006-01-02T15:04
	EndAt   string `json:"end_at"`
}

// AvailabilityResponse reports whether the span fits the room's weekly
// schedule. Closures and existing reservations are not consulted here; they
// surface at payment time.
type AvailabilityResponse struct {
	RoomID    int64  `json:"room_id"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// handleAvailability checks one candidate span against business hours.
// POST /api/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AvailabilityRequest
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

	ctx := r.Context()
	if _, err := s.db.GetRoom(ctx, req.RoomID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("room_id", req.RoomID).Msg("failed to load room")
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	hours, err := s.db.GetBusinessHours(ctx, req.RoomID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("room_id", req.RoomID).Msg("failed to load business hours")
		writeError(w, http.StatusInternalServerError, "failed to load business hours")
		return
	}

	resp := AvailabilityResponse{RoomID: req.RoomID, Available: true}
	span := interval.Span{Start: start, End: end}
	if !availability.FitsWithinBusinessHours(availability.HoursByWeekday(hours), span) {
		resp.Available = false
		resp.Reason = "outside_business_hours"
	}
	writeJSON(w, http.StatusOK, resp)
}
