package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"studiobook/internal/stats"
)

// UtilizationResponse is the response for GET /api/stats/utilization.
type UtilizationResponse struct {
	RoomIDs []int64            `json:"room_ids"`
	Pooled  bool               `json:"pooled"`
	Rates   map[string]float64 `json:"rates"` // keyed by "YYYY-MM"
}

// handleUtilization returns monthly utilization percentages.
// GET /api/stats/utilization?room_ids=1,2&months=2026-03,2026-04&pooled=true
//
// The default is the admin view, the arithmetic mean of per-room rates;
// pooled=true switches to the host view where minutes are summed first.
func (s *HTTPServer) handleUtilization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	roomIDs, err := parseIDList(r.URL.Query().Get("room_ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	months, err := parseMonthList(r.URL.Query().Get("months"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pooled := r.URL.Query().Get("pooled") == "true"

	ctx := r.Context()
	cacheKey := fmt.Sprintf("utilization:%s:%s:%v",
		r.URL.Query().Get("room_ids"), r.URL.Query().Get("months"), pooled)

	var resp UtilizationResponse
	if s.readCache(ctx, cacheKey, &resp) {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var rates map[stats.YearMonth]float64
	if pooled {
		rates, err = s.calc.PooledRate(ctx, roomIDs, months)
	} else {
		rates, err = s.calc.Utilization(ctx, roomIDs, months)
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("utilization calculation failed")
		writeError(w, http.StatusInternalServerError, "failed to compute utilization")
		return
	}

	resp = UtilizationResponse{
		RoomIDs: roomIDs,
		Pooled:  pooled,
		Rates:   make(map[string]float64, len(rates)),
	}
	for ym, rate := range rates {
		resp.Rates[ym.String()] = rate
	}

	s.writeCache(ctx, cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, fmt.Errorf("room_ids is required")
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid room id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseMonthList(raw string) ([]stats.YearMonth, error) {
	if raw == "" {
		return nil, fmt.Errorf("months is required")
	}
	var months []stats.YearMonth
	for _, part := range strings.Split(raw, ",") {
		ym, err := stats.ParseYearMonth(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		months = append(months, ym)
	}
	return months, nil
}
