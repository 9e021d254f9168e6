// Package api exposes the booking engine over HTTP: quoting, availability
// checks, the payment reconciliation webhook and utilization stats.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"studiobook/internal/database"
	"studiobook/internal/ledger"
	"studiobook/internal/metrics"
	"studiobook/internal/pricing"
	"studiobook/internal/stats"
)

// TimeLayout is the timestamp format all request and response bodies use.
const TimeLayout = "2006-01-02T15:04"

// HTTPServer serves the public JSON API.
type HTTPServer struct {
	db      *database.DB
	engine  *pricing.Engine
	ledger  *ledger.Ledger
	calc    *stats.Calculator
	log     zerolog.Logger
	limiter *rate.Limiter

	cache    *redis.Client
	cacheTTL time.Duration
}

// NewHTTPServer wires the API over the storage and domain components.
// ratePerSecond/burst bound the total request rate across all clients.
func NewHTTPServer(db *database.DB, lg *ledger.Ledger, logger zerolog.Logger, ratePerSecond, burst int) *HTTPServer {
	return &HTTPServer{
		db:      db,
		engine:  pricing.NewEngine(),
		ledger:  lg,
		calc:    stats.NewCalculator(db),
		log:     logger,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// UseRedisCache configures optional caching for the stats endpoint.
func (s *HTTPServer) UseRedisCache(client *redis.Client, ttl time.Duration) {
	s.cache = client
	s.cacheTTL = ttl
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quote", s.withRequestID(s.handleQuote))
	mux.HandleFunc("/api/availability", s.withRequestID(s.handleAvailability))
	mux.HandleFunc("/api/webhook/payment", s.withRequestID(s.handlePaymentWebhook))
	mux.HandleFunc("/api/stats/utilization", s.withRequestID(s.handleUtilization))
	return mux
}

// withRequestID tags each request with a UUID in the context logger, applies
// the global rate limit and records the response status metric.
func (s *HTTPServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			metrics.IncHTTPRequest(r.URL.Path, "429")
			return
		}
		requestID := uuid.New().String()
		l := s.log.With().Str("request_id", requestID).Logger()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(l.WithContext(r.Context())))
		metrics.IncHTTPRequest(r.URL.Path, fmt.Sprintf("%d", rec.status))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readCache loads a cached JSON value into dest, reporting a hit.
func (s *HTTPServer) readCache(ctx context.Context, key string, dest any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	val, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

func (s *HTTPServer) writeCache(ctx context.Context, key string, v any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.cacheTTL).Err()
}

// parseSpanTimes parses the shared start_at/end_at request fields.
func parseSpanTimes(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_at and end_at are required")
	}
	start, err := time.ParseInLocation(TimeLayout, startStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_at; expected %s", TimeLayout)
	}
	end, err := time.ParseInLocation(TimeLayout, endStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_at; expected %s", TimeLayout)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_at must be before end_at")
	}
	return start, end, nil
}
