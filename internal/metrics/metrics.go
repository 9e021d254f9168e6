package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	quoteGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "quote_generated_total",
			Help:      "Count of price quotes generated.",
		},
	)

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by reconciliation.",
		},
	)

	reconcileDuplicate = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "reconcile_duplicate_total",
			Help:      "Count of payment confirmations skipped as already reconciled.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(quoteGenerated, reservationCreated, reconcileDuplicate, httpRequests)
	})
}

func IncQuoteGenerated() {
	quoteGenerated.Inc()
}

func IncReservationCreated() {
	reservationCreated.Inc()
}

func IncReconcileDuplicate() {
	reconcileDuplicate.Inc()
}

func IncHTTPRequest(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}
