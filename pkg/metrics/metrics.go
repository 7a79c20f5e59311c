package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch groups the service's counters: offer fan-out per path
// (broadcast|replay), accept outcomes (won|already_accepted|slot_conflict),
// and slot reservations (ok|full|busy).
type Dispatch struct {
	OffersFanned     *prometheus.CounterVec
	AcceptResults    *prometheus.CounterVec
	SlotReservations *prometheus.CounterVec
	HTTPLatencyMS    *prometheus.HistogramVec
}

func NewDispatch() *Dispatch {
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novus",
		Subsystem: "dispatch",
		Name:      "offers_fanned_total",
		Help:      "Job offers emitted to agent channels.",
	}, []string{"path"})
	accepts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novus",
		Subsystem: "dispatch",
		Name:      "accept_results_total",
		Help:      "Outcomes of acceptOrder calls.",
	}, []string{"result"})
	slots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novus",
		Subsystem: "dispatch",
		Name:      "slot_reservations_total",
		Help:      "Outcomes of reserveSlot calls.",
	}, []string{"result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "novus",
		Subsystem: "dispatch",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(offers, accepts, slots, latency)
	return &Dispatch{
		OffersFanned:     offers,
		AcceptResults:    accepts,
		SlotReservations: slots,
		HTTPLatencyMS:    latency,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
