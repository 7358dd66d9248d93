package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swiftmeds_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reservationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_reservations_created_total",
		Help: "Reservations created, by initial status",
	}, []string{"status"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_reservation_transitions_total",
		Help: "Reservation status transitions",
	}, []string{"from", "to"})

	reservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftmeds_reservations_expired_total",
		Help: "Reservations cancelled because their expiry passed",
	})

	inventoryAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_inventory_adjustments_total",
		Help: "Inventory writes by kind (set, hold, release) and result",
	}, []string{"kind", "result"})

	relayDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_relay_events_delivered_total",
		Help: "Change events handed to subscribers",
	}, []string{"topic"})

	relayDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_relay_events_dropped_total",
		Help: "Change events dropped because a subscriber queue was full",
	}, []string{"topic"})

	relaySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swiftmeds_relay_subscribers",
		Help: "Number of open relay subscriptions",
	})

	expirySweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftmeds_expiry_sweeps_total",
		Help: "Background expiry sweeps by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReservationCreated counts a new reservation
func ObserveReservationCreated(status string) {
	reservationsCreated.WithLabelValues(status).Inc()
}

// ObserveTransition counts a status change
func ObserveTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// ObserveExpired counts reservations cancelled by expiry
func ObserveExpired(n int) {
	reservationsExpired.Add(float64(n))
}

// ObserveInventory records an inventory write
func ObserveInventory(kind, result string) {
	inventoryAdjustments.WithLabelValues(kind, result).Inc()
}

func ObserveRelayDelivered(topic string) {
	relayDelivered.WithLabelValues(topic).Inc()
}

func ObserveRelayDropped(topic string) {
	relayDropped.WithLabelValues(topic).Inc()
}

// SetRelaySubscribers sets the open subscription gauge
func SetRelaySubscribers(count int) {
	if count < 0 {
		count = 0
	}
	relaySubscribers.Set(float64(count))
}

// ObserveExpirySweep increments the sweep counter for the given result
func ObserveExpirySweep(result string) {
	expirySweeps.WithLabelValues(result).Inc()
}
