package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voyago",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voyago",
			Name:      "reservations_total",
			Help:      "Reservation attempts by resource type and outcome.",
		},
		[]string{"resource_type", "outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voyago",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions.",
		},
		[]string{"to_status"},
	)

	couponRedemptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voyago",
			Name:      "coupon_redemptions_total",
			Help:      "Successful coupon redemptions.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, bookingTransitions, couponRedemptions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncReservation records a reservation attempt outcome ("ok" or "failed").
func IncReservation(resourceType, outcome string) {
	reservations.WithLabelValues(resourceType, outcome).Inc()
}

// IncTransition records a booking moving into a status.
func IncTransition(toStatus string) {
	bookingTransitions.WithLabelValues(toStatus).Inc()
}

// IncCouponRedemption records a successful redemption.
func IncCouponRedemption() {
	couponRedemptions.Inc()
}
