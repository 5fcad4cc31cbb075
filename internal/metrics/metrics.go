package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "http_requests_total",
			Help:      "Count of gateway HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	bookingSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "booking_submitted_total",
			Help:      "Count of booking submissions by outcome.",
		},
		[]string{"status"},
	)

	bookingStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "booking_status_changes_total",
			Help:      "Count of booking cancellations and completions relayed to the backend.",
		},
		[]string{"status"},
	)

	availabilityParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "availability_parse_failures_total",
			Help:      "Count of stored availability values that could not be parsed.",
		},
		[]string{"reason"},
	)

	availabilityUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "availability_updates_total",
			Help:      "Count of availability updates sent to the backend.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingSubmitted, bookingStatusChanges, availabilityParseFailures, availabilityUpdates)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncBookingSubmitted(status string) {
	bookingSubmitted.WithLabelValues(status).Inc()
}

func IncBookingStatusChange(status string) {
	bookingStatusChanges.WithLabelValues(status).Inc()
}

func IncAvailabilityParseFailure(reason string) {
	availabilityParseFailures.WithLabelValues(reason).Inc()
}

func IncAvailabilityUpdate() {
	availabilityUpdates.Inc()
}
