package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "classbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route"},
	)

	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "auth_failures_total",
			Help:      "Count of rejected authentications by reason.",
		},
		[]string{"reason"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "reservations_created_total",
			Help:      "Count of reservations created.",
		},
	)

	reservationsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "reservations_cancelled_total",
			Help:      "Count of reservations cancelled.",
		},
	)

	classroomsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "classrooms_created_total",
			Help:      "Count of classrooms created through the API.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, authFailures,
			reservationsCreated, reservationsCancelled, classroomsCreated)
	})
}

func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func IncAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

func IncReservationCreated() {
	reservationsCreated.Inc()
}

func IncReservationCancelled() {
	reservationsCancelled.Inc()
}

func IncClassroomCreated() {
	classroomsCreated.Inc()
}
