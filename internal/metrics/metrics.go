package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "bookings_created_total",
			Help:      "Appointments booked successfully.",
		},
	)
	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "bookings_cancelled_total",
			Help:      "Appointments cancelled successfully.",
		},
	)
	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "slot_conflicts_total",
			Help:      "Booking attempts rejected because the slot was taken.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingsCancelled, slotConflicts, httpRequests)
	})
}

func IncBookingCreated()   { bookingsCreated.Inc() }
func IncBookingCancelled() { bookingsCancelled.Inc() }
func IncSlotConflict()     { slotConflicts.Inc() }

// IncHTTP increments the request counter for a route label.
func IncHTTP(route string) { httpRequests.WithLabelValues(route).Inc() }
