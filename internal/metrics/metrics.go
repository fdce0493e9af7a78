package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_orders_placed_total",
		Help: "Orders successfully placed.",
	})
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_orders_rejected_total",
		Help: "Order placements rejected, by error kind.",
	}, []string{"reason"})
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_bookings_created_total",
		Help: "Bookings created.",
	})
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_payment_verifications_total",
		Help: "Payment verification attempts, by result.",
	}, []string{"result"})
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_notifications_dropped_total",
		Help: "Notifications that could not be dispatched, by channel.",
	}, []string{"channel"})
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_emails_total",
		Help: "Emails handled by the notifier, by result.",
	}, []string{"result"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appliance_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route", "status"})
)
