// Package metrics provides Prometheus metrics for the rentflow service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AgreementTransitionsTotal tracks agreement lifecycle events by resulting status
	AgreementTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentflow",
			Subsystem: "agreement",
			Name:      "transitions_total",
			Help:      "Total number of agreement lifecycle events by resulting status",
		},
		[]string{"status"},
	)

	// PaymentsCreatedTotal tracks payment intents handed to the gateway
	PaymentsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rentflow",
			Subsystem: "payment",
			Name:      "created_total",
			Help:      "Total number of payment intents created",
		},
	)

	// ReconciliationsTotal tracks reconciliation attempts by outcome
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentflow",
			Subsystem: "payment",
			Name:      "reconciliations_total",
			Help:      "Total number of payment reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	// GatewayRequestDuration tracks outbound gateway call duration
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rentflow",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of payment gateway calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation", "result"},
	)

	// NotificationsTotal tracks notification publishing by result
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentflow",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notifications by template and result",
		},
		[]string{"template", "result"},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
)
