// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_transactions_started_total",
			Help: "Total number of payment transactions opened",
		},
		[]string{"flow"},
	)

	TransactionsSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_transactions_succeeded_total",
			Help: "Total number of payment transactions confirmed",
		},
		[]string{"flow"},
	)

	TransactionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_transactions_failed_total",
			Help: "Total number of payment transactions that failed",
		},
		[]string{"flow", "error_code"},
	)

	TransactionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_transactions_rejected_total",
			Help: "Transactions refused at the entry boundary, before any payment",
		},
		[]string{"flow", "error_code"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_gateway_duration_seconds",
			Help:    "Duration of gateway confirmation calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		},
		[]string{"flow"},
	)

	FeesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_fees_collected_total",
			Help: "Sum of confirmed fees in shillings",
		},
		[]string{"flow"},
	)
)
