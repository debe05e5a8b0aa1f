// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warungpos_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	SalesPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warungpos_sales_posted_total",
		Help: "Sales written by the sale poster, by payment status",
	}, []string{"payment_status"})

	SalesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warungpos_sales_rejected_total",
		Help: "Sales refused by the sale poster",
	}, []string{"reason"})

	SalesDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warungpos_sales_duplicate_total",
		Help: "Offline sales answered from an existing transaction",
	})

	SalePostLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warungpos_sale_post_latency_seconds",
		Help:    "Latency of the atomic sale posting",
		Buckets: prometheus.DefBuckets,
	})

	DebtPaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warungpos_debt_payments_total",
		Help: "Debt payments recorded",
	})

	DashboardCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warungpos_dashboard_cache_total",
		Help: "Dashboard cache lookups by result",
	}, []string{"result"})

	SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warungpos_sync_queue_depth",
		Help: "Offline sales waiting for a replay attempt",
	})

	SyncDeadLetters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warungpos_sync_dead_letters",
		Help: "Offline sales moved to the dead-letter list",
	})

	SyncReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warungpos_sync_replays_total",
		Help: "Replay attempts of queued offline sales by outcome",
	}, []string{"outcome"})
)
