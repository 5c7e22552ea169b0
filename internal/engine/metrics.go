package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheet_operations_total",
			Help: "Reserve and cancel outcomes",
		},
		[]string{"op", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheet_operation_duration_seconds",
			Help:    "Latency of reserve and cancel including the store transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"op"},
	)
)

func observe(op, result string, d time.Duration) {
	operations.WithLabelValues(op, result).Inc()
	if d > 0 {
		operationDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return "store_unavailable"
	}
	return Code(err)
}
