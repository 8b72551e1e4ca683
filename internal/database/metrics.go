package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "taskdeck_store_operations_total", Help: "Count of local store operations"},
		[]string{"op", "result"},
	)
	storeOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskdeck_store_operation_duration_seconds",
			Help:    "Latency of local store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"},
	)
)

func init() { prometheus.MustRegister(storeOpsTotal, storeOpLatency) }

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	storeOpsTotal.WithLabelValues(op, result).Inc()
	storeOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
