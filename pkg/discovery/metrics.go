package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fleetRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sidra_discovery_run_duration_seconds",
			Help:    "Time taken by a complete fleet discovery run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	fleetHostsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sidra_discovery_hosts_scanned_total",
			Help: "Total number of hosts scanned across discovery runs",
		},
	)
)
