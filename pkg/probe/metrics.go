package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

var (
	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidra_probe_duration_seconds",
			Help:    "Time taken by individual probes",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)

	probeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidra_probe_results_total",
			Help: "Probe outcomes by kind and status",
		},
		[]string{"kind", "status"},
	)
)

func observeProbe(res inventory.ProbeResult) {
	probeDuration.WithLabelValues(string(res.Kind)).Observe(res.Duration.Seconds())
	probeResults.WithLabelValues(string(res.Kind), string(res.Status)).Inc()
}
