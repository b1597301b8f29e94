package alerting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidra_alert_transitions_total",
			Help: "Alert severity transitions by event kind and new severity",
		},
		[]string{"kind", "severity"},
	)

	activeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sidra_active_alerts",
			Help: "Alerts currently above ok severity",
		},
	)
)

func observeTransition(ev Event) {
	transitionCounter.WithLabelValues(string(ev.Kind), string(ev.Severity)).Inc()
	switch ev.Kind {
	case EventFired:
		if ev.Previous == SeverityOK {
			activeGauge.Inc()
		}
	case EventResolved:
		activeGauge.Dec()
	}
}
