package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain collectors for the payment bridge. Registered once by the HTTP
// server; duplicate registration is logged and ignored so tests can build
// multiple engines.
var (
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "momobridge",
			Name:      "callbacks_total",
			Help:      "Webhook callbacks processed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "momobridge",
			Name:      "transitions_total",
			Help:      "Transaction status transitions applied by the reconciliation engine.",
		},
		[]string{"status"},
	)

	HooksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "momobridge",
			Name:      "hooks_failed_total",
			Help:      "Side-effect hook failures, partitioned by hook name.",
		},
		[]string{"hook"},
	)
)

// RegisterDomainMetrics registers the bridge collectors on the default
// registry.
func RegisterDomainMetrics(logger Logger) {
	for _, c := range []prometheus.Collector{CallbacksTotal, TransitionsTotal, HooksFailedTotal} {
		if err := prometheus.Register(c); err != nil {
			if logger != nil {
				logger.Errorf("domain metric could not be registered: %v", err)
			}
		}
	}
}
