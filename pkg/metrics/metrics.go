// Package metrics exposes covrpc's ambient observability surface: call
// latency, in-flight count, and protocol/transport error counts. None of
// it sits on the call's critical path; a Call still completes correctly
// with metrics disabled or unregistered.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the metrics one connection (client or server) reports.
// Callers register it against their own prometheus.Registerer, or use the
// package-level Default registered against prometheus's global registry.
type Registry struct {
	CallLatency prometheus.Histogram
	Inflight    prometheus.Gauge
	Errors      *prometheus.CounterVec
}

// NewRegistry builds a Registry with namespace/subsystem labels and
// registers it against reg.
func NewRegistry(reg prometheus.Registerer, namespace, subsystem string) *Registry {
	r := &Registry{
		CallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "call_latency_seconds",
			Help:      "Round-trip latency of client Call()s.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 20),
		}),
		Inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inflight",
			Help:      "Number of calls currently occupying a slot.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Errors by kind (payload_too_large, transport, protocol, handler).",
		}, []string{"kind"}),
	}
	reg.MustRegister(r.CallLatency, r.Inflight, r.Errors)
	return r
}

// Default is registered against the global Prometheus registry for
// processes that don't need per-connection isolation (the demo CLI).
var Default = NewRegistry(prometheus.DefaultRegisterer, "covrpc", "")
