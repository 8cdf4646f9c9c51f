package cmd

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/comfyshim/gpupin/node"
)

// registerMetrics exposes the registry's counters on the default
// prometheus registerer.
func registerMetrics(registry *node.Registry) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gpupin_wrappers_registered",
			Help: "Number of wrapper nodes registered at startup.",
		},
		func() float64 { return float64(len(registry.Classes())) },
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gpupin_wrappers_missing",
			Help: "Number of wrapped preprocessors that could not be located.",
		},
		func() float64 { return float64(len(registry.Missing())) },
	))
	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "gpupin_guard_invocations_total",
			Help: "Device-pinned wrapper invocations.",
		},
		func() float64 {
			invocations, _ := registry.Stats()
			return float64(invocations)
		},
	))
	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "gpupin_guard_failures_total",
			Help: "Wrapper invocations whose wrapped preprocessor failed.",
		},
		func() float64 {
			_, failures := registry.Stats()
			return float64(failures)
		},
	))
}
