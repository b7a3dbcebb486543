package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aeroforge_gateway_call_seconds",
		Help:    "Duration of external collaborator calls, including failed attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeroforge_gateway_retries_total",
		Help: "Attempts that failed with a transient error and were retried.",
	}, []string{"tool"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeroforge_gateway_fallbacks_total",
		Help: "Fallback policy activations after retry exhaustion.",
	}, []string{"tool"})
)
