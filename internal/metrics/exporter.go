// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Latency buckets in seconds. Generation calls run for seconds, HTTP
// requests for milliseconds.
var (
	GenerationLatencyBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 60}
	HTTPLatencyBuckets       = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// Breaker state gauge values.
const (
	breakerClosed   = 0
	breakerOpen     = 1
	breakerHalfOpen = 2
)

// Exporter mirrors aggregator events into Prometheus collectors on a
// private registry.
type Exporter struct {
	registry *prometheus.Registry

	OperationLatency *prometheus.HistogramVec
	Tokens           *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
}

// NewExporter creates and registers the gateway collectors, plus the Go
// runtime and process collectors.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		OperationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genos_operation_duration_seconds",
				Help:    "Duration of tracked operations such as AI generation",
				Buckets: GenerationLatencyBuckets,
			},
			[]string{"operation", "provider"},
		),
		Tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genos_ai_tokens_total",
				Help: "Total tokens consumed by provider",
			},
			[]string{"provider"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genos_operation_errors_total",
				Help: "Total failed operations",
			},
			[]string{"operation", "provider"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genos_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: HTTPLatencyBuckets,
			},
			[]string{"route", "method", "status"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "genos_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"provider"},
		),
	}

	e.registry.MustRegister(
		e.OperationLatency,
		e.Tokens,
		e.Errors,
		e.HTTPDuration,
		e.BreakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Registry returns the registry the collectors live on.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Observe maps one event to its collector. Unknown events are ignored.
func (e *Exporter) Observe(ev Event) {
	switch {
	case ev.Name == NameTokens:
		e.Tokens.WithLabelValues(ev.Tags["provider"]).Add(ev.Value)
	case ev.Name == NameHTTPRequest:
		e.HTTPDuration.WithLabelValues(ev.Tags["route"], ev.Tags["method"], ev.Tags["status"]).
			Observe(ev.Value / 1000)
	case strings.HasSuffix(ev.Name, ".latency"):
		e.OperationLatency.WithLabelValues(operationOf(ev.Name, ".latency"), ev.Tags["provider"]).
			Observe(ev.Value / 1000)
	case strings.HasSuffix(ev.Name, ".error"):
		e.Errors.WithLabelValues(operationOf(ev.Name, ".error"), ev.Tags["provider"]).Inc()
	}
}

// SetBreakerState records a breaker transition. state is one of CLOSED,
// OPEN or HALF_OPEN.
func (e *Exporter) SetBreakerState(provider, state string) {
	v := breakerClosed
	switch state {
	case "OPEN":
		v = breakerOpen
	case "HALF_OPEN":
		v = breakerHalfOpen
	}
	e.BreakerState.WithLabelValues(provider).Set(float64(v))
}

func operationOf(name, suffix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), suffix)
}
