package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "headscale_console"

// Transport labels.
const (
	TransportREST = "rest"
	TransportRPC  = "rpc"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds the console's transport metrics.
type Registry struct {
	reg *prometheus.Registry

	TransportCalls   *prometheus.CounterVec
	TransportLatency *prometheus.HistogramVec
	Fallbacks        *prometheus.CounterVec
	Probes           *prometheus.CounterVec
	APIRequests      *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = New()
	})
	return registry
}

// New builds a registry on a fresh prometheus.Registry. Tests use it to
// avoid cross-test counter bleed.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	r := &Registry{reg: reg}

	r.TransportCalls = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_calls_total",
		Help:      "Calls issued against the control plane by transport, operation and outcome",
	}, []string{"transport", "operation", "outcome"})

	r.TransportLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transport_call_seconds",
		Help:      "Control plane call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport", "operation"})

	r.Fallbacks = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallbacks_total",
		Help:      "Operations that fell back from rpc to rest",
	}, []string{"operation", "reason"})

	r.Probes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Availability probes by transport and result",
	}, []string{"transport", "result"})

	r.APIRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Console HTTP API requests by route and status class",
	}, []string{"route", "status"})

	return r
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveCall records one transport call. A nil registry is a no-op.
func (r *Registry) ObserveCall(transport, operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.TransportCalls.WithLabelValues(transport, operation, Outcome(err)).Inc()
	r.TransportLatency.WithLabelValues(transport, operation).Observe(time.Since(start).Seconds())
}

// RecordFallback counts an rpc to rest fallback.
func (r *Registry) RecordFallback(operation, reason string) {
	if r == nil {
		return
	}
	r.Fallbacks.WithLabelValues(operation, reason).Inc()
}

// RecordProbe counts an availability probe.
func (r *Registry) RecordProbe(transport string, ok bool) {
	if r == nil {
		return
	}
	result := "down"
	if ok {
		result = "up"
	}
	r.Probes.WithLabelValues(transport, result).Inc()
}

// RecordAPIRequest counts one admin API request by route and status class.
func (r *Registry) RecordAPIRequest(route string, status int) {
	if r == nil {
		return
	}
	r.APIRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}

// Outcome classifies an error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
