// SPDX-License-Identifier: GPL-2.0-only

// Package metricsx wires the daemon's own prometheus registry, grounded on
// main.go's inline registry setup in the teacher (NewRegistry plus
// collectors.NewGoCollector/NewProcessCollector exposed over /metrics)
// generalized into gauges and counters for registry, client, and
// integration state instead of device-plugin resource counts.
package metricsx

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the daemon's prometheus.Registry plus the daemon's
// gauges/counters. All of them are registered and exported; the daemon
// itself updates only IntegrationEvents (from its integration event sink),
// and nothing in it sets the others. It never reaches into registry/broker
// internals itself; callers push their own counts in so this package stays
// free of a cyclic dependency on the packages it measures.
type Metrics struct {
	Registry *prometheus.Registry

	DevicesConnected  prometheus.Gauge
	ClientsConnected  prometheus.Gauge
	CommandsHandled   *prometheus.CounterVec
	IntegrationEvents *prometheus.CounterVec
	PosterDropped     prometheus.Counter
	EffectsPlayed     *prometheus.CounterVec
}

// New builds a fresh registry with the standard Go/process collectors
// registered, exactly as the teacher's Main does, plus the daemon-specific
// instruments.
func New() *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: r,
		DevicesConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vestd",
			Name:      "devices_connected",
			Help:      "Number of vest devices currently registered.",
		}),
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vestd",
			Name:      "clients_connected",
			Help:      "Number of TCP clients currently connected.",
		}),
		CommandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vestd",
			Name:      "commands_handled_total",
			Help:      "Commands dispatched, labeled by command name.",
		}, []string{"cmd"}),
		IntegrationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vestd",
			Name:      "integration_events_total",
			Help:      "Game events ingested, labeled by integration prefix.",
		}, []string{"integration"}),
		PosterDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vestd",
			Name:      "poster_dropped_total",
			Help:      "Callbacks discarded from the poster queue under back-pressure.",
		}),
		EffectsPlayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vestd",
			Name:      "effects_played_total",
			Help:      "Predefined effects started, labeled by effect name.",
		}, []string{"effect"}),
	}

	r.MustRegister(
		m.DevicesConnected,
		m.ClientsConnected,
		m.CommandsHandled,
		m.IntegrationEvents,
		m.PosterDropped,
		m.EffectsPlayed,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry, matching
// promhttp.HandlerFor(r, promhttp.HandlerOpts{}) in the teacher's main.go.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Mux builds the /health + /metrics mux the teacher's Main serves over its
// "listen" address, generalized with the given health check.
func Mux(m *Metrics, healthy func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", m.Handler())
	return mux
}

// Listen binds the metrics/health address, matching main.go's
// net.Listen("tcp", listen) call made ahead of handing the listener to the
// http.Serve actor.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
