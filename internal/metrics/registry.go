// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes mitigation activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every wlanguard metric. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	outcomes      *prometheus.CounterVec
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	resets        prometheus.Counter
	rulePackets   *prometheus.GaugeVec
	pendingWrites prometheus.Gauge
}

// NewRegistry creates a registry with process and Go collectors attached.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanguard_outcomes_total",
			Help: "Outcome tags returned per threat category",
		},
		[]string{"threat", "outcome"},
	)
	r.steps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanguard_steps_total",
			Help: "Mitigation steps by action and result",
		},
		[]string{"action", "result"},
	)
	r.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wlanguard_step_duration_seconds",
			Help:    "Time spent executing a mitigation step",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"action"},
	)
	r.resets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wlanguard_resets_total",
		Help: "Completed reset procedures",
	})
	r.rulePackets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wlanguard_rule_packets",
			Help: "Packets matched by installed drop rules",
		},
		[]string{"rule"},
	)
	r.pendingWrites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wlanguard_actionlog_pending",
		Help: "Drained action log entries not yet persisted",
	})

	r.reg.MustRegister(
		r.outcomes, r.steps, r.stepDuration, r.resets, r.rulePackets, r.pendingWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Outcome counts one outcome tag for a threat.
func (r *Registry) Outcome(threat, outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(threat, outcome).Inc()
}

// Step counts a finished step and observes its duration.
func (r *Registry) Step(action, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(action, result).Inc()
	r.stepDuration.WithLabelValues(action).Observe(d.Seconds())
}

// Reset counts a completed reset and forgets rule counters.
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	r.resets.Inc()
	r.rulePackets.Reset()
}

// SetPending records the flusher backlog.
func (r *Registry) SetPending(n int) {
	if r == nil {
		return
	}
	r.pendingWrites.Set(float64(n))
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
