package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the companion records.
type Metrics struct {
	registry *prometheus.Registry

	Transitions   *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
	HostState     *prometheus.GaugeVec
	Probes        *prometheus.CounterVec
	ProbeFailures prometheus.Gauge
	DNSSwitches   *prometheus.CounterVec
	Handshakes    *prometheus.CounterVec
	InboxFlushed  prometheus.Counter
	HostPower     prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balupi_state_transitions_total",
				Help: "Committed host state transitions",
			},
			[]string{"from", "to", "source"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balupi_state_rejections_total",
				Help: "Transition requests refused by the lifecycle graph",
			},
			[]string{"from", "to"},
		),
		HostState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "balupi_host_state",
				Help: "1 for the current host state, 0 otherwise",
			},
			[]string{"state"},
		),
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balupi_heartbeat_probes_total",
				Help: "Host health probes by outcome",
			},
			[]string{"result"},
		),
		ProbeFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balupi_heartbeat_consecutive_failures",
			Help: "Current run of failed health probes",
		}),
		DNSSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balupi_dns_switches_total",
				Help: "Failover alias updates by target and outcome",
			},
			[]string{"target", "result"},
		),
		Handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balupi_handshake_requests_total",
				Help: "Inbound handshake requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		InboxFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balupi_inbox_files_transferred_total",
			Help: "Files moved from the inbox to the host",
		}),
		HostPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balupi_host_power_watts",
			Help: "Latest host power reading seen by the heartbeat",
		}),
	}

	m.registry.MustRegister(
		m.Transitions,
		m.Rejections,
		m.HostState,
		m.Probes,
		m.ProbeFailures,
		m.DNSSwitches,
		m.Handshakes,
		m.InboxFlushed,
		m.HostPower,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState marks current as the only active state.
func (m *Metrics) SetState(current domain.HostState) {
	for _, s := range domain.States {
		v := 0.0
		if s == current {
			v = 1
		}
		m.HostState.WithLabelValues(string(s)).Set(v)
	}
}

// Hooks returns state machine hooks feeding the transition collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			source := e.Source
			if e.Forced {
				source = "forced"
			}
			m.Transitions.WithLabelValues(string(e.From), string(e.To), source).Inc()
			m.SetState(e.To)
		},
		OnReject: func(ctx context.Context, e *domain.RejectionEvent) {
			m.Rejections.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
	}
}

// ObserveProbe records one heartbeat probe.
func (m *Metrics) ObserveProbe(ok bool, consecutiveFailures int) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Probes.WithLabelValues(result).Inc()
	m.ProbeFailures.Set(float64(consecutiveFailures))
}

// ObserveDNS records one alias update.
func (m *Metrics) ObserveDNS(target string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.DNSSwitches.WithLabelValues(target, result).Inc()
}
