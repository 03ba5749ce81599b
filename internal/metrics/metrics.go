// Package metrics exposes the agent's Prometheus instrumentation. It
// observes the engine and dispatcher through domain.LifecycleHooks and
// the energy position through a ProfileLedger decorator, so neither
// layer imports prometheus directly.
//
// Each Metrics value carries its own registry. Tests and multi-agent
// processes can therefore build as many instances as they like without
// colliding on the global default registerer.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
)

// Result label values shared by the run and dispatch counters.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds every collector the agent exports.
type Metrics struct {
	registry *prometheus.Registry

	HandlerRuns      *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	PhaseChanges     *prometheus.CounterVec
	Dispatches       *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	StoredKWh        *prometheus.GaugeVec
	CapacityKWh      *prometheus.GaugeVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,

		HandlerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridswap_handler_runs_total",
				Help: "Transition runs by trigger and result",
			},
			[]string{"agent_id", "trigger", "result"},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridswap_handler_duration_seconds",
				Help:    "Duration of transition handler runs",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"agent_id", "trigger"},
		),
		PhaseChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridswap_phase_changes_total",
				Help: "Negotiation phase edges taken",
			},
			[]string{"agent_id", "from", "to"},
		),
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridswap_dispatches_total",
				Help: "Outbound protocol sends by action and result",
			},
			[]string{"agent_id", "action", "result"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridswap_dispatch_duration_seconds",
				Help:    "Duration of outbound protocol sends",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id", "action"},
		),
		StoredKWh: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridswap_stored_kwh",
				Help: "Energy currently held by the agent",
			},
			[]string{"agent_id"},
		),
		CapacityKWh: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridswap_capacity_kwh",
				Help: "Maximum energy the agent can hold",
			},
			[]string{"agent_id"},
		),
	}
}

// Registry returns the backing registry, for callers that want to add
// their own collectors next to the agent's.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnHandlerFinish: func(_ context.Context, ev domain.HandlerEvent) {
			result := resultOK
			if ev.Err != nil {
				result = resultError
			}
			m.HandlerRuns.WithLabelValues(ev.AgentID, string(ev.Trigger), result).Inc()
			m.HandlerDuration.WithLabelValues(ev.AgentID, string(ev.Trigger)).Observe(ev.Duration.Seconds())
		},
		OnPhaseChange: func(_ context.Context, ev domain.PhaseChangeEvent) {
			m.PhaseChanges.WithLabelValues(ev.AgentID, string(ev.From), string(ev.To)).Inc()
		},
		OnDispatch: func(_ context.Context, ev domain.DispatchEvent) {
			result := resultOK
			if ev.Err != nil {
				result = resultError
			}
			m.Dispatches.WithLabelValues(ev.AgentID, string(ev.Action), result).Inc()
			m.DispatchDuration.WithLabelValues(ev.AgentID, string(ev.Action)).Observe(ev.Duration.Seconds())
		},
	}
}

// ObserveProfile updates the energy gauges from a profile snapshot.
func (m *Metrics) ObserveProfile(profile *domain.AgentProfile) {
	if profile == nil {
		return
	}
	m.StoredKWh.WithLabelValues(profile.AgentID).Set(profile.CurrentEnergyKWh)
	m.CapacityKWh.WithLabelValues(profile.AgentID).Set(profile.MaxCapacityKWh)
}

// InstrumentLedger wraps a ledger so every snapshot and applied delta
// refreshes the energy gauges.
func (m *Metrics) InstrumentLedger(inner ports.ProfileLedger) ports.ProfileLedger {
	return &observedLedger{inner: inner, metrics: m}
}

type observedLedger struct {
	inner   ports.ProfileLedger
	metrics *Metrics
}

func (l *observedLedger) Apply(ctx context.Context, delta domain.EnergyDelta) (*domain.AgentProfile, error) {
	profile, err := l.inner.Apply(ctx, delta)
	if err == nil {
		l.metrics.ObserveProfile(profile)
	}
	return profile, err
}

func (l *observedLedger) Snapshot(ctx context.Context) (*domain.AgentProfile, error) {
	profile, err := l.inner.Snapshot(ctx)
	if err == nil {
		l.metrics.ObserveProfile(profile)
	}
	return profile, err
}
