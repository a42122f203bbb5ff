// Package metrics exposes Prometheus collectors fed by the orchestrator and
// dispatcher lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teller"

// Collector groups the teller metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	turns         *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	dispatches    *prometheus.CounterVec
	dispatchTime  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	slotMutations *prometheus.CounterVec
}

// New creates a Collector backed by a fresh registry. Go runtime and process
// collectors are included when withRuntime is true.
func New(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a conversation turn, model call included",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Operation dispatches by operation and result",
		}, []string{"operation", "result"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Round trip of one dispatch, channel setup included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatches_in_flight",
			Help:      "Dispatches currently awaiting a response",
		}),
		slotMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_slots_total",
			Help:      "Pending slot state saves and clears by operation",
		}, []string{"action", "operation"}),
	}
	c.registry.MustRegister(c.turns, c.turnDuration, c.dispatches, c.dispatchTime, c.inFlight, c.slotMutations)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the underlying registry, e.g. for tests or extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurn: func(_ context.Context, e *domain.TurnEvent) {
			c.turns.WithLabelValues(string(e.Outcome)).Inc()
			c.turnDuration.Observe(e.Duration.Seconds())
		},
		OnSlot: func(_ context.Context, e *domain.SlotEvent) {
			c.slotMutations.WithLabelValues(string(e.Action), e.Operation).Inc()
		},
		OnDispatch: func(_ context.Context, _ *domain.DispatchEvent) {
			c.inFlight.Inc()
		},
		OnDispatchDone: func(_ context.Context, e *domain.DispatchEvent) {
			c.inFlight.Dec()
			result := "ok"
			if e.ErrorKind != "" {
				result = e.ErrorKind
			}
			c.dispatches.WithLabelValues(e.Operation, result).Inc()
			c.dispatchTime.WithLabelValues(e.Operation).Observe(e.Duration.Seconds())
		},
	}
}
