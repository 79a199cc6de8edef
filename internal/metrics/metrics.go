// Package metrics exposes Prometheus collectors for the decision cycle.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vthunder/plantbud/internal/types"
)

const namespace = "plantbud"

// Decision sources
const (
	SourceSchedule = "schedule"
	SourceOverride = "override"
	SourceRefined  = "refined"
)

// Metrics holds the cycle collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	stageFailures *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	actuations    *prometheus.CounterVec
	pending       prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers the collectors with reg, reusing collectors that are
// already registered. Any other registration error panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		cycles: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Decision cycles by final status.",
		}, []string{"status"})),
		cycleDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one decision cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		})),
		stageFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Degraded or failed cycle stages.",
		}, []string{"stage"})),
		decisions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Actuator decisions by source and desired state.",
		}, []string{"actuator", "source", "state"})),
		actuations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuations_total",
			Help:      "Device switch attempts by result.",
		}, []string{"actuator", "result"})),
		pending: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_work_items",
			Help:      "Images waiting to be analysed.",
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// IncStageFailure counts a failed stage
func (m *Metrics) IncStageFailure(stage types.Stage) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(string(stage)).Inc()
}

// ObserveDecision counts one final decision
func (m *Metrics) ObserveDecision(d types.Decision) {
	if m == nil {
		return
	}
	source := SourceSchedule
	switch {
	case d.Refined:
		source = SourceRefined
	case d.IsOverride:
		source = SourceOverride
	}
	m.decisions.WithLabelValues(string(d.Actuator), source, string(d.DesiredState)).Inc()
}

// ObserveActuation counts a switch attempt
func (m *Metrics) ObserveActuation(actuator types.Actuator, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actuations.WithLabelValues(string(actuator), result).Inc()
}

// SetPending records the number of unprocessed items
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
