// Package metrics exports suggestion engine statistics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/suggest"
)

const defaultNamespace = "cadence"

// Observer implements suggest.Observer on top of Prometheus collectors.
type Observer struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dropped  *prometheus.CounterVec
	emitted  prometheus.Counter
}

// NewObserver registers the suggestion metrics on reg. Collectors that are
// already registered (a second engine in the same process) are reused.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "runs_total",
			Help:      "Suggestion runs by the mode that produced the result.",
		}, []string{"mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "failures_total",
			Help:      "Suggestion runs that returned an error, by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "duration_seconds",
			Help:      "Latency of suggestion runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "candidates_dropped_total",
			Help:      "Candidate slots discarded before scoring, by reason.",
		}, []string{"reason"}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "emitted_total",
			Help:      "Suggestions returned to callers.",
		}),
	}

	var err error
	if o.runs, err = register(reg, o.runs); err != nil {
		return nil, fmt.Errorf("register runs counter: %w", err)
	}
	if o.failures, err = register(reg, o.failures); err != nil {
		return nil, fmt.Errorf("register failures counter: %w", err)
	}
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}
	if o.dropped, err = register(reg, o.dropped); err != nil {
		return nil, fmt.Errorf("register dropped counter: %w", err)
	}
	if o.emitted, err = register(reg, o.emitted); err != nil {
		return nil, fmt.Errorf("register emitted counter: %w", err)
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// ObserveRun records one SuggestTimeSlots call.
func (o *Observer) ObserveRun(mode string, elapsed time.Duration, emitted int, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err != nil {
		o.failures.WithLabelValues(errorKind(err)).Inc()
		return
	}
	o.runs.WithLabelValues(mode).Inc()
	o.emitted.Add(float64(emitted))
}

// ObserveDropped records n candidates discarded for reason.
func (o *Observer) ObserveDropped(reason string, n int) {
	if o == nil || n <= 0 {
		return
	}
	o.dropped.WithLabelValues(reason).Add(float64(n))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return schedule.KindOf(err).String()
	}
}

var _ suggest.Observer = (*Observer)(nil)
