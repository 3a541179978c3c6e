// Package metrics counts run events as Prometheus metrics and exports them
// in the node-exporter textfile format.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gocut/internal/event"
	"gocut/internal/logging"
)

const (
	MetricsNamespace = "gocut"
)

// Collector turns events into metrics on its own registry, so several runs
// in one process do not share counters.
type Collector struct {
	registry *prometheus.Registry

	results    *prometheus.CounterVec
	assertions *prometheus.CounterVec
	tests      *prometheus.CounterVec
	cases      *prometheus.CounterVec
	crashes    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	runSuccess *prometheus.GaugeVec
	runSeconds *prometheus.GaugeVec

	mu      sync.Mutex
	started map[string]time.Time
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "results_total",
			Help:      "Count of test results by status",
		}, []string{
			"suite",
			"status",
		}),
		assertions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "assertions_total",
			Help:      "Count of passed assertions",
		}, []string{
			"suite",
		}),
		tests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of started test invocations",
		}, []string{
			"suite",
		}),
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "test_cases_total",
			Help:      "Count of started test cases",
		}, []string{
			"suite",
		}),
		crashes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "crashes_total",
			Help:      "Count of crashed test processes",
		}, []string{
			"suite",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of passed tests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{
			"suite",
		}),
		runSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_success",
			Help:      "1 when the last run of the suite passed, 0 otherwise",
		}, []string{
			"suite",
		}),
		runSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run of the suite",
		}, []string{
			"suite",
		}),
		started: make(map[string]time.Time),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe records one event. It is meant to be subscribed to a run.
func (c *Collector) Observe(e event.Event) {
	suite := ""
	if e.Suite != nil {
		suite = e.Suite.Name
	}

	switch {
	case e.Kind == event.StartSuite:
		c.mu.Lock()
		c.started[suite] = e.Time
		c.mu.Unlock()
	case e.Kind == event.CompleteSuite:
		success := 0.0
		if e.Success {
			success = 1
		}
		c.runSuccess.WithLabelValues(suite).Set(success)
		c.mu.Lock()
		if start, ok := c.started[suite]; ok {
			c.runSeconds.WithLabelValues(suite).Set(e.Time.Sub(start).Seconds())
		}
		c.mu.Unlock()
	case e.Kind == event.StartCase:
		c.cases.WithLabelValues(suite).Inc()
	case e.Kind == event.StartIteratedTest,
		e.Kind == event.StartTest && (e.Test == nil || !e.Test.IsIterated()):
		c.tests.WithLabelValues(suite).Inc()
	case e.Kind == event.PassAssertion:
		c.assertions.WithLabelValues(suite).Inc()
	case e.Kind == event.Crashed:
		c.crashes.WithLabelValues(suite).Inc()
	case e.Kind.IsResult() && e.Result != nil:
		c.results.WithLabelValues(suite, e.Result.Status().String()).Inc()
		if e.Kind == event.Success && e.Result.Elapsed() > 0 {
			c.duration.WithLabelValues(suite).Observe(e.Result.Elapsed().Seconds())
		}
	}
}

// WriteTextfile writes the current values to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return err
	}
	logging.Debug("Metrics", "wrote %s", path)
	return nil
}
