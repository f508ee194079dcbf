// Package metrics provides Prometheus and InfluxDB implementations of the
// core metrics sink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/floc/core/metrics"
)

// PromSink records loop progress in Prometheus metrics.
type PromSink struct {
	lowerBound prometheus.Gauge
	upperBound prometheus.Gauge
	gap        prometheus.Gauge
	cuts       *prometheus.CounterVec
	iterations prometheus.Counter
	masterTime prometheus.Histogram
	scenTime   prometheus.Histogram
	runs       *prometheus.CounterVec
}

// NewPromSink registers the solver metrics on the default Prometheus
// registerer. The metrics server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		lowerBound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "benders_lower_bound",
			Help: "Current master objective (lower bound on expected cost)",
		}),
		upperBound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "benders_upper_bound",
			Help: "Best incumbent expected cost (upper bound)",
		}),
		gap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "benders_gap",
			Help: "Difference between upper and lower bound",
		}),
		cuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benders_cuts_total",
			Help: "Total number of cuts added to the master pool",
		}, []string{"kind"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "benders_iterations_total",
			Help: "Total number of loop iterations",
		}),
		masterTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "benders_master_solve_seconds",
			Help:    "Wall time of master problem solves",
			Buckets: prometheus.DefBuckets,
		}),
		scenTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "benders_scenario_solve_seconds",
			Help:    "Wall time of one iteration's scenario solves",
			Buckets: prometheus.DefBuckets,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benders_runs_total",
			Help: "Finished runs by termination state",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{
		s.lowerBound, s.upperBound, s.gap, s.cuts, s.iterations, s.masterTime, s.scenTime, s.runs,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordIteration updates the bound gauges and solve-time histograms.
func (s *PromSink) RecordIteration(it coremetrics.IterationStats) error {
	s.lowerBound.Set(it.LowerBound)
	s.upperBound.Set(it.UpperBound)
	s.gap.Set(it.Gap)
	s.iterations.Inc()
	s.cuts.WithLabelValues("optimality").Add(float64(it.OptimalityCuts))
	s.cuts.WithLabelValues("feasibility").Add(float64(it.FeasibilityCuts))
	s.masterTime.Observe(it.MasterTime.Seconds())
	s.scenTime.Observe(it.ScenarioTime.Seconds())
	return nil
}

// RecordRun counts the finished run under its termination state.
func (s *PromSink) RecordRun(run coremetrics.RunStats) error {
	s.runs.WithLabelValues(run.State).Inc()
	return nil
}
