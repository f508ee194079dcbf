package metrics

import "time"

// IterationStats is a per-iteration snapshot of the decomposition loop.
type IterationStats struct {
	Iteration       int
	LowerBound      float64
	UpperBound      float64
	Gap             float64
	OptimalityCuts  int
	FeasibilityCuts int
	MasterTime      time.Duration
	ScenarioTime    time.Duration
}

// RunStats summarizes a finished run.
type RunStats struct {
	State      string
	Iterations int
	Objective  float64
	Gap        float64
	Duration   time.Duration
}

// Sink records loop progress for observability purposes.
type Sink interface {
	RecordIteration(IterationStats) error
	RecordRun(RunStats) error
}

// Config selects and configures the metrics backends.
type Config struct {
	PrometheusEnabled bool   `json:"prometheusEnabled"`
	PrometheusPort    int    `json:"prometheusPort"`
	InfluxEnabled     bool   `json:"influxEnabled"`
	InfluxURL         string `json:"influxURL"`
	InfluxToken       string `json:"influxToken"`
	InfluxOrg         string `json:"influxOrg"`
	InfluxBucket      string `json:"influxBucket"`
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordIteration(IterationStats) error { return nil }
func (NopSink) RecordRun(RunStats) error             { return nil }

// MultiSink fans records out to several sinks, returning the first error.
type MultiSink []Sink

func (m MultiSink) RecordIteration(s IterationStats) error {
	for _, sink := range m {
		if err := sink.RecordIteration(s); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) RecordRun(s RunStats) error {
	for _, sink := range m {
		if err := sink.RecordRun(s); err != nil {
			return err
		}
	}
	return nil
}
