package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/floc/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	err = sink.RecordIteration(coremetrics.IterationStats{
		Iteration:       0,
		LowerBound:      10,
		UpperBound:      26,
		Gap:             16,
		OptimalityCuts:  1,
		FeasibilityCuts: 2,
		MasterTime:      5 * time.Millisecond,
		ScenarioTime:    7 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record iteration: %v", err)
	}
	if err := sink.RecordRun(coremetrics.RunStats{State: "converged", Iterations: 3}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	ps := sink.(*PromSink)
	if got := testutil.ToFloat64(ps.lowerBound); got != 10 {
		t.Fatalf("lower bound gauge = %v, want 10", got)
	}
	if got := testutil.ToFloat64(ps.upperBound); got != 26 {
		t.Fatalf("upper bound gauge = %v, want 26", got)
	}
	if got := testutil.ToFloat64(ps.gap); got != 16 {
		t.Fatalf("gap gauge = %v, want 16", got)
	}
	if got := testutil.ToFloat64(ps.cuts.WithLabelValues("optimality")); got != 1 {
		t.Fatalf("optimality cuts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ps.cuts.WithLabelValues("feasibility")); got != 2 {
		t.Fatalf("feasibility cuts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ps.runs.WithLabelValues("converged")); got != 1 {
		t.Fatalf("converged runs = %v, want 1", got)
	}
}

func TestPromSinkDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	// Re-registering the same metrics must be tolerated.
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration: %v", err)
	}
}
