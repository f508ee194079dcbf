// Package app wires the configuration, logging, metrics and solver layers
// into a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/floc/config"
	"github.com/kilianp07/floc/core/benders"
	"github.com/kilianp07/floc/core/events"
	corelogger "github.com/kilianp07/floc/core/logger"
	coremetrics "github.com/kilianp07/floc/core/metrics"
	"github.com/kilianp07/floc/infra/logger"
	"github.com/kilianp07/floc/infra/metrics"
	"github.com/kilianp07/floc/infra/solver"
	"github.com/kilianp07/floc/internal/eventbus"
	"github.com/kilianp07/floc/loader"
)

// Service orchestrates one solve: load the instance, run the decomposition
// loop, write the solution document.
type Service struct {
	cfg  *config.Config
	log  corelogger.Logger
	sink coremetrics.Sink
	bus  eventbus.EventBus
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.MultiSink(sinks)
	}

	return &Service{cfg: cfg, log: logg, sink: sink, bus: eventbus.New()}, nil
}

// Run solves the instance at inputPath and writes the solution document to
// outputPath. Empty paths mean stdin and stdout.
func (s *Service) Run(ctx context.Context, inputPath, outputPath string) error {
	start := time.Now()

	if s.cfg.Metrics.PrometheusEnabled {
		addr := fmt.Sprintf(":%d", s.cfg.Metrics.PrometheusPort)
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	inst, err := loader.Read(inputPath)
	if err != nil {
		return fmt.Errorf("load instance: %w", err)
	}
	s.log.Infof("solving stochastic facility location: %d facilities, %d customers, %d scenarios",
		len(inst.Facilities), len(inst.Customers), len(inst.Scenarios))

	loop, err := benders.NewLoop(s.cfg.Solve, inst, solver.New(), s.log, s.sink, s.bus)
	if err != nil {
		return err
	}

	sub := s.bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.logEvents(sub)
	}()

	solveStart := time.Now()
	res, err := loop.Run(ctx)
	s.bus.Unsubscribe(sub)
	<-done
	if err != nil {
		return err
	}
	s.log.Infof("finished in state %s after %d iterations: objective=%.6f gap=%.6g",
		res.State, res.Iterations, res.Objective, res.Gap)

	out, err := loader.BuildOutput(inst, res, time.Since(solveStart), time.Since(start))
	if err != nil {
		return err
	}
	return loader.Write(outputPath, out)
}

// logEvents mirrors bus events into debug logs until the channel closes.
func (s *Service) logEvents(ch <-chan eventbus.Event) {
	for e := range ch {
		switch ev := e.(type) {
		case events.CutEvent:
			s.log.Debugw("cut added", map[string]any{
				"iteration": ev.Iteration,
				"scenario":  ev.Scenario,
				"kind":      ev.Kind,
			})
		case events.IncumbentEvent:
			s.log.Debugw("incumbent improved", map[string]any{
				"iteration": ev.Iteration,
				"open":      ev.Open,
				"cost":      ev.Cost,
			})
		case events.IterationEvent:
			s.log.Debugw("iteration finished", map[string]any{
				"iteration": ev.Iteration,
				"lb":        ev.LowerBound,
				"ub":        ev.UpperBound,
				"gap":       ev.Gap,
				"cuts":      ev.CutsAdded,
			})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
