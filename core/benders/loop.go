package benders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/floc/core/events"
	"github.com/kilianp07/floc/core/logger"
	"github.com/kilianp07/floc/core/metrics"
	"github.com/kilianp07/floc/core/model"
	"github.com/kilianp07/floc/core/solver"
	"github.com/kilianp07/floc/internal/eventbus"
)

// lbRegressTol is how much the lower bound may numerically regress before a
// warning is logged. The cut pool only grows, so a real regression cannot
// happen.
const lbRegressTol = 1e-9

// State is the loop's position in its lifecycle.
type State int

const (
	StateInit State = iota
	StateIterating
	StateConverged
	StateMaxIterations
	StateInfeasibleModel
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateMaxIterations:
		return "max_iterations_reached"
	case StateInfeasibleModel:
		return "infeasible_model"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Incumbent is the best feasible solution found so far.
type Incumbent struct {
	Open      []bool
	Cost      float64
	Iteration int
}

// ScenarioPlan is the recovered shipping plan of one scenario at the final
// open-set.
type ScenarioPlan struct {
	Scenario   string
	Cost       float64
	Allocation [][]float64 // facility x customer
}

// Result is the outcome of a run.
type Result struct {
	State      State
	Open       []bool
	Objective  float64 // expected total cost of the incumbent (upper bound)
	LowerBound float64
	Gap        float64
	Iterations int
	Cuts       int
	Plans      []ScenarioPlan
}

// Loop drives the decomposition: master solve, concurrent scenario solves,
// cut generation and convergence testing. Each iteration fully completes
// before the next master solve so that every solve sees the whole cut pool.
type Loop struct {
	cfg    Config
	inst   *model.Instance
	solver solver.Solver
	master *Master
	log    logger.Logger
	sink   metrics.Sink
	bus    eventbus.EventBus
	state  State
}

// NewLoop creates a loop for the instance. log, sink and bus may be nil.
func NewLoop(cfg Config, inst *model.Instance, s solver.Solver, log logger.Logger, sink metrics.Sink, bus eventbus.EventBus) (*Loop, error) {
	if inst == nil || s == nil {
		return nil, fmt.Errorf("benders: nil parameter provided to NewLoop")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	master, err := NewMaster(inst, s)
	if err != nil {
		return nil, err
	}
	return &Loop{
		cfg:    cfg,
		inst:   inst,
		solver: s,
		master: master,
		log:    log,
		sink:   sink,
		bus:    bus,
		state:  StateInit,
	}, nil
}

// State returns the loop's current state.
func (l *Loop) State() State { return l.state }

func (l *Loop) publish(e eventbus.Event) {
	if l.bus != nil {
		l.bus.Publish(e)
	}
}

// Run executes the decomposition until convergence, iteration exhaustion or
// budget exhaustion. A model that cannot cover its worst-case demand is
// rejected before the first master solve with ErrModelInfeasible; all other
// terminations return a Result, with MaxIterations surfaced as a warning
// rather than an error.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if l.inst.TotalCapacity() < l.inst.MaxScenarioDemand()-lbRegressTol {
		l.state = StateInfeasibleModel
		l.log.Errorf("aggregate capacity %v cannot cover worst-case demand %v", l.inst.TotalCapacity(), l.inst.MaxScenarioDemand())
		res := l.finish(ctx, start, math.Inf(-1), math.Inf(1), nil, 0)
		return res, ErrModelInfeasible
	}

	if l.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(l.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	lb := math.Inf(-1)
	ub := math.Inf(1)
	var inc *Incumbent
	iterations := 0
	l.state = StateIterating

	for k := 0; ; k++ {
		iterations = k + 1

		masterStart := time.Now()
		mres, err := l.solveMaster(ctx)
		if err != nil {
			if errors.Is(err, ErrModelInfeasible) {
				l.state = StateInfeasibleModel
				return l.finish(ctx, start, lb, ub, inc, iterations), err
			}
			if errors.Is(err, errTimeout) || errors.Is(err, context.DeadlineExceeded) {
				l.log.Warnf("solve budget exhausted during master solve of iteration %d", k)
				l.state = StateMaxIterations
				break
			}
			return nil, err
		}
		masterTime := time.Since(masterStart)
		if mres.Objective < lb-lbRegressTol {
			l.log.Warnf("lower bound regressed from %v to %v at iteration %d", lb, mres.Objective, k)
		}
		if mres.Objective > lb {
			lb = mres.Objective
		}

		scenarioStart := time.Now()
		results, err := l.solveScenarios(ctx, mres.Open)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				l.log.Warnf("solve budget exhausted during scenario solves of iteration %d", k)
				l.state = StateMaxIterations
				break
			}
			return nil, err
		}
		scenarioTime := time.Since(scenarioStart)

		optCuts, feasCuts := 0, 0
		anyInfeasible := false
		for s, r := range results {
			if r.Unstable {
				l.log.Warnf("numeric instability in scenario %s duals at iteration %d", l.inst.Scenarios[s].ID, k)
			}
			if r.Feasible {
				continue
			}
			// This open-set provably cannot serve the scenario; cut it
			// off and leave the upper bound alone.
			anyInfeasible = true
			cut := GenerateCut(l.inst, s, r, k)
			l.master.AddCut(cut)
			feasCuts++
			l.publish(events.CutEvent{Iteration: k, Scenario: l.inst.Scenarios[s].ID, Kind: cut.Kind.String()})
		}

		if !anyInfeasible {
			trueCost := l.inst.FixedCost(mres.Open)
			for s, r := range results {
				trueCost += l.inst.Scenarios[s].Probability * r.Objective
			}
			if trueCost < ub {
				ub = trueCost
				inc = &Incumbent{
					Open:      append([]bool(nil), mres.Open...),
					Cost:      trueCost,
					Iteration: k,
				}
				l.publish(events.IncumbentEvent{Iteration: k, Open: l.openIDs(mres.Open), Cost: trueCost})
				l.log.Debugf("new incumbent at iteration %d: cost=%.6f open=%v", k, trueCost, l.openIDs(mres.Open))
			}
			for s, r := range results {
				if mres.Theta[s] >= r.Objective-l.cfg.TightTolerance {
					continue
				}
				cut := GenerateCut(l.inst, s, r, k)
				l.master.AddCut(cut)
				optCuts++
				l.publish(events.CutEvent{Iteration: k, Scenario: l.inst.Scenarios[s].ID, Kind: cut.Kind.String()})
			}
		}

		cutsAdded := optCuts + feasCuts
		gap := ub - lb
		l.log.Infof("iteration %d: lb=%.6f ub=%.6f gap=%.6f cuts=%d pool=%d", k, lb, ub, gap, cutsAdded, l.master.NumCuts())
		if err := l.sink.RecordIteration(metrics.IterationStats{
			Iteration:       k,
			LowerBound:      lb,
			UpperBound:      ub,
			Gap:             gap,
			OptimalityCuts:  optCuts,
			FeasibilityCuts: feasCuts,
			MasterTime:      masterTime,
			ScenarioTime:    scenarioTime,
		}); err != nil {
			l.log.Errorf("metrics error: %v", err)
		}
		l.publish(events.IterationEvent{Iteration: k, LowerBound: lb, UpperBound: ub, Gap: gap, CutsAdded: cutsAdded})

		if l.converged(lb, ub, cutsAdded) {
			l.state = StateConverged
			break
		}
		if k+1 >= l.cfg.MaxIterations {
			l.state = StateMaxIterations
			l.log.Warnf("stopping after %d iterations with gap %v", k+1, gap)
			break
		}
	}

	return l.finish(ctx, start, lb, ub, inc, iterations), nil
}

// converged applies the stopping rule: absolute gap, relative gap, or a round
// that produced no cut (fixed point).
func (l *Loop) converged(lb, ub float64, cutsAdded int) bool {
	if cutsAdded == 0 {
		return true
	}
	gap := ub - lb
	if gap <= l.cfg.ToleranceAbs {
		return true
	}
	return !math.IsInf(ub, 1) && math.Abs(ub) > 0 && gap/math.Abs(ub) <= l.cfg.ToleranceRel
}

// solveMaster retries a failed master solve once before giving up. A
// legitimate infeasible outcome is not retried.
func (l *Loop) solveMaster(ctx context.Context) (MasterResult, error) {
	mres, err := l.master.Solve(ctx)
	var failure *solver.Failure
	if err != nil && errors.As(err, &failure) {
		l.log.Warnf("master solve failed, retrying once: %v", err)
		mres, err = l.master.Solve(ctx)
	}
	return mres, err
}

// solveScenarios runs every scenario subproblem for the fixed open-set on a
// bounded worker pool and joins on all results before returning. Results are
// written by scenario index so the aggregation order is deterministic.
func (l *Loop) solveScenarios(ctx context.Context, open []bool) ([]SubproblemResult, error) {
	nS := len(l.inst.Scenarios)
	results := make([]SubproblemResult, nS)
	sem := make(chan struct{}, l.cfg.Workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for s := 0; s < nS; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := l.solveSubproblem(ctx, s, open)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[s] = r
		}(s)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// solveSubproblem retries a failed scenario solve once before giving up.
func (l *Loop) solveSubproblem(ctx context.Context, scenario int, open []bool) (SubproblemResult, error) {
	r, err := SolveSubproblem(ctx, l.solver, l.inst, scenario, open)
	var failure *solver.Failure
	if err != nil && errors.As(err, &failure) {
		l.log.Warnf("scenario %s solve failed, retrying once: %v", l.inst.Scenarios[scenario].ID, err)
		r, err = SolveSubproblem(ctx, l.solver, l.inst, scenario, open)
	}
	return r, err
}

// finish assembles the final result and recovers the per-scenario shipping
// plans by re-solving each subproblem once at the incumbent open-set.
func (l *Loop) finish(ctx context.Context, start time.Time, lb, ub float64, inc *Incumbent, iterations int) *Result {
	res := &Result{
		State:      l.state,
		LowerBound: lb,
		Gap:        ub - lb,
		Iterations: iterations,
		Cuts:       l.master.NumCuts(),
	}
	if inc != nil {
		res.Open = inc.Open
		res.Objective = inc.Cost
		for s := range l.inst.Scenarios {
			plan, cost, err := SolveAllocation(ctx, l.solver, l.inst, s, inc.Open)
			if err != nil {
				l.log.Warnf("allocation recovery for scenario %s failed: %v", l.inst.Scenarios[s].ID, err)
				continue
			}
			res.Plans = append(res.Plans, ScenarioPlan{Scenario: l.inst.Scenarios[s].ID, Cost: cost, Allocation: plan})
		}
	} else {
		res.Objective = math.Inf(1)
	}
	if err := l.sink.RecordRun(metrics.RunStats{
		State:      l.state.String(),
		Iterations: iterations,
		Objective:  res.Objective,
		Gap:        res.Gap,
		Duration:   time.Since(start),
	}); err != nil {
		l.log.Errorf("metrics error: %v", err)
	}
	return res
}

// openIDs maps an open vector to facility IDs for logs and events.
func (l *Loop) openIDs(open []bool) []string {
	var ids []string
	for i, f := range l.inst.Facilities {
		if open[i] {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
