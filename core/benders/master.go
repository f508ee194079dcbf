package benders

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/floc/core/model"
	"github.com/kilianp07/floc/core/solver"
)

// ErrModelInfeasible reports that no open-set can cover the worst-case
// scenario demand. It is fatal and never retried.
var ErrModelInfeasible = errors.New("model infeasible: aggregate capacity below worst-case demand")

// errTimeout signals that the solve budget ran out mid-iteration. The loop
// turns it into a graceful stop with the best incumbent.
var errTimeout = errors.New("solve budget exhausted")

// MasterResult is the first-stage decision of one master solve.
type MasterResult struct {
	Open  []bool
	Theta []float64 // per-scenario second-stage cost estimate
	// Objective is the master optimum, a valid lower bound on the true
	// expected cost.
	Objective float64
}

// Master owns the first-stage binary open decisions, the per-scenario cost
// estimates and the accumulating cut pool. The pool is append-only: cuts are
// never removed or rewritten once added.
type Master struct {
	inst      *model.Instance
	solver    solver.Solver
	cuts      []Cut
	maxDemand float64
}

// NewMaster builds the master problem for the instance.
func NewMaster(inst *model.Instance, s solver.Solver) (*Master, error) {
	if inst == nil || s == nil {
		return nil, fmt.Errorf("benders: nil parameter provided to NewMaster")
	}
	return &Master{inst: inst, solver: s, maxDemand: inst.MaxScenarioDemand()}, nil
}

// AddCut appends a cut to the pool.
func (m *Master) AddCut(c Cut) {
	m.cuts = append(m.cuts, c)
}

// NumCuts returns the current pool size.
func (m *Master) NumCuts() int { return len(m.cuts) }

// Cuts returns the pool for inspection. Callers must not modify it.
func (m *Master) Cuts() []Cut { return m.cuts }

// buildLP lays the master out as variables [open_0..open_{nF-1},
// theta_0..theta_{nS-1}]. Theta is kept non-negative: costs are non-negative,
// so zero is a valid initial lower bound before any cut exists, and without
// it the empty-pool master would be unbounded.
func (m *Master) buildLP() solver.LP {
	nF := len(m.inst.Facilities)
	nS := len(m.inst.Scenarios)

	p := solver.LP{NumVars: nF + nS, Cost: make([]float64, nF+nS)}
	for i, f := range m.inst.Facilities {
		p.Cost[i] = f.FixedCost
	}
	for s, sc := range m.inst.Scenarios {
		p.Cost[nF+s] = sc.Probability
	}

	for i := 0; i < nF; i++ {
		coeffs := make([]float64, nF+nS)
		coeffs[i] = 1
		p.AddRow(coeffs, 1)
	}

	// Standing capacity-sufficiency constraint: total open capacity must
	// cover the worst scenario, which keeps the "open everything" solution
	// feasible and the problem bounded.
	suff := make([]float64, nF+nS)
	for i, f := range m.inst.Facilities {
		suff[i] = -f.Capacity
	}
	p.AddRow(suff, -m.maxDemand)

	for _, c := range m.cuts {
		coeffs := make([]float64, nF+nS)
		copy(coeffs, c.Coeffs)
		if c.Kind == CutOptimality {
			coeffs[nF+c.Scenario] = -1
		}
		p.AddRow(coeffs, -c.Constant)
	}
	return p
}

// Solve optimizes the master over the current cut pool and returns the
// open-set, theta estimates and the objective (the current lower bound).
// An infeasible master is reported as ErrModelInfeasible: given the
// sufficiency constraint it only happens on a malformed instance.
func (m *Master) Solve(ctx context.Context) (MasterResult, error) {
	nF := len(m.inst.Facilities)
	nS := len(m.inst.Scenarios)

	binary := make([]int, nF)
	for i := range binary {
		binary[i] = i
	}
	sol, err := m.solver.SolveBinaryMIP(ctx, m.buildLP(), binary)
	if err != nil {
		return MasterResult{}, err
	}
	switch sol.Status {
	case solver.StatusOptimal:
	case solver.StatusInfeasible:
		return MasterResult{}, ErrModelInfeasible
	case solver.StatusTimeout:
		return MasterResult{}, errTimeout
	default:
		return MasterResult{}, &solver.Failure{Op: "master", Err: fmt.Errorf("unexpected status %s", sol.Status)}
	}

	res := MasterResult{
		Open:      make([]bool, nF),
		Theta:     make([]float64, nS),
		Objective: sol.Objective,
	}
	for i := 0; i < nF; i++ {
		res.Open[i] = sol.Primal[i] > 0.5
	}
	copy(res.Theta, sol.Primal[nF:nF+nS])
	return res, nil
}
