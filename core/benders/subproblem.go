package benders

import (
	"context"
	"fmt"

	"github.com/kilianp07/floc/core/model"
	"github.com/kilianp07/floc/core/solver"
)

// SubproblemResult carries the dual solution of one scenario's transportation
// LP at a fixed open-set. For an infeasible subproblem the duals hold the
// infeasibility certificate (dual ray) instead, and Objective is meaningless.
type SubproblemResult struct {
	Feasible  bool
	Objective float64

	// DualDemand[j] >= 0 is the shadow price of customer j's demand
	// constraint, DualCapacity[i] <= 0 that of facility i's capacity
	// constraint.
	DualDemand   []float64
	DualCapacity []float64

	// Unstable reports primal/dual objective disagreement in the solver.
	Unstable bool
}

// buildSubproblemLP assembles the transportation LP for one scenario at a
// fixed open-set: one shipping variable per eligible facility-customer arc,
// demand rows first, capacity rows after. Closed facilities keep their
// capacity row with a zero right-hand side so their dual prices stay part of
// the cut.
func buildSubproblemLP(inst *model.Instance, scenario int, open []bool, needDuals bool) (solver.LP, [][2]int) {
	nC := len(inst.Customers)
	nF := len(inst.Facilities)

	var arcs [][2]int
	for i := 0; i < nF; i++ {
		for j := 0; j < nC; j++ {
			if inst.CanServe(i, j) {
				arcs = append(arcs, [2]int{i, j})
			}
		}
	}

	p := solver.LP{NumVars: len(arcs), Cost: make([]float64, len(arcs)), NeedDuals: needDuals}
	for k, a := range arcs {
		p.Cost[k] = inst.VariableCost[a[0]][a[1]]
	}
	for j := 0; j < nC; j++ {
		coeffs := make([]float64, len(arcs))
		for k, a := range arcs {
			if a[1] == j {
				coeffs[k] = -1
			}
		}
		p.AddRow(coeffs, -inst.Scenarios[scenario].Demand[j])
	}
	for i := 0; i < nF; i++ {
		coeffs := make([]float64, len(arcs))
		for k, a := range arcs {
			if a[0] == i {
				coeffs[k] = 1
			}
		}
		rhs := 0.0
		if open[i] {
			rhs = inst.Facilities[i].Capacity
		}
		p.AddRow(coeffs, rhs)
	}
	return p, arcs
}

// SolveSubproblem solves one scenario's distribution LP for the given
// open-set and returns its dual prices. It is a pure function of its
// arguments; no state survives the call.
func SolveSubproblem(ctx context.Context, s solver.Solver, inst *model.Instance, scenario int, open []bool) (SubproblemResult, error) {
	p, _ := buildSubproblemLP(inst, scenario, open, true)
	sol, err := s.SolveLP(ctx, p)
	if err != nil {
		return SubproblemResult{}, err
	}

	nC := len(inst.Customers)
	nF := len(inst.Facilities)
	splitDuals := func(dual []float64) ([]float64, []float64) {
		demand := make([]float64, nC)
		capacity := make([]float64, nF)
		copy(demand, dual[:nC])
		for i := 0; i < nF; i++ {
			capacity[i] = -dual[nC+i]
		}
		return demand, capacity
	}

	switch sol.Status {
	case solver.StatusOptimal:
		res := SubproblemResult{Feasible: true, Objective: sol.Objective, Unstable: sol.Unstable}
		res.DualDemand, res.DualCapacity = splitDuals(sol.Dual)
		return res, nil
	case solver.StatusInfeasible:
		if sol.Dual == nil {
			return SubproblemResult{}, &solver.Failure{Op: "subproblem", Err: fmt.Errorf("infeasible scenario %s without certificate", inst.Scenarios[scenario].ID)}
		}
		res := SubproblemResult{Feasible: false}
		res.DualDemand, res.DualCapacity = splitDuals(sol.Dual)
		return res, nil
	case solver.StatusTimeout:
		return SubproblemResult{}, context.DeadlineExceeded
	default:
		// Shipping costs are non-negative, so an unbounded transportation
		// LP means the request was malformed.
		return SubproblemResult{}, &solver.Failure{Op: "subproblem", Err: fmt.Errorf("unexpected status %s for scenario %s", sol.Status, inst.Scenarios[scenario].ID)}
	}
}

// SolveAllocation re-solves one scenario's LP in primal form and returns the
// facility-by-customer shipping plan plus its cost. Used once at termination
// to recover the plan at the incumbent open-set.
func SolveAllocation(ctx context.Context, s solver.Solver, inst *model.Instance, scenario int, open []bool) ([][]float64, float64, error) {
	p, arcs := buildSubproblemLP(inst, scenario, open, false)
	sol, err := s.SolveLP(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	if sol.Status == solver.StatusTimeout {
		return nil, 0, context.DeadlineExceeded
	}
	if sol.Status != solver.StatusOptimal {
		return nil, 0, fmt.Errorf("allocation for scenario %s: %s", inst.Scenarios[scenario].ID, sol.Status)
	}
	plan := make([][]float64, len(inst.Facilities))
	for i := range plan {
		plan[i] = make([]float64, len(inst.Customers))
	}
	for k, a := range arcs {
		plan[a[0]][a[1]] = sol.Primal[k]
	}
	return plan, sol.Objective, nil
}
