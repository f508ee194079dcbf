package benders

import (
	"github.com/kilianp07/floc/core/model"
)

// CutKind tags a cut as an optimality or a feasibility cut.
type CutKind int

const (
	// CutOptimality tightens the master's estimate of a feasible
	// scenario's true cost.
	CutOptimality CutKind = iota
	// CutFeasibility excludes open-sets that make a scenario's
	// subproblem infeasible.
	CutFeasibility
)

// String returns the cut kind name.
func (k CutKind) String() string {
	if k == CutFeasibility {
		return "feasibility"
	}
	return "optimality"
}

// Cut is one linear inequality over the master's open variables.
//
// For an optimality cut the master enforces
//
//	theta_s >= Constant + sum_i Coeffs[i]*open_i
//
// and for a feasibility cut
//
//	Constant + sum_i Coeffs[i]*open_i <= 0.
//
// Cuts are append-only once added to the master; the finite-convergence
// argument relies on the pool never shrinking.
type Cut struct {
	Kind     CutKind
	Scenario int // index into Instance.Scenarios
	Coeffs   []float64
	Constant float64

	// Iteration records when the cut was generated. Audit only; it never
	// influences the solve.
	Iteration int
}

// GenerateCut maps a subproblem's dual solution to a cut over the master's
// open variables. A feasible result yields an optimality cut, an infeasible
// one a feasibility cut built from the returned ray. Pure function; the
// caller hands the cut to the master.
func GenerateCut(inst *model.Instance, scenario int, res SubproblemResult, iteration int) Cut {
	coeffs := make([]float64, len(inst.Facilities))
	for i, f := range inst.Facilities {
		coeffs[i] = res.DualCapacity[i] * f.Capacity
	}
	var constant float64
	for j, d := range inst.Scenarios[scenario].Demand {
		constant += res.DualDemand[j] * d
	}
	kind := CutOptimality
	if !res.Feasible {
		kind = CutFeasibility
	}
	return Cut{
		Kind:      kind,
		Scenario:  scenario,
		Coeffs:    coeffs,
		Constant:  constant,
		Iteration: iteration,
	}
}
