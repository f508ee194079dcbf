// Package solver defines the linear and mixed-integer solve capability
// consumed by the decomposition engine. Implementations live under
// infra/solver.
package solver

import (
	"context"
	"fmt"
)

// Status reports the outcome of a solve call.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusTimeout
)

// String returns a human readable status name.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Constraint is one linear row: Coeffs·x <= RHS.
type Constraint struct {
	Coeffs []float64
	RHS    float64
}

// LP is a linear program in inequality form:
//
//	minimize  Cost·x
//	subject to  row.Coeffs·x <= row.RHS  for every row
//	            x >= 0
//
// NeedDuals requests the dual multiplier of every row in the solution. When
// the program is infeasible and NeedDuals is set, the solver returns a Farkas
// infeasibility certificate in Solution.Dual instead.
type LP struct {
	NumVars   int
	Cost      []float64
	Rows      []Constraint
	NeedDuals bool
}

// AddRow appends an inequality row to the program.
func (p *LP) AddRow(coeffs []float64, rhs float64) {
	p.Rows = append(p.Rows, Constraint{Coeffs: coeffs, RHS: rhs})
}

// Solution is the result of a solve call.
type Solution struct {
	Status    Status
	Objective float64
	Primal    []float64

	// Dual holds one multiplier per inequality row, non-negative, measured
	// as the objective increase per unit decrease of the row's RHS. For an
	// infeasible program solved with NeedDuals it holds a Farkas ray.
	Dual []float64

	// Unstable is set when the primal and dual objectives disagree beyond
	// the solver's tolerance. The solution is still usable; callers should
	// log a warning.
	Unstable bool
}

// Solver is the generic LP/MIP solve capability.
type Solver interface {
	// SolveLP solves the linear program. A legitimate infeasible or
	// unbounded outcome is reported through Solution.Status, not as an
	// error; errors indicate the solve itself failed.
	SolveLP(ctx context.Context, p LP) (Solution, error)

	// SolveBinaryMIP solves the program with the listed variables
	// restricted to {0,1}. Dual values are not produced for MIP solves.
	SolveBinaryMIP(ctx context.Context, p LP, binary []int) (Solution, error)
}

// Failure wraps an unexpected solver error (crash, malformed program) as
// opposed to a legitimate infeasible or unbounded status. Callers may retry
// once before treating it as fatal.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string { return fmt.Sprintf("solver %s: %v", f.Op, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }
