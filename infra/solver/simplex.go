// Package solver implements the core solve capability on top of gonum's
// simplex method.
package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	coresolver "github.com/kilianp07/floc/core/solver"
)

const (
	// simplexTol is the pivot tolerance handed to lp.Simplex.
	simplexTol = 1e-7
	// intTol decides when a relaxation value counts as integral.
	intTol = 1e-6
	// improveTol is the strict-improvement margin for branch-and-bound
	// incumbents. Keeping it strict makes the first optimum found win,
	// which pins the tie-break to the fixed search order.
	improveTol = 1e-9
	// rayTol is the minimum Farkas violation accepted as an
	// infeasibility certificate.
	rayTol = 1e-9
	// dualityTol flags primal/dual objective disagreement.
	dualityTol = 1e-6
)

// Simplex solves LPs with gonum's simplex implementation and binary MIPs with
// a depth-first branch-and-bound over the LP relaxation.
type Simplex struct{}

// New returns a simplex-backed solver.
func New() *Simplex { return &Simplex{} }

// simplexSolve points to the function used for raw simplex solves. Tests
// override it to simulate solver crashes.
var simplexSolve = runSimplex

// runSimplex converts the inequality-form program into standard form by
// appending one slack variable per row and calls lp.Simplex. Variables that
// appear in no row are resolved up front: they sit at zero unless their cost
// is negative, in which case the program is unbounded. lp.Simplex rejects
// all-zero columns, and the master problem legitimately produces them for
// scenario estimates that no cut references yet.
func runSimplex(p coresolver.LP) (float64, []float64, error) {
	n := p.NumVars
	m := len(p.Rows)

	active := make([]int, 0, n)
	for k := 0; k < n; k++ {
		used := false
		for _, row := range p.Rows {
			if row.Coeffs[k] != 0 {
				used = true
				break
			}
		}
		if used {
			active = append(active, k)
		} else if p.Cost[k] < 0 {
			return 0, nil, lp.ErrUnbounded
		}
	}

	x := make([]float64, n)
	if m == 0 {
		return 0, x, nil
	}

	na := len(active)
	c := make([]float64, na+m)
	for idx, k := range active {
		c[idx] = p.Cost[k]
	}
	a := mat.NewDense(m, na+m, nil)
	b := make([]float64, m)
	for r, row := range p.Rows {
		for idx, k := range active {
			a.Set(r, idx, row.Coeffs[k])
		}
		a.Set(r, na+r, 1)
		b[r] = row.RHS
	}

	opt, xs, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		return 0, nil, err
	}
	for idx, k := range active {
		x[k] = xs[idx]
	}
	return opt, x, nil
}

// SolveLP implements coresolver.Solver. Duals are recovered by solving the
// explicitly-constructed dual program, since lp.Simplex reports none; for an
// infeasible primal a Farkas certificate is computed instead.
func (s *Simplex) SolveLP(ctx context.Context, p coresolver.LP) (coresolver.Solution, error) {
	if err := ctx.Err(); err != nil {
		return coresolver.Solution{Status: coresolver.StatusTimeout}, nil
	}

	opt, x, err := simplexSolve(p)
	switch {
	case err == nil:
	case errors.Is(err, lp.ErrInfeasible):
		sol := coresolver.Solution{Status: coresolver.StatusInfeasible}
		if p.NeedDuals {
			ray, rerr := s.farkasRay(ctx, p)
			if rerr != nil {
				if errors.Is(rerr, context.DeadlineExceeded) || errors.Is(rerr, context.Canceled) {
					return coresolver.Solution{Status: coresolver.StatusTimeout}, nil
				}
				return sol, rerr
			}
			sol.Dual = ray
		}
		return sol, nil
	case errors.Is(err, lp.ErrUnbounded):
		return coresolver.Solution{Status: coresolver.StatusUnbounded}, nil
	default:
		return coresolver.Solution{}, &coresolver.Failure{Op: "lp", Err: err}
	}

	sol := coresolver.Solution{Status: coresolver.StatusOptimal, Objective: opt, Primal: x}
	if p.NeedDuals {
		dual, dualObj, derr := s.solveDual(ctx, p)
		if derr != nil {
			if errors.Is(derr, context.DeadlineExceeded) || errors.Is(derr, context.Canceled) {
				return coresolver.Solution{Status: coresolver.StatusTimeout}, nil
			}
			return sol, derr
		}
		sol.Dual = dual
		// Strong duality: the dual objective equals -opt. A mismatch is
		// numeric trouble, not a wrong answer, so only flag it.
		if math.Abs(opt+dualObj) > dualityTol*(1+math.Abs(opt)) {
			sol.Unstable = true
		}
	}
	return sol, nil
}

// solveDual solves the dual of the inequality-form program:
//
//	minimize  h·l  subject to  -Gᵀl <= c, l >= 0
//
// whose optimal l holds one multiplier per primal row.
func (s *Simplex) solveDual(ctx context.Context, p coresolver.LP) ([]float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, ctx.Err()
	}
	m := len(p.Rows)
	d := coresolver.LP{NumVars: m, Cost: make([]float64, m)}
	for r, row := range p.Rows {
		d.Cost[r] = row.RHS
	}
	for k := 0; k < p.NumVars; k++ {
		coeffs := make([]float64, m)
		for r, row := range p.Rows {
			coeffs[r] = -row.Coeffs[k]
		}
		d.AddRow(coeffs, p.Cost[k])
	}
	obj, l, err := simplexSolve(d)
	if err != nil {
		return nil, 0, &coresolver.Failure{Op: "dual lp", Err: err}
	}
	return l, obj, nil
}

// farkasRay finds l >= 0 with Gᵀl >= 0 and h·l < 0, certifying that
// Gx <= h, x >= 0 has no solution. The l <= 1 box bounds the homogeneous
// cone so the minimization stays finite.
func (s *Simplex) farkasRay(ctx context.Context, p coresolver.LP) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctx.Err()
	}
	m := len(p.Rows)
	ray := coresolver.LP{NumVars: m, Cost: make([]float64, m)}
	for r, row := range p.Rows {
		ray.Cost[r] = row.RHS
	}
	for k := 0; k < p.NumVars; k++ {
		coeffs := make([]float64, m)
		for r, row := range p.Rows {
			coeffs[r] = -row.Coeffs[k]
		}
		ray.AddRow(coeffs, 0)
	}
	for r := 0; r < m; r++ {
		coeffs := make([]float64, m)
		coeffs[r] = 1
		ray.AddRow(coeffs, 1)
	}
	obj, l, err := simplexSolve(ray)
	if err != nil {
		return nil, &coresolver.Failure{Op: "farkas lp", Err: err}
	}
	if obj > -rayTol {
		// No certificate found; the caller treats the nil ray as a
		// plain infeasible outcome.
		return nil, nil
	}
	return l, nil
}

// SolveBinaryMIP implements coresolver.Solver with a depth-first
// branch-and-bound: lowest fractional index first, zero branch before one,
// strict incumbent improvement. The fixed search order keeps tie-breaking
// deterministic: identical programs always return the identical assignment.
func (s *Simplex) SolveBinaryMIP(ctx context.Context, p coresolver.LP, binary []int) (coresolver.Solution, error) {
	isBinary := make(map[int]bool, len(binary))
	for _, idx := range binary {
		isBinary[idx] = true
	}

	best := coresolver.Solution{Status: coresolver.StatusInfeasible, Objective: math.Inf(1)}
	found := false

	var search func(fixed []coresolver.Constraint) error
	search = func(fixed []coresolver.Constraint) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		relax := coresolver.LP{NumVars: p.NumVars, Cost: p.Cost}
		relax.Rows = append(relax.Rows, p.Rows...)
		relax.Rows = append(relax.Rows, fixed...)

		sol, err := s.SolveLP(ctx, relax)
		if err != nil {
			return err
		}
		switch sol.Status {
		case coresolver.StatusInfeasible:
			return nil
		case coresolver.StatusUnbounded:
			if len(fixed) == 0 {
				best = coresolver.Solution{Status: coresolver.StatusUnbounded}
				found = true
			}
			return nil
		case coresolver.StatusTimeout:
			return context.DeadlineExceeded
		}
		if found && sol.Objective >= best.Objective-improveTol {
			return nil
		}

		branch := -1
		for _, idx := range binary {
			if math.Abs(sol.Primal[idx]-math.Round(sol.Primal[idx])) > intTol {
				branch = idx
				break
			}
		}
		if branch < 0 {
			primal := make([]float64, len(sol.Primal))
			copy(primal, sol.Primal)
			for idx := range isBinary {
				primal[idx] = math.Round(primal[idx])
			}
			best = coresolver.Solution{Status: coresolver.StatusOptimal, Objective: sol.Objective, Primal: primal}
			found = true
			return nil
		}

		zero := make([]float64, p.NumVars)
		zero[branch] = 1
		if err := search(append(fixed, coresolver.Constraint{Coeffs: zero, RHS: 0})); err != nil {
			return err
		}
		one := make([]float64, p.NumVars)
		one[branch] = -1
		return search(append(fixed, coresolver.Constraint{Coeffs: one, RHS: -1}))
	}

	err := search(nil)
	if err != nil {
		if found {
			best.Status = coresolver.StatusTimeout
			return best, nil
		}
		return coresolver.Solution{Status: coresolver.StatusTimeout}, nil
	}
	return best, nil
}
