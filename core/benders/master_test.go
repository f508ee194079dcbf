package benders

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/floc/core/model"
	infrasolver "github.com/kilianp07/floc/infra/solver"
)

func masterInstance() *model.Instance {
	return &model.Instance{
		Facilities: []model.Facility{
			{ID: "f1", FixedCost: 5, Capacity: 10},
			{ID: "f2", FixedCost: 5, Capacity: 10},
		},
		Customers: []model.Customer{{ID: "c1"}, {ID: "c2"}},
		Scenarios: []model.Scenario{
			{ID: "s1", Probability: 1, Demand: []float64{8, 8}},
		},
		VariableCost: [][]float64{{1, 1}, {1, 1}},
	}
}

func TestMasterEmptyPool(t *testing.T) {
	m, err := NewMaster(masterInstance(), infrasolver.New())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	res, err := m.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	// Worst-case demand 16 needs both 10-unit facilities, and with no cut
	// the cost estimates sit at zero.
	if !res.Open[0] || !res.Open[1] {
		t.Fatalf("open = %v, want both facilities", res.Open)
	}
	if math.Abs(res.Objective-10) > 1e-6 {
		t.Fatalf("objective = %v, want 10", res.Objective)
	}
	if math.Abs(res.Theta[0]) > 1e-9 {
		t.Fatalf("theta = %v, want 0 before any cut", res.Theta)
	}
}

func TestMasterOptimalityCutRaisesBound(t *testing.T) {
	m, err := NewMaster(masterInstance(), infrasolver.New())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	m.AddCut(Cut{
		Kind:     CutOptimality,
		Scenario: 0,
		Coeffs:   []float64{0, 0},
		Constant: 16,
	})
	if m.NumCuts() != 1 {
		t.Fatalf("pool size = %d, want 1", m.NumCuts())
	}
	res, err := m.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(res.Objective-26) > 1e-6 {
		t.Fatalf("objective = %v, want 26", res.Objective)
	}
	if math.Abs(res.Theta[0]-16) > 1e-6 {
		t.Fatalf("theta = %v, want 16", res.Theta)
	}
}

func TestMasterFeasibilityCutForcesFacility(t *testing.T) {
	m, err := NewMaster(masterInstance(), infrasolver.New())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	// 16 units of demand cannot be served without f1.
	m.AddCut(Cut{
		Kind:     CutFeasibility,
		Scenario: 0,
		Coeffs:   []float64{-16, 0},
		Constant: 8,
	})
	res, err := m.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !res.Open[0] {
		t.Fatalf("open = %v, want f1 forced open", res.Open)
	}
}

func TestMasterInfeasibleModel(t *testing.T) {
	inst := masterInstance()
	inst.Scenarios[0].Demand = []float64{20, 20}
	m, err := NewMaster(inst, infrasolver.New())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	if _, err := m.Solve(context.Background()); !errors.Is(err, ErrModelInfeasible) {
		t.Fatalf("err = %v, want ErrModelInfeasible", err)
	}
}
