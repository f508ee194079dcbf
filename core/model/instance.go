package model

import (
	"fmt"
	"math"
)

// probTolerance bounds the allowed deviation of the scenario probability sum from 1.
const probTolerance = 1e-6

// Facility is a candidate site that can be opened at a fixed cost.
type Facility struct {
	ID        string
	FixedCost float64 // one-time opening cost
	Capacity  float64 // maximum units the facility can ship across all customers
}

// Customer is a demand point served by open facilities.
type Customer struct {
	ID string
}

// Scenario describes one realization of customer demand.
type Scenario struct {
	ID          string
	Probability float64
	Demand      []float64 // indexed like Instance.Customers
}

// Instance is an immutable stochastic facility-location problem. It is
// validated once after loading and read-only for the rest of the run.
type Instance struct {
	Facilities []Facility
	Customers  []Customer
	Scenarios  []Scenario

	// VariableCost[i][j] is the per-unit shipping cost from facility i to
	// customer j.
	VariableCost [][]float64

	// Eligible[i][j] reports whether facility i may serve customer j. A nil
	// matrix means every facility can serve every customer.
	Eligible [][]bool
}

// Validate checks non-negativity of all costs, capacities and demands, the
// probability sum and the shape of the cost and eligibility matrices.
func (in *Instance) Validate() error {
	if len(in.Facilities) == 0 {
		return fmt.Errorf("instance has no facilities")
	}
	if len(in.Customers) == 0 {
		return fmt.Errorf("instance has no customers")
	}
	if len(in.Scenarios) == 0 {
		return fmt.Errorf("instance has no scenarios")
	}
	for _, f := range in.Facilities {
		if f.FixedCost < 0 {
			return fmt.Errorf("facility %s: negative fixed cost %v", f.ID, f.FixedCost)
		}
		if f.Capacity < 0 {
			return fmt.Errorf("facility %s: negative capacity %v", f.ID, f.Capacity)
		}
	}
	var probSum float64
	for _, s := range in.Scenarios {
		if s.Probability <= 0 || s.Probability > 1 {
			return fmt.Errorf("scenario %s: probability %v outside (0,1]", s.ID, s.Probability)
		}
		probSum += s.Probability
		if len(s.Demand) != len(in.Customers) {
			return fmt.Errorf("scenario %s: %d demand entries for %d customers", s.ID, len(s.Demand), len(in.Customers))
		}
		for j, d := range s.Demand {
			if d < 0 {
				return fmt.Errorf("scenario %s: negative demand %v for customer %s", s.ID, d, in.Customers[j].ID)
			}
		}
	}
	if math.Abs(probSum-1) > probTolerance {
		return fmt.Errorf("scenario probabilities sum to %v, want 1", probSum)
	}
	if len(in.VariableCost) != len(in.Facilities) {
		return fmt.Errorf("variable cost matrix has %d rows for %d facilities", len(in.VariableCost), len(in.Facilities))
	}
	for i, row := range in.VariableCost {
		if len(row) != len(in.Customers) {
			return fmt.Errorf("variable cost row %s has %d entries for %d customers", in.Facilities[i].ID, len(row), len(in.Customers))
		}
		for j, c := range row {
			if c < 0 {
				return fmt.Errorf("negative variable cost %v for %s->%s", c, in.Facilities[i].ID, in.Customers[j].ID)
			}
		}
	}
	if in.Eligible != nil {
		if len(in.Eligible) != len(in.Facilities) {
			return fmt.Errorf("eligibility matrix has %d rows for %d facilities", len(in.Eligible), len(in.Facilities))
		}
		for i, row := range in.Eligible {
			if len(row) != len(in.Customers) {
				return fmt.Errorf("eligibility row %s has %d entries for %d customers", in.Facilities[i].ID, len(row), len(in.Customers))
			}
		}
	}
	return nil
}

// CanServe reports whether facility i may ship to customer j.
func (in *Instance) CanServe(i, j int) bool {
	if in.Eligible == nil {
		return true
	}
	return in.Eligible[i][j]
}

// TotalCapacity returns the aggregate capacity of all facilities.
func (in *Instance) TotalCapacity() float64 {
	var sum float64
	for _, f := range in.Facilities {
		sum += f.Capacity
	}
	return sum
}

// MaxScenarioDemand returns the largest total demand over all scenarios. The
// master problem uses it for the standing capacity-sufficiency constraint.
func (in *Instance) MaxScenarioDemand() float64 {
	var max float64
	for _, s := range in.Scenarios {
		var total float64
		for _, d := range s.Demand {
			total += d
		}
		if total > max {
			max = total
		}
	}
	return max
}

// OpenCapacity returns the aggregate capacity of the facilities marked open.
func (in *Instance) OpenCapacity(open []bool) float64 {
	var sum float64
	for i, f := range in.Facilities {
		if open[i] {
			sum += f.Capacity
		}
	}
	return sum
}

// FixedCost returns the total fixed cost of the facilities marked open.
func (in *Instance) FixedCost(open []bool) float64 {
	var sum float64
	for i, f := range in.Facilities {
		if open[i] {
			sum += f.FixedCost
		}
	}
	return sum
}
