package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/floc/core/benders"
	"github.com/kilianp07/floc/core/model"
)

// Shipment is one positive facility-to-customer flow in a scenario plan.
type Shipment struct {
	Facility string  `json:"facility"`
	Customer string  `json:"customer"`
	Quantity float64 `json:"quantity"`
}

// ScenarioAllocation is the recovered shipping plan of one scenario.
type ScenarioAllocation struct {
	Scenario  string     `json:"scenario"`
	Cost      float64    `json:"cost"`
	Shipments []Shipment `json:"shipments"`
}

// Solution is one entry of the output's solutions list.
type Solution struct {
	FacilityOpen map[string]bool      `json:"facility_open"`
	Allocations  []ScenarioAllocation `json:"allocations"`
	TotalCost    float64              `json:"total_cost"`
}

// ResultStats describes the solve outcome.
type ResultStats struct {
	Duration float64        `json:"duration"`
	Value    float64        `json:"value"`
	Custom   map[string]any `json:"custom"`
}

// RunStats describes the whole program run.
type RunStats struct {
	Duration float64 `json:"duration"`
}

// Statistics is the statistics block of the output document.
type Statistics struct {
	Result ResultStats `json:"result"`
	Run    RunStats    `json:"run"`
	Schema string      `json:"schema"`
}

// Output is the full solution document.
type Output struct {
	Solutions  []Solution `json:"solutions"`
	Statistics Statistics `json:"statistics"`
}

// BuildOutput converts a finished run into the output document. It fails when
// the run produced no feasible open-set, since there is no solution to report.
func BuildOutput(inst *model.Instance, res *benders.Result, solveDuration, runDuration time.Duration) (*Output, error) {
	if res.Open == nil {
		return nil, fmt.Errorf("no feasible solution found (state %s)", res.State)
	}

	open := make(map[string]bool, len(inst.Facilities))
	for i, f := range inst.Facilities {
		open[f.ID] = res.Open[i]
	}

	var allocations []ScenarioAllocation
	for _, plan := range res.Plans {
		alloc := ScenarioAllocation{Scenario: plan.Scenario, Cost: plan.Cost, Shipments: []Shipment{}}
		for i, row := range plan.Allocation {
			for j, q := range row {
				if q > 0 {
					alloc.Shipments = append(alloc.Shipments, Shipment{
						Facility: inst.Facilities[i].ID,
						Customer: inst.Customers[j].ID,
						Quantity: q,
					})
				}
			}
		}
		allocations = append(allocations, alloc)
	}

	return &Output{
		Solutions: []Solution{{
			FacilityOpen: open,
			Allocations:  allocations,
			TotalCost:    res.Objective,
		}},
		Statistics: Statistics{
			Result: ResultStats{
				Duration: solveDuration.Seconds(),
				Value:    res.Objective,
				Custom: map[string]any{
					"status":     res.State.String(),
					"iterations": res.Iterations,
					"cuts":       res.Cuts,
					"gap":        res.Gap,
					"run_id":     uuid.NewString(),
				},
			},
			Run:    RunStats{Duration: runDuration.Seconds()},
			Schema: "v1",
		},
	}, nil
}

// Write serializes the output document to the given path, or to stdout when
// the path is empty.
func Write(path string, out *Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
