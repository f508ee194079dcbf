// Package loader reads problem instances from the JSON input document and
// writes solution documents. The schema follows the stochastic
// facility-location exchange format: id lists plus parameter tables keyed by
// those ids.
package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/floc/core/model"
)

// Document is the raw JSON input.
type Document struct {
	Facilities       []string                      `json:"FACILITIES"`
	Customers        []string                      `json:"CUSTOMERS"`
	Scenarios        []string                      `json:"SCENARIOS"`
	Probability      map[string]float64            `json:"prob"`
	FixedCost        map[string]float64            `json:"fixed_cost"`
	FacilityCapacity map[string]float64            `json:"facility_capacity"`
	VariableCost     map[string]map[string]float64 `json:"variable_cost"`
	CustomerDemand   map[string]map[string]float64 `json:"customer_demand"`

	// Eligible optionally restricts which customers a facility may serve,
	// keyed by facility id. Absent means every facility serves everyone.
	Eligible map[string][]string `json:"eligible,omitempty"`
}

// Read loads and validates an instance from the given path, or from stdin
// when the path is empty.
func Read(path string) (*model.Instance, error) {
	if path == "" {
		return Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates an instance from the reader.
func Parse(r io.Reader) (*model.Instance, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return Build(doc)
}

// Build cross-references the document's tables against its id lists and
// produces a validated instance. Every facility needs a fixed cost and a
// capacity, every scenario a probability, and the cost and demand tables must
// cover all pairs.
func Build(doc Document) (*model.Instance, error) {
	inst := &model.Instance{
		Facilities: make([]model.Facility, len(doc.Facilities)),
		Customers:  make([]model.Customer, len(doc.Customers)),
		Scenarios:  make([]model.Scenario, len(doc.Scenarios)),
	}

	customerIdx := make(map[string]int, len(doc.Customers))
	for j, id := range doc.Customers {
		inst.Customers[j] = model.Customer{ID: id}
		customerIdx[id] = j
	}

	for i, id := range doc.Facilities {
		fc, ok := doc.FixedCost[id]
		if !ok {
			return nil, fmt.Errorf("missing fixed_cost for facility %s", id)
		}
		cap, ok := doc.FacilityCapacity[id]
		if !ok {
			return nil, fmt.Errorf("missing facility_capacity for facility %s", id)
		}
		inst.Facilities[i] = model.Facility{ID: id, FixedCost: fc, Capacity: cap}
	}

	for s, id := range doc.Scenarios {
		prob, ok := doc.Probability[id]
		if !ok {
			return nil, fmt.Errorf("missing prob for scenario %s", id)
		}
		demand := make([]float64, len(doc.Customers))
		for j, cid := range doc.Customers {
			row, ok := doc.CustomerDemand[cid]
			if !ok {
				return nil, fmt.Errorf("missing customer_demand for customer %s", cid)
			}
			d, ok := row[id]
			if !ok {
				return nil, fmt.Errorf("missing customer_demand for customer %s in scenario %s", cid, id)
			}
			demand[j] = d
		}
		inst.Scenarios[s] = model.Scenario{ID: id, Probability: prob, Demand: demand}
	}

	inst.VariableCost = make([][]float64, len(doc.Facilities))
	for i, fid := range doc.Facilities {
		row, ok := doc.VariableCost[fid]
		if !ok {
			return nil, fmt.Errorf("missing variable_cost for facility %s", fid)
		}
		inst.VariableCost[i] = make([]float64, len(doc.Customers))
		for j, cid := range doc.Customers {
			c, ok := row[cid]
			if !ok {
				return nil, fmt.Errorf("missing variable_cost for %s->%s", fid, cid)
			}
			inst.VariableCost[i][j] = c
		}
	}

	if doc.Eligible != nil {
		inst.Eligible = make([][]bool, len(doc.Facilities))
		for i, fid := range doc.Facilities {
			inst.Eligible[i] = make([]bool, len(doc.Customers))
			allowed, ok := doc.Eligible[fid]
			if !ok {
				// Facilities without an entry keep the full reach.
				for j := range inst.Eligible[i] {
					inst.Eligible[i][j] = true
				}
				continue
			}
			for _, cid := range allowed {
				j, ok := customerIdx[cid]
				if !ok {
					return nil, fmt.Errorf("eligible list for %s names unknown customer %s", fid, cid)
				}
				inst.Eligible[i][j] = true
			}
		}
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}
