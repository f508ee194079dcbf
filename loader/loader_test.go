package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "FACILITIES": ["f1", "f2"],
  "CUSTOMERS": ["c1", "c2"],
  "SCENARIOS": ["s1", "s2"],
  "prob": {"s1": 0.5, "s2": 0.5},
  "fixed_cost": {"f1": 5, "f2": 7},
  "facility_capacity": {"f1": 10, "f2": 12},
  "variable_cost": {
    "f1": {"c1": 1, "c2": 2},
    "f2": {"c1": 3, "c2": 4}
  },
  "customer_demand": {
    "c1": {"s1": 8, "s2": 4},
    "c2": {"s1": 6, "s2": 2}
  }
}`

func TestParse(t *testing.T) {
	inst, err := Parse(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	require.Len(t, inst.Facilities, 2)
	assert.Equal(t, "f1", inst.Facilities[0].ID)
	assert.Equal(t, 5.0, inst.Facilities[0].FixedCost)
	assert.Equal(t, 12.0, inst.Facilities[1].Capacity)

	require.Len(t, inst.Scenarios, 2)
	assert.Equal(t, 0.5, inst.Scenarios[0].Probability)
	// Demand is ordered by the CUSTOMERS list, not by map iteration.
	assert.Equal(t, []float64{8, 6}, inst.Scenarios[0].Demand)
	assert.Equal(t, []float64{4, 2}, inst.Scenarios[1].Demand)

	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, inst.VariableCost)
	assert.Nil(t, inst.Eligible)
}

func TestParseMissingEntries(t *testing.T) {
	cases := []struct {
		name string
		drop string
		want string
	}{
		{"fixed cost", `"f2": 7`, "missing fixed_cost for facility f2"},
		{"capacity", `"f2": 12`, "missing facility_capacity for facility f2"},
		{"probability", `"s2": 0.5`, "missing prob for scenario s2"},
		{"demand", `"s2": 2`, "missing customer_demand for customer c2 in scenario s2"},
		{"variable cost", `"c2": 4`, "missing variable_cost for f2->c2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := strings.Replace(sampleDoc, ", "+tc.drop, "", 1)
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseEligible(t *testing.T) {
	doc := strings.Replace(sampleDoc, `"customer_demand": {`,
		`"eligible": {"f1": ["c1"]},
  "customer_demand": {`, 1)
	inst, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.NotNil(t, inst.Eligible)
	// f1 is restricted to c1; f2 has no entry and keeps the full reach.
	assert.Equal(t, [][]bool{{true, false}, {true, true}}, inst.Eligible)
}

func TestParseEligibleUnknownCustomer(t *testing.T) {
	doc := strings.Replace(sampleDoc, `"customer_demand": {`,
		`"eligible": {"f1": ["c9"]},
  "customer_demand": {`, 1)
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown customer c9")
}

func TestParseRejectsInvalidInstance(t *testing.T) {
	doc := strings.Replace(sampleDoc, `"s1": 0.5, "s2": 0.5`, `"s1": 0.9, "s2": 0.5`, 1)
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}
