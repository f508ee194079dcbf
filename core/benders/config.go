package benders

import (
	"fmt"
	"runtime"
)

// Config holds the numeric policy and resource budget of the loop.
type Config struct {
	// ToleranceAbs stops the loop once UB-LB falls below it.
	ToleranceAbs float64 `json:"toleranceAbs"`
	// ToleranceRel stops the loop once (UB-LB)/|UB| falls below it.
	ToleranceRel float64 `json:"toleranceRel"`
	// TightTolerance decides when a scenario's theta estimate already
	// matches its true cost, so no redundant cut is added.
	TightTolerance float64 `json:"tightTolerance"`
	// MaxIterations bounds the number of master solves.
	MaxIterations int `json:"maxIterations"`
	// Workers bounds concurrent scenario solves. Zero means one worker
	// per available core.
	Workers int `json:"workers"`
	// TimeoutSeconds bounds the wall clock of the whole run. Zero
	// disables the budget.
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// SetDefaults fills unset fields with working defaults.
func (c *Config) SetDefaults() {
	if c.ToleranceAbs == 0 {
		c.ToleranceAbs = 1e-6
	}
	if c.ToleranceRel == 0 {
		c.ToleranceRel = 1e-6
	}
	if c.TightTolerance == 0 {
		c.TightTolerance = 1e-6
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 100
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	if c.ToleranceAbs < 0 || c.ToleranceRel < 0 || c.TightTolerance < 0 {
		return fmt.Errorf("benders: tolerances must be non-negative")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("benders: maxIterations must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("benders: workers must be at least 1")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("benders: timeoutSeconds must be non-negative")
	}
	return nil
}
