package events

// IterationEvent is published after every loop iteration.
type IterationEvent struct {
	Iteration  int
	LowerBound float64
	UpperBound float64
	Gap        float64
	CutsAdded  int
}

// CutEvent is published when a cut enters the master's pool.
type CutEvent struct {
	Iteration int
	Scenario  string
	Kind      string
}

// IncumbentEvent is published when a better feasible open-set is found.
type IncumbentEvent struct {
	Iteration int
	Open      []string
	Cost      float64
}
