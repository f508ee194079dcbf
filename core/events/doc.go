// Package events defines the solve progress events emitted on the event bus.
//
// Available event types:
//   - IterationEvent: bounds and cut count of one finished iteration
//   - CutEvent: a cut entering the master pool
//   - IncumbentEvent: a new best feasible open-set
package events
