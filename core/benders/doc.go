// Package benders implements a Benders decomposition engine for two-stage
// stochastic facility location: a master problem decides which facilities to
// open, one transportation subproblem per demand scenario prices the
// second-stage shipping, and dual information flows back as optimality and
// feasibility cuts until the bounds close.
package benders
