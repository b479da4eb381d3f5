// Package compiler validates a declared component graph.Graph and compiles
// it into a Plan the runtime can execute. Grounded on the teacher's
// "ADR-021" sentinel-error convention (internal/core/errors.go) and its
// seven-phase task assembly (internal/task/manager.go's Create), adapted
// here into the five-step algorithm spec.md §4.1 describes.
package compiler

import "errors"

// Graph errors (spec.md §7 tier 1): fatal to the graph being compiled.
var (
	ErrCycleDetected      = errors.New("compiler: cycle detected")
	ErrMissingInput       = errors.New("compiler: required input not wired")
	ErrDuplicateWire      = errors.New("compiler: input wired more than once")
	ErrTypeMismatch       = errors.New("compiler: producer and consumer value types disagree")
	ErrUnknownComponent   = errors.New("compiler: unknown component")
	ErrUnknownChannel     = errors.New("compiler: unknown channel")
	ErrAmbiguousBroadcast = errors.New("compiler: ambiguous broadcast depth")
)
