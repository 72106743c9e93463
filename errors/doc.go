// Package errors defines the error taxonomy of the conveyor engine.
//
// Every fault raised by the engine is an *AppError carrying a machine-readable
// code: build-time faults (unbalanced split/collect, missing or ambiguous
// steps), binding faults, step execution faults and orchestration faults.
// Step failures that an error processor could not absorb are wrapped with
// Processing or Aggregate so callers can still reach the original cause with
// errors.Is and errors.As.
package errors
