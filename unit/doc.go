// Package unit holds the values that travel through a conveyor: the
// Package envelope produced by suppliers, the per-item UnitContext and the
// per-run TransferingContext with its step history.
package unit
