// Package component defines the lifecycle contract shared by the parts of a
// conveyor host and a registry that starts them in order and stops them in
// reverse.
package component
