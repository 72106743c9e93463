// Package admin serves the read-only HTTP view of a running conveyor:
// health, build version, counters, queues, lines and the contexts that are
// in a pipeline right now.
package admin
