// Package pipeline compiles blueprints into executable pipelines.
//
// Compile copies the declared chain into an arena of nodes framed by a
// synthetic initiator and terminator, checks that splitters and collectors
// pair up like brackets and binds one run closure per node, last to first.
// Processing a unit walks that chain on the calling goroutine:
//
//	p, err := pipeline.Compile(bp, pipeline.WithResolver(container))
//	tc, err := p.Run(ctx, []int{1, 2, 3}, nil)
//	out, err := unit.Result[[]int](tc)
//
// Step faults are offered to the step's error processor. A processor may
// accept the fault and let the chain continue with the unit unchanged;
// otherwise the run stops with a PROCESSING_ERROR stored on the
// TransferingContext.
package pipeline
