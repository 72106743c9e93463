// Package conveyor runs compiled pipelines behind queues.
//
// Suppliers produce packages, which are routed by load type or by label to
// the pipeline registered for them. Each pipeline is drained by a fixed
// number of worker lines. Callers that need the result use Process, which
// waits on a per-package wait box until a line delivers it.
//
//	c, _ := conveyor.New(conveyor.Settings{}, conveyor.WithLogger(log))
//	_ = c.RegisterBlueprint(conveyor.Descriptor{Blueprint: bp, Lines: 4})
//	_ = c.WithSupplier("numbers", supplier)
//	_ = c.Start(ctx)
//	defer c.Stop(ctx)
package conveyor
