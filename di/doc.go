// Package di is the service locator of a conveyor host.
//
// Components are registered by key as lazy constructors, eager constructors
// or ready singletons. Type-addressed registration (Provide, ResolveOf,
// Container.ResolveType) lets a pipeline resolve the live instance of a
// step carrier from its type, and Scan is the one-off discovery pass that
// finds every registered blueprint source.
//
// # Registration
//
//	c := di.NewContainer()
//	_ = di.Provide[*steps.Multiplier](c, &steps.Multiplier{Factor: 10})
//	_ = c.Register("ints", func(c di.Container) (*IntsBlueprints, error) { ... })
//
// # Resolution
//
//	m, err := di.ResolveOf[*steps.Multiplier](c)
package di
