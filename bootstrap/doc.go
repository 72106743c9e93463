// Package bootstrap hosts conveyor services.
//
// An App loads nothing by itself: the host loads its typed config, hands it
// to NewApp and registers components from OnConfigure callbacks. Run then
// starts the components in registration order, prints a startup summary,
// waits for a shutdown signal and stops everything in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    conv, err := conveyor.New(a.Cfg.Conveyor, conveyor.WithLogger(a.Logger))
//	    ...
//	    return a.RegisterComponent(conv)
//	})
//	return app.Run(ctx)
package bootstrap
