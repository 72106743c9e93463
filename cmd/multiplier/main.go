// Command multiplier runs a small conveyor: a supplier feeds numbers into a
// pipeline that explodes each number into a range, scales and squares the
// members through a second pipeline, and sums them back up.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/justconveyor/admin"
	"github.com/kbukum/justconveyor/bootstrap"
	"github.com/kbukum/justconveyor/config"
	"github.com/kbukum/justconveyor/conveyor"
	"github.com/kbukum/justconveyor/di"
	"github.com/kbukum/justconveyor/logger"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/unit"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.LoadConfig("multiplier", &cfg); err != nil {
		return err
	}
	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	done := conveyor.CountFinalizer(cfg.Numbers.Count)
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		return configure(ctx, a, done)
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		select {
		case <-done.Done():
			app.Logger.Info("all numbers processed", logger.Fields("processed", done.Seen(), "failed", done.Failed()))
		case <-ctx.Done():
		}
		return nil
	})
}

func configure(ctx context.Context, a *bootstrap.App[*Config], done *conveyor.Finalizer) error {
	cfg := a.Cfg
	if cfg.Telemetry.Enabled {
		if err := setupTelemetry(ctx, a); err != nil {
			return err
		}
	}

	if err := di.Provide(a.Container, &multiplier{factor: cfg.Numbers.Factor}); err != nil {
		return err
	}

	conv, err := conveyor.New(cfg.Conveyor,
		conveyor.WithLogger(a.Logger),
		conveyor.WithResolver(a.Container),
	)
	if err != nil {
		return err
	}

	if err := a.Container.RegisterSingleton("pipelines", pipelines{caller: conv, lines: cfg.Numbers.Lines}); err != nil {
		return err
	}
	if err := a.Container.RegisterSingleton("numbers", &numbers{count: cfg.Numbers.Count}); err != nil {
		return err
	}
	if err := conv.Discover(a.Container); err != nil {
		return err
	}

	report := done.Then(func(p *unit.Package, tc *unit.TransferingContext) error {
		if err := tc.Err(); err != nil {
			a.Logger.Warn("number failed", logger.Fields(logger.FieldPackageID, p.ID, logger.FieldError, err))
			return nil
		}
		sum, err := unit.Result[int](tc)
		if err != nil {
			return err
		}
		a.Logger.Debug("number processed", logger.Fields(logger.FieldPackageID, p.ID, "sum", sum))
		return nil
	})
	if err := conv.WithPipelineFinalizer("sum_of_scaled_squares", report.Func()); err != nil {
		return err
	}
	if err := conv.WithLostPackagesProcessor(func(p *unit.Package) error {
		return fmt.Errorf("package %s has no pipeline", p.ID)
	}); err != nil {
		return err
	}

	if err := a.RegisterComponent(conv); err != nil {
		return err
	}
	snap := conv.Snapshot()
	for _, p := range snap.Pipelines {
		a.Summary.TrackPipeline(p.Name, p.Shape, p.RoutingKey, p.Lines)
	}
	for _, s := range snap.Suppliers {
		a.Summary.TrackSupplier(s.Name)
	}

	if cfg.Admin.Enabled {
		srv := admin.New(cfg.Admin, cfg.Name, conv, a.Components.HealthAll, a.Logger)
		if err := a.RegisterComponent(srv); err != nil {
			return err
		}
		for _, r := range srv.Routes() {
			a.Summary.TrackRoute(r[0], r[1])
		}
	}
	return nil
}

func setupTelemetry(ctx context.Context, a *bootstrap.App[*Config]) error {
	tp, err := observability.InitTracer(ctx, a.Cfg.Telemetry.Tracer, a.Logger)
	if err != nil {
		return err
	}
	mp, err := observability.InitMeter(ctx, &a.Cfg.Telemetry.Meter, a.Logger)
	if err != nil {
		return err
	}
	a.OnStop(func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	})
	return nil
}
