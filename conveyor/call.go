package conveyor

import (
	"context"

	"github.com/kbukum/justconveyor/blueprint"
	"github.com/kbukum/justconveyor/unit"
)

// Caller sends a package to a named pipeline and waits for the result.
type Caller interface {
	Call(ctx context.Context, name string, p *unit.Package) (*unit.Package, error)
}

// CallPipeline appends a step that hands the current unit to the pipeline
// built from the blueprint called name and continues with its result. The target must have
// a free line: calling the pipeline a step belongs to from its only line
// waits forever.
func CallPipeline(b *blueprint.Blueprint, c Caller, name string) *blueprint.Blueprint {
	return b.ApplyFunc("call:"+name, blueprint.OnContexts(
		func(ctx context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (any, error) {
			res, err := c.Call(ctx, name, &unit.Package{
				ID:      uc.UnitID,
				Label:   name,
				Headers: uc.Headers.Clone(),
				Load:    uc.Unit,
			})
			if err != nil {
				return nil, err
			}
			return res.Load, nil
		}))
}
