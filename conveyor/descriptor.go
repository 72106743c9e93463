package conveyor

import (
	"context"

	"github.com/kbukum/justconveyor/blueprint"
	"github.com/kbukum/justconveyor/unit"
	"github.com/kbukum/justconveyor/validation"
)

// Descriptor asks the conveyor to run a blueprint.
type Descriptor struct {
	Blueprint *blueprint.Blueprint
	// Lines is the number of concurrent worker lines; zero means one.
	Lines int
	// ForType routes packages by the type of their load instead of by
	// label matching the blueprint name.
	ForType bool
	// Builder names the type that produced the descriptor.
	Builder string
}

// Validate checks a descriptor after defaults are applied.
func (d Descriptor) Validate() error {
	v := validation.New().
		NotNil("blueprint", d.Blueprint).
		Min("lines", d.Lines, 1)
	if d.Blueprint != nil {
		v.Required("blueprint.name", d.Blueprint.Name())
	}
	return v.Err()
}

// BlueprintSource produces descriptors. Discover registers every source
// found in a container.
type BlueprintSource interface {
	Blueprints() []Descriptor
}

// Supplier produces packages. Returning unit.Fake ends the supplier, a
// nil package means nothing is ready yet.
type Supplier interface {
	SupplyNextPackage(ctx context.Context) (*unit.Package, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(ctx context.Context) (*unit.Package, error)

func (f SupplierFunc) SupplyNextPackage(ctx context.Context) (*unit.Package, error) {
	return f(ctx)
}

// NamedSupplier is a Supplier Discover can register on its own.
type NamedSupplier interface {
	Supplier
	SupplierName() string
}

// FinalizerFunc runs after every package of a pipeline, whatever the outcome.
type FinalizerFunc func(p *unit.Package, tc *unit.TransferingContext) error

// LostPackageFunc receives packages no pipeline accepted.
type LostPackageFunc func(p *unit.Package) error
