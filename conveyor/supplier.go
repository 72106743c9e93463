package conveyor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
	"github.com/kbukum/justconveyor/resilience"
	"github.com/kbukum/justconveyor/unit"
)

// SupplierState is the lifecycle state of a supplier loop.
type SupplierState int32

const (
	SupplierInitialized SupplierState = iota
	SupplierWaitForNextPackage
	SupplierRouting
	SupplierFinished
)

func (s SupplierState) String() string {
	switch s {
	case SupplierInitialized:
		return "Initialized"
	case SupplierWaitForNextPackage:
		return "WaitForNextPackage"
	case SupplierRouting:
		return "Routing"
	default:
		return "Finished"
	}
}

type supplierRun struct {
	name     string
	supplier Supplier
	limiter  *resilience.RateLimiter
	rate     meter

	state    atomic.Int32
	supplied atomic.Int64
	errs     atomic.Int64
}

func (s *supplierRun) State() SupplierState { return SupplierState(s.state.Load()) }

func (s *supplierRun) setState(st SupplierState) { s.state.Store(int32(st)) }

// runSupplier polls one supplier until it returns the fake package or the
// conveyor stops. Errors are counted and logged, never fatal.
func (c *Conveyor) runSupplier(ctx context.Context, s *supplierRun) {
	defer c.wg.Done()
	defer s.setState(SupplierFinished)

	log := c.log.WithFields(logger.Fields(logger.FieldSupplier, s.name))
	log.Info("supplier started")

	for ctx.Err() == nil {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}

		s.setState(SupplierWaitForNextPackage)
		p, err := supply(ctx, s.supplier)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.errs.Add(1)
			c.metrics.RecordSupplierError(ctx, s.name)
			log.Error("supplier failed", logger.Fields(logger.FieldError, err))
			continue
		}
		if p == nil {
			continue
		}
		if unit.IsFake(p) {
			break
		}

		s.setState(SupplierRouting)
		s.supplied.Add(1)
		c.metrics.RecordSupplied(ctx, s.name)
		if err := c.route(ctx, p); err != nil && !errors.HasCode(err, errors.ErrCodeBlueprintNotRegistered) {
			s.errs.Add(1)
			log.Error("routing failed", logger.Fields(logger.FieldPackageID, p.ID, logger.FieldError, err))
		}
	}
	log.Info("supplier finished", logger.Fields("supplied", s.supplied.Load(), "errors", s.errs.Load()))
}

func supply(ctx context.Context, s Supplier) (p *unit.Package, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("supplier panic: %v", r)
		}
	}()
	return s.SupplyNextPackage(ctx)
}
