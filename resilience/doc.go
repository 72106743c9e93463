// Package resilience holds flow-control primitives for conveyor loops.
//
// RateLimiter is a token bucket used to pace suppliers:
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "numbers", Rate: 100, Burst: 10})
//	if err := rl.Wait(ctx); err != nil {
//	    return err
//	}
//	pkg, err := supplier.SupplyNextPackage(ctx)
package resilience
