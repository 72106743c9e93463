package main

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/kbukum/justconveyor/unit"
)

// numbers supplies 1..count labelled for the sum pipeline, then ends.
type numbers struct {
	count int
	next  atomic.Int64
}

func (n *numbers) SupplierName() string { return "numbers" }

func (n *numbers) SupplyNextPackage(_ context.Context) (*unit.Package, error) {
	v := int(n.next.Add(1))
	if v > n.count {
		return unit.Fake, nil
	}
	return &unit.Package{
		ID:    "n:" + strconv.Itoa(v),
		Label: "sum_of_scaled_squares",
		Load:  v,
	}, nil
}
