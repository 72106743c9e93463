package blueprint

import "github.com/kbukum/justconveyor/unit"

// CastCollection appends a step turning a trivially collected
// []*unit.UnitContext into []T, skipping nil units.
func CastCollection[T any](b *Blueprint) *Blueprint {
	return b.ApplyFunc("cast", Sync(func(units []*unit.UnitContext) ([]T, error) {
		out := make([]T, 0, len(units))
		for _, uc := range units {
			if uc.Unit == nil {
				continue
			}
			v, err := unit.As[T](uc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}))
}

// CollectAndCast closes the open split and casts the children to []T.
func CollectAndCast[T any](b *Blueprint) *Blueprint {
	return CastCollection[T](b.Collect())
}
