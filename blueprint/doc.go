// Package blueprint declares pipelines.
//
// A Blueprint is an ordered chain of processors, splitters and collectors.
// Steps are either inline (ApplyFunc, SplitFunc, CollectFunc) or looked up
// by name on a Carrier, a type that registers its typed steps explicitly:
//
//	type Multiplier struct{ Factor int }
//
//	func (m *Multiplier) Steps(s *blueprint.Steps) {
//		s.Add("multiply", blueprint.Sync(func(v int) (int, error) { return v * m.Factor, nil }))
//	}
//
//	bp := blueprint.New[[]int]("multiply").
//		SplitFunc("each", blueprint.Split(func(v []int) ([]int, error) { return v, nil })).
//		Apply(&Multiplier{Factor: 10}).
//		Collect()
//
// Lookup, error processor signatures and the type flow between steps are
// checked while the chain is built; the first failure is kept in Err.
package blueprint
