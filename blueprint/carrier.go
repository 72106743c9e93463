package blueprint

import (
	"reflect"

	"github.com/kbukum/justconveyor/errors"
)

// Carrier is a type that offers named steps to blueprints. Steps is
// called on the prototype handed to the builder and again on the live
// instance resolved when the blueprint is compiled.
//
//	func (m *Multiplier) Steps(s *blueprint.Steps) {
//		s.Add("multiply", blueprint.Sync(m.Multiply))
//		s.OnError("multiply", m.OnMultiplyError)
//	}
type Carrier interface {
	Steps(s *Steps)
}

type namedStep struct {
	name string
	step Step
}

type namedHandler struct {
	name string
	fn   any
}

// Steps is the registry a Carrier fills in.
type Steps struct {
	carrier  string
	steps    []namedStep
	handlers []namedHandler
	err      error
}

func carrierName(c Carrier) string {
	return reflect.TypeOf(c).String()
}

func stepsOf(c Carrier) (*Steps, error) {
	s := &Steps{carrier: carrierName(c)}
	c.Steps(s)
	return s, s.err
}

// Add registers a step under name. Names are unique per kind.
func (s *Steps) Add(name string, step Step) {
	if s.err != nil {
		return
	}
	if !step.valid() {
		s.err = errors.FunctionNotFound(s.carrier, "step", name)
		return
	}
	for _, ns := range s.steps {
		if ns.name == name && ns.step.kind == step.kind {
			s.err = errors.DuplicateRegistration(step.kind.String(), s.carrier+"."+name)
			return
		}
	}
	s.steps = append(s.steps, namedStep{name: name, step: step})
}

// OnError registers an error processor for the step called name. An
// empty name makes it the carrier's default error processor.
func (s *Steps) OnError(name string, handler any) {
	if s.err != nil {
		return
	}
	for _, h := range s.handlers {
		if h.name == name {
			s.err = errors.DuplicateRegistration("error processor", s.carrier+"."+name)
			return
		}
	}
	s.handlers = append(s.handlers, namedHandler{name: name, fn: handler})
}

func (s *Steps) lookup(kind Kind, name string) (namedStep, error) {
	var candidates []namedStep
	for _, ns := range s.steps {
		if ns.step.kind != kind {
			continue
		}
		if name != "" && ns.name == name {
			return ns, nil
		}
		candidates = append(candidates, ns)
	}

	if name != "" || len(candidates) == 0 {
		return namedStep{}, errors.FunctionNotFound(s.carrier, kind.String(), name)
	}
	if len(candidates) > 1 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.name
		}
		return namedStep{}, errors.AmbiguousFunction(s.carrier, kind.String(), names)
	}
	return candidates[0], nil
}

// errorHandler returns the processor registered for step, falling back
// to the carrier default.
func (s *Steps) errorHandler(step string) (*ErrorHandler, error) {
	var fallback *namedHandler
	for i, h := range s.handlers {
		if h.name == step {
			return NewErrorHandler(s.carrier, h.name, h.fn)
		}
		if h.name == "" {
			fallback = &s.handlers[i]
		}
	}
	if fallback == nil {
		return nil, nil
	}
	return NewErrorHandler(s.carrier, step, fallback.fn)
}
