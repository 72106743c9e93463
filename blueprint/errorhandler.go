package blueprint

import (
	"fmt"
	"reflect"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/unit"
)

var (
	errorType     = reflect.TypeFor[error]()
	boolType      = reflect.TypeFor[bool]()
	unitCtxType   = reflect.TypeFor[*unit.UnitContext]()
	transferType  = reflect.TypeFor[*unit.TransferingContext]()
	allowedParams = []reflect.Type{errorType, unitCtxType, transferType}
)

// ErrorHandler is a validated error processor. Handle reports whether the
// chain may continue past the fault.
type ErrorHandler struct {
	name   string
	fn     reflect.Value
	params []reflect.Type
	shape  resultShape
}

type resultShape int

const (
	returnsNothing resultShape = iota
	returnsBool
	returnsError
	returnsBoolError
)

// NewErrorHandler validates fn. Parameters may be any of error,
// *unit.UnitContext and *unit.TransferingContext in any order; results
// may be nothing, bool, error or (bool, error).
func NewErrorHandler(carrier, name string, fn any) (*ErrorHandler, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.IncorrectErrorProcessor(carrier, name, fmt.Sprintf("%T is not a function", fn))
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, errors.IncorrectErrorProcessor(carrier, name, "variadic parameters are not supported")
	}

	params := make([]reflect.Type, t.NumIn())
	for i := range t.NumIn() {
		p := t.In(i)
		if !allowedParam(p) {
			return nil, errors.IncorrectErrorProcessor(carrier, name,
				fmt.Sprintf("parameter %d has unsupported type %s", i, p))
		}
		params[i] = p
	}

	var shape resultShape
	switch {
	case t.NumOut() == 0:
		shape = returnsNothing
	case t.NumOut() == 1 && t.Out(0) == boolType:
		shape = returnsBool
	case t.NumOut() == 1 && t.Out(0) == errorType:
		shape = returnsError
	case t.NumOut() == 2 && t.Out(0) == boolType && t.Out(1) == errorType:
		shape = returnsBoolError
	default:
		return nil, errors.IncorrectErrorProcessor(carrier, name, "must return bool, error, (bool, error) or nothing")
	}

	return &ErrorHandler{name: name, fn: v, params: params, shape: shape}, nil
}

func allowedParam(t reflect.Type) bool {
	for _, a := range allowedParams {
		if t == a {
			return true
		}
	}
	return false
}

// Name is the step the handler was registered for.
func (h *ErrorHandler) Name() string { return h.name }

// Handle invokes the processor. A panic inside it is returned as an error.
func (h *ErrorHandler) Handle(cause error, uc *unit.UnitContext, tc *unit.TransferingContext) (cont bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			cont, err = false, fmt.Errorf("error processor %s panicked: %v", h.name, r)
		}
	}()

	args := make([]reflect.Value, len(h.params))
	for i, p := range h.params {
		switch p {
		case errorType:
			args[i] = reflect.ValueOf(&cause).Elem()
		case unitCtxType:
			args[i] = reflect.ValueOf(uc)
		case transferType:
			args[i] = reflect.ValueOf(tc)
		}
	}

	out := h.fn.Call(args)
	switch h.shape {
	case returnsBool:
		return out[0].Bool(), nil
	case returnsError:
		return false, asError(out[0])
	case returnsBoolError:
		return out[0].Bool(), asError(out[1])
	default:
		return false, nil
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
