package unit

import (
	"fmt"
	"maps"

	"github.com/kbukum/justconveyor/errors"
)

// Header names set by the engine.
const (
	HeaderPipelineID   = "pipelineid"
	HeaderCollectionID = "$collection_id"
)

// Headers carries named values alongside a unit.
type Headers map[string]any

// Get returns the raw header value.
func (h Headers) Get(name string) (any, bool) {
	v, ok := h[name]
	return v, ok
}

// Add registers a new header and fails if the name is taken.
func (h Headers) Add(name string, value any) error {
	if _, ok := h[name]; ok {
		return errors.HeaderAlreadyRegistered(name)
	}
	h[name] = value
	return nil
}

// Set creates or replaces a header.
func (h Headers) Set(name string, value any) {
	h[name] = value
}

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	maps.Copy(out, h)
	return out
}

// HeaderAs returns the header converted to T.
func HeaderAs[T any](h Headers, name string) (T, error) {
	var zero T
	v, ok := h[name]
	if !ok {
		return zero, errors.HeaderNotRegistered(name)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.HeaderTypeMismatch(name, fmt.Sprintf("%T", v), fmt.Sprintf("%T", zero))
	}
	return typed, nil
}
