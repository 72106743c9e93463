package di

import (
	"fmt"
	"reflect"
)

// MustResolve resolves a component with type safety, panics on error.
//
// Example:
//
//	conv := di.MustResolve[*conveyor.Conveyor](c, di.Names.Conveyor)
func MustResolve[T any](c Container, key string) T {
	result, err := Resolve[T](c, key)
	if err != nil {
		panic(err.Error())
	}
	return result
}

// Resolve resolves a component with type safety, returns error on failure.
func Resolve[T any](c Container, key string) (T, error) {
	var zero T
	instance, err := c.Resolve(key)
	if err != nil {
		return zero, fmt.Errorf("di: failed to resolve %s: %w", key, err)
	}
	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("di: component %s is %T, expected %T", key, instance, zero)
	}
	return result, nil
}

// TryResolve resolves a component, returns zero value and false if not found.
func TryResolve[T any](c Container, key string) (T, bool) {
	result, err := Resolve[T](c, key)
	return result, err == nil
}

// Provide registers instance under the type key of T, so ResolveOf[T]
// and Container.ResolveType find it.
//
// Example:
//
//	di.Provide[*steps.Multiplier](c, &steps.Multiplier{Factor: 10})
func Provide[T any](c Container, instance T) error {
	return c.RegisterSingleton(TypeKey(reflect.TypeFor[T]()), instance)
}

// ResolveOf resolves the component registered for type T.
func ResolveOf[T any](c Container) (T, error) {
	var zero T
	instance, err := c.ResolveType(reflect.TypeFor[T]())
	if err != nil {
		return zero, fmt.Errorf("di: failed to resolve %s: %w", reflect.TypeFor[T](), err)
	}
	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("di: component for %s is %T", reflect.TypeFor[T](), instance)
	}
	return result, nil
}

// Scan resolves every registration and returns the instances that implement
// T, ordered by registration key. It is the discovery pass the conveyor runs
// once at startup to find blueprint sources.
func Scan[T any](c Container) ([]T, error) {
	var found []T
	for _, info := range c.Registrations() {
		instance, err := c.Resolve(info.Key)
		if err != nil {
			return nil, fmt.Errorf("di: scan %s: %w", info.Key, err)
		}
		if v, ok := instance.(T); ok {
			found = append(found, v)
		}
	}
	return found, nil
}
