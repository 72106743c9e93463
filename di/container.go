package di

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	goerrors "github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
)

// RegistrationMode determines how a component should be resolved
type RegistrationMode int

const (
	Eager     RegistrationMode = iota // Initialize immediately on registration
	Lazy                              // Initialize on first resolve
	Singleton                         // Pre-created instance
)

func (m RegistrationMode) String() string {
	switch m {
	case Eager:
		return "eager"
	case Lazy:
		return "lazy"
	default:
		return "singleton"
	}
}

// Container is the service locator the conveyor resolves carriers,
// blueprint sources and shared singletons from.
type Container interface {
	Register(key string, constructor interface{}) error
	RegisterEager(key string, constructor interface{}) error
	RegisterSingleton(key string, instance interface{}) error
	Resolve(key string) (interface{}, error)
	ResolveType(t reflect.Type) (interface{}, error)
	Close() error

	// Introspection
	Registrations() []RegistrationInfo
}

// RegistrationInfo describes a registered component for introspection.
type RegistrationInfo struct {
	Key         string
	Mode        RegistrationMode // Eager, Lazy, or Singleton
	Initialized bool
}

// UnifiedContainer is the default Container.
type UnifiedContainer struct {
	components map[string]*ComponentRegistration
	log        *logger.Logger
	mutex      sync.RWMutex
}

type ComponentRegistration struct {
	key         string
	constructor interface{}
	mode        RegistrationMode
	instance    interface{}
	mutex       sync.Mutex
	initialized bool
}

// Option configures a UnifiedContainer.
type Option func(*UnifiedContainer)

// WithLogger sets the logger used to report lazy initialization.
func WithLogger(l *logger.Logger) Option {
	return func(c *UnifiedContainer) { c.log = l.WithComponent("di") }
}

func NewContainer(opts ...Option) *UnifiedContainer {
	c := &UnifiedContainer{
		components: make(map[string]*ComponentRegistration),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TypeKey is the registration key used for type-addressed components.
func TypeKey(t reflect.Type) string {
	return "type:" + t.String()
}

// Register registers a component for lazy initialization (most common case).
func (c *UnifiedContainer) Register(key string, constructor interface{}) error {
	if err := validateConstructor(constructor); err != nil {
		return fmt.Errorf("register %s: %w", key, err)
	}
	return c.add(&ComponentRegistration{key: key, constructor: constructor, mode: Lazy})
}

// RegisterEager registers a component and constructs it immediately.
func (c *UnifiedContainer) RegisterEager(key string, constructor interface{}) error {
	if err := validateConstructor(constructor); err != nil {
		return fmt.Errorf("register %s: %w", key, err)
	}
	instance, err := c.callConstructor(constructor)
	if err != nil {
		return fmt.Errorf("failed to initialize eager component '%s': %w", key, err)
	}
	return c.add(&ComponentRegistration{key: key, mode: Eager, instance: instance, initialized: true})
}

// RegisterSingleton registers a pre-created instance.
func (c *UnifiedContainer) RegisterSingleton(key string, instance interface{}) error {
	return c.add(&ComponentRegistration{key: key, mode: Singleton, instance: instance, initialized: true})
}

func (c *UnifiedContainer) add(reg *ComponentRegistration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.components[reg.key]; exists {
		return goerrors.DuplicateRegistration("component", reg.key)
	}
	c.components[reg.key] = reg
	return nil
}

// Resolve gets a component instance by key.
func (c *UnifiedContainer) Resolve(key string) (interface{}, error) {
	c.mutex.RLock()
	registration, exists := c.components[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, goerrors.ServiceNotFound(key)
	}
	return c.resolveComponent(registration)
}

// ResolveType gets the component registered under TypeKey(t). When there is
// none, it falls back to the single initialized instance whose dynamic type
// is exactly t.
func (c *UnifiedContainer) ResolveType(t reflect.Type) (interface{}, error) {
	key := TypeKey(t)

	c.mutex.RLock()
	registration, exists := c.components[key]
	var matches []*ComponentRegistration
	if !exists {
		for _, reg := range c.components {
			reg.mutex.Lock()
			if reg.initialized && reg.instance != nil && reflect.TypeOf(reg.instance) == t {
				matches = append(matches, reg)
			}
			reg.mutex.Unlock()
		}
	}
	c.mutex.RUnlock()

	if exists {
		return c.resolveComponent(registration)
	}
	switch len(matches) {
	case 0:
		return nil, goerrors.ServiceNotFound(key)
	case 1:
		return matches[0].instance, nil
	default:
		return nil, goerrors.DuplicateRegistration("component of type", t.String())
	}
}

func (c *UnifiedContainer) resolveComponent(registration *ComponentRegistration) (interface{}, error) {
	registration.mutex.Lock()
	defer registration.mutex.Unlock()

	if registration.initialized {
		return registration.instance, nil
	}

	instance, err := c.callConstructor(registration.constructor)
	if err != nil {
		c.log.Debug("Lazy component initialization failed", map[string]interface{}{
			"component": registration.key,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to initialize lazy component '%s': %w", registration.key, err)
	}

	registration.instance = instance
	registration.initialized = true
	c.log.Debug("Lazy component initialized", map[string]interface{}{
		"component": registration.key,
	})
	return instance, nil
}

func validateConstructor(constructor interface{}) error {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("constructor must be a function, got %T", constructor)
	}
	if n := fn.Type().NumOut(); n < 1 || n > 2 {
		return fmt.Errorf("constructor must return either (instance) or (instance, error)")
	}
	return nil
}

var (
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	containerType = reflect.TypeOf((*Container)(nil)).Elem()
)

func (c *UnifiedContainer) callConstructor(constructor interface{}) (interface{}, error) {
	fn := reflect.ValueOf(constructor)
	fnType := fn.Type()

	args := make([]reflect.Value, 0, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		switch in := fnType.In(i); {
		case in == contextType:
			args = append(args, reflect.ValueOf(context.Background()))
		case in == containerType:
			args = append(args, reflect.ValueOf(Container(c)))
		default:
			return nil, fmt.Errorf("unsupported constructor parameter %s", in)
		}
	}
	return handleConstructorResults(fn.Call(args))
}

func handleConstructorResults(results []reflect.Value) (interface{}, error) {
	instance := results[0].Interface()
	if len(results) == 2 {
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// Registrations returns info about all registered components, ordered by key.
func (c *UnifiedContainer) Registrations() []RegistrationInfo {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]RegistrationInfo, 0, len(c.components))
	for key, reg := range c.components {
		reg.mutex.Lock()
		result = append(result, RegistrationInfo{
			Key:         key,
			Mode:        reg.mode,
			Initialized: reg.initialized,
		})
		reg.mutex.Unlock()
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Close closes every initialized component that implements Close() error.
func (c *UnifiedContainer) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var firstErr error
	for _, registration := range c.components {
		if !registration.initialized || registration.instance == nil {
			continue
		}
		if closer, ok := registration.instance.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
