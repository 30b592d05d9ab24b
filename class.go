package mutator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Class is an externally addressable type reachable through a
// "Class@method" target.
type Class interface {
	// ClassName returns the identifier used on the left of "@".
	ClassName() Name
	// Bind resolves method to an Operation. A static member is bound
	// directly. Otherwise the class is instantiated with no arguments and
	// the public instance method is bound to the new instance.
	Bind(method Name) (Operation, error)
}

// MethodFunc is an instance method of a class whose instances are of type T.
type MethodFunc[T any] func(recv T, ctx context.Context, value any, args Args) (any, error)

type method[T any] struct {
	fn     MethodFunc[T]
	public bool
}

// TypeClass describes a class whose instances are values of type T. It is
// built with NewClass, NewAbstractClass or NewClassWithParams and then
// extended with Static, Method and Protected.
type TypeClass[T any] struct {
	statics  map[Name]Operation
	methods  map[Name]method[T]
	ctor     func(args ...string) (T, error)
	name     Name
	params   []string
	abstract bool
}

// NewClass creates a class whose instances are built by factory with no
// arguments.
//
// Example:
//
//	type Money struct{ currency string }
//	money := mutator.NewClass("billing.Money", func() (*Money, error) {
//	    return &Money{currency: "EUR"}, nil
//	}).Method("format", func(m *Money, _ context.Context, v any, _ mutator.Args) (any, error) {
//	    return fmt.Sprintf("%v %s", v, m.currency), nil
//	})
func NewClass[T any](name Name, factory func() (T, error)) *TypeClass[T] {
	c := newTypeClass[T](name)
	c.ctor = func(...string) (T, error) {
		return factory()
	}
	return c
}

// NewAbstractClass creates a class that can never be instantiated. Only its
// static members are usable as targets.
func NewAbstractClass[T any](name Name) *TypeClass[T] {
	c := newTypeClass[T](name)
	c.abstract = true
	return c
}

// NewClassWithParams creates a class whose constructor requires the named
// parameters. Such a class cannot be instantiated by a target, so only its
// static members are usable; the constructor is kept for direct use through
// Instantiate.
func NewClassWithParams[T any](name Name, params []string, ctor func(args ...string) (T, error)) *TypeClass[T] {
	c := newTypeClass[T](name)
	c.params = append([]string(nil), params...)
	c.ctor = ctor
	return c
}

func newTypeClass[T any](name Name) *TypeClass[T] {
	return &TypeClass[T]{
		name:    name,
		statics: make(map[Name]Operation),
		methods: make(map[Name]method[T]),
	}
}

// Static adds a member callable without an instance.
func (c *TypeClass[T]) Static(name Name, op Operation) *TypeClass[T] {
	c.statics[name] = op
	return c
}

// Method adds a public instance method.
func (c *TypeClass[T]) Method(name Name, fn MethodFunc[T]) *TypeClass[T] {
	c.methods[name] = method[T]{fn: fn, public: true}
	return c
}

// Protected adds an instance method that exists on the class but cannot be
// used as a target.
func (c *TypeClass[T]) Protected(name Name, fn MethodFunc[T]) *TypeClass[T] {
	c.methods[name] = method[T]{fn: fn}
	return c
}

// ClassName implements Class.
func (c *TypeClass[T]) ClassName() Name {
	return c.name
}

// Instantiable reports whether the class can be built with no arguments.
func (c *TypeClass[T]) Instantiable() bool {
	return !c.abstract && c.ctor != nil && len(c.params) == 0
}

// Instantiate builds an instance with the given constructor arguments.
func (c *TypeClass[T]) Instantiate(args ...string) (T, error) {
	var zero T
	switch {
	case c.abstract || c.ctor == nil:
		return zero, fmt.Errorf("%w: %s is abstract", ErrNotInstantiable, c.name)
	case len(args) < len(c.params):
		return zero, fmt.Errorf("%w: %s requires %s", ErrNotInstantiable, c.name,
			strings.Join(c.params[len(args):], ", "))
	}
	recv, err := c.ctor(args...)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrNotInstantiable, c.name, err)
	}
	return recv, nil
}

// Bind implements Class.
func (c *TypeClass[T]) Bind(name Name) (Operation, error) {
	if op, ok := c.statics[name]; ok {
		return op, nil
	}

	m, ok := c.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %s", ErrUnknownMethod, c.name, name)
	}
	if !m.public {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotPublic, c.name, name)
	}

	recv, err := c.Instantiate()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, value any, args Args) (any, error) {
		return m.fn(recv, ctx, value, args)
	}, nil
}

// Classes is a registry of classes keyed by class identifier.
type Classes struct {
	classes map[Name]Class
	mu      sync.RWMutex
}

// NewClasses creates a registry holding the given classes.
func NewClasses(classes ...Class) *Classes {
	r := &Classes{classes: make(map[Name]Class, len(classes))}
	for _, c := range classes {
		r.classes[c.ClassName()] = c
	}
	return r
}

// Register adds classes, replacing any with the same identifier.
func (r *Classes) Register(classes ...Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		r.classes[c.ClassName()] = c
	}
}

// Lookup returns the class registered under name.
func (r *Classes) Lookup(name Name) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Names returns the registered class identifiers in sorted order.
func (r *Classes) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
