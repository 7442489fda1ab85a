package dryioc

import (
	"context"
	"iter"
	"reflect"
)

// IfUnresolved is the policy applied when no registration is found.
type IfUnresolved int

const (
	// IfUnresolvedThrow fails with UnresolvedServiceError.
	IfUnresolvedThrow IfUnresolved = iota

	// IfUnresolvedReturnDefault returns the zero value of the service type
	// and no error.
	IfUnresolvedReturnDefault
)

func (p IfUnresolved) String() string {
	if p == IfUnresolvedReturnDefault {
		return "ReturnDefault"
	}
	return "Throw"
}

// Resolver produces services. Recipes receive the Resolver that is resolving
// them and call back into it for their dependencies.
//
// *Container implements Resolver, resolving scoped services from the
// ScopeContext's current scope. Container.WithScope returns a Resolver bound
// to an explicit scope.
type Resolver interface {
	// ResolveDefault resolves the default registration of serviceType.
	ResolveDefault(ctx context.Context, serviceType reflect.Type, ifUnresolved IfUnresolved) (any, error)

	// ResolveKeyed resolves serviceType registered under serviceKey. A
	// non-nil requiredServiceType is looked up instead of serviceType and
	// must be assignable to it. With a nil key and no required type this is
	// ResolveDefault.
	ResolveKeyed(ctx context.Context, serviceType reflect.Type, serviceKey any, ifUnresolved IfUnresolved, requiredServiceType reflect.Type) (any, error)

	// ResolveMany lazily yields one service per keyed registration of
	// serviceType, or of requiredServiceType when set, in registration
	// order. A non-nil serviceKey yields only that registration. The
	// registration keyed compositeParentKey is skipped, so a composite can
	// resolve all of its siblings without resolving itself.
	//
	// When the type has no keyed registrations at all and no key was given,
	// the default registration is yielded if there is one.
	ResolveMany(ctx context.Context, serviceType reflect.Type, serviceKey any, requiredServiceType reflect.Type, compositeParentKey any) iter.Seq2[any, error]

	// SingletonScope returns the scope that owns singletons.
	SingletonScope() *Scope

	// CurrentScope returns the scope scoped services are cached in.
	CurrentScope(ctx context.Context) (*Scope, error)
}

var (
	_ Resolver = (*Container)(nil)
	_ Resolver = (*ScopedResolver)(nil)
	_ Resolver = (*singletonResolver)(nil)
)

// ScopedResolver resolves through its container with an explicit scope.
type ScopedResolver struct {
	c     *Container
	scope *Scope
}

func (r *ScopedResolver) ResolveDefault(ctx context.Context, serviceType reflect.Type, ifUnresolved IfUnresolved) (any, error) {
	return r.c.resolveDefault(ctx, r, r.scope, serviceType, ifUnresolved)
}

func (r *ScopedResolver) ResolveKeyed(ctx context.Context, serviceType reflect.Type, serviceKey any, ifUnresolved IfUnresolved, requiredServiceType reflect.Type) (any, error) {
	return r.c.resolveKeyed(ctx, r, r.scope, serviceType, serviceKey, ifUnresolved, requiredServiceType)
}

func (r *ScopedResolver) ResolveMany(ctx context.Context, serviceType reflect.Type, serviceKey any, requiredServiceType reflect.Type, compositeParentKey any) iter.Seq2[any, error] {
	return r.c.resolveMany(ctx, r, r.scope, serviceType, serviceKey, requiredServiceType, compositeParentKey)
}

func (r *ScopedResolver) SingletonScope() *Scope {
	return r.c.singletons
}

func (r *ScopedResolver) CurrentScope(context.Context) (*Scope, error) {
	if r.scope.IsDisposed() {
		return nil, r.scope.disposedError()
	}
	return r.scope, nil
}

// Scope returns the explicit scope of the resolver.
func (r *ScopedResolver) Scope() *Scope {
	return r.scope
}

// OpenScope opens a child of the resolver's scope. With a ScopeContext, the
// resolver's scope must also be the context's current scope, otherwise
// NotDirectScopeParentError is returned.
func (r *ScopedResolver) OpenScope(ctx context.Context, name any) (context.Context, *Scope, error) {
	return r.c.openScope(ctx, r.scope, true, name)
}

// singletonResolver resolves the dependencies of a singleton. It has no
// current scope, so scoped services cannot be captured.
type singletonResolver struct {
	c         *Container
	singleton ResolutionFrame
}

// unscoped returns the resolver a singleton constructed in ctx resolves its
// dependencies with. Resolvers from other packages are returned as is.
func unscoped(ctx context.Context, r Resolver) Resolver {
	var c *Container
	switch r := r.(type) {
	case *Container:
		c = r
	case *ScopedResolver:
		c = r.c
	case *singletonResolver:
		c = r.c
	default:
		return r
	}
	sr := &singletonResolver{c: c}
	if n := chainFrom(ctx); n != nil {
		sr.singleton = n.frame
	}
	return sr
}

func (r *singletonResolver) ResolveDefault(ctx context.Context, serviceType reflect.Type, ifUnresolved IfUnresolved) (any, error) {
	return r.c.resolveDefault(ctx, r, nil, serviceType, ifUnresolved)
}

func (r *singletonResolver) ResolveKeyed(ctx context.Context, serviceType reflect.Type, serviceKey any, ifUnresolved IfUnresolved, requiredServiceType reflect.Type) (any, error) {
	return r.c.resolveKeyed(ctx, r, nil, serviceType, serviceKey, ifUnresolved, requiredServiceType)
}

func (r *singletonResolver) ResolveMany(ctx context.Context, serviceType reflect.Type, serviceKey any, requiredServiceType reflect.Type, compositeParentKey any) iter.Seq2[any, error] {
	return r.c.resolveMany(ctx, r, nil, serviceType, serviceKey, requiredServiceType, compositeParentKey)
}

func (r *singletonResolver) SingletonScope() *Scope {
	return r.c.singletons
}

// CurrentScope always fails: the service asking for a scope is a dependency
// of the singleton being constructed.
func (r *singletonResolver) CurrentScope(ctx context.Context) (*Scope, error) {
	var dep ResolutionFrame
	if n := chainFrom(ctx); n != nil {
		dep = n.frame
	}
	return nil, CaptiveDependencyError{Service: r.singleton, Dependency: dep}
}

// ========================================
// Dispatch
// ========================================

func (c *Container) resolveDefault(ctx context.Context, r Resolver, scope *Scope, serviceType reflect.Type, ifUnresolved IfUnresolved) (any, error) {
	if err := checkServiceType(serviceType); err != nil {
		return nil, err
	}
	if c.IsDisposed() {
		return nil, ErrContainerDisposed
	}

	if reg, ok := c.registry.LookupDefault(serviceType); ok {
		return c.invoke(ctx, r, scope, serviceType, nil, reg.Recipe)
	}
	if recipe, ok := c.precompiled.lookupDefault(serviceType); ok {
		return c.invoke(ctx, r, scope, serviceType, nil, recipe)
	}

	return c.unresolved(ctx, serviceType, nil, nil, ifUnresolved)
}

func (c *Container) resolveKeyed(ctx context.Context, r Resolver, scope *Scope, serviceType reflect.Type, key any, ifUnresolved IfUnresolved, required reflect.Type) (any, error) {
	if key == nil && required == nil {
		return c.resolveDefault(ctx, r, scope, serviceType, ifUnresolved)
	}
	if err := checkServiceType(serviceType); err != nil {
		return nil, err
	}
	if err := checkRequiredType(serviceType, required); err != nil {
		return nil, err
	}
	if c.IsDisposed() {
		return nil, ErrContainerDisposed
	}

	lookupType := serviceType
	if required != nil {
		lookupType = required
	}

	if reg, ok := c.registry.LookupKeyed(lookupType, key); ok {
		return c.invoke(ctx, r, scope, lookupType, key, reg.Recipe)
	}
	if recipe, ok := c.precompiled.lookupKeyed(lookupType, key); ok {
		return c.invoke(ctx, r, scope, lookupType, key, recipe)
	}

	return c.unresolved(ctx, serviceType, key, required, ifUnresolved)
}

// manyEntry is one candidate of a resolve-many.
type manyEntry struct {
	key    any
	recipe Recipe
}

// manyEntries lists the keyed recipes of t: precompiled ones first, unless a
// runtime registration with the same key replaces them, then runtime ones in
// registration order.
func (c *Container) manyEntries(t reflect.Type) []manyEntry {
	regs := c.registry.LookupMany(t)

	var entries []manyEntry
	for _, kr := range c.precompiled.many(t) {
		if kr.Recipe == nil || c.registry.IsRegistered(t, kr.Key) {
			continue
		}
		entries = append(entries, manyEntry{key: kr.Key, recipe: kr.Recipe})
	}
	for _, reg := range regs {
		entries = append(entries, manyEntry{key: reg.ServiceKey, recipe: reg.Recipe})
	}
	return entries
}

func (c *Container) resolveMany(ctx context.Context, r Resolver, scope *Scope, serviceType reflect.Type, key any, required reflect.Type, compositeParentKey any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if err := checkServiceType(serviceType); err != nil {
			yield(nil, err)
			return
		}
		if err := checkRequiredType(serviceType, required); err != nil {
			yield(nil, err)
			return
		}
		if c.IsDisposed() {
			yield(nil, ErrContainerDisposed)
			return
		}

		lookupType := serviceType
		if required != nil {
			lookupType = required
		}

		entries := c.manyEntries(lookupType)
		switch {
		case key != nil:
			var only []manyEntry
			for _, e := range entries {
				if keysEqual(e.key, key) {
					only = append(only, e)
				}
			}
			entries = only
		case len(entries) == 0:
			if reg, ok := c.registry.LookupDefault(lookupType); ok {
				entries = []manyEntry{{recipe: reg.Recipe}}
			} else if recipe, ok := c.precompiled.lookupDefault(lookupType); ok {
				entries = []manyEntry{{recipe: recipe}}
			}
		}

		for _, e := range entries {
			if compositeParentKey != nil && keysEqual(e.key, compositeParentKey) {
				continue
			}
			if !yield(c.invoke(ctx, r, scope, lookupType, e.key, e.recipe)) {
				return
			}
		}
	}
}

func (c *Container) unresolved(ctx context.Context, serviceType reflect.Type, key any, required reflect.Type, ifUnresolved IfUnresolved) (any, error) {
	if ifUnresolved == IfUnresolvedReturnDefault {
		return zeroValue(serviceType), nil
	}

	err := UnresolvedServiceError{
		ServiceType:         serviceType,
		ServiceKey:          key,
		RequiredServiceType: required,
		Chain:               ResolutionChain(ctx),
		Available:           c.registry.ServiceTypes(),
	}
	if chainFrom(ctx) == nil {
		c.report(serviceType, key, nil, err, 0)
	}
	return nil, err
}
