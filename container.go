package dryioc

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Container holds registrations and the singleton scope, and resolves
// services. It is safe for concurrent use: registration never blocks
// resolution.
//
// Example:
//
//	c := dryioc.New(dryioc.WithScopeContext(dryioc.NewFlowScopeContext()))
//	defer c.Close()
//
//	dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*Database, error) {
//	    return OpenDatabase()
//	}, dryioc.WithLifetime(dryioc.Singleton))
//
//	db, err := dryioc.Resolve[*Database](ctx, c)
type Container struct {
	id string

	registry     *Registry
	precompiled  *Precompiled
	singletons   *Scope
	scopeContext ScopeContext

	options *options
	logger  *slog.Logger

	disposed int32

	// Scopes opened through OpenScope that are still alive.
	scopesMu sync.Mutex
	scopes   []*Scope
}

// New creates a container.
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}

	id := uuid.NewString()
	logger := o.logger.With("container", id)

	return &Container{
		id:           id,
		registry:     NewRegistry(),
		precompiled:  o.precompiled,
		singletons:   newScope(nil, SingletonScopeName, logger),
		scopeContext: o.scopeContext,
		options:      o,
		logger:       logger,
	}
}

// ID returns the unique ID of this container.
func (c *Container) ID() string {
	return c.id
}

// IsDisposed reports whether the container has been disposed.
func (c *Container) IsDisposed() bool {
	return atomic.LoadInt32(&c.disposed) != 0
}

// Registry returns the container's registry.
func (c *Container) Registry() *Registry {
	return c.registry
}

// ScopeContext returns the ambient scope strategy, or nil.
func (c *Container) ScopeContext() ScopeContext {
	return c.scopeContext
}

// ========================================
// Registration
// ========================================

// Register registers recipe as the default registration of serviceType.
// A WithKey option registers it under a key instead.
func (c *Container) Register(serviceType reflect.Type, recipe Recipe, opts ...RegisterOption) error {
	o := newRegisterOptions(opts)
	return c.register(serviceType, o.key, recipe, o)
}

// RegisterKeyed registers recipe for serviceType under key.
func (c *Container) RegisterKeyed(serviceType reflect.Type, key any, recipe Recipe, opts ...RegisterOption) error {
	o := newRegisterOptions(opts)
	return c.register(serviceType, key, recipe, o)
}

func (c *Container) register(serviceType reflect.Type, key any, recipe Recipe, o *registerOptions) error {
	if c.IsDisposed() {
		return RegistrationError{ServiceType: serviceType, ServiceKey: key, Operation: "register", Cause: ErrContainerDisposed}
	}
	if serviceType == nil {
		return RegistrationError{Operation: "register", Cause: ErrServiceTypeNil}
	}
	if recipe == nil {
		return RegistrationError{ServiceType: serviceType, ServiceKey: key, Operation: "register", Cause: ErrRecipeNil}
	}
	if !o.lifetime.IsValid() {
		return RegistrationError{ServiceType: serviceType, ServiceKey: key, Operation: "register", Cause: LifetimeError{Value: o.lifetime}}
	}

	if o.trackTransient && o.lifetime == Transient {
		recipe = trackedRecipe(recipe)
	}

	reg := &Registration{
		ServiceType: serviceType,
		ServiceKey:  key,
		Recipe:      reuse(o.lifetime, o.scopedTo, recipe),
		Lifetime:    o.lifetime,
		factory:     recipe,
		scopedTo:    o.scopedTo,

		Dependencies: o.dependencies,
	}
	if err := c.registry.Register(reg); err != nil {
		return err
	}

	c.logger.Debug("service registered",
		"type", formatType(serviceType), "key", key, "lifetime", o.lifetime)
	return nil
}

// RegisterInstance registers an existing value as a singleton of
// serviceType. The value is stored in the singleton scope and released with
// it, unless PreventDisposal is given.
func (c *Container) RegisterInstance(serviceType reflect.Type, instance any, opts ...RegisterOption) error {
	o := newRegisterOptions(opts)

	if serviceType == nil {
		return RegistrationError{Operation: "register-instance", Cause: ErrServiceTypeNil}
	}
	if instance != nil && !reflect.TypeOf(instance).AssignableTo(serviceType) {
		return RegistrationError{
			ServiceType: serviceType,
			ServiceKey:  o.key,
			Operation:   "register-instance",
			Cause: TypeMismatchError{
				Expected: serviceType,
				Actual:   reflect.TypeOf(instance),
				Context:  "instance registration",
			},
		}
	}
	if c.IsDisposed() {
		return RegistrationError{ServiceType: serviceType, ServiceKey: o.key, Operation: "register-instance", Cause: ErrContainerDisposed}
	}

	var value any = instance
	if o.preventDisposal {
		value = Hide(instance)
	}

	id := NewSlotID()
	if err := c.singletons.SetOrAdd(id, value); err != nil {
		return RegistrationError{ServiceType: serviceType, ServiceKey: o.key, Operation: "register-instance", Cause: err}
	}

	recipe := func(_ context.Context, r Resolver, _ *Scope) (any, error) {
		v, ok := r.SingletonScope().TryGet(id)
		if !ok {
			return nil, r.SingletonScope().disposedError()
		}
		return v, nil
	}

	return c.registry.Register(&Registration{
		ServiceType: serviceType,
		ServiceKey:  o.key,
		Recipe:      recipe,
		Lifetime:    Singleton,
		factory:     recipe,
	})
}

// IsRegistered reports whether serviceType is registered under key, at
// runtime or in the precompiled set. A nil key checks the default.
func (c *Container) IsRegistered(serviceType reflect.Type, key any) bool {
	if c.registry.IsRegistered(serviceType, key) {
		return true
	}
	_, ok := c.precompiled.lookupKeyed(serviceType, key)
	return ok
}

// ========================================
// Resolver
// ========================================

func (c *Container) ResolveDefault(ctx context.Context, serviceType reflect.Type, ifUnresolved IfUnresolved) (any, error) {
	return c.resolveDefault(ctx, c, nil, serviceType, ifUnresolved)
}

func (c *Container) ResolveKeyed(ctx context.Context, serviceType reflect.Type, serviceKey any, ifUnresolved IfUnresolved, requiredServiceType reflect.Type) (any, error) {
	return c.resolveKeyed(ctx, c, nil, serviceType, serviceKey, ifUnresolved, requiredServiceType)
}

func (c *Container) ResolveMany(ctx context.Context, serviceType reflect.Type, serviceKey any, requiredServiceType reflect.Type, compositeParentKey any) iter.Seq2[any, error] {
	return c.resolveMany(ctx, c, nil, serviceType, serviceKey, requiredServiceType, compositeParentKey)
}

// SingletonScope returns the scope that owns singletons.
func (c *Container) SingletonScope() *Scope {
	return c.singletons
}

// CurrentScope returns the ScopeContext's current scope. It fails with
// NoCurrentScopeError when there is no ScopeContext or no current scope.
func (c *Container) CurrentScope(ctx context.Context) (*Scope, error) {
	if c.scopeContext == nil {
		return nil, NoCurrentScopeError{}
	}
	s := c.scopeContext.GetCurrentOrDefault(ctx)
	if s == nil {
		return nil, NoCurrentScopeError{}
	}
	if s.IsDisposed() {
		return nil, s.disposedError()
	}
	return s, nil
}

// WithScope returns a Resolver that resolves scoped services from scope,
// regardless of the ScopeContext.
func (c *Container) WithScope(scope *Scope) *ScopedResolver {
	return &ScopedResolver{c: c, scope: scope}
}

// ========================================
// Scopes
// ========================================

// OpenScope opens a scope under the current scope and makes it current.
//
// With a FlowScopeContext the new scope is current only in the returned
// context. With a SharedScopeContext it becomes current process-wide until
// disposed, when the nearest live ancestor becomes current again. Without a
// ScopeContext the scope has no parent and must be used through WithScope.
//
// The scope is disposed with the container if still open.
func (c *Container) OpenScope(ctx context.Context, name any) (context.Context, *Scope, error) {
	return c.openScope(ctx, nil, false, name)
}

func (c *Container) openScope(ctx context.Context, parent *Scope, explicitParent bool, name any) (context.Context, *Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.IsDisposed() {
		return ctx, nil, ErrContainerDisposed
	}
	if parent != nil && parent.IsDisposed() {
		return ctx, nil, parent.disposedError()
	}

	var scope *Scope
	if c.scopeContext == nil {
		scope = newScope(parent, name, c.logger)
	} else {
		var err error
		ctx, _ = c.scopeContext.SetCurrent(ctx, func(current *Scope) *Scope {
			if explicitParent && current != parent {
				err = c.notDirectParent(parent, current)
				return current
			}
			scope = newScope(current, name, c.logger)
			return scope
		})
		if err != nil {
			return ctx, nil, err
		}
	}

	c.trackScope(scope)

	c.logger.Debug("scope opened", "scope", scope.id, "name", name)
	return ctx, scope, nil
}

func (c *Container) notDirectParent(parent, current *Scope) error {
	err := NotDirectScopeParentError{ParentID: parent.id}
	if current != nil {
		err.CurrentID = current.id
	}
	return err
}

func (c *Container) trackScope(scope *Scope) {
	c.scopesMu.Lock()
	c.scopes = append(c.scopes, scope)
	c.scopesMu.Unlock()

	scope.addDisposeHook(func(s *Scope) {
		c.scopesMu.Lock()
		c.scopes = slices.DeleteFunc(c.scopes, func(open *Scope) bool { return open == s })
		c.scopesMu.Unlock()

		// A flow cell is dropped with its context; only the shared cell
		// outlives the scope.
		if shared, ok := c.scopeContext.(*SharedScopeContext); ok {
			shared.SetCurrent(context.Background(), nearestLive)
		}
	})
}

// ========================================
// Disposal
// ========================================

// Dispose disposes every scope still open through OpenScope, newest first,
// then the singleton scope. Only the first call does any work.
func (c *Container) Dispose() error {
	return c.DisposeContext(context.Background())
}

// Close implements Disposable.
func (c *Container) Close() error {
	return c.Dispose()
}

// DisposeContext is Dispose with a context passed to context-aware
// disposables.
func (c *Container) DisposeContext(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.disposed, 0, 1) {
		return nil
	}

	c.scopesMu.Lock()
	open := slices.Clone(c.scopes)
	c.scopesMu.Unlock()

	var errs []error
	for i := len(open) - 1; i >= 0; i-- {
		if err := open[i].DisposeContext(ctx); err != nil {
			errs = append(errs, flattenDisposal(err)...)
		}
	}

	if err := c.singletons.DisposeContext(ctx); err != nil {
		errs = append(errs, flattenDisposal(err)...)
	}

	if len(errs) > 0 {
		c.logger.Warn("container disposed with errors", "errors", len(errs))
		return DisposalError{Context: "container", Errors: errs}
	}

	c.logger.Debug("container disposed")
	return nil
}

func flattenDisposal(err error) []error {
	var de DisposalError
	if errors.As(err, &de) {
		return de.Errors
	}
	return []error{err}
}
