// Package dryioc provides a dependency-resolution runtime for Go applications.
// Services are produced by recipes, cached according to their lifetime in
// scopes, and released when the scopes that own them are disposed.
//
// # Overview
//
// The package provides:
//   - Three service lifetimes: Singleton, Scoped, and Transient
//   - Default, keyed and resolve-many resolution, with composite exclusion
//   - Scopes that cache values at most once per slot and release them LIFO
//   - An ambient current scope, shared process-wide or carried in a context
//   - Precompiled recipe sets used as a fallback to runtime registrations
//   - Constructor injection with parameter objects
//   - Lock-free resolution while registrations are added
//
// # Basic Usage
//
// Create a container, register recipes, and resolve:
//
//	c := dryioc.New(dryioc.WithScopeContext(dryioc.NewFlowScopeContext()))
//	defer c.Close()
//
//	dryioc.RegisterConstructor(c, NewLogger, dryioc.WithLifetime(dryioc.Singleton))
//	dryioc.RegisterConstructor(c, NewUserService, dryioc.WithLifetime(dryioc.Scoped))
//
//	ctx, scope, err := c.OpenScope(ctx, "request")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scope.Close()
//
//	userService, err := dryioc.Resolve[*UserService](ctx, c)
//
// # Recipes
//
// A Recipe is any function that builds a service from a Resolver. The
// container treats recipes as opaque; RegisterFunc, RegisterConstructor and
// Precompiled sets are different ways of producing them.
//
//	dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*Cache, error) {
//	    cfg, err := dryioc.Resolve[*Config](ctx, r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewCache(cfg.CacheSize), nil
//	}, dryioc.WithLifetime(dryioc.Singleton))
//
// # Service Lifetimes
//
//   - Singleton: One instance cached in the container's singleton scope
//   - Scoped: One instance per scope, or per named scope with ScopedTo
//   - Transient: New instance created every time the service is requested
//
// # Keyed Services and Resolve-Many
//
// Several registrations of one type can be told apart with keys:
//
//	dryioc.RegisterKeyedFunc(c, "primary", NewPrimaryDB)
//	dryioc.RegisterKeyedFunc(c, "replica", NewReplicaDB)
//
//	primary, err := dryioc.ResolveKeyed[*DB](ctx, c, "primary")
//
//	for db, err := range dryioc.ResolveMany[*DB](ctx, c) {
//	    // ...
//	}
//
// A composite registered among its siblings resolves them with
// ResolveManyExcept, passing its own key so that it is skipped.
//
// # Scopes
//
// A Scope caches scoped values and releases them on Dispose, newest first.
// Values implementing Disposable or DisposableWithContext are closed; a value
// wrapped with Hide is cached but never closed.
//
// The current scope is found through the container's ScopeContext:
//
//   - SharedScopeContext: one current scope for the process
//   - FlowScopeContext: the current scope travels in a context.Context
//
// Without a ScopeContext, scoped services are resolved through
// Container.WithScope.
//
// # Error Handling
//
// Failures are returned as typed errors that match sentinel values:
//
//	_, err := dryioc.Resolve[*UserService](ctx, c)
//	if errors.Is(err, dryioc.ErrServiceNotFound) {
//	    // not registered
//	}
//
//	var unresolved dryioc.UnresolvedServiceError
//	if errors.As(err, &unresolved) {
//	    log.Println(unresolved.Chain)
//	}
package dryioc
