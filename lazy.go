package dryioc

import (
	"context"
	"sync"
)

// Lazy returns a thunk that resolves T on its first call and returns the
// same result afterwards. Recipes use it to depend on a service without
// constructing it up front, which also breaks construction cycles:
//
//	dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*Parent, error) {
//	    return &Parent{child: dryioc.Lazy[*Child](ctx, r)}, nil
//	})
//
// The thunk resolves with the context and resolver Lazy was called with.
// Inside the thunk only services still under construction count as a cycle,
// so calling it from the recipe that captured it and coming back to that
// service fails with CircularDependencyError. The depth limit keeps counting.
func Lazy[T any](ctx context.Context, r Resolver) func() (T, error) {
	ctx = deferredContext(ctx)
	return sync.OnceValues(func() (T, error) {
		return Resolve[T](ctx, r)
	})
}

// LazyKeyed is Lazy for T registered under key.
func LazyKeyed[T any](ctx context.Context, r Resolver, key any) func() (T, error) {
	ctx = deferredContext(ctx)
	return sync.OnceValues(func() (T, error) {
		return ResolveKeyed[T](ctx, r, key)
	})
}
