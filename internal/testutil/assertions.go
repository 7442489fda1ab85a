package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dryioc "github.com/dadhi/DryIoc-sub012"
)

// AssertServiceResolvable checks if a service can be resolved
func AssertServiceResolvable[T any](t *testing.T, ctx context.Context, r dryioc.Resolver) T {
	t.Helper()
	service, err := dryioc.Resolve[T](ctx, r)
	require.NoError(t, err, "failed to resolve service of type %T", *new(T))
	require.NotNil(t, service, "resolved service is nil")
	return service
}

// AssertKeyedServiceResolvable checks if a keyed service can be resolved
func AssertKeyedServiceResolvable[T any](t *testing.T, ctx context.Context, r dryioc.Resolver, key any) T {
	t.Helper()
	service, err := dryioc.ResolveKeyed[T](ctx, r, key)
	require.NoError(t, err, "failed to resolve keyed service of type %T with key %v", *new(T), key)
	require.NotNil(t, service, "resolved keyed service is nil")
	return service
}

// AssertServiceNotFound checks if a service resolution fails with not found error
func AssertServiceNotFound[T any](t *testing.T, ctx context.Context, r dryioc.Resolver) {
	t.Helper()
	_, err := dryioc.Resolve[T](ctx, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, dryioc.ErrServiceNotFound)
}

// AssertSameInstance checks that two values are the same pointer.
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances checks that two values are different pointers.
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// AssertScopeDisposed checks that a scope is disposed and refuses new values.
func AssertScopeDisposed(t *testing.T, scope *dryioc.Scope) {
	t.Helper()
	assert.True(t, scope.IsDisposed(), "scope should be disposed")

	_, err := scope.GetOrAdd(dryioc.NewSlotID(), func() (any, error) {
		return NewTestService(), nil
	})
	assert.ErrorIs(t, err, dryioc.ErrScopeDisposed)
}

// AssertErrorType checks that err matches T and returns it.
func AssertErrorType[T error](t *testing.T, err error, msgAndArgs ...any) T {
	t.Helper()
	var target T
	require.True(t, errors.As(err, &target), msgAndArgs...)
	return target
}

// AssertCircularDependency checks for a circular dependency error.
func AssertCircularDependency(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, dryioc.ErrCircularDependency)
}
