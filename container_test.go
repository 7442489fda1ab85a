package dryioc_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dryioc "github.com/dadhi/DryIoc-sub012"
	"github.com/dadhi/DryIoc-sub012/internal/testutil"
)

func newFlowContainer(t *testing.T, opts ...dryioc.Option) *dryioc.Container {
	t.Helper()
	opts = append([]dryioc.Option{dryioc.WithScopeContext(dryioc.NewFlowScopeContext())}, opts...)
	return testutil.NewContainerBuilder(t, opts...).Build()
}

func newDatabase(context.Context, dryioc.Resolver) (*testutil.TestDatabaseImpl, error) {
	return testutil.NewTestDatabase().(*testutil.TestDatabaseImpl), nil
}

type databaseHolder struct {
	db *testutil.TestDatabaseImpl
}

func newDatabaseHolder(ctx context.Context, r dryioc.Resolver) (*databaseHolder, error) {
	db, err := dryioc.Resolve[*testutil.TestDatabaseImpl](ctx, r)
	if err != nil {
		return nil, err
	}
	return &databaseHolder{db: db}, nil
}

func TestContainer_Register(t *testing.T) {
	recipe := func(context.Context, dryioc.Resolver, *dryioc.Scope) (any, error) { return 1, nil }
	intType := reflect.TypeFor[int]()

	tests := []struct {
		name     string
		register func(c *dryioc.Container) error
		wantIs   error
	}{
		{
			name:     "nil service type",
			register: func(c *dryioc.Container) error { return c.Register(nil, recipe) },
			wantIs:   dryioc.ErrServiceTypeNil,
		},
		{
			name:     "nil recipe",
			register: func(c *dryioc.Container) error { return c.Register(intType, nil) },
			wantIs:   dryioc.ErrRecipeNil,
		},
		{
			name: "nil func",
			register: func(c *dryioc.Container) error {
				return dryioc.RegisterFunc[int](c, nil)
			},
			wantIs: dryioc.ErrRecipeNil,
		},
		{
			name: "non-comparable key",
			register: func(c *dryioc.Container) error {
				return c.RegisterKeyed(intType, []string{"a"}, recipe)
			},
			wantIs: dryioc.ErrServiceKeyNotComparable,
		},
		{
			name: "disposed container",
			register: func(c *dryioc.Container) error {
				require.NoError(t, c.Close())
				return c.Register(intType, recipe)
			},
			wantIs: dryioc.ErrContainerDisposed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dryioc.New()
			defer c.Close()

			err := tt.register(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			testutil.AssertErrorType[dryioc.RegistrationError](t, err)
		})
	}

	t.Run("invalid lifetime", func(t *testing.T) {
		c := dryioc.New()
		defer c.Close()

		err := c.Register(intType, recipe, dryioc.WithLifetime(dryioc.Lifetime(42)))
		testutil.AssertErrorType[dryioc.LifetimeError](t, err)
	})

	t.Run("replaces same identity", func(t *testing.T) {
		c := dryioc.New()
		defer c.Close()

		require.NoError(t, dryioc.RegisterFunc(c, func(context.Context, dryioc.Resolver) (string, error) { return "old", nil }))
		require.NoError(t, dryioc.RegisterFunc(c, func(context.Context, dryioc.Resolver) (string, error) { return "new", nil }))

		v, err := dryioc.Resolve[string](context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "new", v)
		assert.Equal(t, 1, c.Registry().Count())
	})
}

func TestContainer_Lifetimes(t *testing.T) {
	t.Run("transient", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, func(context.Context, dryioc.Resolver) (*testutil.TestService, error) {
			return testutil.NewTestService(), nil
		}))

		ctx := context.Background()
		first := testutil.AssertServiceResolvable[*testutil.TestService](t, ctx, c)
		second := testutil.AssertServiceResolvable[*testutil.TestService](t, ctx, c)
		testutil.AssertDifferentInstances(t, first, second)
	})

	t.Run("singleton is shared across scopes and outlives them", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Singleton)))

		ctx1, scope1, err := c.OpenScope(context.Background(), "first")
		require.NoError(t, err)
		fromScope1 := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx1, c)
		require.NoError(t, scope1.Dispose())
		assert.False(t, fromScope1.IsClosed())

		ctx2, scope2, err := c.OpenScope(context.Background(), "second")
		require.NoError(t, err)
		defer scope2.Close()
		fromScope2 := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx2, c)
		testutil.AssertSameInstance(t, fromScope1, fromScope2)

		fromRoot := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		testutil.AssertSameInstance(t, fromScope1, fromRoot)

		require.NoError(t, c.Close())
		assert.True(t, fromRoot.IsClosed())
	})

	t.Run("concurrent singleton resolution builds once", func(t *testing.T) {
		c := newFlowContainer(t)

		var mu sync.Mutex
		built := 0
		require.NoError(t, dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*testutil.TestService, error) {
			mu.Lock()
			built++
			mu.Unlock()
			return testutil.NewTestService(), nil
		}, dryioc.WithLifetime(dryioc.Singleton)))

		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := dryioc.Resolve[*testutil.TestService](context.Background(), c)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, built)
	})

	t.Run("scoped is isolated per scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Scoped)))

		ctx1, scope1, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		ctx2, scope2, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		defer scope2.Close()

		a := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx1, c)
		b := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx1, c)
		other := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx2, c)

		testutil.AssertSameInstance(t, a, b)
		testutil.AssertDifferentInstances(t, a, other)

		require.NoError(t, scope1.Dispose())
		assert.True(t, a.IsClosed())
		assert.False(t, other.IsClosed())
	})

	t.Run("scoped without a current scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Scoped)))

		_, err := dryioc.Resolve[*testutil.TestDatabaseImpl](context.Background(), c)
		require.ErrorIs(t, err, dryioc.ErrNoCurrentScope)

		noScope := testutil.AssertErrorType[dryioc.NoCurrentScopeError](t, err)
		assert.Equal(t, reflect.TypeFor[*testutil.TestDatabaseImpl](), noScope.ServiceType)
	})

	t.Run("scoped through an explicit scope", func(t *testing.T) {
		c := testutil.NewContainerBuilder(t).Build()
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Scoped)))

		ctx, scope, err := c.OpenScope(context.Background(), "explicit")
		require.NoError(t, err)
		assert.Nil(t, scope.Parent())

		_, err = dryioc.Resolve[*testutil.TestDatabaseImpl](ctx, c)
		assert.ErrorIs(t, err, dryioc.ErrNoCurrentScope)

		r := c.WithScope(scope)
		a := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, r)
		b := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, r)
		testutil.AssertSameInstance(t, a, b)

		require.NoError(t, scope.Close())
		_, err = r.CurrentScope(ctx)
		assert.ErrorIs(t, err, dryioc.ErrScopeDisposed)
	})

	t.Run("scoped to a named scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.ScopedTo("request")))

		requestCtx, request, err := c.OpenScope(context.Background(), "request")
		require.NoError(t, err)
		defer request.Close()
		innerCtx, inner, err := c.OpenScope(requestCtx, "inner")
		require.NoError(t, err)

		fromInner := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, innerCtx, c)
		fromRequest := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, requestCtx, c)
		testutil.AssertSameInstance(t, fromInner, fromRequest)

		require.NoError(t, inner.Dispose())
		assert.False(t, fromInner.IsClosed(), "owned by the request scope")

		otherCtx, other, err := c.OpenScope(context.Background(), "other")
		require.NoError(t, err)
		defer other.Close()

		_, err = dryioc.Resolve[*testutil.TestDatabaseImpl](otherCtx, c)
		assert.ErrorIs(t, err, dryioc.ErrNoMatchedScope)
	})

	t.Run("scoped to the singleton scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.ScopedTo(dryioc.SingletonScopeName)))

		ctx, scope, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)

		fromScope := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, c)
		require.NoError(t, scope.Dispose())
		assert.False(t, fromScope.IsClosed())

		fromRoot := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		testutil.AssertSameInstance(t, fromScope, fromRoot)

		require.NoError(t, c.Validate())
	})

	t.Run("singletons cannot capture scoped dependencies", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Scoped)))
		require.NoError(t, dryioc.RegisterFunc(c, newDatabaseHolder, dryioc.WithLifetime(dryioc.Singleton)))

		scope, err := c.SingletonScope().OpenScope("request")
		require.NoError(t, err)
		defer scope.Close()

		_, err = dryioc.Resolve[*databaseHolder](context.Background(), c.WithScope(scope))
		assert.ErrorIs(t, err, dryioc.ErrCaptiveDependency)

		captive := testutil.AssertErrorType[dryioc.CaptiveDependencyError](t, err)
		assert.Equal(t, reflect.TypeFor[*databaseHolder](), captive.Service.ServiceType)
		assert.Equal(t, reflect.TypeFor[*testutil.TestDatabaseImpl](), captive.Dependency.ServiceType)

		ctx, current, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		defer current.Close()

		_, err = dryioc.Resolve[*databaseHolder](ctx, c)
		assert.ErrorIs(t, err, dryioc.ErrCaptiveDependency)

		db := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, c)
		require.NoError(t, current.Dispose())
		assert.True(t, db.IsClosed())
	})

	t.Run("singletons may depend on the singleton scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.ScopedTo(dryioc.SingletonScopeName)))
		require.NoError(t, dryioc.RegisterFunc(c, newDatabaseHolder, dryioc.WithLifetime(dryioc.Singleton)))

		ctx, scope, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)

		holder := testutil.AssertServiceResolvable[*databaseHolder](t, ctx, c)
		require.NoError(t, scope.Dispose())
		assert.False(t, holder.db.IsClosed())
	})

	t.Run("tracked transients are released with their scope", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.TrackDisposableTransient()))

		ctx, scope, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)

		a := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, c)
		b := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, ctx, c)
		testutil.AssertDifferentInstances(t, a, b)

		require.NoError(t, scope.Dispose())
		assert.True(t, a.IsClosed())
		assert.True(t, b.IsClosed())

		root := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		require.NoError(t, c.Close())
		assert.True(t, root.IsClosed(), "tracked by the singleton scope without a current scope")
	})

	t.Run("untracked transients are never released", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase))

		db := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		require.NoError(t, c.Close())
		assert.False(t, db.IsClosed())
	})
}

func TestContainer_RegisterInstance(t *testing.T) {
	t.Run("is released with the container", func(t *testing.T) {
		c := dryioc.New()
		db := testutil.NewTestDatabase()
		require.NoError(t, dryioc.RegisterValue(c, db))

		resolved := testutil.AssertServiceResolvable[testutil.TestDatabase](t, context.Background(), c)
		testutil.AssertSameInstance(t, db, resolved)
		assert.True(t, dryioc.IsRegistered[testutil.TestDatabase](c))

		require.NoError(t, c.Close())
		assert.True(t, db.(*testutil.TestDatabaseImpl).IsClosed())
	})

	t.Run("prevent disposal", func(t *testing.T) {
		c := dryioc.New()
		db := testutil.NewTestDatabase()
		require.NoError(t, dryioc.RegisterValue(c, db, dryioc.PreventDisposal(), dryioc.WithKey("external")))

		resolved := testutil.AssertKeyedServiceResolvable[testutil.TestDatabase](t, context.Background(), c, "external")
		testutil.AssertSameInstance(t, db, resolved)

		require.NoError(t, c.Close())
		assert.False(t, db.(*testutil.TestDatabaseImpl).IsClosed())
	})

	t.Run("type mismatch", func(t *testing.T) {
		c := dryioc.New()
		defer c.Close()

		err := c.RegisterInstance(reflect.TypeFor[testutil.TestDatabase](), testutil.NewTestService())
		assert.ErrorAs(t, err, new(dryioc.TypeMismatchError))
	})

	t.Run("nil instance", func(t *testing.T) {
		c := dryioc.New()
		defer c.Close()

		require.NoError(t, c.RegisterInstance(reflect.TypeFor[testutil.TestLogger](), nil))
		logger, err := dryioc.Resolve[testutil.TestLogger](context.Background(), c)
		require.NoError(t, err)
		assert.Nil(t, logger)
	})
}

func TestContainer_ScopeContexts(t *testing.T) {
	t.Run("flow scope is visible only through its context", func(t *testing.T) {
		c := newFlowContainer(t)

		ctx, scope, err := c.OpenScope(context.Background(), "flow")
		require.NoError(t, err)
		defer scope.Close()

		current, err := c.CurrentScope(ctx)
		require.NoError(t, err)
		assert.Same(t, scope, current)

		_, err = c.CurrentScope(context.Background())
		assert.ErrorIs(t, err, dryioc.ErrNoCurrentScope)

		childCtx, child, err := c.OpenScope(ctx, "child")
		require.NoError(t, err)
		assert.Same(t, scope, child.Parent())

		current, err = c.CurrentScope(childCtx)
		require.NoError(t, err)
		assert.Same(t, child, current)

		require.NoError(t, child.Dispose())
		_, err = c.CurrentScope(childCtx)
		assert.ErrorIs(t, err, dryioc.ErrScopeDisposed)
	})

	t.Run("shared scope is current process wide", func(t *testing.T) {
		c := testutil.NewContainerBuilder(t, dryioc.WithScopeContext(dryioc.NewSharedScopeContext())).Build()
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase, dryioc.WithLifetime(dryioc.Scoped)))

		_, outer, err := c.OpenScope(context.Background(), "outer")
		require.NoError(t, err)
		defer outer.Close()

		fromOuter := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)

		_, inner, err := c.OpenScope(context.Background(), "inner")
		require.NoError(t, err)
		assert.Same(t, outer, inner.Parent())

		fromInner := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		testutil.AssertDifferentInstances(t, fromOuter, fromInner)

		require.NoError(t, inner.Dispose())

		current, err := c.CurrentScope(context.Background())
		require.NoError(t, err)
		assert.Same(t, outer, current, "nearest live ancestor becomes current again")

		again := testutil.AssertServiceResolvable[*testutil.TestDatabaseImpl](t, context.Background(), c)
		testutil.AssertSameInstance(t, fromOuter, again)
	})

	t.Run("not the direct parent", func(t *testing.T) {
		c := newFlowContainer(t)

		ctx1, first, err := c.OpenScope(context.Background(), "first")
		require.NoError(t, err)
		defer first.Close()
		ctx2, second, err := c.OpenScope(ctx1, "second")
		require.NoError(t, err)
		defer second.Close()

		_, _, err = c.WithScope(first).OpenScope(ctx2, "third")
		require.ErrorIs(t, err, dryioc.ErrNotDirectScopeParent)

		notParent := testutil.AssertErrorType[dryioc.NotDirectScopeParentError](t, err)
		assert.Equal(t, first.ID(), notParent.ParentID)
		assert.Equal(t, second.ID(), notParent.CurrentID)

		_, third, err := c.WithScope(second).OpenScope(ctx2, "third")
		require.NoError(t, err)
		assert.Same(t, second, third.Parent())
		require.NoError(t, third.Close())
	})

	t.Run("explicit parent without a scope context", func(t *testing.T) {
		c := testutil.NewContainerBuilder(t).Build()

		_, parent, err := c.OpenScope(context.Background(), "parent")
		require.NoError(t, err)

		_, child, err := c.WithScope(parent).OpenScope(context.Background(), "child")
		require.NoError(t, err)
		assert.Same(t, parent, child.Parent())

		require.NoError(t, parent.Close())
		_, _, err = c.WithScope(parent).OpenScope(context.Background(), "late")
		assert.ErrorIs(t, err, dryioc.ErrScopeDisposed)
	})
}

func TestContainer_Dispose(t *testing.T) {
	t.Run("releases open scopes newest first then singletons", func(t *testing.T) {
		c := newFlowContainer(t)
		recorder := &testutil.CloseRecorder{}

		require.NoError(t, dryioc.RegisterValue(c, testutil.NewTestDisposable("singleton", recorder)))

		ctx1, first, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, first.Track(testutil.NewTestDisposable("first", recorder)))

		_, second, err := c.OpenScope(ctx1, nil)
		require.NoError(t, err)
		require.NoError(t, second.Track(testutil.NewTestDisposable("second", recorder)))

		require.NoError(t, c.Dispose())
		assert.Equal(t, []string{"second", "first", "singleton"}, recorder.Order())

		assert.True(t, c.IsDisposed())
		testutil.AssertScopeDisposed(t, first)
		testutil.AssertScopeDisposed(t, second)
		testutil.AssertScopeDisposed(t, c.SingletonScope())
	})

	t.Run("closed scopes are forgotten", func(t *testing.T) {
		c := newFlowContainer(t)
		d := testutil.NewTestDisposable("scoped", nil)

		_, scope, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, scope.Track(d))
		require.NoError(t, scope.Close())

		require.NoError(t, c.Close())
		assert.Equal(t, 1, d.CloseCount())
	})

	t.Run("aggregates errors", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterValue(c, testutil.NewTestDisposableWithError("singleton", testutil.ErrDisposal)))

		_, scope, err := c.OpenScope(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, scope.Track(testutil.NewTestDisposableWithError("scoped", testutil.ErrTest)))

		err = c.Dispose()
		disposalErr := testutil.AssertErrorType[dryioc.DisposalError](t, err)
		assert.Equal(t, "container", disposalErr.Context)
		assert.Len(t, disposalErr.Errors, 2)
		assert.ErrorIs(t, err, testutil.ErrDisposal)
		assert.ErrorIs(t, err, testutil.ErrTest)

		assert.NoError(t, c.Dispose(), "second dispose is a no-op")
	})

	t.Run("refuses work afterwards", func(t *testing.T) {
		c := newFlowContainer(t)
		require.NoError(t, dryioc.RegisterFunc(c, newDatabase))
		require.NoError(t, c.Close())

		_, err := dryioc.Resolve[*testutil.TestDatabaseImpl](context.Background(), c)
		assert.ErrorIs(t, err, dryioc.ErrContainerDisposed)

		_, _, err = c.OpenScope(context.Background(), nil)
		assert.ErrorIs(t, err, dryioc.ErrContainerDisposed)

		for _, err := range c.ResolveMany(context.Background(), reflect.TypeFor[*testutil.TestDatabaseImpl](), nil, nil, nil) {
			assert.ErrorIs(t, err, dryioc.ErrContainerDisposed)
		}
	})

	t.Run("context disposal", func(t *testing.T) {
		c := newFlowContainer(t)
		d := testutil.NewTestContextDisposable()
		require.NoError(t, dryioc.RegisterValue(c, d))

		require.NoError(t, c.DisposeContext(context.Background()))
		assert.True(t, d.IsDisposed())
		assert.True(t, d.WasDisposedWithContext())
	})
}

func TestContainer_Identity(t *testing.T) {
	a, b := dryioc.New(), dryioc.New()
	defer a.Close()
	defer b.Close()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Nil(t, a.ScopeContext())
	assert.Equal(t, dryioc.SingletonScopeName, a.SingletonScope().Name())

	_, err := a.CurrentScope(context.Background())
	assert.True(t, errors.Is(err, dryioc.ErrNoCurrentScope))
}
