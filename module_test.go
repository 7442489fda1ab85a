package dryioc_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dryioc "github.com/dadhi/DryIoc-sub012"
	"github.com/dadhi/DryIoc-sub012/internal/testutil"
)

func TestModule(t *testing.T) {
	ctx := context.Background()

	t.Run("installs nested modules", func(t *testing.T) {
		storage := dryioc.NewModule("storage",
			dryioc.AddSingleton(testutil.NewTestDatabase),
			dryioc.AddValue[testutil.TestLogger](testutil.NewTestLogger()),
		)
		app := dryioc.NewModule("app",
			storage,
			dryioc.AddScoped(testutil.NewTestServiceWithDeps),
			dryioc.AddTransient(testutil.NewTestService, dryioc.WithKey("fresh")),
			nil,
		)

		c := testutil.NewContainerBuilder(t, dryioc.WithScopeContext(dryioc.NewFlowScopeContext())).
			WithModule(app).
			Build()

		assert.True(t, dryioc.IsRegistered[testutil.TestDatabase](c))
		assert.True(t, dryioc.IsRegistered[testutil.TestLogger](c))
		assert.True(t, dryioc.IsKeyedRegistered[*testutil.TestService](c, "fresh"))

		reg, ok := c.Registry().LookupDefault(reflect.TypeFor[*testutil.TestServiceWithDeps]())
		require.True(t, ok)
		assert.Equal(t, dryioc.Scoped, reg.Lifetime)

		scopeCtx, scope, err := c.OpenScope(ctx, nil)
		require.NoError(t, err)
		defer scope.Close()

		svc := testutil.AssertServiceResolvable[*testutil.TestServiceWithDeps](t, scopeCtx, c)
		testutil.AssertSameInstance(t, svc, testutil.AssertServiceResolvable[*testutil.TestServiceWithDeps](t, scopeCtx, c))
	})

	t.Run("lifetime of the builder wins", func(t *testing.T) {
		c := testutil.NewContainerBuilder(t).
			WithSingleton(testutil.NewTestService, dryioc.WithLifetime(dryioc.Transient)).
			Build()

		first := testutil.AssertServiceResolvable[*testutil.TestService](t, ctx, c)
		second := testutil.AssertServiceResolvable[*testutil.TestService](t, ctx, c)
		testutil.AssertSameInstance(t, first, second)
	})

	t.Run("scoped builder overrides a lifetime option", func(t *testing.T) {
		c := testutil.NewContainerBuilder(t, dryioc.WithScopeContext(dryioc.NewFlowScopeContext())).
			WithModule(dryioc.NewModule("scoped",
				dryioc.AddScoped(testutil.NewTestService, dryioc.WithLifetime(dryioc.Singleton)),
				dryioc.AddScoped(testutil.NewTestLogger, dryioc.ScopedTo("request"), dryioc.WithLifetime(dryioc.Transient)),
			)).
			Build()

		reg, ok := c.Registry().LookupDefault(reflect.TypeFor[*testutil.TestService]())
		require.True(t, ok)
		assert.Equal(t, dryioc.Scoped, reg.Lifetime)

		_, err := dryioc.Resolve[*testutil.TestService](ctx, c)
		assert.ErrorIs(t, err, dryioc.ErrNoCurrentScope)

		requestCtx, request, err := c.OpenScope(ctx, "request")
		require.NoError(t, err)
		defer request.Close()

		innerCtx, inner, err := c.OpenScope(requestCtx, nil)
		require.NoError(t, err)
		defer inner.Close()

		testutil.AssertSameInstance(t,
			testutil.AssertServiceResolvable[testutil.TestLogger](t, requestCtx, c),
			testutil.AssertServiceResolvable[testutil.TestLogger](t, innerCtx, c))
	})

	t.Run("reports the failing module", func(t *testing.T) {
		inner := dryioc.NewModule("inner", dryioc.AddSingleton(42))
		outer := dryioc.NewModule("outer",
			dryioc.AddSingleton(testutil.NewTestDatabase),
			inner,
			dryioc.AddSingleton(testutil.NewTestLogger),
		)

		c := dryioc.New()
		defer c.Close()

		err := c.Install(outer)
		require.Error(t, err)

		var moduleErr dryioc.ModuleError
		require.True(t, errors.As(err, &moduleErr))
		assert.Equal(t, "outer", moduleErr.Module)

		require.True(t, errors.As(moduleErr.Cause, &moduleErr))
		assert.Equal(t, "inner", moduleErr.Module)
		testutil.AssertErrorType[dryioc.RegistrationError](t, err)

		assert.True(t, dryioc.IsRegistered[testutil.TestDatabase](c), "earlier registrations are kept")
		assert.False(t, dryioc.IsRegistered[testutil.TestLogger](c), "installation stops at the failure")
	})

	t.Run("plain function modules", func(t *testing.T) {
		c := dryioc.New()
		defer c.Close()

		err := c.Install(func(c *dryioc.Container) error {
			return testutil.ErrIntentional
		})
		assert.ErrorIs(t, err, testutil.ErrIntentional)
	})
}
