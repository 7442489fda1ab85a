package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	dryioc "github.com/dadhi/DryIoc-sub012"
)

// ContainerBuilder provides a fluent interface for building test containers
type ContainerBuilder struct {
	t         *testing.T
	container *dryioc.Container
}

// NewContainerBuilder creates a container that is disposed when the test
// ends.
func NewContainerBuilder(t *testing.T, opts ...dryioc.Option) *ContainerBuilder {
	t.Helper()
	c := dryioc.New(opts...)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return &ContainerBuilder{t: t, container: c}
}

// WithSingleton registers a singleton constructor
func (b *ContainerBuilder) WithSingleton(constructor any, opts ...dryioc.RegisterOption) *ContainerBuilder {
	b.t.Helper()
	require.NoError(b.t, b.container.Install(dryioc.AddSingleton(constructor, opts...)))
	return b
}

// WithScoped registers a scoped constructor
func (b *ContainerBuilder) WithScoped(constructor any, opts ...dryioc.RegisterOption) *ContainerBuilder {
	b.t.Helper()
	require.NoError(b.t, b.container.Install(dryioc.AddScoped(constructor, opts...)))
	return b
}

// WithTransient registers a transient constructor
func (b *ContainerBuilder) WithTransient(constructor any, opts ...dryioc.RegisterOption) *ContainerBuilder {
	b.t.Helper()
	require.NoError(b.t, b.container.Install(dryioc.AddTransient(constructor, opts...)))
	return b
}

// WithModule installs a module
func (b *ContainerBuilder) WithModule(module dryioc.Module) *ContainerBuilder {
	b.t.Helper()
	require.NoError(b.t, b.container.Install(module))
	return b
}

// Build returns the container
func (b *ContainerBuilder) Build() *dryioc.Container {
	return b.container
}

// CreateContainerWithBasicServices creates a container with a singleton
// logger and database and a scoped service depending on both.
func CreateContainerWithBasicServices(t *testing.T, opts ...dryioc.Option) *dryioc.Container {
	t.Helper()
	return NewContainerBuilder(t, opts...).
		WithSingleton(NewTestLogger).
		WithSingleton(NewTestDatabase).
		WithScoped(NewTestServiceWithDeps).
		WithTransient(NewTestService).
		Build()
}
