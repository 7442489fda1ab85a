package dryioc

import (
	"context"
	"reflect"

	"github.com/dadhi/DryIoc-sub012/internal/reflection"
)

// In can be embedded in a struct to mark it as a parameter object. Each
// exported field of a parameter object is resolved on its own:
//
//	type HandlerParams struct {
//	    dryioc.In
//
//	    DB       *Database
//	    Cache    Cache      `optional:"true"`
//	    Primary  *Conn      `name:"primary"`
//	    Handlers []Handler  `many:"true"`
//	}
type In = reflection.In

var (
	constructorAnalyzer = reflection.New()
	constructorInvoker  = reflection.NewConstructorInvoker()

	contextType  = reflect.TypeFor[context.Context]()
	resolverType = reflect.TypeFor[Resolver]()
)

// RegisterConstructor registers a constructor function as the recipe of its
// first return type. The constructor may return (T) or (T, error).
//
// Parameters are resolved by type from the resolver running the recipe.
// context.Context and Resolver parameters receive the resolution's own
// context and resolver.
//
// Example:
//
//	func NewUserService(db *Database, logger *slog.Logger) *UserService
//
//	err := dryioc.RegisterConstructor(c, NewUserService, dryioc.WithLifetime(dryioc.Scoped))
func RegisterConstructor(c *Container, constructor any, opts ...RegisterOption) error {
	info, err := constructorAnalyzer.Analyze(constructor)
	if err != nil {
		return RegistrationError{Operation: "register-constructor", Cause: err}
	}

	recipe := func(ctx context.Context, r Resolver, _ *Scope) (any, error) {
		return constructorInvoker.Invoke(info, &dependencyResolver{ctx: ctx, r: r})
	}

	o := newRegisterOptions(opts)
	o.dependencies = append(o.dependencies, constructorDependencies(info)...)
	return c.register(info.ServiceType, o.key, recipe, o)
}

func constructorDependencies(info *reflection.ConstructorInfo) []Dependency {
	deps := make([]Dependency, 0, len(info.Parameters))
	for _, p := range info.Parameters {
		if p.Key == nil && (p.Type == contextType || p.Type == resolverType) {
			continue
		}

		d := Dependency{ServiceType: p.Type, ServiceKey: p.Key, Optional: p.Optional, Many: p.Many}
		if p.Many {
			d.ServiceType = p.ElemType
		}
		deps = append(deps, d)
	}
	return deps
}

// dependencyResolver adapts a Resolver to the constructor invoker.
type dependencyResolver struct {
	ctx context.Context
	r   Resolver
}

func (d *dependencyResolver) Get(t reflect.Type, key any, optional bool) (any, error) {
	if key == nil {
		switch t {
		case contextType:
			return d.ctx, nil
		case resolverType:
			return d.r, nil
		}
	}

	ifUnresolved := IfUnresolvedThrow
	if optional {
		ifUnresolved = IfUnresolvedReturnDefault
	}
	return d.r.ResolveKeyed(d.ctx, t, key, ifUnresolved, nil)
}

func (d *dependencyResolver) GetMany(t reflect.Type) ([]any, error) {
	var values []any
	for v, err := range d.r.ResolveMany(d.ctx, t, nil, nil, nil) {
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
