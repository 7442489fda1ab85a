package dryioc

import (
	"context"
	"reflect"
)

// DecoratorFunc wraps a service built by the recipe it decorates.
type DecoratorFunc func(ctx context.Context, r Resolver, inner any) (any, error)

// Decorate wraps the runtime registration of serviceType under key, nil
// meaning the default, so that decorator receives every value its recipe
// builds. The registration keeps its lifetime and the decorated value is
// what gets cached. Decorators apply in the order they are added, the first
// one innermost.
//
// Decorate a service before it is first resolved: values cached earlier are
// not decorated.
func (c *Container) Decorate(serviceType reflect.Type, key any, decorator DecoratorFunc) error {
	if serviceType == nil {
		return RegistrationError{Operation: "decorate", Cause: ErrServiceTypeNil}
	}
	if decorator == nil {
		return RegistrationError{ServiceType: serviceType, ServiceKey: key, Operation: "decorate", Cause: ErrRecipeNil}
	}
	if c.IsDisposed() {
		return RegistrationError{ServiceType: serviceType, ServiceKey: key, Operation: "decorate", Cause: ErrContainerDisposed}
	}

	err := c.registry.Update(serviceType, key, func(reg Registration) (*Registration, error) {
		inner := reg.factory
		factory := func(ctx context.Context, r Resolver, scope *Scope) (any, error) {
			v, err := inner(ctx, r, scope)
			if err != nil {
				return nil, err
			}
			return decorator(ctx, r, UnwrapShells(v))
		}

		reg.factory = factory
		reg.Recipe = reuse(reg.Lifetime, reg.scopedTo, factory)
		return &reg, nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("service decorated", "type", formatType(serviceType), "key", key)
	return nil
}

// Decorate is a generic helper that decorates the registration of T. A WithKey
// option selects a keyed registration; other options are ignored.
//
// Example:
//
//	dryioc.Decorate(c, func(ctx context.Context, r dryioc.Resolver, inner Logger) (Logger, error) {
//	    return &PrefixLogger{inner: inner, prefix: "[app] "}, nil
//	})
func Decorate[T any](c *Container, fn func(ctx context.Context, r Resolver, inner T) (T, error), opts ...RegisterOption) error {
	if fn == nil {
		return RegistrationError{ServiceType: reflect.TypeFor[T](), Operation: "decorate", Cause: ErrRecipeNil}
	}

	o := newRegisterOptions(opts)
	return c.Decorate(reflect.TypeFor[T](), o.key, func(ctx context.Context, r Resolver, inner any) (any, error) {
		typed, err := cast[T](inner)
		if err != nil {
			return nil, err
		}
		v, err := fn(ctx, r, typed)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}
