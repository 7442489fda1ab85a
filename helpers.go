package dryioc

import (
	"context"
	"fmt"
	"iter"
	"reflect"
)

// Resolve is a generic helper function that resolves the default
// registration of T.
func Resolve[T any](ctx context.Context, r Resolver) (T, error) {
	instance, err := r.ResolveDefault(ctx, reflect.TypeFor[T](), IfUnresolvedThrow)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](instance)
}

// ResolveOrDefault resolves T, returning its zero value when T is not
// registered. Failures of a registered recipe are still returned.
func ResolveOrDefault[T any](ctx context.Context, r Resolver) (T, error) {
	instance, err := r.ResolveDefault(ctx, reflect.TypeFor[T](), IfUnresolvedReturnDefault)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](instance)
}

// ResolveKeyed is a generic helper function that resolves T registered
// under key.
func ResolveKeyed[T any](ctx context.Context, r Resolver, key any) (T, error) {
	instance, err := r.ResolveKeyed(ctx, reflect.TypeFor[T](), key, IfUnresolvedThrow, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](instance)
}

// ResolveMany lazily yields every keyed registration of T in registration
// order. Each service is constructed when the iteration reaches it.
//
// Example:
//
//	for handler, err := range dryioc.ResolveMany[Handler](ctx, c) {
//	    if err != nil {
//	        return err
//	    }
//	    handler.Handle(msg)
//	}
func ResolveMany[T any](ctx context.Context, r Resolver) iter.Seq2[T, error] {
	return ResolveManyExcept[T](ctx, r, nil)
}

// ResolveManyExcept is ResolveMany skipping the registration keyed
// compositeParentKey. A composite registered under that key uses it to
// resolve its siblings.
func ResolveManyExcept[T any](ctx context.Context, r Resolver, compositeParentKey any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for instance, err := range r.ResolveMany(ctx, reflect.TypeFor[T](), nil, nil, compositeParentKey) {
			var result T
			if err == nil {
				result, err = cast[T](instance)
			}
			if !yield(result, err) {
				return
			}
		}
	}
}

// ResolveAll resolves every keyed registration of T into a slice. It stops
// at the first failure.
func ResolveAll[T any](ctx context.Context, r Resolver) ([]T, error) {
	var results []T
	for result, err := range ResolveMany[T](ctx, r) {
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// MustResolve resolves a service and panics on error.
func MustResolve[T any](ctx context.Context, r Resolver) T {
	result, err := Resolve[T](ctx, r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", formatType(reflect.TypeFor[T]()), err))
	}
	return result
}

// MustResolveKeyed resolves a keyed service and panics on error.
func MustResolveKeyed[T any](ctx context.Context, r Resolver, key any) T {
	result, err := ResolveKeyed[T](ctx, r, key)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", formatService(reflect.TypeFor[T](), key), err))
	}
	return result
}

// IsRegistered reports whether T has a default registration.
func IsRegistered[T any](c *Container) bool {
	return c.IsRegistered(reflect.TypeFor[T](), nil)
}

// IsKeyedRegistered reports whether T is registered under key.
func IsKeyedRegistered[T any](c *Container, key any) bool {
	return c.IsRegistered(reflect.TypeFor[T](), key)
}

// RegisterFunc registers fn as the recipe of T.
//
// Example:
//
//	dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*UserService, error) {
//	    db, err := dryioc.Resolve[*Database](ctx, r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewUserService(db), nil
//	}, dryioc.WithLifetime(dryioc.Scoped))
func RegisterFunc[T any](c *Container, fn func(ctx context.Context, r Resolver) (T, error), opts ...RegisterOption) error {
	if fn == nil {
		return RegistrationError{ServiceType: reflect.TypeFor[T](), Operation: "register", Cause: ErrRecipeNil}
	}
	return c.Register(reflect.TypeFor[T](), funcRecipe(fn), opts...)
}

// RegisterKeyedFunc registers fn as the recipe of T under key.
func RegisterKeyedFunc[T any](c *Container, key any, fn func(ctx context.Context, r Resolver) (T, error), opts ...RegisterOption) error {
	if fn == nil {
		return RegistrationError{ServiceType: reflect.TypeFor[T](), ServiceKey: key, Operation: "register", Cause: ErrRecipeNil}
	}
	return c.RegisterKeyed(reflect.TypeFor[T](), key, funcRecipe(fn), opts...)
}

// RegisterValue registers value as the singleton instance of T.
func RegisterValue[T any](c *Container, value T, opts ...RegisterOption) error {
	return c.RegisterInstance(reflect.TypeFor[T](), value, opts...)
}

func funcRecipe[T any](fn func(ctx context.Context, r Resolver) (T, error)) Recipe {
	return func(ctx context.Context, r Resolver, _ *Scope) (any, error) {
		v, err := fn(ctx, r)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// cast converts a resolved instance to T. A nil instance gives the zero
// value of T.
func cast[T any](instance any) (T, error) {
	var zero T
	if instance == nil {
		return zero, nil
	}
	result, ok := instance.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: reflect.TypeFor[T](),
			Actual:   reflect.TypeOf(instance),
			Context:  "resolution",
		}
	}
	return result, nil
}
