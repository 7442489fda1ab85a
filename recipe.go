package dryioc

import (
	"context"
	"reflect"
)

// Recipe constructs a service. It receives the resolver to fetch its
// dependencies from and the explicit scope of the resolution, which is nil
// when resolving straight from a Container or constructing a singleton.
//
// Recipes are opaque to the container: they may come from RegisterFunc,
// RegisterConstructor, generated code or anything else.
type Recipe func(ctx context.Context, r Resolver, scope *Scope) (any, error)

// KeyedRecipe is a precompiled recipe registered under a key.
type KeyedRecipe struct {
	Key    any
	Recipe Recipe
}

// Precompiled is a read-only set of recipes produced ahead of time, for
// example by a code generator. Populate it once and pass it to
// WithPrecompiled; it must not be modified afterwards.
//
// Recipes registered at runtime take precedence over precompiled recipes for
// the same identity. Precompiled recipes carry their own reuse.
type Precompiled struct {
	Default map[reflect.Type]Recipe
	Keyed   map[reflect.Type][]KeyedRecipe
}

func (p *Precompiled) lookupDefault(t reflect.Type) (Recipe, bool) {
	if p == nil {
		return nil, false
	}
	recipe, ok := p.Default[t]
	return recipe, ok && recipe != nil
}

func (p *Precompiled) lookupKeyed(t reflect.Type, key any) (Recipe, bool) {
	if p == nil {
		return nil, false
	}
	if key == nil {
		return p.lookupDefault(t)
	}
	for _, kr := range p.Keyed[t] {
		if kr.Recipe != nil && keysEqual(kr.Key, key) {
			return kr.Recipe, true
		}
	}
	return nil, false
}

func (p *Precompiled) many(t reflect.Type) []KeyedRecipe {
	if p == nil {
		return nil
	}
	return p.Keyed[t]
}

// ========================================
// Lifetime recipes
// ========================================

// SingletonRecipe caches the result of recipe in the resolver's singleton
// scope. The returned recipe owns one slot; wrap a recipe once per
// registration.
//
// recipe runs without a scope: resolving a scoped dependency from it fails
// with CaptiveDependencyError instead of tying the singleton to whichever
// scope resolved it first.
func SingletonRecipe(recipe Recipe) Recipe {
	id := NewSlotID()
	return func(ctx context.Context, r Resolver, _ *Scope) (any, error) {
		return r.SingletonScope().GetOrAdd(id, func() (any, error) {
			return recipe(ctx, unscoped(ctx, r), nil)
		})
	}
}

// ScopedRecipe caches the result of recipe in the explicit scope of the
// resolution, or in the resolver's current scope when there is none.
func ScopedRecipe(recipe Recipe) Recipe {
	id := NewSlotID()
	return func(ctx context.Context, r Resolver, scope *Scope) (any, error) {
		if scope == nil {
			current, err := r.CurrentScope(ctx)
			if err != nil {
				return nil, err
			}
			scope = current
		}
		return scope.GetOrAdd(id, func() (any, error) {
			return recipe(ctx, r, scope)
		})
	}
}

// ScopedToRecipe caches the result of recipe in the innermost scope named
// name, searching up from the current scope. A ScopeName with a nil Key
// matches any scope whose name is assignable to its Type.
//
// When no scope in the chain matches, the singleton scope is used if its
// name matches, so ScopedTo(SingletonScopeName) behaves as a singleton.
func ScopedToRecipe(name any, recipe Recipe) Recipe {
	id := NewSlotID()
	nameType, key, _ := nameParts(name)

	return func(ctx context.Context, r Resolver, scope *Scope) (any, error) {
		if scope == nil {
			current, err := r.CurrentScope(ctx)
			if err != nil && !r.SingletonScope().matches(nameType, key) {
				return nil, err
			}
			scope = current
		}
		target, err := FindMatchingScope(scope, nameType, key, false, false)
		if err != nil {
			return nil, err
		}
		if target == nil {
			if singletons := r.SingletonScope(); singletons.matches(nameType, key) {
				target = singletons
			} else {
				_, err := FindMatchingScope(scope, nameType, key, false, true)
				return nil, err
			}
		}
		return target.GetOrAdd(id, func() (any, error) {
			return recipe(ctx, r, target)
		})
	}
}

// trackedRecipe hands disposable transients to a scope so they are released
// with it: the explicit or current scope, else the singleton scope.
func trackedRecipe(recipe Recipe) Recipe {
	return func(ctx context.Context, r Resolver, scope *Scope) (any, error) {
		value, err := recipe(ctx, r, scope)
		if err != nil {
			return nil, err
		}
		if target, ok := disposalTarget(value); !ok || !isDisposable(target) {
			return value, nil
		}

		owner := scope
		if owner == nil {
			if current, cerr := r.CurrentScope(ctx); cerr == nil {
				owner = current
			} else {
				owner = r.SingletonScope()
			}
		}
		if err := owner.Track(value); err != nil {
			return nil, err
		}
		return value, nil
	}
}

// reuse wraps recipe with the caching behavior of lifetime.
func reuse(lifetime Lifetime, scopedTo any, recipe Recipe) Recipe {
	switch lifetime {
	case Singleton:
		return SingletonRecipe(recipe)
	case Scoped:
		if scopedTo != nil {
			return ScopedToRecipe(scopedTo, recipe)
		}
		return ScopedRecipe(recipe)
	default:
		return recipe
	}
}
