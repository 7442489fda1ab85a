package dryioc

import (
	"cmp"
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/dadhi/DryIoc-sub012/internal/immap"
	"github.com/dadhi/DryIoc-sub012/internal/typecache"
)

// Registration binds a service identity to a recipe.
type Registration struct {
	ServiceType reflect.Type
	ServiceKey  any // nil for the default registration
	Recipe      Recipe
	Lifetime    Lifetime

	// Dependencies lists the services the recipe is known to resolve. It is
	// filled for constructors and used by Container.Validate.
	Dependencies []Dependency

	// factory is the recipe before lifetime caching was applied. Decorators
	// wrap it and cache the result again.
	factory  Recipe
	scopedTo any
	order    int64
}

// Registry maps service identities to registrations.
//
// The whole registry is one immutable snapshot behind an atomic pointer.
// Readers load the pointer and never block; writers build the next snapshot
// and publish it with compare-and-swap, retrying when another writer won.
type Registry struct {
	state atomic.Pointer[registryState]
}

type registryState struct {
	defaults immap.Map[reflect.Type, *Registration]
	keyed    immap.Map[reflect.Type, immap.Map[any, *Registration]]
	count    int
}

var registrationOrder atomic.Int64

func typeHash(t reflect.Type) int {
	return typecache.ID(t)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.state.Store(&registryState{
		defaults: immap.New[reflect.Type, *Registration](typeHash),
		keyed:    immap.New[reflect.Type, immap.Map[any, *Registration]](typeHash),
	})
	return r
}

// Register adds reg, replacing any registration with the same identity.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.ServiceType == nil {
		return RegistrationError{Operation: "register", Cause: ErrServiceTypeNil}
	}
	if reg.Recipe == nil {
		return RegistrationError{ServiceType: reg.ServiceType, ServiceKey: reg.ServiceKey, Operation: "register", Cause: ErrRecipeNil}
	}
	if reg.ServiceKey != nil && !reflect.ValueOf(reg.ServiceKey).Comparable() {
		return RegistrationError{ServiceType: reg.ServiceType, Operation: "register", Cause: ErrServiceKeyNotComparable}
	}

	entry := *reg
	entry.order = registrationOrder.Add(1)

	for {
		old := r.state.Load()
		next := &registryState{defaults: old.defaults, keyed: old.keyed, count: old.count}

		if entry.ServiceKey == nil {
			if _, exists := old.defaults.Get(entry.ServiceType); !exists {
				next.count++
			}
			next.defaults = old.defaults.AddOrUpdate(entry.ServiceType, &entry)
		} else {
			byKey, ok := old.keyed.Get(entry.ServiceType)
			if !ok {
				byKey = immap.NewComparable[any, *Registration]()
			}
			if _, exists := byKey.Get(entry.ServiceKey); !exists {
				next.count++
			}
			next.keyed = old.keyed.AddOrUpdate(entry.ServiceType, byKey.AddOrUpdate(entry.ServiceKey, &entry))
		}

		if r.state.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// LookupDefault returns the default registration of t.
func (r *Registry) LookupDefault(t reflect.Type) (*Registration, bool) {
	return r.state.Load().defaults.Get(t)
}

// LookupKeyed returns the registration of t under key.
func (r *Registry) LookupKeyed(t reflect.Type, key any) (*Registration, bool) {
	return r.state.Load().lookup(t, key)
}

func (s *registryState) lookup(t reflect.Type, key any) (*Registration, bool) {
	if key == nil {
		return s.defaults.Get(t)
	}
	if !reflect.ValueOf(key).Comparable() {
		return nil, false
	}
	byKey, ok := s.keyed.Get(t)
	if !ok {
		return nil, false
	}
	return byKey.Get(key)
}

// Update replaces the registration of t under key with the result of fn,
// keeping its position in registration order. fn may be called more than
// once when writers race. It fails with ErrServiceNotFound when there is no
// such registration.
func (r *Registry) Update(t reflect.Type, key any, fn func(current Registration) (*Registration, error)) error {
	for {
		old := r.state.Load()
		current, ok := old.lookup(t, key)
		if !ok {
			return RegistrationError{ServiceType: t, ServiceKey: key, Operation: "update", Cause: ErrServiceNotFound}
		}

		updated, err := fn(*current)
		if err != nil {
			return err
		}
		entry := *updated
		entry.ServiceType, entry.ServiceKey, entry.order = current.ServiceType, current.ServiceKey, current.order

		next := &registryState{defaults: old.defaults, keyed: old.keyed, count: old.count}
		if key == nil {
			next.defaults = old.defaults.Update(t, &entry)
		} else {
			byKey, _ := old.keyed.Get(t)
			next.keyed = old.keyed.Update(t, byKey.Update(key, &entry))
		}

		if r.state.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// LookupMany returns the keyed registrations of t in registration order.
// The default registration is not included.
func (r *Registry) LookupMany(t reflect.Type) []*Registration {
	byKey, ok := r.state.Load().keyed.Get(t)
	if !ok {
		return nil
	}

	var regs []*Registration
	for _, reg := range byKey.Enumerate() {
		regs = append(regs, reg)
	}
	slices.SortFunc(regs, func(a, b *Registration) int {
		return cmp.Compare(a.order, b.order)
	})
	return regs
}

// IsRegistered reports whether t has a registration under key; a nil key
// checks the default registration.
func (r *Registry) IsRegistered(t reflect.Type, key any) bool {
	_, ok := r.LookupKeyed(t, key)
	return ok
}

// Count returns the number of registrations, default and keyed.
func (r *Registry) Count() int {
	return r.state.Load().count
}

// All returns every registration in registration order.
func (r *Registry) All() []*Registration {
	state := r.state.Load()

	var regs []*Registration
	for _, reg := range state.defaults.Enumerate() {
		regs = append(regs, reg)
	}
	for _, byKey := range state.keyed.Enumerate() {
		for _, reg := range byKey.Enumerate() {
			regs = append(regs, reg)
		}
	}
	slices.SortFunc(regs, func(a, b *Registration) int {
		return cmp.Compare(a.order, b.order)
	})
	return regs
}

// ServiceTypes returns every registered service type.
func (r *Registry) ServiceTypes() []reflect.Type {
	state := r.state.Load()

	var types []reflect.Type
	for t := range state.defaults.Enumerate() {
		types = append(types, t)
	}
	for t := range state.keyed.Enumerate() {
		if _, dup := state.defaults.Get(t); !dup {
			types = append(types, t)
		}
	}
	return types
}
