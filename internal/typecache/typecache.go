// Package typecache assigns stable integer ids to reflect.Type values and
// caches their display names.
//
// The ids are used as hashes for the immutable registry maps: a reflect.Type
// is comparable but has no cheap stable hash of its own.
package typecache

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Info holds cached information about a type.
type Info struct {
	Type     reflect.Type
	ID       int
	CanBeNil bool

	name     string
	nameOnce sync.Once
}

var (
	cache  sync.Map // map[reflect.Type]*Info
	lastID atomic.Int64
)

// Get returns the cached info for t, creating it on first use.
// It returns nil for a nil type.
func Get(t reflect.Type) *Info {
	if t == nil {
		return nil
	}

	if cached, ok := cache.Load(t); ok {
		return cached.(*Info)
	}

	info := &Info{
		Type:     t,
		ID:       int(lastID.Add(1)),
		CanBeNil: canBeNil(t.Kind()),
	}

	actual, _ := cache.LoadOrStore(t, info)
	return actual.(*Info)
}

// ID returns the id of t. Ids start at 1; a nil type has id 0.
func ID(t reflect.Type) int {
	if info := Get(t); info != nil {
		return info.ID
	}
	return 0
}

// Name returns a short display name for t, qualified by the last segment of
// the package path, for example "*dryioc.Scope".
func Name(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return Get(t).Name()
}

// Name returns the cached display name.
func (i *Info) Name() string {
	i.nameOnce.Do(func() {
		i.name = format(i.Type, 0)
	})
	return i.name
}

func format(t reflect.Type, depth int) string {
	// Guard against deeply nested types.
	if depth > 10 {
		return t.String()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + format(t.Elem(), depth+1)
	case reflect.Slice:
		return "[]" + format(t.Elem(), depth+1)
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), format(t.Elem(), depth+1))
	case reflect.Map:
		return "map[" + format(t.Key(), depth+1) + "]" + format(t.Elem(), depth+1)
	case reflect.Func, reflect.Chan:
		return t.String()
	}

	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return lastSegment(t.PkgPath()) + "." + t.Name()
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}

	return path
}

func canBeNil(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}
