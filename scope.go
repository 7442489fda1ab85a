package dryioc

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dadhi/DryIoc-sub012/internal/immap"
)

// Scope is a bounded region of ownership. Values stored in a scope are
// cached per slot and released together when the scope is disposed.
//
// The container's singleton scope, the scopes it opens, and the scopes
// created with NewScope are all *Scope values.
//
// Example:
//
//	ctx, scope, err := c.OpenScope(ctx, "request")
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	svc, err := dryioc.Resolve[*RequestHandler](ctx, c)
type Scope struct {
	id     string
	parent *Scope
	name   any
	logger *slog.Logger

	// mu guards installing slots and the post-disposal state.
	mu    sync.Mutex
	items atomic.Pointer[immap.Map[int, *slot]]

	disposed        int32
	disposingErrors []error
	onDispose       []func(*Scope)

	// seq orders stored values by creation so disposal can release them
	// newest first.
	seq atomic.Int64
}

// slot holds one cached value. Its mutex serializes construction of the
// value, so concurrent first callers of the same slot run the factory once.
type slot struct {
	mu    sync.Mutex
	value atomic.Pointer[stored]
}

type stored struct {
	value any
	order int64
}

var lastSlotID atomic.Int64

// NewSlotID returns a process-unique slot id. Lifetime recipes allocate one
// id each and use it to cache their value in a scope.
func NewSlotID() int {
	return int(lastSlotID.Add(1))
}

// NewScope creates a root scope with the given name. The name may be nil.
func NewScope(name any) *Scope {
	return newScope(nil, name, nil)
}

func newScope(parent *Scope, name any, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Scope{
		id:     uuid.NewString(),
		parent: parent,
		name:   name,
		logger: logger,
	}
	empty := immap.NewInt[*slot]()
	s.items.Store(&empty)
	return s
}

// ID returns the unique ID of this scope.
func (s *Scope) ID() string {
	return s.id
}

// Name returns the name the scope was opened with.
func (s *Scope) Name() any {
	return s.name
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed reports whether Dispose has started.
func (s *Scope) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) != 0
}

// OpenScope opens a child scope. The child is not disposed with its parent.
func (s *Scope) OpenScope(name any) (*Scope, error) {
	if s.IsDisposed() {
		return nil, s.disposedError()
	}
	return newScope(s, name, s.logger), nil
}

// GetOrAdd returns the value cached in slot id, running factory to create it
// when the slot is empty or holds a revoked value.
//
// The factory runs at most once per slot at a time; callers racing on the
// same slot wait for the first and receive its value. A factory error is
// returned and nothing is cached. A factory must not call GetOrAdd for its
// own slot.
//
// A revoked value is released once its replacement is stored, unless it is
// behind a hidden shell.
//
// GetOrAdd fails with ScopeDisposedError when the scope is disposed before
// or while the factory runs. A value created while disposal raced is
// released before returning.
func (s *Scope) GetOrAdd(id int, factory func() (any, error)) (any, error) {
	if s.IsDisposed() {
		return nil, s.disposedError()
	}

	sl, ok := s.items.Load().Get(id)
	if ok {
		if v := sl.value.Load(); v != nil && !isStale(v.value) {
			return v.value, nil
		}
	} else {
		if sl = s.installSlot(id); sl == nil {
			return nil, s.disposedError()
		}
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if v := sl.value.Load(); v != nil && !isStale(v.value) {
		return v.value, nil
	}

	if s.IsDisposed() {
		return nil, s.disposedError()
	}

	value, err := factory()
	if err != nil {
		return nil, err
	}

	if s.IsDisposed() {
		return nil, s.releaseLate(value)
	}

	revoked := sl.value.Swap(&stored{value: value, order: s.seq.Add(1)})
	if revoked != nil {
		s.releaseRevoked(revoked.value)
	}
	return value, nil
}

// SetOrAdd stores value in slot id, replacing any previous value. The
// replaced value is not released.
func (s *Scope) SetOrAdd(id int, value any) error {
	if s.IsDisposed() {
		return s.disposedError()
	}

	sl, ok := s.items.Load().Get(id)
	if !ok {
		if sl = s.installSlot(id); sl == nil {
			return s.disposedError()
		}
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if s.IsDisposed() {
		return s.releaseLate(value)
	}

	sl.value.Store(&stored{value: value, order: s.seq.Add(1)})
	return nil
}

// TryGet returns the value stored in slot id, shells included.
func (s *Scope) TryGet(id int) (any, bool) {
	sl, ok := s.items.Load().Get(id)
	if !ok {
		return nil, false
	}
	v := sl.value.Load()
	if v == nil {
		return nil, false
	}
	return v.value, true
}

// Track stores value in a fresh slot so that the scope releases it on
// disposal.
func (s *Scope) Track(value any) error {
	return s.SetOrAdd(NewSlotID(), value)
}

func (s *Scope) installSlot(id int) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked under mu: Dispose snapshots items under mu after setting the
	// flag, so an installed slot is always seen by disposal.
	if s.IsDisposed() {
		return nil
	}

	items := s.items.Load()
	if existing, ok := items.Get(id); ok {
		return existing
	}

	sl := &slot{}
	next := items.AddOrUpdate(id, sl)
	s.items.Store(&next)
	return sl
}

// releaseLate releases a value that was created after disposal started.
func (s *Scope) releaseRevoked(value any) {
	target, ok := disposalTarget(value)
	if !ok || !isDisposable(target) {
		return
	}
	if err := release(context.Background(), target); err != nil {
		s.logger.Warn("failed to release revoked value", "scope", s.id, "error", err)
	}
}

func (s *Scope) releaseLate(value any) error {
	err := s.disposedError()
	if target, ok := disposalTarget(value); ok && isDisposable(target) {
		if rerr := release(context.Background(), target); rerr != nil {
			s.logger.Warn("failed to release value created during scope disposal",
				"scope", s.id, "error", rerr)
			return errors.Join(err, rerr)
		}
	}
	return err
}

// Dispose releases every stored disposable value. See DisposeContext.
func (s *Scope) Dispose() error {
	return s.DisposeContext(context.Background())
}

// Close implements Disposable.
func (s *Scope) Close() error {
	return s.DisposeContext(context.Background())
}

// DisposeContext disposes the scope. Only the first call does any work;
// later calls return nil.
//
// Stored values are released newest first. Shells are unwrapped down to
// their target, except hidden shells, whose targets are left alone. A failing
// or panicking release does not stop the others; all failures are kept in
// DisposingErrors and returned as one DisposalError.
func (s *Scope) DisposeContext(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		return nil
	}

	s.mu.Lock()
	items := *s.items.Load()
	s.mu.Unlock()

	var values []*stored
	for _, sl := range items.Enumerate() {
		// Waits for a factory still running in this slot.
		sl.mu.Lock()
		if v := sl.value.Swap(nil); v != nil {
			values = append(values, v)
		}
		sl.mu.Unlock()
	}

	// Dispose in reverse order (LIFO)
	slices.SortFunc(values, func(a, b *stored) int {
		return cmp.Compare(b.order, a.order)
	})

	var errs []error
	for _, v := range values {
		target, ok := disposalTarget(v.value)
		if !ok || !isDisposable(target) {
			continue
		}
		if err := release(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}

	empty := immap.NewInt[*slot]()

	s.mu.Lock()
	s.items.Store(&empty)
	s.disposingErrors = errs
	hooks := s.onDispose
	s.onDispose = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](s)
	}

	s.logger.Debug("scope disposed", "scope", s.id, "name", s.name, "released", len(values), "errors", len(errs))

	if len(errs) > 0 {
		return DisposalError{Context: "scope", Errors: errs}
	}
	return nil
}

// DisposingErrors returns the release failures collected by Dispose.
func (s *Scope) DisposingErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.disposingErrors)
}

// addDisposeHook registers fn to run after the scope is disposed. It reports
// false when the scope is already disposed.
func (s *Scope) addDisposeHook(fn func(*Scope)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IsDisposed() {
		return false
	}
	s.onDispose = append(s.onDispose, fn)
	return true
}

func (s *Scope) disposedError() error {
	return ScopeDisposedError{ScopeID: s.id, Name: s.name}
}

// ========================================
// Scope names and matching
// ========================================

// ScopeName is a typed scope name. Scopes are matched by the name's Type,
// using assignability, and by its Key, using equality.
//
// Any other value used as a scope name behaves as
// ScopeName{Type: reflect.TypeOf(name), Key: name}.
type ScopeName struct {
	Type reflect.Type
	Key  any
}

type singletonScopeName struct{}

// SingletonScopeName is the name of every container's singleton scope.
var SingletonScopeName any = singletonScopeName{}

// nameParts splits a scope name into its type and key. It reports false for
// an unnamed scope.
func nameParts(name any) (reflect.Type, any, bool) {
	switch n := name.(type) {
	case nil:
		return nil, nil, false
	case ScopeName:
		if n.Type == nil {
			return reflect.TypeOf(n.Key), n.Key, true
		}
		return n.Type, n.Key, true
	case *ScopeName:
		if n == nil {
			return nil, nil, false
		}
		return nameParts(*n)
	default:
		return reflect.TypeOf(name), name, true
	}
}

func (s *Scope) matches(nameType reflect.Type, key any) bool {
	t, k, ok := nameParts(s.name)
	if !ok {
		return false
	}
	if nameType != nil && (t == nil || !t.AssignableTo(nameType)) {
		return false
	}
	return key == nil || keysEqual(k, key)
}

// FindMatchingScope walks from scope up the parent chain looking for a scope
// whose name matches nameType and key. A nil nameType or key matches any
// value; unnamed scopes never match.
//
// With outermost set the search continues past the first match and returns
// the farthest matching ancestor. When nothing matches it returns
// NoMatchedScopeError if throwIfNotFound is set, and (nil, nil) otherwise.
func FindMatchingScope(scope *Scope, nameType reflect.Type, key any, outermost, throwIfNotFound bool) (*Scope, error) {
	var found *Scope
	for s := scope; s != nil; s = s.parent {
		if !s.matches(nameType, key) {
			continue
		}
		found = s
		if !outermost {
			break
		}
	}

	if found != nil {
		return found, nil
	}

	if throwIfNotFound {
		err := NoMatchedScopeError{NameType: nameType, Key: key, Outermost: outermost}
		if scope != nil {
			err.ScopeID = scope.id
		}
		return nil, err
	}
	return nil, nil
}

// keysEqual compares two keys without panicking on non-comparable values.
func keysEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return false
	}
	return a == b
}
