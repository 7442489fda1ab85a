package dryioc

import (
	"context"
	"sync"
)

// ScopeContext holds the ambient current scope used when a scoped service is
// resolved without an explicit scope.
//
// Two strategies are provided. SharedScopeContext keeps one current scope for
// the whole process. FlowScopeContext keeps it in a context.Context, so it
// flows with the ctx passed down a call chain.
//
// A Container created without a ScopeContext only resolves scoped services
// through an explicit scope, see Container.WithScope.
type ScopeContext interface {
	// GetCurrentOrDefault returns the current scope, or nil.
	GetCurrentOrDefault(ctx context.Context) *Scope

	// SetCurrent atomically replaces the current scope with
	// transform(current). It returns the context carrying the new current
	// scope, which callers must use from then on, and the new scope.
	SetCurrent(ctx context.Context, transform func(current *Scope) *Scope) (context.Context, *Scope)
}

var (
	_ ScopeContext = (*SharedScopeContext)(nil)
	_ ScopeContext = (*FlowScopeContext)(nil)
)

// SharedScopeContext is a single process-wide current-scope cell. It ignores
// the ctx it is given.
type SharedScopeContext struct {
	mu      sync.Mutex
	current *Scope
}

// NewSharedScopeContext creates an empty shared cell.
func NewSharedScopeContext() *SharedScopeContext {
	return &SharedScopeContext{}
}

func (c *SharedScopeContext) GetCurrentOrDefault(context.Context) *Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *SharedScopeContext) SetCurrent(ctx context.Context, transform func(*Scope) *Scope) (context.Context, *Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = transform(c.current)
	return ctx, c.current
}

// FlowScopeContext stores the current scope in a context.Context.
//
// The scope is only visible through contexts derived from the one returned
// by SetCurrent. A goroutine started with an unrelated context does not see
// it, and resolving a scoped service there fails with NoCurrentScopeError.
type FlowScopeContext struct {
	// Distinct instances use distinct context keys.
	_ byte
}

type flowScopeKey struct {
	owner *FlowScopeContext
}

// NewFlowScopeContext creates a flow-local current-scope cell.
func NewFlowScopeContext() *FlowScopeContext {
	return &FlowScopeContext{}
}

func (c *FlowScopeContext) GetCurrentOrDefault(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(flowScopeKey{owner: c}).(*Scope)
	return s
}

// SetCurrent derives a new context; the ctx passed in is left unchanged, so
// the transform is atomic with respect to that flow.
func (c *FlowScopeContext) SetCurrent(ctx context.Context, transform func(*Scope) *Scope) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	next := transform(c.GetCurrentOrDefault(ctx))
	return context.WithValue(ctx, flowScopeKey{owner: c}, next), next
}

// nearestLive returns s or its closest ancestor that is not disposed.
func nearestLive(s *Scope) *Scope {
	for s != nil && s.IsDisposed() {
		s = s.parent
	}
	return s
}
