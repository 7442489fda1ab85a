package dryioc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// ResolutionFrame identifies one service in a resolution chain.
type ResolutionFrame struct {
	ServiceType reflect.Type
	ServiceKey  any
}

// String formats a resolution frame.
func (f ResolutionFrame) String() string {
	return formatService(f.ServiceType, f.ServiceKey)
}

// chainNode is one link of the resolution chain carried in a context.
// A boundary node starts a new segment: past it, cycle detection only
// considers frames whose recipe is still running, while depth keeps counting.
type chainNode struct {
	frame    ResolutionFrame
	parent   *chainNode
	depth    int
	boundary bool
	running  *atomic.Bool
}

type chainKey struct{}

func chainFrom(ctx context.Context) *chainNode {
	if ctx == nil {
		return nil
	}
	n, _ := ctx.Value(chainKey{}).(*chainNode)
	return n
}

func (n *chainNode) getDepth() int {
	if n == nil {
		return 0
	}
	return n.depth
}

// contains reports whether frame is already in the current segment, or is
// still being constructed by an earlier one.
func (n *chainNode) contains(frame ResolutionFrame) bool {
	deferred := false
	for ; n != nil; n = n.parent {
		if n.boundary {
			deferred = true
		}
		if n.frame.ServiceType != frame.ServiceType || !keysEqual(n.frame.ServiceKey, frame.ServiceKey) {
			continue
		}
		if !deferred || n.running == nil || n.running.Load() {
			return true
		}
	}
	return false
}

// frames returns the whole chain, outermost first.
func (n *chainNode) frames() []ResolutionFrame {
	if n == nil {
		return nil
	}
	frames := make([]ResolutionFrame, n.depth)
	for i := n.depth - 1; n != nil && i >= 0; n, i = n.parent, i-1 {
		frames[i] = n.frame
	}
	return frames
}

// ResolutionChain returns the services being resolved in ctx, outermost
// first. Recipes can use it for diagnostics.
func ResolutionChain(ctx context.Context) []ResolutionFrame {
	return chainFrom(ctx).frames()
}

// deferredContext marks the chain in ctx so that resolutions started from it
// begin a new cycle-detection segment. Lazy thunks use it: by the time a
// thunk runs, the service that captured it may already be constructed. A
// thunk called while that construction is still running is a cycle.
func deferredContext(ctx context.Context) context.Context {
	n := chainFrom(ctx)
	if n == nil {
		return ctx
	}
	return context.WithValue(ctx, chainKey{}, &chainNode{
		frame:    n.frame,
		parent:   n.parent,
		depth:    n.depth,
		boundary: true,
		running:  n.running,
	})
}

// invoke runs recipe for the given identity with the chain, depth and panic
// handling every resolution shares.
func (c *Container) invoke(ctx context.Context, r Resolver, scope *Scope, serviceType reflect.Type, key any, recipe Recipe) (value any, err error) {
	parent := chainFrom(ctx)
	frame := ResolutionFrame{ServiceType: serviceType, ServiceKey: key}

	if parent.contains(frame) {
		return nil, CircularDependencyError{ServiceType: serviceType, ServiceKey: key, Chain: parent.frames()}
	}

	depth := parent.getDepth() + 1
	if depth > c.options.maxResolutionDepth {
		return nil, MaxDepthError{ServiceType: serviceType, Depth: depth, MaxDepth: c.options.maxResolutionDepth}
	}

	node := &chainNode{frame: frame, parent: parent, depth: depth, running: new(atomic.Bool)}
	node.running.Store(true)
	ctx = context.WithValue(ctx, chainKey{}, node)

	start := time.Now()
	defer func() {
		node.running.Store(false)

		if p := recover(); p != nil {
			value = nil
			err = RecipePanicError{ServiceType: serviceType, ServiceKey: key, Panic: p, Stack: debug.Stack()}
		}

		if parent == nil {
			c.report(serviceType, key, value, err, time.Since(start))
		}
	}()

	value, err = recipe(ctx, r, scope)
	if err != nil {
		return nil, wrapRecipeError(serviceType, key, parent.frames(), err)
	}

	return UnwrapShells(value), nil
}

// report runs the resolution callbacks and logs the outcome of a top-level
// resolution.
func (c *Container) report(serviceType reflect.Type, key any, value any, err error, duration time.Duration) {
	if err != nil {
		c.logger.Debug("service resolution failed",
			"type", formatType(serviceType), "key", key, "error", err)
		if c.options.onServiceError != nil {
			c.options.onServiceError(serviceType, err)
		}
		return
	}

	c.logger.Debug("service resolved",
		"type", formatType(serviceType), "key", key, "duration", duration)
	if c.options.onServiceResolved != nil {
		c.options.onServiceResolved(serviceType, value, duration)
	}
}

// wrapRecipeError wraps a recipe failure in ResolutionError unless the
// container already produced a typed error for it.
func wrapRecipeError(serviceType reflect.Type, key any, chain []ResolutionFrame, err error) error {
	if nc, ok := err.(NoCurrentScopeError); ok && nc.ServiceType == nil {
		nc.ServiceType = serviceType
		return nc
	}

	var (
		resolutionErr ResolutionError
		unresolvedErr UnresolvedServiceError
		circularErr   CircularDependencyError
		depthErr      MaxDepthError
		panicErr      RecipePanicError
	)
	switch {
	case errors.As(err, &resolutionErr),
		errors.Is(err, ErrCaptiveDependency),
		errors.As(err, &unresolvedErr),
		errors.As(err, &circularErr),
		errors.As(err, &depthErr),
		errors.As(err, &panicErr),
		errors.Is(err, ErrScopeDisposed),
		errors.Is(err, ErrNoCurrentScope),
		errors.Is(err, ErrNoMatchedScope),
		errors.Is(err, ErrContainerDisposed):
		return err
	}

	return ResolutionError{ServiceType: serviceType, ServiceKey: key, Chain: chain, Cause: err}
}

// zeroValue returns the zero value of t boxed in an interface. Interface
// types give a nil interface.
func zeroValue(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

func checkServiceType(t reflect.Type) error {
	if t == nil {
		return ErrServiceTypeNil
	}
	return nil
}

func checkRequiredType(serviceType, required reflect.Type) error {
	if required == nil || required == serviceType {
		return nil
	}
	if !required.AssignableTo(serviceType) {
		return TypeMismatchError{
			Expected: serviceType,
			Actual:   required,
			Context:  fmt.Sprintf("required service type of %s", formatType(serviceType)),
		}
	}
	return nil
}
