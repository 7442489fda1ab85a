package dryioc

import (
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/dadhi/DryIoc-sub012/internal/logging"
)

// DefaultMaxResolutionDepth bounds the resolution chain unless
// WithMaxResolutionDepth says otherwise.
const DefaultMaxResolutionDepth = 128

// Option configures a Container.
type Option interface {
	apply(*options)
}

type options struct {
	scopeContext       ScopeContext
	precompiled        *Precompiled
	logger             *slog.Logger
	maxResolutionDepth int

	// OnServiceResolved is called after a top-level resolution succeeds.
	onServiceResolved func(serviceType reflect.Type, instance any, duration time.Duration)

	// OnServiceError is called after a top-level resolution fails.
	onServiceError func(serviceType reflect.Type, err error)
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) {
	f(opts)
}

func defaultOptions() *options {
	return &options{
		logger:             logging.Discard(),
		maxResolutionDepth: DefaultMaxResolutionDepth,
	}
}

// WithScopeContext sets the strategy that tracks the ambient current scope.
// Without it, scoped services resolve only through Container.WithScope.
func WithScopeContext(sc ScopeContext) Option {
	return optionFunc(func(opts *options) {
		opts.scopeContext = sc
	})
}

// WithPrecompiled adds a precompiled recipe set, consulted when the runtime
// registry has no registration for an identity.
func WithPrecompiled(p *Precompiled) Option {
	return optionFunc(func(opts *options) {
		opts.precompiled = p
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	})
}

// WithLogLevel logs to stderr through a console handler at the given level:
// "debug", "info", "warn" or "error".
func WithLogLevel(level string) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logging.NewLogger(os.Stderr, level, "text")
	})
}

// WithMaxResolutionDepth bounds how deep a dependency chain may grow before
// resolution fails with MaxDepthError.
func WithMaxResolutionDepth(depth int) Option {
	return optionFunc(func(opts *options) {
		if depth > 0 {
			opts.maxResolutionDepth = depth
		}
	})
}

// WithOnServiceResolved sets a callback run after each successful top-level
// resolution.
func WithOnServiceResolved(fn func(serviceType reflect.Type, instance any, duration time.Duration)) Option {
	return optionFunc(func(opts *options) {
		opts.onServiceResolved = fn
	})
}

// WithOnServiceError sets a callback run after each failed top-level
// resolution.
func WithOnServiceError(fn func(serviceType reflect.Type, err error)) Option {
	return optionFunc(func(opts *options) {
		opts.onServiceError = fn
	})
}

// ========================================
// Registration options
// ========================================

// RegisterOption configures a single registration.
type RegisterOption interface {
	applyRegister(*registerOptions)
}

type registerOptions struct {
	key             any
	lifetime        Lifetime
	scopedTo        any
	trackTransient  bool
	preventDisposal bool
	dependencies    []Dependency
}

type registerOptionFunc func(*registerOptions)

func (f registerOptionFunc) applyRegister(opts *registerOptions) {
	f(opts)
}

func newRegisterOptions(opts []RegisterOption) *registerOptions {
	o := &registerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyRegister(o)
		}
	}
	return o
}

// WithKey registers the service under key instead of as the default.
// The key must be comparable.
func WithKey(key any) RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.key = key
	})
}

// WithLifetime sets the lifetime; the default is Transient.
func WithLifetime(lifetime Lifetime) RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.lifetime = lifetime
	})
}

// ScopedTo makes the service Scoped to the nearest enclosing scope named
// name rather than to the current scope.
func ScopedTo(name any) RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.lifetime = Scoped
		opts.scopedTo = name
	})
}

// TrackDisposableTransient makes the scope a transient is resolved from
// release it, when it is disposable.
func TrackDisposableTransient() RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.trackTransient = true
	})
}

// PreventDisposal keeps an instance registered with RegisterInstance out of
// container disposal.
func PreventDisposal() RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.preventDisposal = true
	})
}

// WithDependencies declares the services a recipe resolves, so that
// Container.Validate can check them. Constructors declare theirs
// automatically.
func WithDependencies(deps ...Dependency) RegisterOption {
	return registerOptionFunc(func(opts *registerOptions) {
		opts.dependencies = append(opts.dependencies, deps...)
	})
}
