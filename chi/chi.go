// Package chi provides request scopes for the Chi router.
//
// This package provides middleware that opens a container scope per request
// and type-safe handler wrappers for resolving controllers from it.
//
// Example usage:
//
//	c := dryioc.New(dryioc.WithScopeContext(dryioc.NewFlowScopeContext()))
//	dryioc.RegisterConstructor(c, NewUserController, dryioc.ScopedTo(dryiocchi.RequestScope))
//
//	r := chi.NewRouter()
//	r.Use(dryiocchi.ScopeMiddleware(c))
//
//	r.Get("/users/{id}", dryiocchi.Handle(UserController.GetByID))
package chi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gochi "github.com/go-chi/chi/v5"

	dryioc "github.com/dadhi/DryIoc-sub012"
)

type requestScopeName struct{}

// RequestScope is the name of the scopes opened by ScopeMiddleware. Register
// services with dryioc.ScopedTo(RequestScope) to share them per request even
// when nested scopes are opened inside the handler.
var RequestScope any = requestScopeName{}

// ErrNoRequestScope is returned by FromContext when the request did not pass
// through ScopeMiddleware.
var ErrNoRequestScope = errors.New("no request scope in context")

type resolverKey struct{}

// FromContext returns the resolver bound to the request scope.
func FromContext(ctx context.Context) (*dryioc.ScopedResolver, error) {
	r, ok := ctx.Value(resolverKey{}).(*dryioc.ScopedResolver)
	if !ok || r == nil {
		return nil, ErrNoRequestScope
	}
	return r, nil
}

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when scope creation fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when scope closing fails.
	// If nil, errors are logged using slog.
	CloseErrorHandler func(*http.Request, error)

	// Middlewares are functions that run after scope creation.
	// They can be used to seed the scope, set user data, etc.
	Middlewares []func(*dryioc.ScopedResolver, *http.Request) error
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the error handler for scope close failures.
func WithCloseErrorHandler(h func(*http.Request, error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithMiddleware adds a middleware function that runs after scope creation.
// Multiple middlewares are executed in the order they are added.
func WithMiddleware(mw func(*dryioc.ScopedResolver, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		CloseErrorHandler: func(r *http.Request, err error) {
			slog.Error("failed to close request scope",
				"method", r.Method, "route", routePattern(r), "error", err)
		},
	}
}

// routePattern returns the matched chi route, or the URL path outside chi.
func routePattern(r *http.Request) string {
	if rctx := gochi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// ScopeMiddleware creates a Chi middleware that opens a scope named
// RequestScope for each request. The scope becomes the current scope of the
// request context when the container has a flow ScopeContext, and is
// reachable through FromContext in any case.
//
// The scope is disposed when the request completes.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(dryiocchi.ScopeMiddleware(c))
func ScopeMiddleware(c *dryioc.Container, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope, err := c.OpenScope(r.Context(), RequestScope)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			defer func() {
				if err := scope.DisposeContext(context.WithoutCancel(ctx)); err != nil {
					cfg.CloseErrorHandler(r, err)
				}
			}()

			resolver := c.WithScope(scope)
			r = r.WithContext(context.WithValue(ctx, resolverKey{}, resolver))

			for _, mw := range cfg.Middlewares {
				if err := mw(resolver, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// ScopeErrorHandler is called when the request has no scope.
	ScopeErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when service resolution fails.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// HandlerOption configures the Handle wrapper.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for requests without a scope.
func WithScopeErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for service resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

func defaultHandlerConfig() *HandlerConfig {
	return &HandlerConfig{
		PanicRecovery: false,
		PanicHandler: func(w http.ResponseWriter, r *http.Request, v any) {
			slog.Error("panic in handler", "route", routePattern(r), "panic", v)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		ScopeErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("failed to get request scope", "route", routePattern(r), "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		ResolutionErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("failed to resolve controller", "route", routePattern(r), "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
	}
}

// Handle wraps a controller method for type-safe resolution from the request scope.
// The controller type T is resolved from the scope opened by ScopeMiddleware.
//
// The method signature should be: func(T, http.ResponseWriter, *http.Request)
//
// Example:
//
//	type UserController interface {
//	    GetByID(http.ResponseWriter, *http.Request)
//	}
//
//	r.Get("/users/{id}", dryiocchi.Handle(UserController.GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		resolver, err := FromContext(r.Context())
		if err != nil {
			cfg.ScopeErrorHandler(w, r, err)
			return
		}

		controller, err := dryioc.Resolve[T](r.Context(), resolver)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
