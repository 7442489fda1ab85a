package dryioc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/dadhi/DryIoc-sub012/internal/reflection"
	"github.com/dadhi/DryIoc-sub012/internal/typecache"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that typed errors report through errors.Is.
// Match on them with errors.Is; inspect the typed errors with errors.As.

var (
	// Service resolution errors.
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceTypeNil     = errors.New("service type cannot be nil")
	ErrRecipeNil          = errors.New("recipe cannot be nil")
	ErrCircularDependency = errors.New("circular dependency")
	ErrMaxDepthExceeded   = errors.New("maximum resolution depth exceeded")

	// Registration errors.
	ErrServiceKeyNotComparable = errors.New("service key must be comparable")

	// Lifecycle errors.
	ErrContainerDisposed    = errors.New("container has been disposed")
	ErrScopeDisposed        = errors.New("scope has been disposed")
	ErrNoCurrentScope       = errors.New("no current scope")
	ErrNoMatchedScope       = errors.New("no matching scope")
	ErrNotDirectScopeParent = errors.New("scope is not the direct parent of the current scope")
	ErrCaptiveDependency    = errors.New("singleton depends on a scoped service")

	// Constructor errors.
	ErrConstructorNil = reflection.ErrConstructorNil
)

var (
	_ error = LifetimeError{}
	_ error = UnresolvedServiceError{}
	_ error = ScopeDisposedError{}
	_ error = NoCurrentScopeError{}
	_ error = NoMatchedScopeError{}
	_ error = NotDirectScopeParentError{}
	_ error = CircularDependencyError{}
	_ error = MaxDepthError{}
	_ error = ResolutionError{}
	_ error = RecipePanicError{}
	_ error = RegistrationError{}
	_ error = TypeMismatchError{}
	_ error = DisposalError{}
	_ error = ModuleError{}
	_ error = CaptiveDependencyError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// LifetimeError indicates an invalid service lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// UnresolvedServiceError is returned when no registration exists for the
// requested service identity and the caller asked for IfUnresolvedThrow.
type UnresolvedServiceError struct {
	ServiceType reflect.Type
	ServiceKey  any // nil for default services

	// RequiredServiceType is set when the lookup used a substituted type.
	RequiredServiceType reflect.Type

	Chain     []ResolutionFrame
	Available []reflect.Type // registered types, used for suggestions
}

func (e UnresolvedServiceError) Error() string {
	var b strings.Builder

	b.WriteString("unable to resolve ")
	b.WriteString(formatService(e.ServiceType, e.ServiceKey))
	if e.RequiredServiceType != nil && e.RequiredServiceType != e.ServiceType {
		b.WriteString(fmt.Sprintf(" (required type: %s)", formatType(e.RequiredServiceType)))
	}
	b.WriteString(": no registration found")

	if len(e.Chain) > 0 {
		b.WriteString("\n  while resolving: ")
		b.WriteString(formatChain(e.Chain))
	}

	lookedUp := e.ServiceType
	if e.RequiredServiceType != nil {
		lookedUp = e.RequiredServiceType
	}
	if similar := findSimilarTypes(lookedUp, e.Available); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, t := range similar {
			b.WriteString(fmt.Sprintf("  • %s\n", formatType(t)))
		}
	}

	return b.String()
}

func (e UnresolvedServiceError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// ScopeDisposedError is returned when a scope is used after, or while, it
// is being disposed.
type ScopeDisposedError struct {
	ScopeID string
	Name    any
}

func (e ScopeDisposedError) Error() string {
	if e.Name != nil {
		return fmt.Sprintf("scope %s (%v) has been disposed", e.ScopeID, e.Name)
	}
	return fmt.Sprintf("scope %s has been disposed", e.ScopeID)
}

func (e ScopeDisposedError) Is(target error) bool {
	return target == ErrScopeDisposed
}

// NoCurrentScopeError is returned when a scoped service is resolved without
// an explicit scope and the ScopeContext has no current scope.
type NoCurrentScopeError struct {
	ServiceType reflect.Type
}

func (e NoCurrentScopeError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("no current scope available to resolve %s; open a scope first", formatType(e.ServiceType))
	}
	return "no current scope available; open a scope first"
}

func (e NoCurrentScopeError) Is(target error) bool {
	return target == ErrNoCurrentScope
}

// NoMatchedScopeError is returned when no scope in the parent chain carries
// a name matching the search criteria.
type NoMatchedScopeError struct {
	NameType  reflect.Type // nil matches any type
	Key       any          // nil matches any key
	Outermost bool
	ScopeID   string // scope the search started from
}

func (e NoMatchedScopeError) Error() string {
	criteria := "any name"
	switch {
	case e.NameType != nil && e.Key != nil:
		criteria = fmt.Sprintf("name %s[%v]", formatType(e.NameType), e.Key)
	case e.NameType != nil:
		criteria = fmt.Sprintf("name of type %s", formatType(e.NameType))
	case e.Key != nil:
		criteria = fmt.Sprintf("name %v", e.Key)
	}

	where := "innermost"
	if e.Outermost {
		where = "outermost"
	}
	return fmt.Sprintf("no %s scope with %s found starting from scope %s", where, criteria, e.ScopeID)
}

func (e NoMatchedScopeError) Is(target error) bool {
	return target == ErrNoMatchedScope
}

// NotDirectScopeParentError is returned when a scope is opened under a parent
// that is not the ScopeContext's current scope.
type NotDirectScopeParentError struct {
	ParentID  string
	CurrentID string // empty when there is no current scope
}

func (e NotDirectScopeParentError) Error() string {
	current := e.CurrentID
	if current == "" {
		current = "<none>"
	}
	return fmt.Sprintf("scope %s is not the direct parent of the current scope %s", e.ParentID, current)
}

func (e NotDirectScopeParentError) Is(target error) bool {
	return target == ErrNotDirectScopeParent
}

// CircularDependencyError is returned when a service identity is requested
// again while it is still being constructed.
type CircularDependencyError struct {
	ServiceType reflect.Type
	ServiceKey  any
	Chain       []ResolutionFrame
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected for ")
	b.WriteString(formatService(e.ServiceType, e.ServiceKey))

	if len(e.Chain) > 0 {
		b.WriteString("\nDependency chain: ")
		b.WriteString(formatChain(e.Chain))
		b.WriteString(" -> ")
		b.WriteString(formatService(e.ServiceType, e.ServiceKey))
	}

	b.WriteString("\n\nTo break the cycle, depend on Lazy[T] for one side of it.")
	return b.String()
}

func (e CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// MaxDepthError is returned when the resolution chain grows past the
// configured maximum depth.
type MaxDepthError struct {
	ServiceType reflect.Type
	Depth       int
	MaxDepth    int
}

func (e MaxDepthError) Error() string {
	return fmt.Sprintf("maximum resolution depth %d exceeded while resolving %s (current depth: %d)",
		e.MaxDepth, formatType(e.ServiceType), e.Depth)
}

func (e MaxDepthError) Is(target error) bool {
	return target == ErrMaxDepthExceeded
}

// ResolutionError wraps an error returned by a recipe.
type ResolutionError struct {
	ServiceType reflect.Type
	ServiceKey  any
	Chain       []ResolutionFrame
	Cause       error
}

func (e ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("failed to resolve ")
	b.WriteString(formatService(e.ServiceType, e.ServiceKey))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Chain) > 0 {
		b.WriteString("\n  while resolving: ")
		b.WriteString(formatChain(e.Chain))
	}

	return b.String()
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// RecipePanicError indicates a recipe panicked during invocation.
// It captures the panic value and stack trace for debugging.
type RecipePanicError struct {
	ServiceType reflect.Type
	ServiceKey  any
	Panic       any
	Stack       []byte
}

func (e RecipePanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("recipe for %s panicked: %v\n", formatService(e.ServiceType, e.ServiceKey), e.Panic))

	b.WriteString("\nRecipes should be pure dependency wiring - avoid operations that can panic.\n")
	b.WriteString("Return an error from the recipe instead.\n")

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// Unwrap returns the panic value when it was an error.
func (e RecipePanicError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// RegistrationError wraps errors during service registration.
type RegistrationError struct {
	ServiceType reflect.Type
	ServiceKey  any
	Operation   string // "register", "register-instance", "register-constructor"
	Cause       error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatService(e.ServiceType, e.ServiceKey), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a type assertion or conversion failed.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string // "type assertion", "instance registration", etc.
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// CaptiveDependencyError indicates a singleton depending on a scoped
// service, which would outlive the scope it was created in.
type CaptiveDependencyError struct {
	Service    ResolutionFrame
	Dependency ResolutionFrame
}

func (e CaptiveDependencyError) Error() string {
	return fmt.Sprintf("singleton %s depends on scoped %s", e.Service, e.Dependency)
}

func (e CaptiveDependencyError) Is(target error) bool {
	return target == ErrCaptiveDependency
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates disposal errors
type DisposalError struct {
	Context string // "scope", "container"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// findSimilarTypes finds types with similar names using a simple substring/prefix match
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := target.String()
	targetShortName := target.Name()
	if targetShortName == "" {
		targetShortName = targetName
	}

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		typeName := t.String()
		typeShortName := t.Name()
		if typeShortName == "" {
			typeShortName = typeName
		}

		// Same short name in another package, or one name contains the other.
		if targetShortName == typeShortName ||
			strings.Contains(strings.ToLower(typeName), strings.ToLower(targetShortName)) ||
			strings.Contains(strings.ToLower(targetName), strings.ToLower(typeShortName)) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	return typecache.Name(t)
}

func formatService(t reflect.Type, key any) string {
	if key != nil {
		return fmt.Sprintf("%s[%v]", formatType(t), key)
	}
	return formatType(t)
}

func formatChain(chain []ResolutionFrame) string {
	return strings.Join(lo.Map(chain, func(f ResolutionFrame, _ int) string {
		return f.String()
	}), " -> ")
}
