package dryioc

import "sync/atomic"

// ShellKind tags a Shell.
type ShellKind uint8

const (
	// ShellTransparent holds a value the owning scope still releases on
	// disposal, after unwrapping.
	ShellTransparent ShellKind = iota

	// ShellHidden hides its target from the owning scope: disposal stops at
	// the shell and the target is never released by the container.
	ShellHidden
)

func (k ShellKind) String() string {
	if k == ShellHidden {
		return "Hidden"
	}
	return "Transparent"
}

// Shell is a reuse wrapper stored in a scope in place of the value itself.
// Shells nest: a Target may be another *Shell.
//
// Resolution always hands out the innermost target. Disposal unwraps shells
// one level at a time until it reaches a non-shell value, or a ShellHidden
// shell, which it skips.
//
// A shell can be revoked. A revoked shell found in a scope is treated as
// stale and its slot is rebuilt on the next GetOrAdd.
type Shell struct {
	Kind   ShellKind
	Target any

	revoked atomic.Bool
}

// Wrap returns a transparent shell around target.
func Wrap(target any) *Shell {
	return &Shell{Kind: ShellTransparent, Target: target}
}

// Hide returns a shell that keeps target out of scope disposal.
func Hide(target any) *Shell {
	return &Shell{Kind: ShellHidden, Target: target}
}

// Unwrap returns the shell's target, one level down.
func (s *Shell) Unwrap() any {
	return s.Target
}

// Revoke marks the shell stale.
func (s *Shell) Revoke() {
	s.revoked.Store(true)
}

// Revoked implements Revocable.
func (s *Shell) Revoked() bool {
	return s.revoked.Load()
}

// Revocable is implemented by stored values that can go stale. A stale value
// is recreated by Scope.GetOrAdd instead of being returned.
type Revocable interface {
	Revoked() bool
}

// UnwrapShells returns the innermost non-shell value of v.
func UnwrapShells(v any) any {
	for {
		s, ok := v.(*Shell)
		if !ok {
			return v
		}
		v = s.Target
	}
}

// isStale reports whether v, or any shell level on the way to its target,
// has been revoked.
func isStale(v any) bool {
	for {
		if r, ok := v.(Revocable); ok && r.Revoked() {
			return true
		}
		s, ok := v.(*Shell)
		if !ok {
			return false
		}
		v = s.Target
	}
}

// disposalTarget unwraps v down to the value disposal should release. It
// returns false when a hidden shell is met first.
func disposalTarget(v any) (any, bool) {
	for {
		s, ok := v.(*Shell)
		if !ok {
			return v, true
		}
		if s.Kind == ShellHidden {
			return nil, false
		}
		v = s.Target
	}
}
