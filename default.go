package dryioc

import "sync/atomic"

// defaultContainer holds the container returned by Default.
var defaultContainer atomic.Pointer[Container]

// SetDefault sets the container returned by Default, similar to
// slog.SetDefault. Pass nil to remove it. The previous default is not
// disposed.
func SetDefault(c *Container) {
	defaultContainer.Store(c)
}

// Default returns the container set with SetDefault, or nil.
func Default() *Container {
	return defaultContainer.Load()
}
