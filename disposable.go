package dryioc

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Disposable is implemented by values that hold resources the owning scope
// must release when it is disposed.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close() error {
//	    return dc.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful shutdown.
// The context passed is the one given to Scope.DisposeContext.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close(ctx context.Context) error {
//	    done := make(chan error, 1)
//	    go func() {
//	        done <- dc.conn.Close()
//	    }()
//
//	    select {
//	    case err := <-done:
//	        return err
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    }
//	}
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// isDisposable reports whether v exposes a release contract.
func isDisposable(v any) bool {
	switch v.(type) {
	case Disposable, DisposableWithContext:
		return true
	}
	return false
}

// release invokes v's release contract. A panicking Close is reported as an
// error carrying the stack.
func release(ctx context.Context, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close of %T panicked: %v\n%s", v, r, debug.Stack())
		}
	}()

	switch d := v.(type) {
	case DisposableWithContext:
		return d.Close(ctx)
	case Disposable:
		return d.Close()
	}
	return nil
}
