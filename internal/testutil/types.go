package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest          = errors.New("test error")
	ErrIntentional   = errors.New("intentional error")
	ErrConstructor   = errors.New("constructor error")
	ErrDisposal      = errors.New("disposal error")
	ErrAlreadyClosed = errors.New("already closed")
)

// TestService is a basic test service
type TestService struct {
	ID        string
	CreatedAt time.Time
	Data      string
}

// NewTestService creates a new test service
func NewTestService() *TestService {
	return &TestService{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Data:      "test",
	}
}

// TestLogger is a test logger interface
type TestLogger interface {
	Log(msg string)
	GetLogs() []string
}

// TestLoggerImpl implements TestLogger
type TestLoggerImpl struct {
	logs []string
	mu   sync.Mutex
}

func NewTestLogger() TestLogger {
	return &TestLoggerImpl{}
}

func (l *TestLoggerImpl) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *TestLoggerImpl) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.logs))
	copy(result, l.logs)
	return result
}

// TestDatabase is a test database interface
type TestDatabase interface {
	Query(sql string) string
	Close() error
}

// TestDatabaseImpl implements TestDatabase
type TestDatabaseImpl struct {
	name   string
	closed atomic.Bool
}

func NewTestDatabase() TestDatabase {
	return &TestDatabaseImpl{name: "test"}
}

func NewTestDatabaseNamed(name string) TestDatabase {
	return &TestDatabaseImpl{name: name}
}

func (d *TestDatabaseImpl) Query(sql string) string {
	return d.name + ": " + sql
}

func (d *TestDatabaseImpl) Close() error {
	if d.closed.Swap(true) {
		return ErrAlreadyClosed
	}
	return nil
}

// IsClosed reports whether Close was called.
func (d *TestDatabaseImpl) IsClosed() bool {
	return d.closed.Load()
}

// CloseRecorder records the order in which disposables are closed.
type CloseRecorder struct {
	mu     sync.Mutex
	closed []string
}

func (r *CloseRecorder) record(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, name)
}

// Order returns the names of closed disposables, first closed first.
func (r *CloseRecorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.closed))
	copy(result, r.closed)
	return result
}

// TestDisposable is a disposable test service
type TestDisposable struct {
	Name     string
	recorder *CloseRecorder
	closeErr error
	closes   atomic.Int32
}

// NewTestDisposable creates a disposable that records its closing in
// recorder, which may be nil.
func NewTestDisposable(name string, recorder *CloseRecorder) *TestDisposable {
	return &TestDisposable{Name: name, recorder: recorder}
}

// NewTestDisposableWithError creates a disposable whose Close fails.
func NewTestDisposableWithError(name string, err error) *TestDisposable {
	return &TestDisposable{Name: name, closeErr: err}
}

func (d *TestDisposable) Close() error {
	d.closes.Add(1)
	d.recorder.record(d.Name)
	return d.closeErr
}

// IsDisposed reports whether Close was called at least once.
func (d *TestDisposable) IsDisposed() bool {
	return d.closes.Load() > 0
}

// CloseCount returns the number of Close calls.
func (d *TestDisposable) CloseCount() int {
	return int(d.closes.Load())
}

// TestContextDisposable is a test service with context-aware disposal
type TestContextDisposable struct {
	disposed    atomic.Bool
	withContext atomic.Bool
	disposeErr  error
}

func NewTestContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{}
}

func (s *TestContextDisposable) Close(ctx context.Context) error {
	s.withContext.Store(ctx != nil)
	s.disposed.Store(true)
	return s.disposeErr
}

// SetDisposeError sets the error returned by Close.
func (s *TestContextDisposable) SetDisposeError(err error) {
	s.disposeErr = err
}

func (s *TestContextDisposable) WasDisposedWithContext() bool {
	return s.withContext.Load()
}

func (s *TestContextDisposable) IsDisposed() bool {
	return s.disposed.Load()
}

// PanickingDisposable panics when closed.
type PanickingDisposable struct {
	Value any
}

func (p *PanickingDisposable) Close() error {
	panic(p.Value)
}

// TestHandler is a test handler interface
type TestHandler interface {
	Handle() string
}

// TestHandlerImpl implements TestHandler
type TestHandlerImpl struct {
	name string
}

func NewTestHandler(name string) TestHandler {
	return &TestHandlerImpl{name: name}
}

func (h *TestHandlerImpl) Handle() string {
	return h.name
}

// CompositeHandler combines every other handler.
type CompositeHandler struct {
	Handlers []TestHandler
}

func (c *CompositeHandler) Handle() string {
	result := "composite"
	for _, h := range c.Handlers {
		result += "+" + h.Handle()
	}
	return result
}

// TestServiceWithDeps is a test service with dependencies
type TestServiceWithDeps struct {
	Logger   TestLogger
	Database TestDatabase
}

func NewTestServiceWithDeps(logger TestLogger, db TestDatabase) *TestServiceWithDeps {
	return &TestServiceWithDeps{
		Logger:   logger,
		Database: db,
	}
}

// Circular dependency types
type CircularServiceA struct {
	B *CircularServiceB
}

type CircularServiceB struct {
	A *CircularServiceA
}

func NewCircularServiceA(b *CircularServiceB) *CircularServiceA {
	return &CircularServiceA{B: b}
}

func NewCircularServiceB(a *CircularServiceA) *CircularServiceB {
	return &CircularServiceB{A: a}
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}
