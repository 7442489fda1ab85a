package dryioc_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	dryioc "github.com/dadhi/DryIoc-sub012"
)

type Logger struct {
	prefix string
}

func (l *Logger) Log(msg string) {
	fmt.Println(l.prefix + msg)
}

type Database struct {
	logger *Logger
}

func NewDatabase(logger *Logger) *Database {
	return &Database{logger: logger}
}

func (d *Database) Close() error {
	d.logger.Log("database closed")
	return nil
}

type UserService struct {
	db *Database
}

func NewUserService(db *Database) *UserService {
	return &UserService{db: db}
}

func (s *UserService) UserName(id int) string {
	return fmt.Sprintf("user-%d", id)
}

type Notifier interface {
	Notify(msg string) string
}

type emailNotifier struct{}

func (emailNotifier) Notify(msg string) string { return "email: " + msg }

type smsNotifier struct{}

func (smsNotifier) Notify(msg string) string { return "sms: " + msg }

// Example demonstrates basic service registration and resolution.
func Example() {
	c := dryioc.New(dryioc.WithScopeContext(dryioc.NewFlowScopeContext()))
	defer c.Close()

	err := c.Install(
		dryioc.AddValue(&Logger{prefix: "[app] "}),
		dryioc.AddScoped(NewDatabase),
		dryioc.AddScoped(NewUserService),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx, scope, err := c.OpenScope(context.Background(), "request")
	if err != nil {
		log.Fatal(err)
	}

	users, err := dryioc.Resolve[*UserService](ctx, c)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(users.UserName(1))

	scope.Close()
	// Output:
	// user-1
	// [app] database closed
}

// ExampleRegisterFunc demonstrates a singleton registered from a function.
func ExampleRegisterFunc() {
	c := dryioc.New()
	defer c.Close()

	dryioc.RegisterFunc(c, func(ctx context.Context, r dryioc.Resolver) (*Logger, error) {
		return &Logger{prefix: "> "}, nil
	}, dryioc.WithLifetime(dryioc.Singleton))

	ctx := context.Background()
	first := dryioc.MustResolve[*Logger](ctx, c)
	second := dryioc.MustResolve[*Logger](ctx, c)

	fmt.Println(first == second)
	// Output: true
}

// ExampleResolveMany demonstrates resolving every keyed registration of a
// service, and a composite that skips itself.
func ExampleResolveMany() {
	c := dryioc.New()
	defer c.Close()

	dryioc.RegisterKeyedFunc(c, "email", func(context.Context, dryioc.Resolver) (Notifier, error) {
		return emailNotifier{}, nil
	})
	dryioc.RegisterKeyedFunc(c, "sms", func(context.Context, dryioc.Resolver) (Notifier, error) {
		return smsNotifier{}, nil
	})

	for n, err := range dryioc.ResolveMany[Notifier](context.Background(), c) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(n.Notify("hello"))
	}
	// Output:
	// email: hello
	// sms: hello
}

// ExampleLazy demonstrates deferring a dependency.
func ExampleLazy() {
	c := dryioc.New()
	defer c.Close()

	dryioc.RegisterValue(c, &Logger{prefix: "lazy "})

	logger := dryioc.Lazy[*Logger](context.Background(), c)

	l, err := logger()
	if err != nil {
		log.Fatal(err)
	}
	l.Log("resolved")
	// Output: lazy resolved
}

// ExampleContainer_OpenScope demonstrates a service scoped to a named scope.
func ExampleContainer_OpenScope() {
	c := dryioc.New(dryioc.WithScopeContext(dryioc.NewFlowScopeContext()))
	defer c.Close()

	dryioc.RegisterFunc(c, func(context.Context, dryioc.Resolver) (*Logger, error) {
		return &Logger{}, nil
	}, dryioc.ScopedTo("request"))

	requestCtx, request, _ := c.OpenScope(context.Background(), "request")
	defer request.Close()

	nestedCtx, nested, _ := c.OpenScope(requestCtx, "nested")
	defer nested.Close()

	outer, _ := dryioc.Resolve[*Logger](requestCtx, c)
	inner, _ := dryioc.Resolve[*Logger](nestedCtx, c)
	fmt.Println(outer == inner)

	_, err := dryioc.Resolve[*Logger](context.Background(), c)
	fmt.Println(errors.Is(err, dryioc.ErrNoCurrentScope))
	// Output:
	// true
	// true
}

// ExampleDecorate demonstrates wrapping a registered service.
func ExampleDecorate() {
	c := dryioc.New()
	defer c.Close()

	dryioc.RegisterFunc(c, func(context.Context, dryioc.Resolver) (Notifier, error) {
		return emailNotifier{}, nil
	})
	dryioc.Decorate(c, func(_ context.Context, _ dryioc.Resolver, inner Notifier) (Notifier, error) {
		return loudNotifier{inner}, nil
	})

	n := dryioc.MustResolve[Notifier](context.Background(), c)
	fmt.Println(n.Notify("hi"))
	// Output: email: hi!
}

type loudNotifier struct {
	inner Notifier
}

func (n loudNotifier) Notify(msg string) string { return n.inner.Notify(msg) + "!" }
