package reflection_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadhi/DryIoc-sub012/internal/reflection"
)

type resolveCall struct {
	Type     reflect.Type
	Key      any
	Optional bool
}

// mockResolver resolves from fixed maps and records every call.
type mockResolver struct {
	values map[reflect.Type]any
	keyed  map[any]any
	many   map[reflect.Type][]any
	calls  []resolveCall
}

func (m *mockResolver) Get(t reflect.Type, key any, optional bool) (any, error) {
	m.calls = append(m.calls, resolveCall{t, key, optional})

	if key != nil {
		if v, ok := m.keyed[key]; ok {
			return v, nil
		}
	} else if v, ok := m.values[t]; ok {
		return v, nil
	}

	if optional {
		return nil, nil
	}
	return nil, errors.New("not registered: " + t.String())
}

func (m *mockResolver) GetMany(t reflect.Type) ([]any, error) {
	return m.many[t], nil
}

func TestConstructorInvoker_Invoke(t *testing.T) {
	db := &Database{ConnectionString: "main"}
	cache := &Database{ConnectionString: "cache"}
	logger := &ConsoleLogger{}
	loggerType := reflect.TypeOf((*Logger)(nil)).Elem()

	analyzer := reflection.New()
	invoker := reflection.NewConstructorInvoker()

	t.Run("regular parameters", func(t *testing.T) {
		info, err := analyzer.Analyze(NewUserService)
		require.NoError(t, err)

		resolver := &mockResolver{values: map[reflect.Type]any{
			reflect.TypeOf(db): db,
			loggerType:         logger,
		}}

		result, err := invoker.Invoke(info, resolver)
		require.NoError(t, err)

		svc := result.(*UserService)
		assert.Same(t, db, svc.DB)
		assert.Same(t, logger, svc.Logger)
	})

	t.Run("param object", func(t *testing.T) {
		info, err := analyzer.Analyze(NewServiceWithParams)
		require.NoError(t, err)

		other := &ConsoleLogger{}
		resolver := &mockResolver{
			values: map[reflect.Type]any{reflect.TypeOf(db): db},
			keyed:  map[any]any{"cache": cache},
			many:   map[reflect.Type][]any{loggerType: {logger, other}},
		}

		result, err := invoker.Invoke(info, resolver)
		require.NoError(t, err)

		svc := result.(*UserService)
		assert.Same(t, db, svc.DB)
		assert.Nil(t, svc.Logger, "optional missing dependency stays nil")
		require.Len(t, svc.Handlers, 2)
		assert.Same(t, logger, svc.Handlers[0])
		assert.Same(t, other, svc.Handlers[1])

		assert.Contains(t, resolver.calls, resolveCall{reflect.TypeOf(cache), "cache", false})
		assert.Contains(t, resolver.calls, resolveCall{loggerType, nil, true})
	})

	t.Run("pointer param object", func(t *testing.T) {
		type params struct {
			reflection.In
			DB *Database
		}

		info, err := analyzer.Analyze(func(p *params) *UserService { return &UserService{DB: p.DB} })
		require.NoError(t, err)

		result, err := invoker.Invoke(info, &mockResolver{values: map[reflect.Type]any{reflect.TypeOf(db): db}})
		require.NoError(t, err)
		assert.Same(t, db, result.(*UserService).DB)
	})

	t.Run("constructor error is returned as is", func(t *testing.T) {
		info, err := analyzer.Analyze(NewUserServiceWithError)
		require.NoError(t, err)

		// A nil *Database is passed when the resolver returns nil.
		resolver := &mockResolver{values: map[reflect.Type]any{reflect.TypeOf(db): nil}}

		_, err = invoker.Invoke(info, resolver)
		require.Error(t, err)
		assert.Equal(t, "database is required", err.Error())
	})

	t.Run("missing dependency", func(t *testing.T) {
		info, err := analyzer.Analyze(NewUserService)
		require.NoError(t, err)

		_, err = invoker.Invoke(info, &mockResolver{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to resolve parameter 0")
	})

	t.Run("nil resolver", func(t *testing.T) {
		info, err := analyzer.Analyze(NewDatabase)
		require.NoError(t, err)

		_, err = invoker.Invoke(info, nil)
		assert.Error(t, err)
	})
}
