package reflection

import (
	"fmt"
	"reflect"
)

// DependencyResolver is the interface for resolving dependencies.
type DependencyResolver interface {
	// Get resolves t under key, nil meaning the default. With optional set a
	// missing registration gives a nil value and no error.
	Get(t reflect.Type, key any, optional bool) (any, error)

	// GetMany resolves every registration of t.
	GetMany(t reflect.Type) ([]any, error)
}

// ConstructorInvoker invokes constructors with resolved dependencies.
type ConstructorInvoker struct{}

// NewConstructorInvoker creates a new constructor invoker.
func NewConstructorInvoker() *ConstructorInvoker {
	return &ConstructorInvoker{}
}

// Invoke calls a constructor with resolved dependencies and returns its
// first result.
func (ci *ConstructorInvoker) Invoke(info *ConstructorInfo, resolver DependencyResolver) (any, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}

	args, err := ci.buildArguments(info, resolver)
	if err != nil {
		return nil, err
	}

	results := info.Value.Call(args)

	if info.HasErrorReturn {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
	}

	return results[0].Interface(), nil
}

// buildArguments builds the argument list for a constructor.
func (ci *ConstructorInvoker) buildArguments(info *ConstructorInfo, resolver DependencyResolver) ([]reflect.Value, error) {
	if info.IsParamObject {
		paramValue, err := ci.buildParamObject(info, resolver)
		if err != nil {
			return nil, err
		}
		return []reflect.Value{paramValue}, nil
	}

	args := make([]reflect.Value, len(info.Parameters))
	for i, param := range info.Parameters {
		value, err := ci.resolveParameter(param, resolver)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameter %d (%v): %w", i, param.Type, err)
		}
		args[i] = value
	}

	return args, nil
}

// buildParamObject creates and populates an In struct with resolved
// dependencies.
func (ci *ConstructorInvoker) buildParamObject(info *ConstructorInfo, resolver DependencyResolver) (reflect.Value, error) {
	paramType := info.Type.In(0)

	structType := paramType
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	structPtr := reflect.New(structType)
	structValue := structPtr.Elem()

	for _, param := range info.Parameters {
		value, err := ci.resolveParameter(param, resolver)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("failed to resolve field %s: %w", param.Name, err)
		}

		if field := structValue.Field(param.Index); field.CanSet() {
			field.Set(value)
		}
	}

	if paramType.Kind() == reflect.Pointer {
		return structPtr, nil
	}
	return structValue, nil
}

// resolveParameter resolves a single parameter.
func (ci *ConstructorInvoker) resolveParameter(param ParameterInfo, resolver DependencyResolver) (reflect.Value, error) {
	if param.Many {
		values, err := resolver.GetMany(param.ElemType)
		if err != nil {
			return reflect.Value{}, err
		}

		slice := reflect.MakeSlice(param.Type, len(values), len(values))
		for i, val := range values {
			slice.Index(i).Set(valueOf(val, param.ElemType))
		}
		return slice, nil
	}

	value, err := resolver.Get(param.Type, param.Key, param.Optional)
	if err != nil {
		return reflect.Value{}, err
	}
	return valueOf(value, param.Type), nil
}

// valueOf converts a resolved value to t, mapping nil to the zero value.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
