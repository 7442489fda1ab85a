package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// In marks a parameter object: a struct whose exported fields are resolved
// one by one, configured through field tags.
//
//	name:"key"       resolve the field under a service key
//	optional:"true"  leave the field zero when the service is not registered
//	many:"true"      collect every registration of the slice element type
//	inject:"-"       skip the field
type In struct{}

var (
	inType  = reflect.TypeOf((*In)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

var (
	ErrConstructorNil                 = errors.New("constructor cannot be nil")
	ErrConstructorNotFunction         = errors.New("constructor must be a function")
	ErrConstructorNoReturn            = errors.New("constructor must return at least one value")
	ErrConstructorTooManyReturns      = errors.New("constructor must return at most 2 values")
	ErrConstructorInvalidSecondReturn = errors.New("constructor's second return value must be error")
	ErrConstructorVariadic            = errors.New("constructor cannot be variadic")
)

// Analyzer performs reflection-based analysis of constructors.
// It caches analysis results by function pointer.
type Analyzer struct {
	cache sync.Map // map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor function.
type ConstructorInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	ServiceType    reflect.Type // first return value
	Parameters     []ParameterInfo
	IsParamObject  bool // single parameter embedding In
	HasErrorReturn bool // returns (T, error)
}

// ParameterInfo describes a constructor parameter or field in an In struct.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string // field name for In structs
	Index    int    // parameter index or field index
	Key      any    // from name:"key" tag
	Optional bool   // from optional:"true" tag
	Many     bool   // from many:"true" tag
	ElemType reflect.Type
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Optional bool
	Name     string
	Many     bool
	Ignore   bool
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze validates a constructor function and extracts its parameters.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, ErrConstructorNil
	}

	val := reflect.ValueOf(constructor)
	if val.Kind() != reflect.Func {
		return nil, ErrConstructorNotFunction
	}
	if val.IsNil() {
		return nil, ErrConstructorNil
	}

	// Different functions with the same signature are cached separately.
	cacheKey := val.Pointer()
	if cached, ok := a.cache.Load(cacheKey); ok {
		info := cached.(*ConstructorInfo)
		// Closures share code pointers; only reuse on an identical signature.
		if info.Type == val.Type() {
			return &ConstructorInfo{
				Type:           info.Type,
				Value:          val,
				ServiceType:    info.ServiceType,
				Parameters:     info.Parameters,
				IsParamObject:  info.IsParamObject,
				HasErrorReturn: info.HasErrorReturn,
			}, nil
		}
	}

	info := &ConstructorInfo{
		Type:  val.Type(),
		Value: val,
	}

	if err := a.analyzeReturns(info); err != nil {
		return nil, err
	}
	if err := a.analyzeParameters(info); err != nil {
		return nil, fmt.Errorf("failed to analyze parameters: %w", err)
	}

	a.cache.Store(cacheKey, info)
	return info, nil
}

// analyzeReturns accepts func(...) T and func(...) (T, error).
func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type

	switch fnType.NumOut() {
	case 0:
		return ErrConstructorNoReturn
	case 1:
	case 2:
		if fnType.Out(1) != errType {
			return ErrConstructorInvalidSecondReturn
		}
		info.HasErrorReturn = true
	default:
		return ErrConstructorTooManyReturns
	}

	info.ServiceType = fnType.Out(0)
	return nil
}

// analyzeParameters analyzes function parameters or In struct fields.
func (a *Analyzer) analyzeParameters(info *ConstructorInfo) error {
	fnType := info.Type

	if fnType.IsVariadic() {
		return ErrConstructorVariadic
	}

	if fnType.NumIn() == 1 && hasEmbeddedIn(fnType.In(0)) {
		info.IsParamObject = true
		return a.analyzeParamObject(info, fnType.In(0))
	}

	info.Parameters = make([]ParameterInfo, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		info.Parameters[i] = ParameterInfo{
			Type:  paramType,
			Index: i,
		}
	}

	return nil
}

// analyzeParamObject analyzes an In struct's fields.
func (a *Analyzer) analyzeParamObject(info *ConstructorInfo, structType reflect.Type) error {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	params := make([]ParameterInfo, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type == inType {
			continue
		}

		tagInfo := ParseFieldTags(field.Tag)
		if tagInfo.Ignore {
			continue
		}

		param := ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Index:    i,
			Optional: tagInfo.Optional,
			Many:     tagInfo.Many,
		}
		if tagInfo.Name != "" {
			param.Key = tagInfo.Name
		}

		if param.Many {
			if field.Type.Kind() != reflect.Slice {
				return fmt.Errorf("field %s: many field must be a slice, got %v", field.Name, field.Type.Kind())
			}
			param.ElemType = field.Type.Elem()
		}

		params = append(params, param)
	}

	info.Parameters = params
	return nil
}

// ParseFieldTags parses struct field tags for injection annotations.
func ParseFieldTags(tag reflect.StructTag) TagInfo {
	info := TagInfo{}

	if val, ok := tag.Lookup("optional"); ok {
		info.Optional = val == "true"
	}

	if val, ok := tag.Lookup("name"); ok {
		info.Name = val
	}

	if val, ok := tag.Lookup("many"); ok {
		info.Many = val == "true"
	}

	if val, ok := tag.Lookup("inject"); ok && val == "-" {
		info.Ignore = true
	}

	return info
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	n := 0
	a.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// hasEmbeddedIn checks if a struct, or pointer to struct, embeds In.
func hasEmbeddedIn(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}

	return false
}
