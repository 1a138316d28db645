package eval

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGWeakForm/tensor"
)

// ParamKind is the declared rank of a parameter
type ParamKind int

const (
	KindScalar ParamKind = iota
	KindVector
	KindTensor
)

func (k ParamKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindTensor:
		return "tensor"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParamBuilder provides a fluent interface for declaring parameters
type ParamBuilder struct {
	spec ParamSpec
}

// ParamSpec holds a declared parameter and its bound value
type ParamSpec struct {
	Name    string
	Kind    ParamKind
	Binding interface{}
	Value   tensor.Value
	err     error
}

// Scalar declares a scalar parameter
func Scalar(name string) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: KindScalar}}
}

// Vector declares a vector parameter
func Vector(name string) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: KindVector}}
}

// Tensor declares a rank-2 tensor parameter
func Tensor(name string) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: KindTensor}}
}

// Bind associates a host value: a float or int for scalars, a []float64
// for vectors, a square mat.Matrix for tensors, or a tensor.Value
func (p *ParamBuilder) Bind(host interface{}) *ParamBuilder {
	p.spec.Binding = host
	p.spec.Value, p.spec.err = convert(host)
	return p
}

// Spec returns the accumulated parameter description
func (p *ParamBuilder) Spec() ParamSpec { return p.spec }

func convert(host interface{}) (tensor.Value, error) {
	switch h := host.(type) {
	case nil:
		return tensor.Value{}, nil
	case tensor.Value:
		return h, nil
	case mat.Matrix:
		return tensor.FromMatrix(h)
	case []float64:
		return tensor.NewVector(h...), nil
	}
	v := reflect.ValueOf(host)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return tensor.Real(v.Float()), nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return tensor.Real(float64(v.Int())), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Float32 {
			data := make([]float64, v.Len())
			for i := range data {
				data[i] = v.Index(i).Float()
			}
			return tensor.NewVector(data...), nil
		}
	}
	return tensor.Value{}, fmt.Errorf("cannot bind a %T", host)
}

// Validate checks that the parameter is named, bound and of its declared kind
func (s *ParamSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if s.err != nil {
		return fmt.Errorf("parameter %s: %w", s.Name, s.err)
	}
	if s.Binding == nil || !s.Value.Valid() {
		return fmt.Errorf("%s parameter %s needs a binding", s.Kind, s.Name)
	}
	shape := s.Value.Shape()
	ok := false
	switch s.Kind {
	case KindScalar:
		ok = shape.IsScalar()
	case KindVector:
		ok = shape.IsVector()
	case KindTensor:
		ok = shape.IsTensor()
	}
	if !ok {
		return fmt.Errorf("%s parameter %s bound to a %s value", s.Kind, s.Name, shape)
	}
	return nil
}

// Parameters is a typed, named parameter table owned by one evaluator or
// kernel
type Parameters struct {
	values map[string]tensor.Value
}

// NewParameters validates every declaration and reports all failures
// together
func NewParameters(builders ...*ParamBuilder) (*Parameters, error) {
	p := &Parameters{values: make(map[string]tensor.Value, len(builders))}
	var errs error
	for _, b := range builders {
		spec := b.Spec()
		if err := spec.Validate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, dup := p.values[spec.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("parameter %s declared twice", spec.Name))
			continue
		}
		p.values[spec.Name] = spec.Value
	}
	if errs != nil {
		return nil, errs
	}
	return p, nil
}

// Set replaces or adds a value
func (p *Parameters) Set(name string, v tensor.Value) {
	if p.values == nil {
		p.values = make(map[string]tensor.Value)
	}
	p.values[name] = v
}

// Lookup is safe on a nil table
func (p *Parameters) Lookup(name string) (tensor.Value, bool) {
	if p == nil {
		return tensor.Value{}, false
	}
	v, ok := p.values[name]
	return v, ok
}

func (p *Parameters) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}
