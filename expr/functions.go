package expr

import (
	"fmt"
	"math"
	"sort"
)

// FunctionSpec describes a named scalar function: its arity (-1 for
// variadic), its numeric evaluation and its symbolic partial derivatives.
// Partials returns one derivative per argument; a nil Partials marks the
// function as non-differentiable.
type FunctionSpec struct {
	Name     string
	Arity    int
	Eval     func(args []float64) float64
	Partials func(b *Builder, args []*Node) []*Node
}

// FunctionTable maps names to function specs. Each parser, engine and
// evaluator holds its own table; there is no process-wide registry.
type FunctionTable struct {
	specs map[string]*FunctionSpec
}

// NewFunctionTable returns a table holding the builtin functions
func NewFunctionTable() *FunctionTable {
	t := &FunctionTable{specs: make(map[string]*FunctionSpec)}
	for _, spec := range builtinFunctions() {
		s := spec
		t.specs[s.Name] = &s
	}
	return t
}

// Register adds or replaces a function
func (t *FunctionTable) Register(spec FunctionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("function needs a name")
	}
	if spec.Eval == nil {
		return fmt.Errorf("function %s needs an evaluation rule", spec.Name)
	}
	if spec.Arity == 0 || spec.Arity < -1 {
		return fmt.Errorf("function %s has invalid arity %d", spec.Name, spec.Arity)
	}
	s := spec
	t.specs[s.Name] = &s
	return nil
}

// Lookup returns the spec of a function
func (t *FunctionTable) Lookup(name string) (*FunctionSpec, bool) {
	s, ok := t.specs[name]
	return s, ok
}

// Names lists the registered functions in sorted order
func (t *FunctionTable) Names() []string {
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies the table so that registrations do not leak between owners
func (t *FunctionTable) Clone() *FunctionTable {
	c := &FunctionTable{specs: make(map[string]*FunctionSpec, len(t.specs))}
	for k, v := range t.specs {
		s := *v
		c.specs[k] = &s
	}
	return c
}

// Evaluate applies a function to numeric arguments
func (t *FunctionTable) Evaluate(name string, args []float64) (float64, error) {
	spec, ok := t.specs[name]
	if !ok {
		return 0, &UnsupportedError{Op: "evaluate unknown function " + name}
	}
	if spec.Arity >= 0 && len(args) != spec.Arity {
		return 0, fmt.Errorf("function %s takes %d arguments, got %d", name, spec.Arity, len(args))
	}
	return spec.Eval(args), nil
}

func unary(name string, f func(float64) float64, d func(b *Builder, x *Node) *Node) FunctionSpec {
	return FunctionSpec{
		Name:  name,
		Arity: 1,
		Eval:  func(args []float64) float64 { return f(args[0]) },
		Partials: func(b *Builder, args []*Node) []*Node {
			return []*Node{d(b, args[0])}
		},
	}
}

// Double-well potential W(c) = (c²-1)² and its derivatives
func doubleWell(c float64) float64   { return (c*c - 1) * (c*c - 1) }
func doubleWellD1(c float64) float64 { return 4 * c * (c*c - 1) }
func doubleWellD2(c float64) float64 { return 12*c*c - 4 }

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func builtinFunctions() []FunctionSpec {
	return []FunctionSpec{
		unary("sin", math.Sin, func(b *Builder, x *Node) *Node { return b.Call("cos", x) }),
		unary("cos", math.Cos, func(b *Builder, x *Node) *Node { return b.Neg(b.Call("sin", x)) }),
		unary("tan", math.Tan, func(b *Builder, x *Node) *Node {
			return b.Div(b.Real(1), b.PowReal(b.Call("cos", x), 2))
		}),
		unary("exp", math.Exp, func(b *Builder, x *Node) *Node { return b.Call("exp", x) }),
		unary("log", math.Log, func(b *Builder, x *Node) *Node { return b.Div(b.Real(1), x) }),
		unary("sqrt", math.Sqrt, func(b *Builder, x *Node) *Node {
			return b.Div(b.Real(0.5), b.Call("sqrt", x))
		}),
		unary("abs", math.Abs, func(b *Builder, x *Node) *Node { return b.Call("sign", x) }),
		unary("sign", sign, func(b *Builder, x *Node) *Node { return b.Real(0) }),
		unary("tanh", math.Tanh, func(b *Builder, x *Node) *Node {
			return b.Sub(b.Real(1), b.PowReal(b.Call("tanh", x), 2))
		}),
		unary("sinh", math.Sinh, func(b *Builder, x *Node) *Node { return b.Call("cosh", x) }),
		unary("cosh", math.Cosh, func(b *Builder, x *Node) *Node { return b.Call("sinh", x) }),
		unary("W", doubleWell, func(b *Builder, x *Node) *Node { return b.Call("dW_dc", x) }),
		unary("dW_dc", doubleWellD1, func(b *Builder, x *Node) *Node { return b.Call("d2W_dc2", x) }),
		unary("d2W_dc2", doubleWellD2, func(b *Builder, x *Node) *Node { return b.Scale(24, x) }),
	}
}
