// Package eval interprets expression DAGs against quadrature-point data.
//
// An Evaluator belongs to one kernel instance and one goroutine. It owns
// its parameter table and a per-call cache of node values, so shared
// sub-expressions are evaluated once per call.
package eval

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// FieldData is the value of a field and its derivatives at one point.
// Gradient and Hessian may be left unset when no expression needs them.
type FieldData struct {
	Value    tensor.Value
	Gradient tensor.Value
	Hessian  tensor.Value
}

// FunctionData is a test or shape function and its derivatives at one point
type FunctionData struct {
	Value    tensor.Value
	Gradient tensor.Value
	Hessian  tensor.Value
}

// Context is everything the host supplies for one evaluation. Test and
// Shape are keyed by variable name.
type Context struct {
	Fields     map[string]FieldData
	Test       map[string]FunctionData
	Shape      map[string]FunctionData
	Position   tensor.Value
	Time       float64
	Parameters *Parameters
}

type Evaluator struct {
	funcs  *expr.FunctionTable
	params *Parameters
	log    *logrus.Entry
	cache  map[expr.NodeID]tensor.Value
}

type Option func(*Evaluator)

func WithFunctions(ft *expr.FunctionTable) Option {
	return func(e *Evaluator) { e.funcs = ft }
}

// WithParameters sets the evaluator's own parameters, consulted after
// those of the context
func WithParameters(p *Parameters) Option {
	return func(e *Evaluator) { e.params = p }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Evaluator) { e.log = log }
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{cache: make(map[expr.NodeID]tensor.Value)}
	for _, opt := range opts {
		opt(e)
	}
	if e.funcs == nil {
		e.funcs = expr.NewFunctionTable()
	}
	if e.log == nil {
		e.log = logrus.WithField("component", "eval")
	}
	return e
}

func (e *Evaluator) Parameters() *Parameters { return e.params }

// Evaluate computes n at the point described by ctx
func (e *Evaluator) Evaluate(n *expr.Node, ctx *Context) (tensor.Value, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	for k := range e.cache {
		delete(e.cache, k)
	}
	v, err := e.eval(n, ctx)
	if err != nil {
		return tensor.Value{}, errors.Wrapf(err, "evaluating %s", n)
	}
	return v, nil
}

// EvaluateScalar evaluates a scalar-valued expression
func (e *Evaluator) EvaluateScalar(n *expr.Node, ctx *Context) (float64, error) {
	v, err := e.Evaluate(n, ctx)
	if err != nil {
		return 0, err
	}
	x, ok := v.Scalar()
	if !ok {
		return 0, &tensor.ShapeError{Op: "evaluate", Shapes: []tensor.Shape{v.Shape()}, Reason: "expected a scalar"}
	}
	return x, nil
}

func (e *Evaluator) eval(n *expr.Node, ctx *Context) (tensor.Value, error) {
	if v, ok := e.cache[n.ID()]; ok {
		return v, nil
	}
	v, err := e.node(n, ctx)
	if err != nil {
		return tensor.Value{}, err
	}
	e.cache[n.ID()] = v
	return v, nil
}

func (e *Evaluator) node(n *expr.Node, ctx *Context) (tensor.Value, error) {
	switch n.Kind() {
	case expr.KindConstant:
		return n.Value(), nil
	case expr.KindVariable, expr.KindField:
		return e.resolve(n.Name(), ctx)
	case expr.KindTestFunction:
		return basis(n, ctx.Test, "test")
	case expr.KindShapeFunction:
		return basis(n, ctx.Shape, "phi")
	case expr.KindUnary:
		return e.unary(n, ctx)
	case expr.KindBinary:
		l, err := e.eval(n.Left(), ctx)
		if err != nil {
			return tensor.Value{}, err
		}
		r, err := e.eval(n.Right(), ctx)
		if err != nil {
			return tensor.Value{}, err
		}
		return binary(n.BinaryOp(), l, r)
	case expr.KindFunction:
		args := make([]float64, n.NumChildren())
		for i, c := range n.Children() {
			x, err := e.scalar(c, ctx)
			if err != nil {
				return tensor.Value{}, err
			}
			args[i] = x
		}
		y, err := e.funcs.Evaluate(n.Name(), args)
		if err != nil {
			return tensor.Value{}, err
		}
		return tensor.Real(y), nil
	case expr.KindVector:
		xs := make([]float64, n.NumChildren())
		for i, c := range n.Children() {
			x, err := e.scalar(c, ctx)
			if err != nil {
				return tensor.Value{}, err
			}
			xs[i] = x
		}
		return tensor.NewVector(xs...), nil
	case expr.KindComponent:
		x, err := e.eval(n.Operand(), ctx)
		if err != nil {
			return tensor.Value{}, err
		}
		i, j := n.Index()
		if j >= 0 {
			return tensor.Component2(x, i, j)
		}
		return tensor.Component(x, i)
	}
	return tensor.Value{}, expr.Unsupported("evaluate "+n.Kind().String(), n)
}

func (e *Evaluator) scalar(n *expr.Node, ctx *Context) (float64, error) {
	v, err := e.eval(n, ctx)
	if err != nil {
		return 0, err
	}
	x, ok := v.Scalar()
	if !ok {
		return 0, &tensor.ShapeError{Op: "evaluate", Shapes: []tensor.Shape{v.Shape()},
			Reason: fmt.Sprintf("%s must be a scalar", n)}
	}
	return x, nil
}

// resolve looks a name up in the context parameters, the evaluator
// parameters, the fields, then the time and coordinate symbols
func (e *Evaluator) resolve(name string, ctx *Context) (tensor.Value, error) {
	if v, ok := ctx.Parameters.Lookup(name); ok {
		return v, nil
	}
	if v, ok := e.params.Lookup(name); ok {
		return v, nil
	}
	if f, ok := ctx.Fields[name]; ok && f.Value.Valid() {
		return f.Value, nil
	}
	switch name {
	case "t", "time":
		return tensor.Real(ctx.Time), nil
	case "x", "y", "z":
		i := int(name[0] - 'x')
		if ctx.Position.Valid() && ctx.Position.Shape().IsVector() && i < ctx.Position.Shape().Dim {
			return tensor.Real(ctx.Position.At(i)), nil
		}
	}
	return tensor.Value{}, &expr.UnboundNameError{Name: name}
}

func basis(n *expr.Node, data map[string]FunctionData, fn string) (tensor.Value, error) {
	d, ok := data[n.Name()]
	v := d.Value
	if n.IsGradient() {
		v = d.Gradient
	}
	if !ok || !v.Valid() {
		return tensor.Value{}, &expr.UnboundNameError{Name: fmt.Sprintf("%s(%s)", fn, n.Name())}
	}
	comp, _ := n.Index()
	switch {
	case comp < 0:
		return v, nil
	case n.IsGradient():
		return tensor.Row(v, comp)
	}
	return tensor.Component(v, comp)
}

func binary(op expr.BinaryOp, l, r tensor.Value) (tensor.Value, error) {
	switch op {
	case expr.OpAdd:
		return tensor.Add(l, r)
	case expr.OpSub:
		return tensor.Sub(l, r)
	case expr.OpMul:
		return tensor.Mul(l, r)
	case expr.OpDivide:
		return tensor.Div(l, r)
	case expr.OpPow:
		return tensor.Pow(l, r)
	case expr.OpDot:
		return tensor.Dot(l, r)
	case expr.OpCross:
		return tensor.Cross(l, r)
	case expr.OpOuter:
		return tensor.Outer(l, r)
	case expr.OpContract:
		return tensor.Contract(l, r)
	}
	return tensor.Value{}, &expr.UnsupportedError{Op: "evaluate " + op.String()}
}
