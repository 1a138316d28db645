package eval

import (
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// jet holds a quantity and its first two spatial derivatives as supplied
// by the host. Unset entries are invalid values.
type jet struct {
	value, grad, hess tensor.Value
}

// jetOf returns the derivative data of x. Only fields, variables with
// field data, test and shape functions, and gradients of those carry
// derivatives at a quadrature point.
func jetOf(x *expr.Node, ctx *Context) (jet, bool) {
	switch x.Kind() {
	case expr.KindField, expr.KindVariable:
		f, ok := ctx.Fields[x.Name()]
		return jet{f.Value, f.Gradient, f.Hessian}, ok
	case expr.KindTestFunction, expr.KindShapeFunction:
		data := ctx.Test
		if x.Kind() == expr.KindShapeFunction {
			data = ctx.Shape
		}
		d, ok := data[x.Name()]
		if !ok {
			return jet{}, false
		}
		if comp, _ := x.Index(); comp >= 0 {
			if x.IsGradient() || !d.Gradient.Valid() {
				return jet{}, false
			}
			v, err := tensor.Component(d.Value, comp)
			if err != nil {
				return jet{}, false
			}
			row, err := tensor.Row(d.Gradient, comp)
			if err != nil {
				return jet{}, false
			}
			return jet{value: v, grad: row}, true
		}
		if x.IsGradient() {
			return jet{value: d.Gradient, grad: d.Hessian}, true
		}
		return jet{d.Value, d.Gradient, d.Hessian}, true
	case expr.KindUnary:
		if x.UnaryOp() == expr.OpGrad {
			j, ok := jetOf(x.Operand(), ctx)
			return jet{value: j.grad, grad: j.hess}, ok
		}
	}
	return jet{}, false
}

func (e *Evaluator) unary(n *expr.Node, ctx *Context) (tensor.Value, error) {
	op := n.UnaryOp()
	if op.IsDerivative() {
		return spatial(n, ctx)
	}
	x, err := e.eval(n.Operand(), ctx)
	if err != nil {
		return tensor.Value{}, err
	}
	switch op {
	case expr.OpNegate:
		return tensor.Neg(x), nil
	case expr.OpTrace:
		return tensor.Trace(x)
	case expr.OpDet:
		return tensor.Det(x)
	case expr.OpInverse:
		return tensor.Inverse(x)
	case expr.OpTranspose:
		return tensor.Transpose(x)
	case expr.OpSym:
		return tensor.Sym(x)
	case expr.OpSkew:
		return tensor.Skew(x)
	case expr.OpDev:
		return tensor.Dev(x)
	case expr.OpNorm:
		return tensor.Norm(x)
	case expr.OpNormalize:
		return tensor.Normalize(x)
	}
	return tensor.Value{}, expr.Unsupported("evaluate "+op.String(), n)
}

func spatial(n *expr.Node, ctx *Context) (tensor.Value, error) {
	op := n.UnaryOp()
	j, ok := jetOf(n.Operand(), ctx)
	if !ok {
		return tensor.Value{}, expr.Unsupported(op.String()+" of an expression without field data", n)
	}
	missing := func(what string) error {
		return expr.Unsupported(op.String()+" needs the "+what+" of "+n.Operand().String(), n)
	}
	switch op {
	case expr.OpGrad:
		if !j.grad.Valid() {
			return tensor.Value{}, missing("gradient")
		}
		return j.grad, nil
	case expr.OpDiv:
		if !j.grad.Valid() {
			return tensor.Value{}, missing("gradient")
		}
		return tensor.Trace(j.grad)
	case expr.OpLaplacian:
		if !j.hess.Valid() {
			return tensor.Value{}, missing("hessian")
		}
		return tensor.Trace(j.hess)
	case expr.OpCurl:
		if !j.grad.Valid() {
			return tensor.Value{}, missing("gradient")
		}
		return curl(j.grad)
	}
	return tensor.Value{}, expr.Unsupported("evaluate "+op.String(), n)
}

// curl of a vector whose gradient is g, g[i][j] = ∂v_i/∂x_j
func curl(g tensor.Value) (tensor.Value, error) {
	if !g.Shape().IsTensor() {
		return tensor.Value{}, &tensor.ShapeError{Op: "curl", Shapes: []tensor.Shape{g.Shape()},
			Reason: "needs the gradient of a vector"}
	}
	switch g.Shape().Dim {
	case 2:
		return tensor.Real(g.At2(1, 0) - g.At2(0, 1)), nil
	case 3:
		return tensor.NewVector(
			g.At2(2, 1)-g.At2(1, 2),
			g.At2(0, 2)-g.At2(2, 0),
			g.At2(1, 0)-g.At2(0, 1),
		), nil
	}
	return tensor.Value{}, &tensor.ShapeError{Op: "curl", Shapes: []tensor.Shape{g.Shape()},
		Reason: "needs a 2D or 3D vector"}
}
