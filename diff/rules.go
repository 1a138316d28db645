package diff

import (
	"fmt"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// accumulator sums coefficients order by order
type accumulator struct {
	b *expr.Builder
	d Differential
}

func newAccumulator(a *expr.Arena) *accumulator {
	return &accumulator{b: expr.NewBuilder(a), d: Differential{}}
}

func (acc *accumulator) add(k int, c *expr.Node) {
	if prev, ok := acc.d[k]; ok {
		acc.d[k] = acc.b.Add(prev, c)
		return
	}
	acc.d[k] = c
}

func (acc *accumulator) result() (Differential, error) {
	if err := acc.b.Err(); err != nil {
		return nil, err
	}
	return acc.d, nil
}

// operator dispatches on how n maps its operands. Spatial derivatives
// shift orders, scalars reduced from tensors are swept in reverse, other
// tensor-valued nodes and scalar arithmetic go forward.
func (e *Engine) operator(n *expr.Node, v string) (Differential, error) {
	switch {
	case n.Kind() == expr.KindUnary && n.UnaryOp().IsDerivative():
		return e.derivative(n, v)
	case reducesTensor(n):
		return e.adjoint(n, v)
	case !n.Shape().IsScalar():
		return e.tensor(n, v)
	case n.Kind() == expr.KindBinary:
		return e.binary(n, v)
	case n.IsUnary(expr.OpNegate):
		dx, err := e.differentiate(n.Operand(), v)
		if err != nil {
			return nil, err
		}
		b := expr.NewBuilder(e.arena)
		return dx.mapCoefficients(b.Neg), b.Err()
	}
	return nil, expr.Unsupported("differentiate "+n.String(), n)
}

// reducesTensor reports a scalar node with a non-scalar operand
func reducesTensor(n *expr.Node) bool {
	if !n.Shape().IsScalar() {
		return false
	}
	for _, x := range n.Children() {
		if !x.Shape().IsScalar() {
			return true
		}
	}
	return false
}

func (e *Engine) derivative(n *expr.Node, v string) (Differential, error) {
	dx, err := e.differentiate(n.Operand(), v)
	if err != nil {
		return nil, err
	}
	switch n.UnaryOp() {
	case expr.OpDiv:
		return dx.shift(-1), nil
	case expr.OpLaplacian:
		return dx.shift(2), nil
	}
	return dx.shift(1), nil
}

// tensor differentiates a tensor-valued node forward. An operand
// coefficient with the operand's own shape is a tangent and goes through
// the exact variation. A scalar coefficient of a tensor operand stands for
// a multiple of the identity map, and a rank-2 coefficient of a vector
// operand for a Jacobian; those survive only maps that act on them without
// raising the rank.
func (e *Engine) tensor(n *expr.Node, v string) (Differential, error) {
	acc := newAccumulator(e.arena)
	for i, x := range n.Children() {
		dx, err := e.differentiate(x, v)
		if err != nil {
			return nil, err
		}
		for k, c := range dx {
			t, err := forward(acc.b, n, i, c)
			if err != nil {
				return nil, err
			}
			acc.add(k, t)
		}
	}
	return acc.result()
}

func forward(b *expr.Builder, n *expr.Node, i int, c *expr.Node) (*expr.Node, error) {
	x := n.Child(i)
	if c.Shape() == x.Shape() {
		return variation(b, n, i, c)
	}
	var other *expr.Node
	if n.Kind() == expr.KindBinary {
		other = n.Child(1 - i)
	}
	switch {
	case n.IsUnary(expr.OpNegate):
		return b.Neg(c), nil
	case n.IsBinary(expr.OpAdd):
		return c, nil
	case n.IsBinary(expr.OpSub) && i == 1:
		return b.Neg(c), nil
	case n.IsBinary(expr.OpSub):
		return c, nil
	case n.IsBinary(expr.OpMul) && other.Shape().IsScalar():
		if i == 1 {
			return b.Mul(other, c), nil
		}
		return b.Mul(c, other), nil
	case n.IsBinary(expr.OpDivide) && i == 0:
		return b.Div(c, other), nil
	case n.IsBinary(expr.OpMul) && i == 1 && x.Shape().IsVector() && c.Shape().IsTensor() && other.Shape().IsTensor():
		// A x with Jacobian C: A C
		return b.Mul(other, c), nil
	case n.IsBinary(expr.OpMul) && x.Shape().IsScalar() && c.Shape().IsVector() && other.Shape().IsVector():
		// s a with s = c·w: Jacobian a⊗c
		return b.Outer(other, c), nil
	}
	return nil, expr.Unsupported(fmt.Sprintf("differentiate %s with a %s coefficient of %s; only scalars reduced from it can be differentiated",
		n, c.Shape(), x), n)
}

// binary differentiates scalar arithmetic. Coefficients of the operands
// may be duals of any shape, so products go through Product.
func (e *Engine) binary(n *expr.Node, v string) (Differential, error) {
	l, r := n.Left(), n.Right()
	dl, err := e.differentiate(l, v)
	if err != nil {
		return nil, err
	}
	dr, err := e.differentiate(r, v)
	if err != nil {
		return nil, err
	}
	acc := newAccumulator(e.arena)
	b := acc.b
	switch op := n.BinaryOp(); op {
	case expr.OpAdd:
		for k, c := range dl {
			acc.add(k, c)
		}
		for k, c := range dr {
			acc.add(k, c)
		}
	case expr.OpSub:
		for k, c := range dl {
			acc.add(k, c)
		}
		for k, c := range dr {
			acc.add(k, b.Neg(c))
		}
	case expr.OpMul:
		// (lr)' = l'r + lr'
		for k, c := range dl {
			acc.add(k, b.Product(c, r))
		}
		for k, c := range dr {
			acc.add(k, b.Product(l, c))
		}
	case expr.OpDivide:
		// (l/r)' = l'/r - l r'/r²
		for k, c := range dl {
			acc.add(k, b.Div(c, r))
		}
		for k, c := range dr {
			acc.add(k, b.Neg(b.Div(b.Product(l, c), b.PowReal(r, 2))))
		}
	case expr.OpPow:
		if !dr.IsEmpty() {
			return nil, expr.Unsupported("differentiate a power whose exponent depends on "+v, n)
		}
		// (l^p)' = p l^(p-1) l'
		scale := b.Mul(r, b.Pow(l, b.Sub(r, b.Real(1))))
		for k, c := range dl {
			acc.add(k, b.Mul(scale, c))
		}
	default:
		return nil, expr.Unsupported("differentiate "+op.String(), n)
	}
	return acc.result()
}

func (e *Engine) function(n *expr.Node, v string) (Differential, error) {
	spec, ok := e.funcs.Lookup(n.Name())
	if !ok || spec.Partials == nil {
		return nil, expr.Unsupported(fmt.Sprintf("differentiate function %s", n.Name()), n)
	}
	acc := newAccumulator(e.arena)
	args := n.Children()
	partials := spec.Partials(acc.b, args)
	if len(partials) != len(args) {
		return nil, fmt.Errorf("function %s returned %d partials for %d arguments", n.Name(), len(partials), len(args))
	}
	for i, arg := range args {
		da, err := e.differentiate(arg, v)
		if err != nil {
			return nil, err
		}
		for k, c := range da {
			acc.add(k, acc.b.Mul(partials[i], c))
		}
	}
	return acc.result()
}

// vector differentiates vec(a0, a1, ...). Scalar coefficients assemble into
// a vector, vector coefficients into Σ eᵢ⊗cᵢ.
func (e *Engine) vector(n *expr.Node, v string) (Differential, error) {
	dim := n.NumChildren()
	byOrder := make(map[int][]*expr.Node)
	for i := 0; i < dim; i++ {
		da, err := e.differentiate(n.Child(i), v)
		if err != nil {
			return nil, err
		}
		for k, c := range da {
			if byOrder[k] == nil {
				byOrder[k] = make([]*expr.Node, dim)
			}
			byOrder[k][i] = c
		}
	}
	acc := newAccumulator(e.arena)
	b := acc.b
	for k, coefs := range byOrder {
		var shape *tensor.Shape
		for _, c := range coefs {
			if c == nil {
				continue
			}
			if s := c.Shape(); shape == nil {
				shape = &s
			} else if *shape != s {
				return nil, expr.Unsupported("differentiate vector with mixed coefficient shapes", n)
			}
		}
		switch {
		case shape.IsScalar():
			parts := make([]*expr.Node, dim)
			for i, c := range coefs {
				if c == nil {
					c = b.Real(0)
				}
				parts[i] = c
			}
			acc.add(k, b.Vector(parts...))
		case shape.IsVector():
			for i, c := range coefs {
				if c != nil {
					acc.add(k, b.Outer(b.Constant(tensor.Unit(dim, i)), c))
				}
			}
		default:
			return nil, expr.Unsupported("differentiate vector with "+shape.String()+" coefficients", n)
		}
	}
	return acc.result()
}
