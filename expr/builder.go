package expr

import (
	"go.uber.org/multierr"

	"github.com/notargets/DGWeakForm/tensor"
)

// Builder wraps an Arena with a sticky error so that long chains of node
// construction can be written without checking every step. A failed
// construction records its error and yields a scalar zero placeholder;
// callers must check Err before using the result.
type Builder struct {
	arena *Arena
	err   error
}

func NewBuilder(a *Arena) *Builder { return &Builder{arena: a} }

func (b *Builder) Arena() *Arena { return b.arena }

// Err returns every construction failure recorded so far
func (b *Builder) Err() error { return b.err }

// Fail records an error
func (b *Builder) Fail(err error) {
	b.err = multierr.Append(b.err, err)
}

func (b *Builder) check(n *Node, err error) *Node {
	if err != nil {
		b.Fail(err)
		return b.arena.Real(0)
	}
	return n
}

func (b *Builder) Real(x float64) *Node           { return b.arena.Real(x) }
func (b *Builder) Constant(v tensor.Value) *Node  { return b.arena.Constant(v) }
func (b *Builder) Zero(s tensor.Shape) *Node      { return b.arena.Zero(s) }
func (b *Builder) Identity() *Node                { return b.arena.Identity() }
func (b *Builder) Call(name string, args ...*Node) *Node {
	return b.arena.Function(name, args...)
}

func (b *Builder) Unary(op UnaryOp, x *Node) *Node {
	return b.check(b.arena.Unary(op, x))
}

func (b *Builder) Binary(op BinaryOp, l, r *Node) *Node {
	return b.check(b.arena.Binary(op, l, r))
}

func (b *Builder) Add(l, r *Node) *Node      { return b.Binary(OpAdd, l, r) }
func (b *Builder) Sub(l, r *Node) *Node      { return b.Binary(OpSub, l, r) }
func (b *Builder) Mul(l, r *Node) *Node      { return b.Binary(OpMul, l, r) }
func (b *Builder) Div(l, r *Node) *Node      { return b.Binary(OpDivide, l, r) }
func (b *Builder) Pow(l, r *Node) *Node      { return b.Binary(OpPow, l, r) }
func (b *Builder) Dot(l, r *Node) *Node      { return b.Binary(OpDot, l, r) }
func (b *Builder) Cross(l, r *Node) *Node    { return b.Binary(OpCross, l, r) }
func (b *Builder) Outer(l, r *Node) *Node    { return b.Binary(OpOuter, l, r) }
func (b *Builder) Contract(l, r *Node) *Node { return b.Binary(OpContract, l, r) }
func (b *Builder) Neg(x *Node) *Node         { return b.Unary(OpNegate, x) }
func (b *Builder) Grad(x *Node) *Node        { return b.Unary(OpGrad, x) }
func (b *Builder) Divergence(x *Node) *Node  { return b.Unary(OpDiv, x) }
func (b *Builder) Laplacian(x *Node) *Node   { return b.Unary(OpLaplacian, x) }

// PowReal raises x to a literal exponent
func (b *Builder) PowReal(x *Node, p float64) *Node { return b.Pow(x, b.Real(p)) }

// Scale multiplies x by a literal
func (b *Builder) Scale(c float64, x *Node) *Node { return b.Mul(b.Real(c), x) }

func (b *Builder) Vector(components ...*Node) *Node {
	return b.check(b.arena.VectorOf(components...))
}

func (b *Builder) Component(x *Node, i int) *Node {
	return b.check(b.arena.Component(x, i))
}

func (b *Builder) Component2(x *Node, i, j int) *Node {
	return b.check(b.arena.Component2(x, i, j))
}

// Product multiplies two coefficients, falling back to the outer product
// when both are vectors
func (b *Builder) Product(l, r *Node) *Node {
	if l.shape.IsVector() && r.shape.IsVector() && l.shape == r.shape {
		return b.Outer(l, r)
	}
	return b.Mul(l, r)
}

// Pair fully contracts two quantities of matching rank: scalar product,
// dot product or double contraction. Mismatched ranks fall back to Product.
func (b *Builder) Pair(l, r *Node) *Node {
	switch {
	case l.shape.IsVector() && l.shape == r.shape:
		return b.Dot(l, r)
	case l.shape.IsTensor() && l.shape == r.shape:
		return b.Contract(l, r)
	}
	return b.Product(l, r)
}

// Sum folds terms with Add; an empty sum is the scalar zero
func (b *Builder) Sum(terms ...*Node) *Node {
	if len(terms) == 0 {
		return b.Real(0)
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = b.Add(acc, t)
	}
	return acc
}
