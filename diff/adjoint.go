package diff

import (
	"fmt"
	"sort"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// adjoint differentiates a scalar node built from tensor algebra, such as
// trace(transpose(F)*F) or det(F). The sensitivity ∂n/∂m is pushed from n
// down through every tensor-valued algebraic operand m, so no coefficient
// ever needs a rank above two. The sweep stops at scalar operands and at
// nodes outside the algebra (fields, derivatives, vectors), whose own
// Differentials are composed with the sensitivity that reached them.
func (e *Engine) adjoint(n *expr.Node, v string) (Differential, error) {
	interior := func(m *expr.Node) bool {
		return m.ID() == n.ID() || (!m.Shape().IsScalar() && algebraic(m))
	}
	nodes := make(map[expr.NodeID]*expr.Node)
	var visit func(m *expr.Node)
	visit = func(m *expr.Node) {
		if _, ok := nodes[m.ID()]; ok {
			return
		}
		nodes[m.ID()] = m
		if !interior(m) {
			return
		}
		for _, x := range m.Children() {
			if x.DependsOn(v) {
				visit(x)
			}
		}
	}
	visit(n)

	// operands are created before their consumers, so descending ids
	// reach a node only after every path into it has been summed
	ids := make([]expr.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	acc := newAccumulator(e.arena)
	b := acc.b
	sens := map[expr.NodeID]*expr.Node{n.ID(): e.arena.Real(1)}
	push := func(x, g *expr.Node) {
		if !x.DependsOn(v) {
			return
		}
		if prev, ok := sens[x.ID()]; ok {
			sens[x.ID()] = b.Add(prev, g)
			return
		}
		sens[x.ID()] = g
	}
	for _, id := range ids {
		m, g := nodes[id], sens[id]
		if g == nil {
			continue
		}
		if interior(m) {
			if err := backward(b, m, g, push); err != nil {
				return nil, err
			}
			continue
		}
		dm, err := e.differentiate(m, v)
		if err != nil {
			return nil, err
		}
		for k, c := range dm {
			t, err := compose(b, m, g, c)
			if err != nil {
				return nil, err
			}
			acc.add(k, t)
		}
	}
	return acc.result()
}

func algebraic(m *expr.Node) bool {
	switch m.Kind() {
	case expr.KindUnary:
		return !m.UnaryOp().IsDerivative()
	case expr.KindBinary, expr.KindComponent:
		return true
	}
	return false
}

// backward pushes the sensitivity g of m onto its operands
func backward(b *expr.Builder, m *expr.Node, g *expr.Node, push func(x, g *expr.Node)) error {
	switch m.Kind() {
	case expr.KindComponent:
		x := m.Operand()
		dim := x.Shape().Dim
		i, j := m.Index()
		ei := b.Constant(tensor.Unit(dim, i))
		switch {
		case j >= 0:
			push(x, b.Mul(g, b.Outer(ei, b.Constant(tensor.Unit(dim, j)))))
		case x.Shape().IsTensor():
			// row i
			push(x, b.Outer(ei, g))
		default:
			push(x, b.Mul(g, ei))
		}
		return nil
	case expr.KindUnary:
		return backwardUnary(b, m, g, push)
	}
	return backwardBinary(b, m, g, push)
}

func backwardUnary(b *expr.Builder, m *expr.Node, g *expr.Node, push func(x, g *expr.Node)) error {
	x := m.Operand()
	switch op := m.UnaryOp(); op {
	case expr.OpNegate:
		push(x, b.Neg(g))
	case expr.OpTranspose, expr.OpSym, expr.OpSkew, expr.OpDev:
		// each is its own adjoint under A:B
		push(x, b.Unary(op, g))
	case expr.OpTrace:
		push(x, b.Mul(g, b.Identity()))
	case expr.OpDet:
		push(x, b.Mul(g, cofactor(b, x)))
	case expr.OpInverse:
		// G ↦ -A⁻ᵀ G A⁻ᵀ
		invT := b.Unary(expr.OpTranspose, b.Unary(expr.OpInverse, x))
		push(x, b.Neg(b.Mul(b.Mul(invT, g), invT)))
	case expr.OpNorm:
		push(x, b.Mul(g, b.Unary(expr.OpNormalize, x)))
	case expr.OpNormalize:
		if !x.Shape().IsVector() {
			return expr.Unsupported("differentiate normalize of a tensor", m)
		}
		push(x, b.Mul(projector(b, x), g))
	default:
		return expr.Unsupported("differentiate "+op.String(), m)
	}
	return nil
}

func backwardBinary(b *expr.Builder, m *expr.Node, g *expr.Node, push func(x, g *expr.Node)) error {
	l, r := m.Left(), m.Right()
	ls, rs := l.Shape(), r.Shape()
	transpose := func(x *expr.Node) *expr.Node { return b.Unary(expr.OpTranspose, x) }
	switch op := m.BinaryOp(); op {
	case expr.OpAdd:
		push(l, g)
		push(r, g)
	case expr.OpSub:
		push(l, g)
		push(r, b.Neg(g))
	case expr.OpMul:
		switch {
		case ls.IsScalar():
			push(l, b.Pair(g, r))
			push(r, b.Mul(l, g))
		case rs.IsScalar():
			push(l, b.Mul(r, g))
			push(r, b.Pair(g, l))
		case ls.IsTensor() && rs.IsVector():
			push(l, b.Outer(g, r))
			push(r, b.Mul(transpose(l), g))
		case ls.IsVector() && rs.IsTensor():
			push(l, b.Mul(r, g))
			push(r, b.Outer(l, g))
		default:
			// matrix product: G ↦ G Bᵀ, Aᵀ G
			push(l, b.Mul(g, transpose(r)))
			push(r, b.Mul(transpose(l), g))
		}
	case expr.OpDivide:
		push(l, b.Div(g, r))
		push(r, b.Neg(b.Div(b.Pair(g, l), b.PowReal(r, 2))))
	case expr.OpDot, expr.OpContract:
		push(l, b.Mul(g, r))
		push(r, b.Mul(g, l))
	case expr.OpOuter:
		push(l, b.Mul(g, r))
		push(r, b.Mul(transpose(g), l))
	case expr.OpCross:
		if ls.Dim == 2 {
			// a×b = a₀b₁ - a₁b₀
			push(l, b.Mul(g, b.Vector(b.Component(r, 1), b.Neg(b.Component(r, 0)))))
			push(r, b.Mul(g, b.Vector(b.Neg(b.Component(l, 1)), b.Component(l, 0))))
			return nil
		}
		push(l, b.Cross(r, g))
		push(r, b.Cross(g, l))
	default:
		return expr.Unsupported("differentiate "+op.String(), m)
	}
	return nil
}

// compose pairs the sensitivity g of a frontier node m with one of its
// coefficients c, giving the coefficient of the swept scalar
func compose(b *expr.Builder, m, g, c *expr.Node) (*expr.Node, error) {
	switch ms, cs := m.Shape(), c.Shape(); {
	case cs.IsScalar():
		// multiple of the identity, or m and its variation both scalar
		return b.Mul(c, g), nil
	case ms.IsScalar():
		return b.Mul(g, c), nil
	case cs == ms:
		// tangent: the variation is a scalar
		return b.Pair(c, g), nil
	case ms.IsVector() && cs.IsTensor():
		// Jacobian C: g·(C w) = (Cᵀ g)·w
		return b.Mul(b.Unary(expr.OpTranspose, c), g), nil
	}
	return nil, expr.Unsupported(fmt.Sprintf("compose a %s sensitivity with a %s coefficient", m.Shape(), c.Shape()), m)
}
