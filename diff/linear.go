package diff

import (
	"github.com/notargets/DGWeakForm/expr"
)

// variation is the change of n when only its operand i changes by dc,
// where dc has the shape of that operand. Every operator is linear in
// each operand separately, so the full variation is the sum over operands.
func variation(b *expr.Builder, n *expr.Node, i int, dc *expr.Node) (*expr.Node, error) {
	switch n.Kind() {
	case expr.KindUnary:
		return unaryVariation(b, n, dc)
	case expr.KindBinary:
		return binaryVariation(b, n, i, dc)
	case expr.KindComponent:
		ci, cj := n.Index()
		if cj >= 0 {
			return b.Component2(dc, ci, cj), nil
		}
		return b.Component(dc, ci), nil
	}
	return nil, expr.Unsupported("vary "+n.Kind().String(), n)
}

func unaryVariation(b *expr.Builder, n *expr.Node, dc *expr.Node) (*expr.Node, error) {
	x := n.Operand()
	switch op := n.UnaryOp(); op {
	case expr.OpNegate, expr.OpGrad, expr.OpDiv, expr.OpLaplacian, expr.OpCurl,
		expr.OpTrace, expr.OpTranspose, expr.OpSym, expr.OpSkew, expr.OpDev:
		return b.Unary(op, dc), nil
	case expr.OpDet:
		// Jacobi: d det(A) = det(A) A⁻ᵀ : dA
		return b.Contract(cofactor(b, x), dc), nil
	case expr.OpInverse:
		// d A⁻¹ = -A⁻¹ dA A⁻¹
		inv := b.Unary(expr.OpInverse, x)
		return b.Neg(b.Mul(b.Mul(inv, dc), inv)), nil
	case expr.OpNorm:
		return b.Pair(b.Unary(expr.OpNormalize, x), dc), nil
	case expr.OpNormalize:
		if !x.Shape().IsVector() {
			return nil, expr.Unsupported("vary normalize of a tensor", n)
		}
		return b.Mul(projector(b, x), dc), nil
	default:
		return nil, expr.Unsupported("vary "+op.String(), n)
	}
}

func binaryVariation(b *expr.Builder, n *expr.Node, i int, dc *expr.Node) (*expr.Node, error) {
	x, y := n.Left(), n.Right()
	switch op := n.BinaryOp(); op {
	case expr.OpAdd:
		return dc, nil
	case expr.OpSub:
		if i == 1 {
			return b.Neg(dc), nil
		}
		return dc, nil
	case expr.OpMul, expr.OpDot, expr.OpCross, expr.OpOuter, expr.OpContract:
		if i == 1 {
			return b.Binary(op, x, dc), nil
		}
		return b.Binary(op, dc, y), nil
	case expr.OpDivide:
		if i == 1 {
			return b.Neg(b.Div(b.Mul(x, dc), b.PowReal(y, 2))), nil
		}
		return b.Div(dc, y), nil
	case expr.OpPow:
		if i == 1 {
			return nil, expr.Unsupported("vary the exponent of a power", n)
		}
		return b.Mul(b.Mul(y, b.Pow(x, b.Sub(y, b.Real(1)))), dc), nil
	default:
		return nil, expr.Unsupported("vary "+op.String(), n)
	}
}

// cofactor is det(A) A⁻ᵀ
func cofactor(b *expr.Builder, a *expr.Node) *expr.Node {
	return b.Mul(b.Unary(expr.OpDet, a), b.Unary(expr.OpTranspose, b.Unary(expr.OpInverse, a)))
}

// projector is (I - n⊗n)/|a| with n = a/|a|, the derivative of normalize
func projector(b *expr.Builder, a *expr.Node) *expr.Node {
	unit := b.Unary(expr.OpNormalize, a)
	return b.Div(b.Sub(b.Identity(), b.Outer(unit, unit)), b.Unary(expr.OpNorm, a))
}
