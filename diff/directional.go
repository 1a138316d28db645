package diff

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/DGWeakForm/expr"
)

// linearizer computes Gateaux derivatives d/dε x(v + ε δ) at ε = 0. A nil
// result means the node does not depend on v.
type linearizer struct {
	e        *Engine
	b        *expr.Builder
	variable string
	delta    *expr.Node
	memo     map[expr.NodeID]*expr.Node
}

// Directional returns the derivative of x with respect to variable in the
// direction delta, typically the shape function of variable. Unlike
// Differentiate it never needs coefficients of rank above two, so it also
// linearizes tensor-valued residual coefficients.
func (e *Engine) Directional(x *expr.Node, variable string, delta *expr.Node) (*expr.Node, error) {
	l := &linearizer{
		e:        e,
		b:        expr.NewBuilder(e.arena),
		variable: variable,
		delta:    delta,
		memo:     make(map[expr.NodeID]*expr.Node),
	}
	d, err := l.linearize(x)
	if err == nil {
		err = l.b.Err()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "linearizing %s with respect to %s", x, variable)
	}
	if d == nil {
		d = e.arena.Zero(x.Shape())
	}
	d, err = e.simp.Simplify(d)
	if err != nil {
		return nil, err
	}
	e.log.Debugf("δ%s %s = %s", variable, x, d)
	return d, nil
}

func (l *linearizer) linearize(n *expr.Node) (*expr.Node, error) {
	if !n.DependsOn(l.variable) {
		return nil, nil
	}
	if d, ok := l.memo[n.ID()]; ok {
		return d, nil
	}
	d, err := l.rule(n)
	if err != nil {
		return nil, err
	}
	l.memo[n.ID()] = d
	return d, nil
}

func (l *linearizer) rule(n *expr.Node) (*expr.Node, error) {
	b := l.b
	switch n.Kind() {
	case expr.KindVariable, expr.KindField:
		return l.delta, nil
	case expr.KindUnary:
		return l.unary(n)
	case expr.KindBinary:
		return l.binary(n)
	case expr.KindFunction:
		spec, ok := l.e.funcs.Lookup(n.Name())
		if !ok || spec.Partials == nil {
			return nil, expr.Unsupported(fmt.Sprintf("linearize function %s", n.Name()), n)
		}
		args := n.Children()
		partials := spec.Partials(b, args)
		var acc *expr.Node
		for i, arg := range args {
			da, err := l.linearize(arg)
			if err != nil {
				return nil, err
			}
			acc = l.add(acc, l.mul(partials[i], da))
		}
		return acc, nil
	case expr.KindVector:
		parts := make([]*expr.Node, n.NumChildren())
		for i, c := range n.Children() {
			dc, err := l.linearize(c)
			if err != nil {
				return nil, err
			}
			if dc == nil {
				dc = b.Real(0)
			}
			parts[i] = dc
		}
		return b.Vector(parts...), nil
	case expr.KindComponent:
		dx, err := l.linearize(n.Operand())
		if err != nil || dx == nil {
			return nil, err
		}
		return variation(b, n, 0, dx)
	}
	return nil, nil
}

func (l *linearizer) unary(n *expr.Node) (*expr.Node, error) {
	dx, err := l.linearize(n.Operand())
	if err != nil || dx == nil {
		return nil, err
	}
	if n.IsUnary(expr.OpGrad) {
		return l.grad(dx)
	}
	return variation(l.b, n, 0, dx)
}

// grad of the direction itself is the gradient basis node, so the result
// prints and evaluates as grad(phi(v))
func (l *linearizer) grad(dx *expr.Node) (*expr.Node, error) {
	if comp, _ := dx.Index(); dx.ID() == l.delta.ID() && !dx.IsGradient() && comp < 0 {
		switch dx.Kind() {
		case expr.KindShapeFunction:
			return l.e.arena.ShapeFunction(dx.Name(), dx.Shape(), -1, true)
		case expr.KindTestFunction:
			return l.e.arena.TestFunction(dx.Name(), dx.Shape(), -1, true)
		}
	}
	return l.b.Grad(dx), nil
}

func (l *linearizer) binary(n *expr.Node) (*expr.Node, error) {
	var acc *expr.Node
	for i, x := range n.Children() {
		dx, err := l.linearize(x)
		if err != nil {
			return nil, err
		}
		if dx == nil {
			continue
		}
		if n.IsBinary(expr.OpPow) && i == 1 {
			return nil, expr.Unsupported("linearize a power whose exponent depends on "+l.variable, n)
		}
		t, err := variation(l.b, n, i, dx)
		if err != nil {
			return nil, err
		}
		acc = l.add(acc, t)
	}
	return acc, nil
}

func (l *linearizer) add(a, c *expr.Node) *expr.Node {
	switch {
	case a == nil:
		return c
	case c == nil:
		return a
	}
	return l.b.Add(a, c)
}

func (l *linearizer) mul(a, c *expr.Node) *expr.Node {
	if c == nil {
		return nil
	}
	return l.b.Mul(a, c)
}
