// Package weakform turns energy densities into residuals.
//
// The Euler–Lagrange form integrates every order-k coefficient of the first
// variation by parts k times, giving (-1)^k div^k(c_k). The weighted form
// instead pairs c_k with the k-th derivative of the test function, ready for
// evaluation inside a quadrature loop. Jacobians linearize a weighted
// residual in the direction of the trial (shape) function.
package weakform

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/diff"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

type Generator struct {
	engine *diff.Engine
	arena  *expr.Arena
	log    *logrus.Entry
}

type Option func(*Generator)

func WithLogger(log *logrus.Entry) Option {
	return func(g *Generator) { g.log = log }
}

func NewGenerator(engine *diff.Engine, opts ...Option) *Generator {
	g := &Generator{engine: engine, arena: engine.Arena()}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logrus.WithField("component", "weakform")
	}
	return g
}

func (g *Generator) Engine() *diff.Engine { return g.engine }

// EulerLagrange is the strong residual δE/δv of an energy density
func (g *Generator) EulerLagrange(energy *expr.Node, variable string) (*expr.Node, error) {
	terms, err := g.EulerLagrangeTerms(energy, variable)
	if err != nil {
		return nil, err
	}
	return g.sum(energy, variable, terms)
}

// EulerLagrangeTerms returns the contribution of every derivative order
func (g *Generator) EulerLagrangeTerms(energy *expr.Node, variable string) (map[int]*expr.Node, error) {
	d, err := g.engine.Differentiate(energy, variable)
	if err != nil {
		return nil, err
	}
	b := expr.NewBuilder(g.arena)
	terms := make(map[int]*expr.Node, len(d))
	for _, k := range d.Orders() {
		t, err := integrateByParts(b, d[k], k)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d term of %s", k, variable)
		}
		if k%2 == 1 {
			t = b.Neg(t)
		}
		if err := b.Err(); err != nil {
			return nil, err
		}
		if terms[k], err = g.engine.Simplifier().Simplify(t); err != nil {
			return nil, err
		}
	}
	return terms, nil
}

// integrateByParts applies k divergences to c. A scalar coefficient of an
// even order stems from a Laplacian and takes Laplacians instead.
func integrateByParts(b *expr.Builder, c *expr.Node, k int) (*expr.Node, error) {
	for k > 0 {
		switch {
		case !c.Shape().IsScalar():
			c = b.Divergence(c)
			k--
		case k >= 2:
			c = b.Laplacian(c)
			k -= 2
		default:
			return nil, expr.Unsupported("integrate a scalar coefficient by parts once", c)
		}
	}
	return c, b.Err()
}

// WeightedResidual pairs every order-k coefficient with the k-th derivative
// of the test function of variable, alternating the sign by parity
func (g *Generator) WeightedResidual(energy *expr.Node, variable string) (*expr.Node, error) {
	d, err := g.engine.Differentiate(energy, variable)
	if err != nil {
		return nil, err
	}
	shape := VariableShape(energy, variable)
	b := expr.NewBuilder(g.arena)
	terms := make(map[int]*expr.Node, len(d))
	for _, k := range d.Orders() {
		w, err := g.testDerivative(b, variable, shape, k, d[k].Shape())
		if err != nil {
			return nil, err
		}
		t, err := pair(b, d[k], w)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d term of %s", k, variable)
		}
		if k%2 == 1 {
			t = b.Neg(t)
		}
		terms[k] = t
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return g.sum(energy, variable, terms)
}

// Jacobian linearizes residual with respect to variable in the direction
// of its shape function
func (g *Generator) Jacobian(residual *expr.Node, variable string, shape tensor.Shape) (*expr.Node, error) {
	phi, err := g.arena.ShapeFunction(variable, shape, -1, false)
	if err != nil {
		return nil, err
	}
	j, err := g.engine.Directional(residual, variable, phi)
	if err != nil {
		return nil, errors.Wrapf(err, "Jacobian of %s", variable)
	}
	g.log.Debugf("jacobian of %s for %s: %s", residual, variable, j)
	return j, nil
}

// RequiresVariableSplitting reports whether a discretization of order
// feOrder cannot represent the derivatives in d
func RequiresVariableSplitting(d diff.Differential, feOrder int) bool {
	return d.MaxOrder() > feOrder
}

func (g *Generator) sum(src *expr.Node, variable string, terms map[int]*expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(g.arena)
	orders := make([]int, 0, len(terms))
	for k := range terms {
		orders = append(orders, k)
	}
	sort.Ints(orders)
	parts := make([]*expr.Node, 0, len(terms))
	for _, k := range orders {
		parts = append(parts, terms[k])
	}
	r := b.Sum(parts...)
	if err := b.Err(); err != nil {
		return nil, err
	}
	r, err := g.engine.Simplifier().Simplify(r)
	if err != nil {
		return nil, err
	}
	g.log.Debugf("residual of %s for %s: %s", src, variable, r)
	return r, nil
}

// testDerivative builds the order-k derivative of the test function.
// Scalar coefficients of even order pair with iterated Laplacians,
// everything else with iterated gradients.
func (g *Generator) testDerivative(b *expr.Builder, variable string, shape tensor.Shape, k int,
	coef tensor.Shape) (*expr.Node, error) {
	basis := g.arena.TestFunction
	if k == 0 {
		return basis(variable, shape, -1, false)
	}
	if coef.IsScalar() && shape.IsScalar() && k%2 == 0 {
		w, err := basis(variable, shape, -1, false)
		if err != nil {
			return nil, err
		}
		for i := 0; i < k; i += 2 {
			w = b.Laplacian(w)
		}
		return w, b.Err()
	}
	w, err := basis(variable, shape, -1, true)
	if err != nil {
		return nil, err
	}
	for i := 1; i < k; i++ {
		w = b.Grad(w)
	}
	return w, b.Err()
}

// pair fully contracts a coefficient with a basis derivative
func pair(b *expr.Builder, c, w *expr.Node) (*expr.Node, error) {
	switch cs, ws := c.Shape(), w.Shape(); {
	case cs == ws:
		return b.Pair(c, w), nil
	case cs.IsScalar() && ws.IsTensor():
		return b.Mul(c, b.Unary(expr.OpTrace, w)), nil
	}
	return nil, &tensor.ShapeError{Op: "pair", Shapes: []tensor.Shape{c.Shape(), w.Shape()},
		Reason: "coefficient and basis derivative do not contract to a scalar"}
}

// VariableShape finds the shape of the field or variable named name in n,
// defaulting to a scalar
func VariableShape(n *expr.Node, name string) tensor.Shape {
	shape := tensor.ScalarShape
	found := false
	expr.Walk(n, func(x *expr.Node) bool {
		if found {
			return false
		}
		if (x.Kind() == expr.KindField || x.Kind() == expr.KindVariable) && x.Name() == name {
			shape, found = x.Shape(), true
			return false
		}
		return true
	})
	return shape
}
