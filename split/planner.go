package split

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// Planner synthesizes split variables for one discretization order. It
// holds no per-expression state and may be reused.
type Planner struct {
	arena     *expr.Arena
	feOrder   int
	strategy  Strategy
	threshold int
	log       *logrus.Entry
}

type Option func(*Planner)

// WithStrategy sets the strategy used by GenerateSplitVariables; threshold
// only matters for Mixed
func WithStrategy(s Strategy, threshold int) Option {
	return func(p *Planner) {
		p.strategy = s
		p.threshold = threshold
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(p *Planner) { p.log = log }
}

func NewPlanner(arena *expr.Arena, feOrder int, opts ...Option) *Planner {
	p := &Planner{arena: arena, feOrder: feOrder, strategy: Recursive}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logrus.WithField("component", "split")
	}
	return p
}

func (p *Planner) FEOrder() int { return p.feOrder }

// RequiredOrders returns, for every field and variable leaf of n, the
// deepest derivative order at which it is used. grad, div and curl add
// one, laplacian adds two.
func (p *Planner) RequiredOrders(n *expr.Node) map[string]int {
	orders := make(map[string]int)
	type visit struct {
		id    expr.NodeID
		depth int
	}
	seen := make(map[visit]bool)
	var walk func(x *expr.Node, depth int)
	walk = func(x *expr.Node, depth int) {
		key := visit{x.ID(), depth}
		if seen[key] {
			return
		}
		seen[key] = true
		switch x.Kind() {
		case expr.KindField, expr.KindVariable:
			if prev, ok := orders[x.Name()]; !ok || depth > prev {
				orders[x.Name()] = depth
			}
			return
		case expr.KindUnary:
			depth += x.UnaryOp().DerivativeOrder()
		}
		for _, c := range x.Children() {
			walk(c, depth)
		}
	}
	walk(n, 0)
	return orders
}

// GenerateSplitVariables returns the split variables of primary needed by n
// under the planner's strategy, keyed by name. It is empty when the
// discretization already represents every derivative of primary.
func (p *Planner) GenerateSplitVariables(n *expr.Node, primary string) (map[string]*Variable, error) {
	plan, err := p.PlanWith(n, primary, p.strategy, p.threshold)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]*Variable, len(plan.Split))
	for _, v := range plan.Split {
		vars[v.Name] = v
	}
	return vars, nil
}

// PlanWith builds the split of primary with an explicit strategy
func (p *Planner) PlanWith(n *expr.Node, primary string, s Strategy, threshold int) (*Plan, error) {
	maxOrder := p.RequiredOrders(n)[primary]
	shape := leafShape(n, primary)
	plan := &Plan{
		Strategy:  s,
		Threshold: threshold,
		FEOrder:   p.feOrder,
		MaxOrder:  maxOrder,
		Primary: &Variable{
			Name:      primary,
			Original:  primary,
			Shape:     shape,
			Node:      p.arena.Field(primary, shape, ""),
			IsPrimary: true,
		},
	}
	if maxOrder > p.feOrder {
		split, err := p.ladder(primary, shape, maxOrder, s, threshold)
		if err != nil {
			return nil, errors.Wrapf(err, "splitting %s with the %s strategy", primary, s)
		}
		plan.Split = split
	}
	if err := plan.measure(); err != nil {
		return nil, err
	}
	p.log.Debugf("%s split of %s: %d variables, cost %.1f", s, primary, len(plan.Split), plan.Cost)
	return plan, nil
}

// ladder synthesizes u_d1..u_dmax
func (p *Planner) ladder(primary string, shape tensor.Shape, maxOrder int, s Strategy, threshold int) ([]*Variable, error) {
	b := expr.NewBuilder(p.arena)
	base := p.arena.Field(primary, shape, "")
	gradShape, err := tensor.GradientShape(shape, p.arena.Dim())
	if err != nil {
		return nil, err
	}
	vars := make([]*Variable, 0, maxOrder)
	prev, prevName := base, primary
	for k := 1; k <= maxOrder; k++ {
		v := &Variable{Name: Name(primary, k), Original: primary, Order: k, Shape: shape}
		if k%2 == 1 {
			v.Shape = gradShape
		}
		recursive := s == Recursive || (s == Mixed && k <= threshold)
		if recursive {
			if k%2 == 1 {
				v.Definition = b.Grad(prev)
			} else {
				v.Definition = b.Divergence(prev)
			}
			v.DependsOn = []string{prevName}
		} else {
			v.Definition = directDefinition(b, base, k)
			v.DependsOn = []string{primary}
		}
		if err := b.Err(); err != nil {
			return nil, err
		}
		if v.Definition.Shape() != v.Shape {
			return nil, &tensor.ShapeError{Op: "split " + v.Name, Shapes: []tensor.Shape{v.Definition.Shape(), v.Shape},
				Reason: "definition does not match the split variable"}
		}
		v.Node = p.arena.Field(v.Name, v.Shape, "")
		v.ConstraintResidual = b.Sub(v.Definition, v.Node)
		if err := b.Err(); err != nil {
			return nil, err
		}
		vars = append(vars, v)
		prev, prevName = v.Node, v.Name
	}
	return vars, nil
}

// directDefinition is laplacian^(k/2)(u) for even k and
// grad(laplacian^((k-1)/2)(u)) for odd k
func directDefinition(b *expr.Builder, u *expr.Node, k int) *expr.Node {
	x := u
	for i := 0; i < k/2; i++ {
		x = b.Laplacian(x)
	}
	if k%2 == 1 {
		x = b.Grad(x)
	}
	return x
}

// TransformExpression replaces every derivative of primary deeper than the
// discretization order by the split variable holding it. A chain that is
// not a rung of the ladder keeps its outer operators applied to the
// deepest matching rung, e.g. grad(grad(u)) becomes grad(u_d1).
func (p *Planner) TransformExpression(n *expr.Node, primary string, vars map[string]*Variable) (*expr.Node, error) {
	byOrder := make(map[int]*Variable)
	for _, v := range vars {
		if v.Original == primary && !v.IsPrimary {
			byOrder[v.Order] = v
		}
	}
	if len(byOrder) == 0 {
		return n, nil
	}
	memo := make(map[expr.NodeID]*expr.Node)
	var transform func(x *expr.Node) (*expr.Node, error)
	transform = func(x *expr.Node) (*expr.Node, error) {
		if r, ok := memo[x.ID()]; ok {
			return r, nil
		}
		r, err := p.rewrite(x, primary, byOrder, transform)
		if err != nil {
			return nil, err
		}
		memo[x.ID()] = r
		return r, nil
	}
	r, err := transform(n)
	if err != nil {
		return nil, errors.Wrapf(err, "transforming %s", n)
	}
	p.log.Debugf("transformed %s into %s", n, r)
	return r, nil
}

func (p *Planner) rewrite(x *expr.Node, primary string, byOrder map[int]*Variable,
	transform func(*expr.Node) (*expr.Node, error)) (*expr.Node, error) {
	if k, ok := rung(x, primary); ok && k > p.feOrder {
		if v, ok := byOrder[k]; ok {
			return v.Node, nil
		}
	}
	if x.Kind() == expr.KindUnary && x.UnaryOp().IsDerivative() {
		inner := x.Operand()
		if j, ok := rung(inner, primary); ok && j >= 1 && j+x.UnaryOp().DerivativeOrder() > p.feOrder {
			if v, ok := byOrder[j]; ok {
				return p.arena.Unary(x.UnaryOp(), v.Node)
			}
		}
	}
	if x.NumChildren() == 0 {
		return x, nil
	}
	args := make([]*expr.Node, x.NumChildren())
	for i, c := range x.Children() {
		r, err := transform(c)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}
	return p.arena.Rebuild(x, args)
}

// rung reports the ladder order of x when it is an alternating
// grad/div chain over primary: grad(u) is rung 1, div(grad(u)) and
// laplacian(u) rung 2, grad(laplacian(u)) rung 3 and so on
func rung(x *expr.Node, primary string) (int, bool) {
	var steps []bool // true for a gradient step, innermost last
	for x.Kind() == expr.KindUnary {
		switch x.UnaryOp() {
		case expr.OpGrad:
			steps = append(steps, true)
		case expr.OpDiv:
			steps = append(steps, false)
		case expr.OpLaplacian:
			steps = append(steps, false, true)
		default:
			return 0, false
		}
		x = x.Operand()
	}
	if (x.Kind() != expr.KindField && x.Kind() != expr.KindVariable) || x.Name() != primary {
		return 0, false
	}
	for i, k := 0, len(steps)-1; k >= 0; i, k = i+1, k-1 {
		if steps[k] != (i%2 == 0) {
			return 0, false
		}
	}
	return len(steps), true
}

// leafShape finds the shape of the leaf named name, defaulting to a scalar
func leafShape(n *expr.Node, name string) tensor.Shape {
	shape := tensor.ScalarShape
	expr.Walk(n, func(x *expr.Node) bool {
		if (x.Kind() == expr.KindField || x.Kind() == expr.KindVariable) && x.Name() == name {
			shape = x.Shape()
			return false
		}
		return true
	})
	return shape
}

// SortedNames lists the keys of vars in order
func SortedNames(vars map[string]*Variable) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		vi, vj := vars[names[i]], vars[names[j]]
		if vi.Original != vj.Original {
			return vi.Original < vj.Original
		}
		return vi.Order < vj.Order
	})
	return names
}
