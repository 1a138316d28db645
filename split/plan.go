package split

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/DGWeakForm/expr"
)

// ConditionWeight scales the condition estimate in the plan cost
const ConditionWeight = 0.1

// Plan is one candidate split of a primary variable together with its cost
type Plan struct {
	Strategy  Strategy
	Threshold int
	FEOrder   int
	MaxOrder  int
	Primary   *Variable
	// Split is ordered so every variable follows the ones it depends on
	Split []*Variable

	DOFs      int
	Bandwidth int
	Condition float64
	Cost      float64
}

// Variables returns the split variables keyed by name
func (p *Plan) Variables() map[string]*Variable {
	vars := make(map[string]*Variable, len(p.Split))
	for _, v := range p.Split {
		vars[v.Name] = v
	}
	return vars
}

// all lists the primary followed by the split variables; the index is the
// graph node ID
func (p *Plan) all() []*Variable {
	return append([]*Variable{p.Primary}, p.Split...)
}

// DependencyGraph has an edge from every variable to each variable defined
// from it
func (p *Plan) DependencyGraph() (*simple.DirectedGraph, error) {
	vars := p.all()
	index := make(map[string]int64, len(vars))
	g := simple.NewDirectedGraph()
	for i, v := range vars {
		index[v.Name] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for i, v := range vars {
		for _, dep := range v.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, errors.Errorf("%s depends on unknown variable %s", v.Name, dep)
			}
			g.SetEdge(g.NewEdge(simple.Node(j), simple.Node(i)))
		}
	}
	return g, nil
}

// measure orders the split by dependency and evaluates the cost model
// dofs² + bandwidth·dofs + 0.1·condition
func (p *Plan) measure() error {
	g, err := p.DependencyGraph()
	if err != nil {
		return err
	}
	sorted, err := topo.SortStabilized(g, byID)
	if err != nil {
		return errors.Wrap(err, "split definitions are cyclic")
	}
	vars := p.all()
	ordered := make([]*Variable, 0, len(p.Split))
	for _, n := range sorted {
		if v := vars[n.ID()]; !v.IsPrimary {
			ordered = append(ordered, v)
		}
	}
	p.Split = ordered

	p.DOFs, p.Condition = 0, 0
	for _, v := range p.all() {
		p.DOFs += v.Shape.Size()
		if !v.IsPrimary {
			p.Condition += math.Pow(4, float64(definitionOrder(v.Definition)))
		}
	}
	p.Bandwidth = Bandwidth(undirected(g))
	dofs := float64(p.DOFs)
	p.Cost = dofs*dofs + float64(p.Bandwidth)*dofs + ConditionWeight*p.Condition
	return nil
}

// definitionOrder counts the derivatives a definition applies; each one
// roughly quadruples the condition number of the coupled system
func definitionOrder(n *expr.Node) int {
	if n == nil {
		return 0
	}
	k := 0
	if n.Kind() == expr.KindUnary {
		k = n.UnaryOp().DerivativeOrder()
	}
	best := 0
	for _, c := range n.Children() {
		if o := definitionOrder(c); o > best {
			best = o
		}
	}
	return k + best
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

func undirected(g *simple.DirectedGraph) *simple.UndirectedGraph {
	u := simple.NewUndirectedGraph()
	nodes := g.Nodes()
	for nodes.Next() {
		u.AddNode(nodes.Node())
	}
	edges := g.Edges()
	for edges.Next() {
		e := edges.Edge()
		u.SetEdge(u.NewEdge(e.From(), e.To()))
	}
	return u
}

// Transform rewrites n in terms of the plan's split variables
func (p *Plan) Transform(planner *Planner, n *expr.Node) (*expr.Node, error) {
	return planner.TransformExpression(n, p.Primary.Name, p.Variables())
}

func (p *Plan) String() string {
	s := p.Strategy.String()
	if p.Strategy == Mixed {
		s = fmt.Sprintf("%s(%d)", s, p.Threshold)
	}
	return fmt.Sprintf("%s split of %s: %d variables, dofs %d, bandwidth %d, condition %.1f, cost %.2f",
		s, p.Primary.Name, len(p.Split), p.DOFs, p.Bandwidth, p.Condition, p.Cost)
}

// Dump writes the plan, one split variable per line with its definition
// and constraint residual
func (p *Plan) Dump(w io.Writer) error {
	if _, err := fmt.Fprintln(w, p); err != nil {
		return err
	}
	for _, v := range p.Split {
		if _, err := fmt.Fprintf(w, "  %s\n    depends on: %v\n    constraint: %s\n",
			v, v.DependsOn, v.ConstraintResidual); err != nil {
			return err
		}
	}
	return nil
}
