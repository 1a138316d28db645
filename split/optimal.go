package split

import (
	"github.com/notargets/DGWeakForm/expr"
)

// Candidate is one strategy considered by ComputeOptimalSplitting
type Candidate struct {
	Strategy  Strategy
	Threshold int
}

// Candidates lists the strategies compared for a split of the given
// maximum order: recursive, direct, then mixed for every interior
// threshold
func Candidates(maxOrder int) []Candidate {
	list := []Candidate{{Recursive, 0}, {Direct, 0}}
	for t := 1; t < maxOrder; t++ {
		list = append(list, Candidate{Mixed, t})
	}
	return list
}

// ComputeOptimalSplitting evaluates every candidate strategy and returns
// the cheapest plan, preferring the earlier candidate on ties. The other
// plans are returned in candidate order for diagnostics.
func (p *Planner) ComputeOptimalSplitting(n *expr.Node, primary string) (*Plan, []*Plan, error) {
	maxOrder := p.RequiredOrders(n)[primary]
	var best *Plan
	var all []*Plan
	for _, c := range Candidates(maxOrder) {
		plan, err := p.PlanWith(n, primary, c.Strategy, c.Threshold)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, plan)
		if best == nil || plan.Cost < best.Cost {
			best = plan
		}
	}
	p.log.Debugf("optimal split of %s: %s", primary, best)
	return best, all, nil
}
