package weakform

import (
	"fmt"
	"io"

	"github.com/notargets/DGWeakForm/expr"
)

// Analysis holds best-effort structural answers about a variational
// problem. They are conservative heuristics, not proofs:
//   - Conservative: the residual is a pure divergence (no order-0 term)
//   - Symmetric: the Jacobian of a residual derived from an energy is
//     symmetric, so this only fails when the energy cannot be differentiated
//   - Elliptic: some coefficient acts on a derivative of the variable and
//     itself depends on that derivative
//   - Coercive: elliptic, and the top-order coefficient is not constant
type Analysis struct {
	Conservative bool
	Symmetric    bool
	Elliptic     bool
	Coercive     bool
	MaxOrder     int
}

func (a Analysis) String() string {
	return fmt.Sprintf("conservative=%t symmetric=%t elliptic=%t coercive=%t max order=%d",
		a.Conservative, a.Symmetric, a.Elliptic, a.Coercive, a.MaxOrder)
}

// Analyze inspects the first variation of energy with respect to variable
func (g *Generator) Analyze(energy *expr.Node, variable string) (Analysis, error) {
	d, err := g.engine.Differentiate(energy, variable)
	if err != nil {
		return Analysis{}, err
	}
	a := Analysis{Symmetric: true, MaxOrder: d.MaxOrder()}
	_, hasBulk := d[0]
	a.Conservative = !hasBulk && !d.IsEmpty()
	if top := d.MaxOrder(); top >= 1 {
		c := d[top]
		a.Elliptic = c.DependsOn(variable)
		a.Coercive = a.Elliptic && !c.IsConstant()
	}
	return a, nil
}

// Dump writes a diagnostic report for energy: its first variation, the
// Euler–Lagrange form, the weighted residual and whether a discretization
// of order feOrder needs auxiliary variables
func (g *Generator) Dump(w io.Writer, energy *expr.Node, variable string, feOrder int) error {
	d, err := g.engine.Differentiate(energy, variable)
	if err != nil {
		return err
	}
	el, err := g.EulerLagrange(energy, variable)
	if err != nil {
		return err
	}
	res, err := g.WeightedResidual(energy, variable)
	if err != nil {
		return err
	}
	a, err := g.Analyze(energy, variable)
	if err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("energy: %s", energy),
		fmt.Sprintf("variable: %s [%s]", variable, VariableShape(energy, variable)),
	}
	for _, k := range d.Orders() {
		lines = append(lines, fmt.Sprintf("  order %d: %s", k, d[k]))
	}
	lines = append(lines,
		fmt.Sprintf("euler-lagrange: %s", el),
		fmt.Sprintf("weighted residual: %s", res),
		fmt.Sprintf("analysis: %s", a),
		fmt.Sprintf("requires splitting at order %d: %t", feOrder, RequiresVariableSplitting(d, feOrder)),
	)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
