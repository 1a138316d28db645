// Package split introduces auxiliary variables for derivative orders a
// discretization cannot represent.
//
// A fourth-order term such as laplacian(laplacian(u)) cannot be assembled
// with C0 elements of order one. The planner replaces it with a ladder of
// fields u_d1 = grad(u), u_d2 = div(u_d1), ... each tied to the system by
// the constraint residual definition - self. Odd rungs are gradients, even
// rungs divergences, so an even rung has the shape of the primary variable
// and an odd rung the shape of its gradient.
package split

import (
	"fmt"
	"strings"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// Strategy selects how split variables are defined
type Strategy uint8

const (
	// Recursive defines every rung from the previous one
	Recursive Strategy = iota
	// Direct defines every rung from the primary variable
	Direct
	// Mixed is recursive up to a threshold order and direct beyond it
	Mixed
)

var strategyNames = [...]string{
	Recursive: "recursive",
	Direct:    "direct",
	Mixed:     "mixed",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy reads the name printed by String
func ParseStrategy(text string) (Strategy, error) {
	for i, name := range strategyNames {
		if strings.EqualFold(strings.TrimSpace(text), name) {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown splitting strategy %q", text)
}

// Variable is one auxiliary field of a split, or the primary variable
// itself when IsPrimary is set
type Variable struct {
	Name     string
	Original string
	Order    int
	Shape    tensor.Shape
	// Node references the variable inside expressions
	Node *expr.Node
	// Definition expresses the variable through lower-order quantities
	Definition *expr.Node
	// ConstraintResidual is Definition - Node, enforced as an extra equation
	ConstraintResidual *expr.Node
	IsPrimary          bool
	DependsOn          []string
}

func (v *Variable) String() string {
	if v.IsPrimary {
		return fmt.Sprintf("%s [%s] primary", v.Name, v.Shape)
	}
	return fmt.Sprintf("%s [%s] order %d = %s", v.Name, v.Shape, v.Order, v.Definition)
}

// Name is the deterministic name of the order-k split of base
func Name(base string, k int) string {
	return fmt.Sprintf("%s_d%d", base, k)
}
