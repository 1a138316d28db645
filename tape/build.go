package tape

import (
	"github.com/notargets/DGWeakForm/expr"
)

// Pseudo-input suffixes
const (
	SuffixGrad     = "_grad"
	SuffixTest     = "_test"
	SuffixTestGrad = "_test_grad"
	SuffixPhi      = "_phi"
	SuffixPhiGrad  = "_phi_grad"
)

type compiler struct {
	code    []Instruction
	slots   map[expr.NodeID]int
	loads   map[string]int
	allowed map[string]bool
}

// Build lowers n into a tape. A non-nil allowed list restricts the input
// names the tape may load. ok is false when n leaves the supported subset.
func Build(n *expr.Node, allowed []string) (t *Tape, ok bool) {
	c := &compiler{
		slots: make(map[expr.NodeID]int),
		loads: make(map[string]int),
	}
	if allowed != nil {
		c.allowed = make(map[string]bool, len(allowed))
		for _, name := range allowed {
			c.allowed[name] = true
		}
	}
	if _, ok := c.lower(n); !ok {
		return nil, false
	}
	t = newTape(c.code, n.Shape())
	if t.Validate() != nil {
		return nil, false
	}
	return t, true
}

// BuildScalar is Build restricted to scalar-valued expressions
func BuildScalar(n *expr.Node, allowed []string) (*Tape, bool) {
	if !n.Shape().IsScalar() {
		return nil, false
	}
	return Build(n, allowed)
}

func (c *compiler) emit(in Instruction) int {
	c.code = append(c.code, in)
	return len(c.code) - 1
}

func (c *compiler) load(name string) (int, bool) {
	if c.allowed != nil && !c.allowed[name] {
		return 0, false
	}
	if slot, ok := c.loads[name]; ok {
		return slot, true
	}
	slot := c.emit(Instruction{Op: OpLoad, Input: name})
	c.loads[name] = slot
	return slot, true
}

func (c *compiler) lower(n *expr.Node) (int, bool) {
	if slot, ok := c.slots[n.ID()]; ok {
		return slot, true
	}
	slot, ok := c.node(n)
	if ok {
		c.slots[n.ID()] = slot
	}
	return slot, ok
}

func (c *compiler) node(n *expr.Node) (int, bool) {
	switch n.Kind() {
	case expr.KindConstant:
		return c.emit(Instruction{Op: OpConst, Const: n.Value()}), true
	case expr.KindVariable, expr.KindField:
		return c.load(n.Name())
	case expr.KindTestFunction, expr.KindShapeFunction:
		name, ok := basisInput(n)
		if !ok {
			return 0, false
		}
		return c.load(name)
	case expr.KindUnary:
		x := n.Operand()
		switch n.UnaryOp() {
		case expr.OpNegate:
			a, ok := c.lower(x)
			if !ok {
				return 0, false
			}
			return c.emit(Instruction{Op: OpNeg, A: a}), true
		case expr.OpGrad:
			if x.Kind() == expr.KindField || x.Kind() == expr.KindVariable {
				return c.load(x.Name() + SuffixGrad)
			}
		}
		return 0, false
	case expr.KindBinary:
		op, ok := binaryOps[n.BinaryOp()]
		if !ok {
			return 0, false
		}
		a, ok := c.lower(n.Left())
		if !ok {
			return 0, false
		}
		b, ok := c.lower(n.Right())
		if !ok {
			return 0, false
		}
		return c.emit(Instruction{Op: op, A: a, B: b}), true
	}
	return 0, false
}

var binaryOps = map[expr.BinaryOp]Op{
	expr.OpAdd:      OpAdd,
	expr.OpSub:      OpSub,
	expr.OpMul:      OpMul,
	expr.OpDivide:   OpDiv,
	expr.OpPow:      OpPow,
	expr.OpDot:      OpDot,
	expr.OpOuter:    OpOuter,
	expr.OpContract: OpContract,
}

func basisInput(n *expr.Node) (string, bool) {
	if comp, _ := n.Index(); comp >= 0 {
		return "", false
	}
	switch {
	case n.Kind() == expr.KindTestFunction && n.IsGradient():
		return n.Name() + SuffixTestGrad, true
	case n.Kind() == expr.KindTestFunction:
		return n.Name() + SuffixTest, true
	case n.IsGradient():
		return n.Name() + SuffixPhiGrad, true
	}
	return n.Name() + SuffixPhi, true
}
