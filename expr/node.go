// Package expr holds the immutable expression graph shared by the parser,
// the differentiation engine, the simplifier and both evaluators.
//
// Nodes are allocated by an Arena and identified by their arena index
// (NodeID). A node may have several parents, so an expression is a DAG;
// passes that memoize work key their caches on NodeID.
package expr

import (
	"fmt"

	"github.com/notargets/DGWeakForm/tensor"
)

// Kind selects the variant of a Node
type Kind uint8

const (
	KindConstant Kind = iota
	KindVariable
	KindField
	KindTestFunction
	KindShapeFunction
	KindUnary
	KindBinary
	KindFunction
	KindVector
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindVariable:
		return "variable"
	case KindField:
		return "field"
	case KindTestFunction:
		return "test"
	case KindShapeFunction:
		return "shape"
	case KindUnary:
		return "unary"
	case KindBinary:
		return "binary"
	case KindFunction:
		return "function"
	case KindVector:
		return "vector"
	case KindComponent:
		return "component"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// UnaryOp enumerates single-operand operators
type UnaryOp uint8

const (
	OpNegate UnaryOp = iota
	OpGrad
	OpDiv
	OpLaplacian
	OpCurl
	OpTrace
	OpDet
	OpInverse
	OpTranspose
	OpSym
	OpSkew
	OpDev
	OpNorm
	OpNormalize
)

var unaryNames = [...]string{
	OpNegate:    "-",
	OpGrad:      "grad",
	OpDiv:       "div",
	OpLaplacian: "laplacian",
	OpCurl:      "curl",
	OpTrace:     "trace",
	OpDet:       "det",
	OpInverse:   "inv",
	OpTranspose: "transpose",
	OpSym:       "sym",
	OpSkew:      "skew",
	OpDev:       "dev",
	OpNorm:      "norm",
	OpNormalize: "normalize",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return fmt.Sprintf("unary(%d)", uint8(op))
}

// IsDerivative reports whether op is a spatial differential operator
func (op UnaryOp) IsDerivative() bool {
	return op == OpGrad || op == OpDiv || op == OpLaplacian || op == OpCurl
}

// DerivativeOrder is the number of spatial derivatives op applies
func (op UnaryOp) DerivativeOrder() int {
	switch op {
	case OpGrad, OpDiv, OpCurl:
		return 1
	case OpLaplacian:
		return 2
	}
	return 0
}

// BinaryOp enumerates two-operand operators
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDivide
	OpPow
	OpDot
	OpCross
	OpOuter
	OpContract
)

var binaryNames = [...]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDivide:   "/",
	OpPow:      "pow",
	OpDot:      "dot",
	OpCross:    "cross",
	OpOuter:    "outer",
	OpContract: "contract",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return fmt.Sprintf("binary(%d)", uint8(op))
}

// NodeID is the arena index of a node
type NodeID int32

// Node is an immutable expression vertex. Only the fields relevant to its
// Kind are populated.
type Node struct {
	id    NodeID
	kind  Kind
	shape tensor.Shape

	name     string       // variable, field, function or test/shape variable name
	qp       string       // field quadrature-point tag
	value    tensor.Value // constant payload
	unary    UnaryOp
	binary   BinaryOp
	gradient bool   // test/shape function gradient flag
	index    [2]int // component indices, index[1] < 0 for a vector component
	args     []*Node
}

func (n *Node) ID() NodeID          { return n.id }
func (n *Node) Kind() Kind          { return n.kind }
func (n *Node) Shape() tensor.Shape { return n.shape }

// Name is the variable, field or function name; for test and shape
// functions it is the name of the variable they discretize.
func (n *Node) Name() string           { return n.name }
func (n *Node) QPTag() string          { return n.qp }
func (n *Node) Value() tensor.Value    { return n.value }
func (n *Node) UnaryOp() UnaryOp       { return n.unary }
func (n *Node) BinaryOp() BinaryOp     { return n.binary }
func (n *Node) IsGradient() bool       { return n.gradient }
func (n *Node) Operand() *Node         { return n.args[0] }
func (n *Node) Left() *Node            { return n.args[0] }
func (n *Node) Right() *Node           { return n.args[1] }
func (n *Node) NumChildren() int       { return len(n.args) }
func (n *Node) Child(i int) *Node      { return n.args[i] }
func (n *Node) IsUnary(op UnaryOp) bool { return n.kind == KindUnary && n.unary == op }
func (n *Node) IsBinary(op BinaryOp) bool {
	return n.kind == KindBinary && n.binary == op
}

// Index returns the component indices; j < 0 for a vector component.
// Test and shape functions report their component in i (-1 for all).
func (n *Node) Index() (i, j int) { return n.index[0], n.index[1] }

// Children returns a copy of the direct operands
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.args))
	copy(out, n.args)
	return out
}

// IsConstant reports whether n is a literal
func (n *Node) IsConstant() bool { return n.kind == KindConstant }

// IsZero reports whether n is a literal zero of any shape
func (n *Node) IsZero() bool { return n.kind == KindConstant && tensor.IsZero(n.value) }

// IsOne reports whether n is the scalar literal one
func (n *Node) IsOne() bool { return n.kind == KindConstant && tensor.IsOne(n.value) }

// ScalarConstant returns the payload of a scalar literal
func (n *Node) ScalarConstant() (float64, bool) {
	if n.kind != KindConstant {
		return 0, false
	}
	return n.value.Scalar()
}

// Equal is structural equality. Constants compare with tolerance.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil {
		return false
	}
	if n.kind != o.kind || n.shape != o.shape || len(n.args) != len(o.args) {
		return false
	}
	switch n.kind {
	case KindConstant:
		return tensor.ApproxEqual(n.value, o.value)
	case KindVariable:
		return n.name == o.name
	case KindField:
		return n.name == o.name && n.qp == o.qp
	case KindTestFunction, KindShapeFunction:
		return n.name == o.name && n.gradient == o.gradient && n.index == o.index
	case KindUnary:
		if n.unary != o.unary {
			return false
		}
	case KindBinary:
		if n.binary != o.binary {
			return false
		}
	case KindFunction:
		if n.name != o.name {
			return false
		}
	case KindComponent:
		if n.index != o.index {
			return false
		}
	case KindVector:
	}
	for i := range n.args {
		if !n.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

// DependsOn reports whether a Variable or Field named name occurs below n
func (n *Node) DependsOn(name string) bool {
	seen := make(map[NodeID]bool)
	var walk func(*Node) bool
	walk = func(x *Node) bool {
		if r, ok := seen[x.id]; ok {
			return r
		}
		r := false
		switch x.kind {
		case KindVariable, KindField:
			r = x.name == name
		default:
			for _, c := range x.args {
				if walk(c) {
					r = true
					break
				}
			}
		}
		seen[x.id] = r
		return r
	}
	return walk(n)
}

// Walk visits every distinct node of the DAG below n once, parents first
func Walk(n *Node, visit func(*Node) bool) {
	seen := make(map[NodeID]struct{})
	var rec func(*Node)
	rec = func(x *Node) {
		if _, ok := seen[x.id]; ok {
			return
		}
		seen[x.id] = struct{}{}
		if !visit(x) {
			return
		}
		for _, c := range x.args {
			rec(c)
		}
	}
	rec(n)
}
