package expr

import (
	"fmt"
	"sync"

	"github.com/notargets/DGWeakForm/tensor"
)

// Arena owns every node of one problem setup and fixes its spatial
// dimension. Appends are serialised; nodes are read-only once returned.
type Arena struct {
	mu    sync.Mutex
	dim   int
	nodes []*Node
}

// NewArena creates an arena for a problem in dim spatial dimensions
func NewArena(dim int) *Arena {
	if dim < 1 || dim > 3 {
		panic(fmt.Sprintf("spatial dimension must be 1, 2 or 3, got %d", dim))
	}
	return &Arena{dim: dim}
}

func (a *Arena) Dim() int { return a.dim }

// Len is the number of nodes allocated so far
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.nodes)
}

// Node returns the node with the given id
func (a *Arena) Node(id NodeID) *Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nodes[id]
}

func (a *Arena) add(n *Node) *Node {
	a.mu.Lock()
	n.id = NodeID(len(a.nodes))
	a.nodes = append(a.nodes, n)
	a.mu.Unlock()
	return n
}

// Constant wraps a literal value
func (a *Arena) Constant(v tensor.Value) *Node {
	return a.add(&Node{kind: KindConstant, shape: v.Shape(), value: v})
}

// Real is a scalar literal
func (a *Arena) Real(x float64) *Node { return a.Constant(tensor.Real(x)) }

// Zero is the literal zero of shape s
func (a *Arena) Zero(s tensor.Shape) *Node { return a.Constant(tensor.Zero(s)) }

// Identity is the literal identity tensor of the arena dimension
func (a *Arena) Identity() *Node { return a.Constant(tensor.Identity(a.dim)) }

// Variable is a named symbol resolved at evaluation time (a parameter or
// a bare symbol)
func (a *Arena) Variable(name string, s tensor.Shape) *Node {
	return a.add(&Node{kind: KindVariable, shape: s, name: name})
}

// Field is a discretized unknown sampled at quadrature points
func (a *Arena) Field(name string, s tensor.Shape, qp string) *Node {
	return a.add(&Node{kind: KindField, shape: s, name: name, qp: qp})
}

func (a *Arena) basisShape(op string, s tensor.Shape, component int, gradient bool) (tensor.Shape, error) {
	if component >= 0 {
		if s.Rank != tensor.Vector || component >= s.Dim {
			return tensor.Shape{}, &tensor.ShapeError{Op: op, Shapes: []tensor.Shape{s},
				Reason: fmt.Sprintf("component %d needs a vector variable", component)}
		}
		s = tensor.ScalarShape
	}
	if gradient {
		return tensor.GradientShape(s, a.dim)
	}
	return s, nil
}

// TestFunction is the weighting function of variable (or one of its
// components, component < 0 meaning all) or its gradient
func (a *Arena) TestFunction(variable string, s tensor.Shape, component int, gradient bool) (*Node, error) {
	shape, err := a.basisShape("test", s, component, gradient)
	if err != nil {
		return nil, err
	}
	return a.add(&Node{kind: KindTestFunction, shape: shape, name: variable,
		gradient: gradient, index: [2]int{component, -1}}), nil
}

// ShapeFunction is the trial basis function used to linearize a residual
func (a *Arena) ShapeFunction(variable string, s tensor.Shape, component int, gradient bool) (*Node, error) {
	shape, err := a.basisShape("phi", s, component, gradient)
	if err != nil {
		return nil, err
	}
	return a.add(&Node{kind: KindShapeFunction, shape: shape, name: variable,
		gradient: gradient, index: [2]int{component, -1}}), nil
}

// UnaryShape applies the shape rule of op
func UnaryShape(op UnaryOp, s tensor.Shape, dim int) (tensor.Shape, error) {
	bad := func(reason string) (tensor.Shape, error) {
		return tensor.Shape{}, &tensor.ShapeError{Op: op.String(), Shapes: []tensor.Shape{s}, Reason: reason}
	}
	switch op {
	case OpNegate:
		return s, nil
	case OpGrad:
		return tensor.GradientShape(s, dim)
	case OpDiv:
		return tensor.DivergenceShape(s)
	case OpLaplacian:
		if s.Rank > tensor.Tensor2 {
			return bad("laplacian needs rank <= 2")
		}
		return s, nil
	case OpCurl:
		if s.Rank != tensor.Vector {
			return bad("curl needs a vector")
		}
		switch s.Dim {
		case 2:
			return tensor.ScalarShape, nil
		case 3:
			return s, nil
		}
		return bad("curl needs a 2D or 3D vector")
	case OpTrace, OpDet:
		if s.Rank != tensor.Tensor2 {
			return bad("needs a rank-2 tensor")
		}
		return tensor.ScalarShape, nil
	case OpInverse, OpTranspose, OpSym, OpSkew, OpDev:
		if s.Rank != tensor.Tensor2 {
			return bad("needs a rank-2 tensor")
		}
		return s, nil
	case OpNorm:
		if s.Rank > tensor.Tensor2 {
			return bad("needs rank <= 2")
		}
		return tensor.ScalarShape, nil
	case OpNormalize:
		if s.Rank == tensor.Scalar || s.Rank > tensor.Tensor2 {
			return bad("needs a vector or tensor")
		}
		return s, nil
	}
	return bad("unknown operator")
}

// BinaryShape applies the shape rule of op
func BinaryShape(op BinaryOp, l, r tensor.Shape) (tensor.Shape, error) {
	bad := func(reason string) (tensor.Shape, error) {
		return tensor.Shape{}, &tensor.ShapeError{Op: op.String(), Shapes: []tensor.Shape{l, r}, Reason: reason}
	}
	switch op {
	case OpAdd, OpSub:
		if l != r {
			return bad("operands must have the same shape")
		}
		return l, nil
	case OpMul:
		switch {
		case l.IsScalar():
			return r, nil
		case r.IsScalar():
			return l, nil
		case l.Rank == tensor.Tensor2 && r.Rank == tensor.Vector && l.Dim == r.Dim:
			return r, nil
		case l.Rank == tensor.Vector && r.Rank == tensor.Tensor2 && l.Dim == r.Dim:
			return l, nil
		case l.Rank == tensor.Tensor2 && l == r:
			return l, nil
		}
		return bad("unsupported operand ranks")
	case OpDivide:
		if !r.IsScalar() {
			return bad("divisor must be a scalar")
		}
		return l, nil
	case OpPow:
		if !l.IsScalar() || !r.IsScalar() {
			return bad("base and exponent must be scalars")
		}
		return l, nil
	case OpDot:
		if !l.IsVector() || l != r {
			return bad("needs two vectors of equal length")
		}
		return tensor.ScalarShape, nil
	case OpCross:
		if !l.IsVector() || l != r {
			return bad("needs two vectors of equal length")
		}
		switch l.Dim {
		case 2:
			return tensor.ScalarShape, nil
		case 3:
			return l, nil
		}
		return bad("needs 2D or 3D vectors")
	case OpOuter:
		if !l.IsVector() || l != r {
			return bad("needs two vectors of equal length")
		}
		return tensor.TensorShape(l.Dim), nil
	case OpContract:
		if !l.IsTensor() || l != r {
			return bad("needs two rank-2 tensors of equal extent")
		}
		return tensor.ScalarShape, nil
	}
	return bad("unknown operator")
}

// Unary applies op to x, failing on incompatible shapes
func (a *Arena) Unary(op UnaryOp, x *Node) (*Node, error) {
	s, err := UnaryShape(op, x.shape, a.dim)
	if err != nil {
		return nil, err
	}
	return a.add(&Node{kind: KindUnary, shape: s, unary: op, args: []*Node{x}}), nil
}

// Binary applies op to l and r, failing on incompatible shapes
func (a *Arena) Binary(op BinaryOp, l, r *Node) (*Node, error) {
	s, err := BinaryShape(op, l.shape, r.shape)
	if err != nil {
		return nil, err
	}
	return a.add(&Node{kind: KindBinary, shape: s, binary: op, args: []*Node{l, r}}), nil
}

// Function is a named scalar function call. Arguments of named functions
// from a FunctionTable must be scalars; opaque functions accept any shape.
func (a *Arena) Function(name string, args ...*Node) *Node {
	cp := make([]*Node, len(args))
	copy(cp, args)
	return a.add(&Node{kind: KindFunction, shape: tensor.ScalarShape, name: name, args: cp})
}

// VectorOf assembles 1, 2 or 3 scalar components into a vector
func (a *Arena) VectorOf(components ...*Node) (*Node, error) {
	if len(components) < 1 || len(components) > 3 {
		return nil, fmt.Errorf("vector assembly takes 1 to 3 components, got %d", len(components))
	}
	shapes := make([]tensor.Shape, len(components))
	for i, c := range components {
		shapes[i] = c.shape
		if !c.shape.IsScalar() {
			return nil, &tensor.ShapeError{Op: "vec", Shapes: shapes[:i+1], Reason: "components must be scalars"}
		}
	}
	cp := make([]*Node, len(components))
	copy(cp, components)
	return a.add(&Node{kind: KindVector, shape: tensor.VectorShape(len(cp)), args: cp}), nil
}

// Component extracts entry i of a vector
func (a *Arena) Component(x *Node, i int) (*Node, error) {
	if !x.shape.IsVector() || i < 0 || i >= x.shape.Dim {
		return nil, &tensor.ShapeError{Op: "component", Shapes: []tensor.Shape{x.shape},
			Reason: fmt.Sprintf("index %d out of range or operand not a vector", i)}
	}
	return a.add(&Node{kind: KindComponent, shape: tensor.ScalarShape, index: [2]int{i, -1}, args: []*Node{x}}), nil
}

// Component2 extracts entry (i,j) of a rank-2 tensor
func (a *Arena) Component2(x *Node, i, j int) (*Node, error) {
	d := x.shape.Dim
	if !x.shape.IsTensor() || i < 0 || j < 0 || i >= d || j >= d {
		return nil, &tensor.ShapeError{Op: "component", Shapes: []tensor.Shape{x.shape},
			Reason: fmt.Sprintf("index (%d,%d) out of range or operand not a tensor", i, j)}
	}
	return a.add(&Node{kind: KindComponent, shape: tensor.ScalarShape, index: [2]int{i, j}, args: []*Node{x}}), nil
}

// Rebuild creates a copy of n with new operands, re-running shape checks.
// Leaves are returned unchanged.
func (a *Arena) Rebuild(n *Node, args []*Node) (*Node, error) {
	same := len(args) == len(n.args)
	for i := range args {
		if !same || args[i] != n.args[i] {
			same = false
			break
		}
	}
	if same {
		return n, nil
	}
	switch n.kind {
	case KindUnary:
		return a.Unary(n.unary, args[0])
	case KindBinary:
		return a.Binary(n.binary, args[0], args[1])
	case KindFunction:
		return a.Function(n.name, args...), nil
	case KindVector:
		return a.VectorOf(args...)
	case KindComponent:
		if n.index[1] < 0 {
			return a.Component(args[0], n.index[0])
		}
		return a.Component2(args[0], n.index[0], n.index[1])
	}
	return n, nil
}
