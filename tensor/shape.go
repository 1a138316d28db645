package tensor

import (
	"fmt"
	"strings"
)

// Rank is the tensor order of a quantity
type Rank uint8

const (
	Scalar Rank = iota
	Vector
	Tensor2
	Rank3
	Rank4
)

func (r Rank) String() string {
	switch r {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case Tensor2:
		return "tensor"
	case Rank3:
		return "rank3"
	case Rank4:
		return "rank4"
	default:
		return fmt.Sprintf("rank(%d)", uint8(r))
	}
}

// Shape describes the rank and extent of a quantity. Dim is the spatial
// extent of every index for Vector, Tensor2 and Rank3. Rank4 carries two
// extents: Dim for the first index pair and Dim2 for the second.
type Shape struct {
	Rank Rank
	Dim  int
	Dim2 int
}

// ScalarShape is the shape of a single real number
var ScalarShape = Shape{}

func VectorShape(dim int) Shape { return Shape{Rank: Vector, Dim: dim} }
func TensorShape(dim int) Shape { return Shape{Rank: Tensor2, Dim: dim} }
func Rank3Shape(dim int) Shape  { return Shape{Rank: Rank3, Dim: dim} }
func Rank4Shape(dim1, dim2 int) Shape {
	return Shape{Rank: Rank4, Dim: dim1, Dim2: dim2}
}

func (s Shape) IsScalar() bool { return s.Rank == Scalar }
func (s Shape) IsVector() bool { return s.Rank == Vector }
func (s Shape) IsTensor() bool { return s.Rank == Tensor2 }

// Size returns the number of stored components
func (s Shape) Size() int {
	switch s.Rank {
	case Scalar:
		return 1
	case Vector:
		return s.Dim
	case Tensor2:
		return s.Dim * s.Dim
	case Rank3:
		return s.Dim * s.Dim * s.Dim
	case Rank4:
		return s.Dim * s.Dim * s.Dim2 * s.Dim2
	default:
		return 0
	}
}

func (s Shape) String() string {
	switch s.Rank {
	case Scalar:
		return "scalar"
	case Rank4:
		return fmt.Sprintf("rank4(%d,%d)", s.Dim, s.Dim2)
	default:
		return fmt.Sprintf("%s(%d)", s.Rank, s.Dim)
	}
}

// ParseShape reads the textual form used in problem files: "scalar",
// "vector", "tensor" (taking their extent from dim) or the explicit
// "vector(3)" style printed by String.
func ParseShape(text string, dim int) (Shape, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	name, arg := text, ""
	if i := strings.IndexByte(text, '('); i >= 0 && strings.HasSuffix(text, ")") {
		name, arg = text[:i], text[i+1:len(text)-1]
	}
	if arg != "" {
		var d1, d2 int
		if n, _ := fmt.Sscanf(arg, "%d,%d", &d1, &d2); n == 2 {
			if name != "rank4" {
				return Shape{}, fmt.Errorf("shape %q takes a single extent", text)
			}
			return Rank4Shape(d1, d2), nil
		}
		if _, err := fmt.Sscanf(arg, "%d", &d1); err != nil {
			return Shape{}, fmt.Errorf("bad extent in shape %q", text)
		}
		dim = d1
	}
	switch name {
	case "scalar", "real", "":
		return ScalarShape, nil
	case "vector":
		return VectorShape(dim), nil
	case "tensor", "rank2":
		return TensorShape(dim), nil
	case "rank3":
		return Rank3Shape(dim), nil
	case "rank4":
		return Rank4Shape(dim, dim), nil
	}
	return Shape{}, fmt.Errorf("unknown shape %q", text)
}

// GradientShape bumps the rank by one. Scalars take their extent from dim.
func GradientShape(s Shape, dim int) (Shape, error) {
	switch s.Rank {
	case Scalar:
		return VectorShape(dim), nil
	case Vector:
		return TensorShape(s.Dim), nil
	case Tensor2:
		return Rank3Shape(s.Dim), nil
	}
	return Shape{}, &ShapeError{Op: "grad", Shapes: []Shape{s}, Reason: "gradient of rank >= 3 is not supported"}
}

// DivergenceShape reduces the rank by one
func DivergenceShape(s Shape) (Shape, error) {
	switch s.Rank {
	case Vector:
		return ScalarShape, nil
	case Tensor2:
		return VectorShape(s.Dim), nil
	case Rank3:
		return TensorShape(s.Dim), nil
	}
	return Shape{}, &ShapeError{Op: "div", Shapes: []Shape{s}, Reason: "divergence needs a vector, tensor or rank-3 operand"}
}

// ShapeError reports operands whose shapes an operation cannot reconcile
type ShapeError struct {
	Op     string
	Shapes []Shape
	Reason string
}

func (e *ShapeError) Error() string {
	parts := make([]string, len(e.Shapes))
	for i, s := range e.Shapes {
		parts[i] = s.String()
	}
	msg := fmt.Sprintf("shape mismatch in %s(%s)", e.Op, strings.Join(parts, ", "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func mismatch(op string, reason string, shapes ...Shape) error {
	return &ShapeError{Op: op, Shapes: shapes, Reason: reason}
}
