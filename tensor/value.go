package tensor

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Value is a concrete numeric quantity paired with its Shape. Components
// are stored row-major. Values are never mutated after construction.
type Value struct {
	shape Shape
	data  []float64
}

// Real wraps a scalar
func Real(x float64) Value {
	return Value{shape: ScalarShape, data: []float64{x}}
}

// NewVector copies the components into a vector of len(x)
func NewVector(x ...float64) Value {
	data := make([]float64, len(x))
	copy(data, x)
	return Value{shape: VectorShape(len(x)), data: data}
}

// NewTensor builds a dim x dim tensor from row-major data
func NewTensor(dim int, data []float64) Value {
	if len(data) != dim*dim {
		panic(fmt.Sprintf("tensor of dim %d needs %d components, got %d", dim, dim*dim, len(data)))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return Value{shape: TensorShape(dim), data: d}
}

// New builds a value of any shape from row-major data
func New(s Shape, data []float64) (Value, error) {
	if len(data) != s.Size() {
		return Value{}, fmt.Errorf("shape %s needs %d components, got %d", s, s.Size(), len(data))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return Value{shape: s, data: d}, nil
}

// FromMatrix converts a square gonum matrix into a rank-2 tensor
func FromMatrix(m mat.Matrix) (Value, error) {
	r, c := m.Dims()
	if r != c {
		return Value{}, fmt.Errorf("tensor needs a square matrix, got %dx%d", r, c)
	}
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return Value{shape: TensorShape(r), data: data}, nil
}

// Identity is the dim x dim identity tensor
func Identity(dim int) Value {
	v := Zero(TensorShape(dim))
	for i := 0; i < dim; i++ {
		v.data[i*dim+i] = 1
	}
	return v
}

// Unit is the i-th Cartesian basis vector of length dim
func Unit(dim, i int) Value {
	v := Zero(VectorShape(dim))
	v.data[i] = 1
	return v
}

// Zero is the all-zero value of a shape
func Zero(s Shape) Value {
	return Value{shape: s, data: make([]float64, s.Size())}
}

// Fill returns a value of shape s whose components all equal x
func Fill(s Shape, x float64) Value {
	v := Zero(s)
	for i := range v.data {
		v.data[i] = x
	}
	return v
}

func (v Value) Shape() Shape { return v.shape }

// Valid reports whether the value has been initialised
func (v Value) Valid() bool { return v.data != nil }

// Scalar returns the scalar payload and whether v is a scalar
func (v Value) Scalar() (float64, bool) {
	if v.shape.Rank != Scalar || len(v.data) != 1 {
		return 0, false
	}
	return v.data[0], true
}

// At returns the i-th stored component
func (v Value) At(i int) float64 { return v.data[i] }

// At2 returns component (i,j) of a rank-2 tensor
func (v Value) At2(i, j int) float64 { return v.data[i*v.shape.Dim+j] }

// Data returns a copy of the stored components
func (v Value) Data() []float64 {
	d := make([]float64, len(v.data))
	copy(d, v.data)
	return d
}

// Dense returns a rank-2 value as a gonum matrix
func (v Value) Dense() (*mat.Dense, error) {
	if v.shape.Rank != Tensor2 {
		return nil, mismatch("dense", "needs a rank-2 tensor", v.shape)
	}
	return mat.NewDense(v.shape.Dim, v.shape.Dim, v.Data()), nil
}

func (v Value) String() string {
	if !v.Valid() {
		return "<nil>"
	}
	format := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	switch v.shape.Rank {
	case Scalar:
		return format(v.data[0])
	case Tensor2:
		var sb strings.Builder
		sb.WriteString("[")
		d := v.shape.Dim
		for i := 0; i < d; i++ {
			if i > 0 {
				sb.WriteString("; ")
			}
			for j := 0; j < d; j++ {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(format(v.data[i*d+j]))
			}
		}
		sb.WriteString("]")
		return sb.String()
	default:
		parts := make([]string, len(v.data))
		for i, x := range v.data {
			parts[i] = format(x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

func (v Value) with(data []float64) Value {
	return Value{shape: v.shape, data: data}
}
