package tensor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Add sums two values of identical shape
func Add(a, b Value) (Value, error) {
	if a.shape != b.shape {
		return Value{}, mismatch("add", "operands must have the same shape", a.shape, b.shape)
	}
	out := make([]float64, len(a.data))
	for i := range out {
		out[i] = a.data[i] + b.data[i]
	}
	return a.with(out), nil
}

// Sub subtracts two values of identical shape
func Sub(a, b Value) (Value, error) {
	if a.shape != b.shape {
		return Value{}, mismatch("subtract", "operands must have the same shape", a.shape, b.shape)
	}
	out := make([]float64, len(a.data))
	for i := range out {
		out[i] = a.data[i] - b.data[i]
	}
	return a.with(out), nil
}

// Neg flips the sign of every component
func Neg(a Value) Value {
	return Scale(a, -1)
}

// Scale multiplies every component by s
func Scale(a Value, s float64) Value {
	out := make([]float64, len(a.data))
	for i, x := range a.data {
		out[i] = s * x
	}
	return a.with(out)
}

// Mul is the generalised product: scaling by a scalar on either side,
// tensor-vector, vector-tensor and tensor-tensor (matrix) products.
func Mul(a, b Value) (Value, error) {
	if x, ok := a.Scalar(); ok {
		return Scale(b, x), nil
	}
	if x, ok := b.Scalar(); ok {
		return Scale(a, x), nil
	}
	switch {
	case a.shape.Rank == Tensor2 && b.shape.Rank == Vector && a.shape.Dim == b.shape.Dim:
		d := a.shape.Dim
		out := make([]float64, d)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				out[i] += a.data[i*d+j] * b.data[j]
			}
		}
		return Value{shape: b.shape, data: out}, nil
	case a.shape.Rank == Vector && b.shape.Rank == Tensor2 && a.shape.Dim == b.shape.Dim:
		d := a.shape.Dim
		out := make([]float64, d)
		for j := 0; j < d; j++ {
			for i := 0; i < d; i++ {
				out[j] += a.data[i] * b.data[i*d+j]
			}
		}
		return Value{shape: a.shape, data: out}, nil
	case a.shape.Rank == Tensor2 && b.shape == a.shape:
		A, _ := a.Dense()
		B, _ := b.Dense()
		var C mat.Dense
		C.Mul(A, B)
		return FromMatrix(&C)
	}
	return Value{}, mismatch("multiply", "unsupported operand ranks", a.shape, b.shape)
}

// Div divides by a scalar
func Div(a, b Value) (Value, error) {
	x, ok := b.Scalar()
	if !ok {
		return Value{}, mismatch("divide", "divisor must be a scalar", a.shape, b.shape)
	}
	return Scale(a, 1/x), nil
}

// Pow raises a scalar to a scalar power
func Pow(a, b Value) (Value, error) {
	x, ok1 := a.Scalar()
	y, ok2 := b.Scalar()
	if !ok1 || !ok2 {
		return Value{}, mismatch("pow", "base and exponent must be scalars", a.shape, b.shape)
	}
	return Real(math.Pow(x, y)), nil
}

// Dot is the inner product of two vectors
func Dot(a, b Value) (Value, error) {
	if a.shape.Rank != Vector || a.shape != b.shape {
		return Value{}, mismatch("dot", "needs two vectors of equal length", a.shape, b.shape)
	}
	s := 0.
	for i := range a.data {
		s += a.data[i] * b.data[i]
	}
	return Real(s), nil
}

// Cross is the 3D cross product. For 2D vectors it returns the scalar
// out-of-plane component.
func Cross(a, b Value) (Value, error) {
	if a.shape.Rank != Vector || a.shape != b.shape {
		return Value{}, mismatch("cross", "needs two vectors of equal length", a.shape, b.shape)
	}
	x, y := a.data, b.data
	switch a.shape.Dim {
	case 2:
		return Real(x[0]*y[1] - x[1]*y[0]), nil
	case 3:
		return NewVector(
			x[1]*y[2]-x[2]*y[1],
			x[2]*y[0]-x[0]*y[2],
			x[0]*y[1]-x[1]*y[0],
		), nil
	}
	return Value{}, mismatch("cross", "needs 2D or 3D vectors", a.shape, b.shape)
}

// Outer is the dyadic product of two vectors
func Outer(a, b Value) (Value, error) {
	if a.shape.Rank != Vector || a.shape != b.shape {
		return Value{}, mismatch("outer", "needs two vectors of equal length", a.shape, b.shape)
	}
	d := a.shape.Dim
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out[i*d+j] = a.data[i] * b.data[j]
		}
	}
	return Value{shape: TensorShape(d), data: out}, nil
}

// Contract is the double contraction A:B of two rank-2 tensors
func Contract(a, b Value) (Value, error) {
	if a.shape.Rank != Tensor2 || a.shape != b.shape {
		return Value{}, mismatch("contract", "needs two rank-2 tensors of equal extent", a.shape, b.shape)
	}
	s := 0.
	for i := range a.data {
		s += a.data[i] * b.data[i]
	}
	return Real(s), nil
}

func requireTensor(op string, a Value) error {
	if a.shape.Rank != Tensor2 {
		return mismatch(op, "needs a rank-2 tensor", a.shape)
	}
	return nil
}

func Trace(a Value) (Value, error) {
	if err := requireTensor("trace", a); err != nil {
		return Value{}, err
	}
	d, s := a.shape.Dim, 0.
	for i := 0; i < d; i++ {
		s += a.data[i*d+i]
	}
	return Real(s), nil
}

func Det(a Value) (Value, error) {
	if err := requireTensor("det", a); err != nil {
		return Value{}, err
	}
	A, _ := a.Dense()
	return Real(mat.Det(A)), nil
}

// Inverse fails on a singular tensor
func Inverse(a Value) (Value, error) {
	if err := requireTensor("inverse", a); err != nil {
		return Value{}, err
	}
	A, _ := a.Dense()
	var inv mat.Dense
	if err := inv.Inverse(A); err != nil {
		if c, ok := err.(mat.Condition); !ok || math.IsInf(float64(c), 1) {
			return Value{}, mismatch("inverse", "tensor is singular", a.shape)
		}
	}
	return FromMatrix(&inv)
}

func Transpose(a Value) (Value, error) {
	if err := requireTensor("transpose", a); err != nil {
		return Value{}, err
	}
	d := a.shape.Dim
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out[j*d+i] = a.data[i*d+j]
		}
	}
	return a.with(out), nil
}

// Sym is the symmetric part (A + Aᵀ)/2
func Sym(a Value) (Value, error) {
	t, err := Transpose(a)
	if err != nil {
		return Value{}, err
	}
	s, _ := Add(a, t)
	return Scale(s, 0.5), nil
}

// Skew is the antisymmetric part (A - Aᵀ)/2
func Skew(a Value) (Value, error) {
	t, err := Transpose(a)
	if err != nil {
		return Value{}, err
	}
	s, _ := Sub(a, t)
	return Scale(s, 0.5), nil
}

// Dev removes the spherical part: A - tr(A)/d I
func Dev(a Value) (Value, error) {
	tr, err := Trace(a)
	if err != nil {
		return Value{}, err
	}
	d := a.shape.Dim
	return Sub(a, Scale(Identity(d), tr.data[0]/float64(d)))
}

// Norm is the absolute value of a scalar, the Euclidean norm of a vector
// and the Frobenius norm of a tensor
func Norm(a Value) (Value, error) {
	if a.shape.Rank > Tensor2 {
		return Value{}, mismatch("norm", "needs rank <= 2", a.shape)
	}
	s := 0.
	for _, x := range a.data {
		s += x * x
	}
	return Real(math.Sqrt(s)), nil
}

// Normalize scales a to unit norm
func Normalize(a Value) (Value, error) {
	n, err := Norm(a)
	if err != nil {
		return Value{}, err
	}
	if n.data[0] == 0 {
		return Value{}, mismatch("normalize", "zero-length operand", a.shape)
	}
	return Scale(a, 1/n.data[0]), nil
}

// Component extracts entry i of a vector
func Component(a Value, i int) (Value, error) {
	if a.shape.Rank != Vector || i < 0 || i >= a.shape.Dim {
		return Value{}, mismatch("component", "index out of range or operand not a vector", a.shape)
	}
	return Real(a.data[i]), nil
}

// Component2 extracts entry (i,j) of a rank-2 tensor
func Component2(a Value, i, j int) (Value, error) {
	d := a.shape.Dim
	if a.shape.Rank != Tensor2 || i < 0 || j < 0 || i >= d || j >= d {
		return Value{}, mismatch("component", "index out of range or operand not a tensor", a.shape)
	}
	return Real(a.data[i*d+j]), nil
}

// Row extracts row i of a rank-2 tensor as a vector
func Row(a Value, i int) (Value, error) {
	d := a.shape.Dim
	if a.shape.Rank != Tensor2 || i < 0 || i >= d {
		return Value{}, mismatch("row", "index out of range or operand not a tensor", a.shape)
	}
	return NewVector(a.data[i*d : (i+1)*d]...), nil
}

// Apply maps a scalar function over a scalar value
func Apply(a Value, f func(float64) float64) (Value, error) {
	x, ok := a.Scalar()
	if !ok {
		return Value{}, mismatch("apply", "needs a scalar", a.shape)
	}
	return Real(f(x)), nil
}
