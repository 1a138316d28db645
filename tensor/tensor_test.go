package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeInference(t *testing.T) {
	tests := []struct {
		in       Shape
		grad     Shape
		gradFail bool
		div      Shape
		divFail  bool
	}{
		{ScalarShape, VectorShape(3), false, Shape{}, true},
		{VectorShape(3), TensorShape(3), false, ScalarShape, false},
		{TensorShape(3), Rank3Shape(3), false, VectorShape(3), false},
		{Rank3Shape(3), Shape{}, true, TensorShape(3), false},
		{Rank4Shape(3, 3), Shape{}, true, Shape{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			g, err := GradientShape(tt.in, 3)
			if tt.gradFail {
				var se *ShapeError
				assert.True(t, errors.As(err, &se))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.grad, g)
			}
			d, err := DivergenceShape(tt.in)
			if tt.divFail {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.div, d)
			}
		})
	}
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("vector", 2)
	require.NoError(t, err)
	assert.Equal(t, VectorShape(2), s)

	s, err = ParseShape("tensor(3)", 2)
	require.NoError(t, err)
	assert.Equal(t, TensorShape(3), s)

	s, err = ParseShape("rank4(3,2)", 3)
	require.NoError(t, err)
	assert.Equal(t, Rank4Shape(3, 2), s)

	_, err = ParseShape("matrix", 3)
	assert.Error(t, err)
}

func TestAlgebra(t *testing.T) {
	a := NewVector(1, -2, 3)
	b := NewVector(4, 5, 6)

	d, err := Dot(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 14., d.At(0), 1.e-14)

	c, err := Cross(a, b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-27, 6, 13}, c.Data(), 1.e-14)

	o, err := Outer(a, b)
	require.NoError(t, err)
	assert.Equal(t, TensorShape(3), o.Shape())
	assert.InDelta(t, -10., o.At2(1, 1), 1.e-14)

	_, err = Add(a, o)
	var se *ShapeError
	assert.True(t, errors.As(err, &se), "adding a vector to a tensor must fail")

	_, err = Dot(Real(2), o)
	assert.Error(t, err)

	mv, err := Mul(o, NewVector(1, 0, 0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, -8, 12}, mv.Data(), 1.e-14)
}

func TestRank2Operations(t *testing.T) {
	A := NewTensor(2, []float64{4, 1, 2, 3})

	det, err := Det(A)
	require.NoError(t, err)
	assert.InDelta(t, 10., det.At(0), 1.e-12)

	inv, err := Inverse(A)
	require.NoError(t, err)
	I, err := Mul(A, inv)
	require.NoError(t, err)
	assert.True(t, ApproxEqual(I, Identity(2)), "A*inv(A) = %v", I)

	tr, _ := Trace(A)
	assert.InDelta(t, 7., tr.At(0), 1.e-14)

	sym, _ := Sym(A)
	skew, _ := Skew(A)
	sum, _ := Add(sym, skew)
	assert.True(t, ApproxEqual(sum, A))

	dev, _ := Dev(A)
	trDev, _ := Trace(dev)
	assert.InDelta(t, 0., trDev.At(0), 1.e-14)

	AB, _ := Contract(A, Identity(2))
	assert.InDelta(t, 7., AB.At(0), 1.e-14)

	_, err = Inverse(NewTensor(2, []float64{1, 2, 2, 4}))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	n, err := Normalize(NewVector(3, 4))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, n.Data(), 1.e-14)

	_, err = Normalize(NewVector(0, 0))
	assert.Error(t, err)

	norm, _ := Norm(NewTensor(2, []float64{1, 1, 1, 1}))
	assert.InDelta(t, 2., norm.At(0), 1.e-14)
}

func TestTolerance(t *testing.T) {
	assert.True(t, IsZero(Real(1.e-15)))
	assert.True(t, IsOne(Real(1+1.e-13)))
	assert.False(t, IsOne(NewVector(1)))
	assert.True(t, IsScalarValue(Real(math.Pi), math.Pi))
	assert.False(t, ApproxEqual(Real(1), NewVector(1)))
}
