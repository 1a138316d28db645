package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDiscretization(t *testing.T) {
	d := Discretization{Order: 1, Dimensions: D2}
	require.NoError(t, d.Validate())
	assert.Equal(t, 2, d.Dim())
	assert.True(t, d.Supports(1))
	assert.False(t, d.Supports(2))
	assert.Equal(t, "P1 2D", d.String())

	assert.Error(t, Discretization{Order: 0, Dimensions: D2}.Validate())
	assert.Error(t, Discretization{Order: 2, Dimensions: D0}.Validate())
	assert.Error(t, Discretization{Order: 2, Dimensions: 4}.Validate())
}

func TestLinearLine(t *testing.T) {
	l, err := NewLine(1)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Np())
	assert.Equal(t, []float64{-1, 1}, l.R())

	want := mat.NewDense(2, 2, []float64{2. / 3., 1. / 3., 1. / 3., 2. / 3.})
	assert.True(t, mat.EqualApprox(want, l.M(), 1e-14), "mass matrix\n%v", mat.Formatted(l.M()))

	dr := mat.NewDense(2, 2, []float64{-0.5, 0.5, -0.5, 0.5})
	assert.True(t, mat.EqualApprox(dr, l.Dr(), 1e-14))

	phi, dphi, d2phi := l.Basis(0.5)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, phi, 1e-14)
	assert.InDeltaSlice(t, []float64{-0.5, 0.5}, dphi, 1e-14)
	assert.InDeltaSlice(t, []float64{0, 0}, d2phi, 1e-14)

	_, err = NewLine(0)
	assert.Error(t, err)
}

func TestLineIsNodal(t *testing.T) {
	for order := 1; order <= 5; order++ {
		l, err := NewLine(order)
		require.NoError(t, err)
		for i, r := range l.R() {
			phi, _, _ := l.Basis(r)
			for j := range phi {
				want := 0.
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, phi[j], 1e-12, "order %d, node %d, basis %d", order, i, j)
			}
		}
	}
}

func TestInterpolateReproducesPolynomials(t *testing.T) {
	l, err := NewLine(3)
	require.NoError(t, err)
	f := func(x float64) float64 { return x*x*x - 2*x + 1 }
	u := make([]float64, l.Np())
	for i, r := range l.R() {
		u[i] = f(r)
	}
	for _, r := range []float64{-0.9, -0.2, 0.3, 0.77} {
		val, du, d2u := l.Interpolate(u, r)
		assert.InDelta(t, f(r), val, 1e-12)
		assert.InDelta(t, 3*r*r-2, du, 1e-12)
		assert.InDelta(t, 6*r, d2u, 1e-11)
	}

	// the nodal derivative matrix agrees with the interpolant
	var du mat.VecDense
	du.MulVec(l.Dr(), mat.NewVecDense(len(u), u))
	for i, r := range l.R() {
		assert.InDelta(t, 3*r*r-2, du.AtVec(i), 1e-12)
	}
}
