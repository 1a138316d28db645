package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monomial(k int) func(float64) float64 {
	return func(x float64) float64 { return math.Pow(x, float64(k)) }
}

func exactMonomial(k int) float64 {
	if k%2 == 1 {
		return 0
	}
	return 2 / float64(k+1)
}

func TestGaussLegendreExactness(t *testing.T) {
	for points := 1; points <= 8; points++ {
		r, err := GaussLegendre(points)
		require.NoError(t, err)
		require.Equal(t, points, r.Len())
		for k := 0; k <= 2*points-1; k++ {
			assert.InDelta(t, exactMonomial(k), r.Integrate(monomial(k)), 1e-12,
				"points %d, degree %d", points, k)
		}
	}
}

func TestGaussLegendreKnownRule(t *testing.T) {
	r, err := GaussLegendre(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1 / math.Sqrt(3), 1 / math.Sqrt(3)}, r.Points, 1e-14)
	assert.InDeltaSlice(t, []float64{1, 1}, r.Weights, 1e-14)

	r, err = GaussLegendre(3)
	require.NoError(t, err)
	assert.InDelta(t, 0, r.Points[1], 1e-14)
	assert.InDelta(t, 8./9., r.Weights[1], 1e-14)
	assert.InDelta(t, 5./9., r.Weights[0], 1e-14)
}

func TestJacobiGQWeight(t *testing.T) {
	// the weight (1-x)(1+x) integrates x^2 to 4/15
	r, err := JacobiGQ(1, 1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4./15., r.Integrate(monomial(2)), 1e-13)
	assert.InDelta(t, 4./3., r.Integrate(monomial(0)), 1e-13)

	_, err = JacobiGQ(0, 0, -1)
	assert.Error(t, err)
	_, err = JacobiGQ(-1, 0, 2)
	assert.Error(t, err)
}

func TestJacobiGL(t *testing.T) {
	x, err := JacobiGL(0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1}, x)

	x, err = JacobiGL(0, 0, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, x, 1e-14)

	x, err = JacobiGL(0, 0, 4)
	require.NoError(t, err)
	s := math.Sqrt(3. / 7.)
	assert.InDeltaSlice(t, []float64{-1, -s, 0, s, 1}, x, 1e-13)
}

func TestGaussLobatto(t *testing.T) {
	for points := 2; points <= 7; points++ {
		r, err := GaussLobatto(points)
		require.NoError(t, err)
		assert.Equal(t, -1.0, r.Points[0])
		assert.Equal(t, 1.0, r.Points[points-1])
		for k := 0; k <= 2*points-3; k++ {
			assert.InDelta(t, exactMonomial(k), r.Integrate(monomial(k)), 1e-12,
				"points %d, degree %d", points, k)
		}
	}
	r, err := GaussLobatto(3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1. / 3., 4. / 3., 1. / 3.}, r.Weights, 1e-14)

	_, err = GaussLobatto(1)
	assert.Error(t, err)
}

func TestMap(t *testing.T) {
	r, err := GaussLegendre(3)
	require.NoError(t, err)
	m := r.Map(0, 2)
	// ∫_0^2 x^3 dx = 4
	assert.InDelta(t, 4, m.Integrate(monomial(3)), 1e-13)
}

func TestJacobiPOrthonormal(t *testing.T) {
	r, err := GaussLegendre(8)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			pi := JacobiP(r.Points, 0, 0, i)
			pj := JacobiP(r.Points, 0, 0, j)
			var sum float64
			for q, w := range r.Weights {
				sum += w * pi[q] * pj[q]
			}
			want := 0.
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, sum, 1e-12, "(%d, %d)", i, j)
		}
	}
}

func TestDerivJacobiP(t *testing.T) {
	x := []float64{-0.7, 0.1, 0.4}
	// orthonormal P_2^(0,0) = sqrt(5/2) (3x^2-1)/2
	c := math.Sqrt(2.5)
	p := JacobiP(x, 0, 0, 2)
	dp := GradJacobiP(x, 0, 0, 2)
	d2p := DerivJacobiP(x, 0, 0, 2, 2)
	d3p := DerivJacobiP(x, 0, 0, 2, 3)
	for i, xi := range x {
		assert.InDelta(t, c*(3*xi*xi-1)/2, p[i], 1e-14)
		assert.InDelta(t, c*3*xi, dp[i], 1e-14)
		assert.InDelta(t, c*3, d2p[i], 1e-13)
		assert.Equal(t, 0.0, d3p[i])
	}
}
