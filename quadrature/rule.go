// Package quadrature builds one-dimensional Gauss-Jacobi and Gauss-Lobatto
// integration rules on the reference interval [-1, 1].
package quadrature

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Rule is a set of points and weights on [-1, 1]
type Rule struct {
	Points  []float64
	Weights []float64
}

func (r Rule) Len() int { return len(r.Points) }

// Integrate applies the rule to f
func (r Rule) Integrate(f func(x float64) float64) (sum float64) {
	for i, x := range r.Points {
		sum += r.Weights[i] * f(x)
	}
	return
}

// Map returns the rule affinely transformed onto [a, b]
func (r Rule) Map(a, b float64) Rule {
	var (
		half = (b - a) / 2
		mid  = (a + b) / 2
		out  = Rule{
			Points:  make([]float64, r.Len()),
			Weights: make([]float64, r.Len()),
		}
	)
	for i, x := range r.Points {
		out.Points[i] = mid + half*x
		out.Weights[i] = half * r.Weights[i]
	}
	return out
}

// JacobiGQ computes the n+1 point Gauss quadrature for the weight
// (1-x)^alpha (1+x)^beta. The rule is exact for polynomials of degree 2n+1.
func JacobiGQ(alpha, beta float64, n int) (Rule, error) {
	if n < 0 {
		return Rule{}, errors.Errorf("JacobiGQ: negative order %d", n)
	}
	if alpha <= -1 || beta <= -1 {
		return Rule{}, errors.Errorf("JacobiGQ: alpha, beta must exceed -1, have %g, %g", alpha, beta)
	}
	if n == 0 {
		return Rule{
			Points:  []float64{-(alpha - beta) / (alpha + beta + 2.)},
			Weights: []float64{Gamma0(alpha, beta)},
		}, nil
	}

	// Golub-Welsch: the points are the eigenvalues of the Jacobi matrix
	h1 := make([]float64, n+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	d0 := make([]float64, n+1)
	fac := beta*beta - alpha*alpha
	for i, h := range h1 {
		d0[i] = fac / (h * (h + 2.))
	}
	if alpha+beta < 10*1.e-16 {
		d0[0] = 0.
	}
	d1 := make([]float64, n)
	for i := range d1 {
		ip1 := float64(i + 1)
		h := h1[i]
		d1[i] = 2. / (h + 2.) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h+1)/(h+3))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symTriDiagonal(d0, d1), true); !ok {
		return Rule{}, errors.Errorf("JacobiGQ: eigen decomposition failed for order %d", n)
	}
	x := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	w := make([]float64, len(x))
	g0 := Gamma0(alpha, beta)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = v * v * g0
	}
	return Rule{Points: x, Weights: w}, nil
}

// JacobiGL computes the n+1 Gauss-Lobatto points for Jacobi polynomials,
// the zeros of (1-x^2) d/dx P_n^(alpha,beta)
func JacobiGL(alpha, beta float64, n int) ([]float64, error) {
	switch {
	case n < 0:
		return nil, errors.Errorf("JacobiGL: negative order %d", n)
	case n == 0:
		return []float64{0.}, nil
	case n == 1:
		return []float64{-1., 1.}, nil
	}
	inner, err := JacobiGQ(alpha+1, beta+1, n-2)
	if err != nil {
		return nil, errors.Wrapf(err, "JacobiGL order %d", n)
	}
	x := make([]float64, n+1)
	x[0] = -1.
	copy(x[1:n], inner.Points)
	x[n] = 1.
	return x, nil
}

// GaussLegendre is the Gauss rule with the given number of points
func GaussLegendre(points int) (Rule, error) {
	if points < 1 {
		return Rule{}, errors.Errorf("GaussLegendre: need at least one point, have %d", points)
	}
	return JacobiGQ(0, 0, points-1)
}

// GaussLobatto is the Legendre-Gauss-Lobatto rule with the given number of
// points, endpoints included. It is exact for degree 2*points-3.
func GaussLobatto(points int) (Rule, error) {
	if points < 2 {
		return Rule{}, errors.Errorf("GaussLobatto: need at least two points, have %d", points)
	}
	n := points - 1
	x, err := JacobiGL(0, 0, n)
	if err != nil {
		return Rule{}, err
	}
	// w_i = 2 / (n(n+1) L_n(x_i)^2), L_n the unnormalized Legendre polynomial
	p := JacobiP(x, 0, 0, n)
	norm := math.Sqrt((2*float64(n) + 1) / 2)
	w := make([]float64, len(x))
	for i := range w {
		l := p[i] / norm
		w[i] = 2 / (float64(n*(n+1)) * l * l)
	}
	return Rule{Points: x, Weights: w}, nil
}

func symTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	t := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		t.SetSym(i, i, d0[i])
		if i < n-1 {
			t.SetSym(i, i+1, d1[i])
		}
	}
	return t
}
