package element

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGWeakForm/quadrature"
)

// Line is the nodal Lagrange element on [-1, 1] with its nodes at the
// Legendre-Gauss-Lobatto points
type Line struct {
	order int
	r     []float64
	v     *mat.Dense // modal to nodal [Np × Np]
	vinv  *mat.Dense
	dr    *mat.Dense // nodal derivative [Np × Np]
	m     *mat.Dense // mass matrix on the reference line
}

// NewLine builds the order N line element
func NewLine(order int) (*Line, error) {
	if order < 1 {
		return nil, errors.Errorf("line element order must be positive, have %d", order)
	}
	r, err := quadrature.JacobiGL(0, 0, order)
	if err != nil {
		return nil, errors.Wrapf(err, "line element order %d", order)
	}
	l := &Line{order: order, r: r}
	l.v = Vandermonde1D(order, r)
	l.vinv = mat.NewDense(order+1, order+1, nil)
	if err = l.vinv.Inverse(l.v); err != nil {
		return nil, errors.Wrapf(err, "inverting the order %d Vandermonde matrix", order)
	}
	l.dr = mat.NewDense(order+1, order+1, nil)
	l.dr.Mul(GradVandermonde1D(order, r), l.vinv)

	// M = (V Vᵀ)⁻¹
	var vvt mat.Dense
	vvt.Mul(l.v, l.v.T())
	l.m = mat.NewDense(order+1, order+1, nil)
	if err = l.m.Inverse(&vvt); err != nil {
		return nil, errors.Wrapf(err, "mass matrix of order %d", order)
	}
	return l, nil
}

func (l *Line) Order() int { return l.order }

// Np is the number of nodes
func (l *Line) Np() int { return l.order + 1 }

// R returns the reference node coordinates
func (l *Line) R() []float64 { return l.r }

func (l *Line) V() mat.Matrix    { return l.v }
func (l *Line) Vinv() mat.Matrix { return l.vinv }
func (l *Line) Dr() mat.Matrix   { return l.dr }
func (l *Line) M() mat.Matrix    { return l.m }

// Basis evaluates every nodal basis function at r together with its
// first and second reference derivatives
func (l *Line) Basis(r float64) (phi, dphi, d2phi []float64) {
	np := l.Np()
	phi = make([]float64, np)
	dphi = make([]float64, np)
	d2phi = make([]float64, np)
	x := []float64{r}
	// l_j(r) = Σ_k Vinv[k][j] P_k(r)
	for k := 0; k < np; k++ {
		p := quadrature.JacobiP(x, 0, 0, k)[0]
		dp := quadrature.DerivJacobiP(x, 0, 0, k, 1)[0]
		d2p := quadrature.DerivJacobiP(x, 0, 0, k, 2)[0]
		for j := 0; j < np; j++ {
			c := l.vinv.At(k, j)
			phi[j] += c * p
			dphi[j] += c * dp
			d2phi[j] += c * d2p
		}
	}
	return
}

// Interpolate evaluates the nodal function with coefficients u at r, and
// its first and second reference derivatives
func (l *Line) Interpolate(u []float64, r float64) (val, du, d2u float64) {
	phi, dphi, d2phi := l.Basis(r)
	for j, uj := range u {
		val += uj * phi[j]
		du += uj * dphi[j]
		d2u += uj * d2phi[j]
	}
	return
}

// Vandermonde1D initializes the 1D Vandermonde matrix V_{ij} = P_j(r_i)
func Vandermonde1D(N int, r []float64) *mat.Dense {
	v := mat.NewDense(len(r), N+1, nil)
	for j := 0; j <= N; j++ {
		v.SetCol(j, quadrature.JacobiP(r, 0, 0, j))
	}
	return v
}

// GradVandermonde1D builds (Vr)_{ij} = dP_j/dr at r_i
func GradVandermonde1D(N int, r []float64) *mat.Dense {
	vr := mat.NewDense(len(r), N+1, nil)
	for j := 0; j <= N; j++ {
		vr.SetCol(j, quadrature.GradJacobiP(r, 0, 0, j))
	}
	return vr
}
