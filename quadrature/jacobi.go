package quadrature

import (
	"math"
)

// JacobiP evaluates the orthonormal Jacobi polynomial P_n^(alpha,beta) at
// every point of x
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	var (
		np    = len(x)
		pm1   = make([]float64, np)
		p     = make([]float64, np)
		g0    = Gamma0(alpha, beta)
		g1    = Gamma1(alpha, beta)
		ab    = alpha + beta
		scale = 1. / math.Sqrt(g0)
	)
	for i := range p {
		p[i] = scale
	}
	if n == 0 {
		return p
	}
	copy(pm1, p)
	for i, xi := range x {
		p[i] = ((ab+2)*xi/2 + (alpha-beta)/2) / math.Sqrt(g1)
	}

	// three term recurrence, pm1 = P_{i-1}, p = P_i
	aold := 2. / (2. + ab) * math.Sqrt((alpha+1)*(beta+1)/(ab+3))
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + ab
		anew := 2. / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+ab)*(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)
		for j, xj := range x {
			next := (-aold*pm1[j] + (xj-bnew)*p[j]) / anew
			pm1[j], p[j] = p[j], next
		}
		aold = anew
	}
	return p
}

// DerivJacobiP evaluates the k-th derivative of the orthonormal Jacobi
// polynomial P_n^(alpha,beta), using
// d/dx P_n^(a,b) = sqrt(n(n+a+b+1)) P_{n-1}^(a+1,b+1)
func DerivJacobiP(x []float64, alpha, beta float64, n, k int) []float64 {
	if k == 0 {
		return JacobiP(x, alpha, beta, n)
	}
	if n < k {
		return make([]float64, len(x))
	}
	fac := math.Sqrt(float64(n) * (float64(n) + alpha + beta + 1))
	dp := DerivJacobiP(x, alpha+1, beta+1, n-1, k-1)
	for i := range dp {
		dp[i] *= fac
	}
	return dp
}

// GradJacobiP is the first derivative of JacobiP
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	return DerivJacobiP(x, alpha, beta, n, 1)
}

// Gamma0 is the squared norm of P_0^(alpha,beta) on [-1, 1]
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Gamma(alpha+1.) * math.Gamma(beta+1.) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// Gamma1 is the squared norm of P_1^(alpha,beta) on [-1, 1]
func Gamma1(alpha, beta float64) float64 {
	return (alpha + 1.) * (beta + 1.) * Gamma0(alpha, beta) / (alpha + beta + 3.)
}
