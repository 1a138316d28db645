package tensor

import "gonum.org/v1/gonum/floats/scalar"

// Tolerances used for every "is zero / is one / is constant c" decision
const (
	AbsTol = 1.e-12
	RelTol = 1.e-10
)

// Close compares two reals with the package tolerances
func Close(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, AbsTol, RelTol)
}

// IsZero reports whether every component of v is zero within tolerance
func IsZero(v Value) bool {
	for _, x := range v.data {
		if !Close(x, 0) {
			return false
		}
	}
	return v.Valid()
}

// IsOne reports whether v is the scalar one
func IsOne(v Value) bool {
	x, ok := v.Scalar()
	return ok && Close(x, 1)
}

// IsScalarValue reports whether v is the scalar c
func IsScalarValue(v Value, c float64) bool {
	x, ok := v.Scalar()
	return ok && Close(x, c)
}

// ApproxEqual compares shapes exactly and components with tolerance
func ApproxEqual(a, b Value) bool {
	if a.shape != b.shape || len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		if !Close(a.data[i], b.data[i]) {
			return false
		}
	}
	return true
}
