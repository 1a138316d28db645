// Package element describes the host discretization a weak form is
// assembled on and provides the one-dimensional nodal Lagrange element
// used for assembly and testing.
package element

import (
	"fmt"

	"github.com/pkg/errors"
)

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // points
	D1                       // lines
	D2                       // triangles, quadrilaterals
	D3                       // tetrahedra, hexahedra
)

func (d Dimensionality) String() string { return fmt.Sprintf("%dD", uint8(d)) }

// Discretization is the polynomial order and spatial dimension of the
// finite element space. Order bounds the derivative order a weak form may
// place on a single variable before the variable must be split.
type Discretization struct {
	Order      int
	Dimensions Dimensionality
}

func (d Discretization) Validate() error {
	if d.Order < 1 {
		return errors.Errorf("element order must be positive, have %d", d.Order)
	}
	if d.Dimensions < D1 || d.Dimensions > D3 {
		return errors.Errorf("dimension must be 1, 2 or 3, have %d", d.Dimensions)
	}
	return nil
}

// Dim is the spatial dimension as an int
func (d Discretization) Dim() int { return int(d.Dimensions) }

// Supports reports whether derivatives of order k are representable on
// the element without splitting
func (d Discretization) Supports(k int) bool { return k <= d.Order }

func (d Discretization) String() string {
	return fmt.Sprintf("P%d %s", d.Order, d.Dimensions)
}
