// Package diff computes symbolic first variations of expressions.
//
// The derivative of an expression with respect to a variable v is returned
// as a Differential: coefficients bucketed by the number of spatial
// derivatives that act on the variation of v. Order 0 multiplies δv itself,
// order k multiplies its k-th derivative (∇δv, ∇∇δv, ...).
package diff

import (
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/DGWeakForm/expr"
)

// Differential maps derivative order to coefficient. Missing orders are
// zero. Values are never nil.
type Differential map[int]*expr.Node

// MaxOrder is the largest populated order, -1 when empty
func (d Differential) MaxOrder() int {
	max := -1
	for k := range d {
		if k > max {
			max = k
		}
	}
	return max
}

// Orders lists the populated orders in increasing order
func (d Differential) Orders() []int {
	orders := make([]int, 0, len(d))
	for k := range d {
		orders = append(orders, k)
	}
	sort.Ints(orders)
	return orders
}

// Coefficient returns the coefficient of order k, or nil
func (d Differential) Coefficient(k int) *expr.Node { return d[k] }

func (d Differential) IsEmpty() bool { return len(d) == 0 }

func (d Differential) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range d.Orders() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(k) + ": " + d[k].String())
	}
	sb.WriteString("}")
	return sb.String()
}

// mapCoefficients applies f to every coefficient, keeping the order
func (d Differential) mapCoefficients(f func(*expr.Node) *expr.Node) Differential {
	out := make(Differential, len(d))
	for k, c := range d {
		out[k] = f(c)
	}
	return out
}

// shift moves every coefficient by delta orders, dropping any that would
// land below zero
func (d Differential) shift(delta int) Differential {
	out := make(Differential, len(d))
	for k, c := range d {
		if k+delta >= 0 {
			out[k+delta] = c
		}
	}
	return out
}
