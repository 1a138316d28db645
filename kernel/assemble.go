package kernel

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGWeakForm/element"
	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/quadrature"
	"github.com/notargets/DGWeakForm/tensor"
)

// LineElement is one physical element of a 1D mesh with the nodal
// coefficients of the kernel's variable on it
type LineElement struct {
	X0, X1 float64
	U      []float64
	Time   float64
}

// AssembleLine integrates the residual and Jacobian of a scalar kernel over
// one line element with the given reference rule:
//
//	R_i  = Σ_q w_q |J| r(u, l_i)
//	K_ij = Σ_q w_q |J| j(u, l_i, l_j)
func (w *Worker) AssembleLine(line *element.Line, rule quadrature.Rule, el LineElement) (*mat.VecDense, *mat.Dense, error) {
	def := w.def
	switch {
	case !def.Shape.IsScalar():
		return nil, nil, errors.Errorf("kernel %s: line assembly needs a scalar variable, have %s", def.Name, def.Shape)
	case def.runner.arena.Dim() != 1:
		return nil, nil, errors.Errorf("kernel %s: line assembly needs a 1D arena", def.Name)
	case len(el.U) != line.Np():
		return nil, nil, errors.Errorf("kernel %s: %d coefficients for %d nodes", def.Name, len(el.U), line.Np())
	case el.X1 <= el.X0:
		return nil, nil, errors.Errorf("kernel %s: degenerate element [%g, %g]", def.Name, el.X0, el.X1)
	}

	var (
		np   = line.Np()
		jac  = (el.X1 - el.X0) / 2 // dx/dr
		r    = mat.NewVecDense(np, nil)
		k    = mat.NewDense(np, np, nil)
		test = make([]eval.FunctionData, np)
		ctx  = &eval.Context{
			Fields: make(map[string]eval.FieldData, 1),
			Test:   make(map[string]eval.FunctionData, 1),
			Shape:  make(map[string]eval.FunctionData, 1),
			Time:   el.Time,
		}
	)
	for q, rq := range rule.Points {
		wq := rule.Weights[q] * jac
		phi, dphi, d2phi := line.Basis(rq)
		for i := range test {
			test[i] = eval.FunctionData{
				Value:    tensor.Real(phi[i]),
				Gradient: tensor.NewVector(dphi[i] / jac),
				Hessian:  tensor.NewTensor(1, []float64{d2phi[i] / (jac * jac)}),
			}
		}
		u, du, d2u := line.Interpolate(el.U, rq)
		ctx.Fields[def.Variable] = eval.FieldData{
			Value:    tensor.Real(u),
			Gradient: tensor.NewVector(du / jac),
			Hessian:  tensor.NewTensor(1, []float64{d2u / (jac * jac)}),
		}
		ctx.Position = tensor.NewVector(el.X0 + jac*(rq+1))

		for i := 0; i < np; i++ {
			ctx.Test[def.Variable] = test[i]
			ri, err := w.Residual(ctx)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "kernel %s residual at point %d", def.Name, q)
			}
			r.SetVec(i, r.AtVec(i)+wq*ri)
			for j := 0; j < np; j++ {
				ctx.Shape[def.Variable] = test[j]
				kij, err := w.Jacobian(ctx)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "kernel %s jacobian at point %d", def.Name, q)
				}
				k.Set(i, j, k.At(i, j)+wq*kij)
			}
		}
	}
	return r, k, nil
}
