package kernel

import (
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tape"
	"github.com/notargets/DGWeakForm/tensor"
)

// Stats counts how quadrature-point evaluations were served
type Stats struct {
	Tape        int
	Fallback    int // tape present but could not evaluate
	Interpreted int // no tape
}

// Worker evaluates one kernel. It is not safe for concurrent use; create
// one per goroutine with KernelDefinition.NewWorker.
type Worker struct {
	def      *KernelDefinition
	eval     *eval.Evaluator
	residual *tape.Tape
	jacobian *tape.Tape
	inputs   map[string]tensor.Value
	stats    Stats
	log      *logrus.Entry
}

func (w *Worker) Definition() *KernelDefinition { return w.def }

func (w *Worker) Stats() Stats { return w.stats }

// Residual evaluates the weighted residual at one quadrature point. qp
// must carry the variable's field data and its test function.
func (w *Worker) Residual(qp *eval.Context) (float64, error) {
	return w.evaluate(w.def.Residual, w.residual, qp)
}

// Jacobian evaluates the linearized residual at one quadrature point for
// the test and shape functions in qp
func (w *Worker) Jacobian(qp *eval.Context) (float64, error) {
	return w.evaluate(w.def.Jacobian, w.jacobian, qp)
}

func (w *Worker) evaluate(n *expr.Node, tp *tape.Tape, qp *eval.Context) (float64, error) {
	if tp == nil {
		w.stats.Interpreted++
		return w.eval.EvaluateScalar(n, qp)
	}
	w.inputs = tape.InputsFrom(qp, w.def.runner.Parameters, w.inputs)
	if x, ok := tp.EvaluateScalar(w.inputs); ok {
		w.stats.Tape++
		return x, nil
	}
	w.stats.Fallback++
	w.log.Debugf("tape could not evaluate %s, using the interpreter", n)
	return w.eval.EvaluateScalar(n, qp)
}
