package kernel

import (
	"fmt"
	"io"

	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/split"
	"github.com/notargets/DGWeakForm/tape"
	"github.com/notargets/DGWeakForm/tensor"
)

// KernelDefinition holds all information about a defined kernel. It is
// read-only once DefineKernel returns and may be shared between goroutines.
type KernelDefinition struct {
	Name           string
	Variable       string
	Shape          tensor.Shape
	Energy         *expr.Node
	Residual       *expr.Node
	Jacobian       *expr.Node
	MaxOrder       int
	NeedsSplitting bool
	Plan           *split.Plan // cheapest splitting when NeedsSplitting, else nil

	residualTape *tape.Tape
	jacobianTape *tape.Tape
	runner       *Runner
}

// Compiled reports which of the residual and Jacobian run on a tape
func (kd *KernelDefinition) Compiled() (residual, jacobian bool) {
	return kd.residualTape != nil, kd.jacobianTape != nil
}

// NewWorker returns an evaluator for one goroutine
func (kd *KernelDefinition) NewWorker() *Worker {
	kr := kd.runner
	w := &Worker{
		def: kd,
		eval: eval.New(
			eval.WithFunctions(kr.Functions),
			eval.WithParameters(kr.Parameters),
			eval.WithLogger(kr.log.WithField("kernel", kd.Name)),
		),
		log: kr.log.WithField("kernel", kd.Name),
	}
	if kd.residualTape != nil {
		w.residual = kd.residualTape.Clone()
	}
	if kd.jacobianTape != nil {
		w.jacobian = kd.jacobianTape.Clone()
	}
	return w
}

func (kd *KernelDefinition) String() string {
	return fmt.Sprintf("kernel %s: %s [%s], order %d", kd.Name, kd.Variable, kd.Shape, kd.MaxOrder)
}

// Dump writes the kernel's expressions, its tapes and any splitting plan
func (kd *KernelDefinition) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n  energy: %s\n  residual: %s\n  jacobian: %s\n",
		kd, kd.Energy, kd.Residual, kd.Jacobian); err != nil {
		return err
	}
	for _, t := range []struct {
		name string
		tp   *tape.Tape
	}{{"residual", kd.residualTape}, {"jacobian", kd.jacobianTape}} {
		if t.tp == nil {
			if _, err := fmt.Fprintf(w, "  %s tape: interpreted\n", t.name); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s tape:\n%s", t.name, t.tp); err != nil {
			return err
		}
	}
	if kd.NeedsSplitting {
		if _, err := fmt.Fprintf(w, "  needs splitting at order %d\n", kd.runner.Discretization.Order); err != nil {
			return err
		}
		if kd.Plan != nil {
			return kd.Plan.Dump(w)
		}
	}
	return nil
}
