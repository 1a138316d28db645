// Package kernel wires generated weak forms into per-quadrature-point
// kernels. A Runner owns the symbolic machinery of one arena and defines
// kernels; each KernelDefinition hands out Workers, one per goroutine,
// which evaluate the residual and Jacobian through a compiled tape and fall
// back to the interpreter when the tape cannot serve.
package kernel

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/diff"
	"github.com/notargets/DGWeakForm/element"
	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/split"
	"github.com/notargets/DGWeakForm/tape"
	"github.com/notargets/DGWeakForm/tensor"
	"github.com/notargets/DGWeakForm/weakform"
)

// Config holds configuration for creating a Runner
type Config struct {
	Discretization element.Discretization
	Parameters     *eval.Parameters    // shared read-only by every worker
	Functions      *expr.FunctionTable // nil means the builtins
	DisableTape    bool                // always use the interpreter
}

// Runner defines kernels for the expressions of one arena
type Runner struct {
	Config
	arena             *expr.Arena
	engine            *diff.Engine
	generator         *weakform.Generator
	planner           *split.Planner
	log               *logrus.Entry
	mu                sync.RWMutex
	kernelDefinitions map[string]*KernelDefinition
}

type Option func(*Runner)

func WithLogger(log *logrus.Entry) Option {
	return func(kr *Runner) { kr.log = log }
}

// NewRunner creates a Runner for arena. The arena dimension must match the
// discretization.
func NewRunner(arena *expr.Arena, cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Discretization.Validate(); err != nil {
		return nil, errors.Wrap(err, "kernel runner")
	}
	if arena.Dim() != cfg.Discretization.Dim() {
		return nil, errors.Errorf("arena dimension %d does not match the %s discretization",
			arena.Dim(), cfg.Discretization)
	}
	if cfg.Functions == nil {
		cfg.Functions = expr.NewFunctionTable()
	}
	kr := &Runner{
		Config:            cfg,
		arena:             arena,
		kernelDefinitions: make(map[string]*KernelDefinition),
	}
	for _, opt := range opts {
		opt(kr)
	}
	if kr.log == nil {
		kr.log = logrus.WithField("component", "kernel")
	}
	kr.engine = diff.NewEngine(arena, diff.WithFunctions(cfg.Functions),
		diff.WithLogger(kr.log.WithField("stage", "diff")))
	kr.generator = weakform.NewGenerator(kr.engine, weakform.WithLogger(kr.log.WithField("stage", "weakform")))
	kr.planner = split.NewPlanner(arena, cfg.Discretization.Order,
		split.WithLogger(kr.log.WithField("stage", "split")))
	return kr, nil
}

func (kr *Runner) Arena() *expr.Arena { return kr.arena }

func (kr *Runner) Generator() *weakform.Generator { return kr.generator }

// DefineKernel derives the weighted residual of energy with respect to
// variable and its Jacobian, compiles both to tapes where possible and
// records whether the discretization can represent the derivatives
// involved. Redefining a name replaces the previous kernel.
func (kr *Runner) DefineKernel(name string, energy *expr.Node, variable string,
	shape tensor.Shape) (*KernelDefinition, error) {
	if name == "" {
		return nil, errors.New("kernel name is empty")
	}
	kr.mu.Lock()
	defer kr.mu.Unlock()

	d, err := kr.engine.Differentiate(energy, variable)
	if err != nil {
		return nil, errors.Wrapf(err, "kernel %s", name)
	}
	if d.IsEmpty() {
		return nil, errors.Errorf("kernel %s: energy %s does not depend on %s", name, energy, variable)
	}
	residual, err := kr.generator.WeightedResidual(energy, variable)
	if err != nil {
		return nil, errors.Wrapf(err, "kernel %s residual", name)
	}
	jacobian, err := kr.generator.Jacobian(residual, variable, shape)
	if err != nil {
		return nil, errors.Wrapf(err, "kernel %s", name)
	}

	def := &KernelDefinition{
		Name:           name,
		Variable:       variable,
		Shape:          shape,
		Energy:         energy,
		Residual:       residual,
		Jacobian:       jacobian,
		MaxOrder:       d.MaxOrder(),
		NeedsSplitting: weakform.RequiresVariableSplitting(d, kr.Discretization.Order),
		runner:         kr,
	}
	if !kr.DisableTape {
		def.residualTape, _ = tape.BuildScalar(residual, nil)
		def.jacobianTape, _ = tape.BuildScalar(jacobian, nil)
	}
	kr.log.Debugf("kernel %s: residual tape %t, jacobian tape %t",
		name, def.residualTape != nil, def.jacobianTape != nil)

	if def.NeedsSplitting {
		kr.log.Warnf("kernel %s: %s carries order %d derivatives, beyond the %s discretization",
			name, variable, def.MaxOrder, kr.Discretization)
		def.Plan, err = kr.plan(energy, variable)
		if err != nil {
			kr.log.Debugf("kernel %s: no splitting plan: %v", name, err)
		}
	}
	kr.kernelDefinitions[name] = def
	return def, nil
}

// plan finds the cheapest splitting of the strong form of energy
func (kr *Runner) plan(energy *expr.Node, variable string) (*split.Plan, error) {
	strong, err := kr.generator.EulerLagrange(energy, variable)
	if err != nil {
		return nil, err
	}
	best, _, err := kr.planner.ComputeOptimalSplitting(strong, variable)
	return best, err
}

// GetKernel returns the named kernel definition
func (kr *Runner) GetKernel(name string) (*KernelDefinition, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	def, ok := kr.kernelDefinitions[name]
	return def, ok
}

// ListKernels returns the defined kernel names, sorted
func (kr *Runner) ListKernels() []string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	names := make([]string, 0, len(kr.kernelDefinitions))
	for name := range kr.kernelDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
