package kernel

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGWeakForm/element"
	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/parser"
	"github.com/notargets/DGWeakForm/quadrature"
	"github.com/notargets/DGWeakForm/tensor"
)

type fixture struct {
	arena  *expr.Arena
	parser *parser.Parser
	runner *Runner
}

func newFixture(t *testing.T, order int, opts ...func(*Config)) *fixture {
	arena := expr.NewArena(1)
	params, err := eval.NewParameters(
		eval.Scalar("kappa").Bind(0.25),
		eval.Scalar("f").Bind(2.0),
	)
	require.NoError(t, err)
	cfg := Config{
		Discretization: element.Discretization{Order: order, Dimensions: element.D1},
		Parameters:     params,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	kr, err := NewRunner(arena, cfg)
	require.NoError(t, err)
	return &fixture{
		arena: arena,
		parser: parser.New(arena, parser.Config{
			Fields:     map[string]tensor.Shape{"u": tensor.ScalarShape},
			Parameters: []string{"kappa", "f"},
		}),
		runner: kr,
	}
}

func (f *fixture) define(t *testing.T, name, energy string) *KernelDefinition {
	n, err := f.parser.Parse(energy)
	require.NoError(t, err, energy)
	def, err := f.runner.DefineKernel(name, n, "u", tensor.ScalarShape)
	require.NoError(t, err, energy)
	return def
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(expr.NewArena(2), Config{
		Discretization: element.Discretization{Order: 1, Dimensions: element.D1},
	})
	assert.Error(t, err, "dimension mismatch")
	_, err = NewRunner(expr.NewArena(1), Config{
		Discretization: element.Discretization{Order: 0, Dimensions: element.D1},
	})
	assert.Error(t, err)
}

func TestDefineKernel(t *testing.T) {
	f := newFixture(t, 1)
	def := f.define(t, "poisson", "0.5*dot(grad(u), grad(u)) - f*u")
	assert.Equal(t, 1, def.MaxOrder)
	assert.False(t, def.NeedsSplitting)
	assert.Nil(t, def.Plan)
	res, jac := def.Compiled()
	assert.True(t, res)
	assert.True(t, jac)
	assert.Contains(t, def.Jacobian.String(), "grad(phi(u))")

	got, ok := f.runner.GetKernel("poisson")
	require.True(t, ok)
	assert.Same(t, def, got)
	_, ok = f.runner.GetKernel("missing")
	assert.False(t, ok)

	f.define(t, "allen-cahn", "W(u) + 0.5*kappa*dot(grad(u), grad(u))")
	assert.Equal(t, []string{"allen-cahn", "poisson"}, f.runner.ListKernels())

	n, err := f.parser.Parse("kappa*kappa")
	require.NoError(t, err)
	_, err = f.runner.DefineKernel("constant", n, "u", tensor.ScalarShape)
	assert.Error(t, err, "energy independent of u")
	_, err = f.runner.DefineKernel("", n, "u", tensor.ScalarShape)
	assert.Error(t, err)
}

func TestNeedsSplitting(t *testing.T) {
	f := newFixture(t, 1)
	def := f.define(t, "biharmonic", "0.5*pow(laplacian(u), 2)")
	assert.Equal(t, 2, def.MaxOrder)
	assert.True(t, def.NeedsSplitting)
	require.NotNil(t, def.Plan)
	assert.Equal(t, 4, def.Plan.MaxOrder)

	var buf bytes.Buffer
	require.NoError(t, def.Dump(&buf))
	assert.Contains(t, buf.String(), "needs splitting at order 1")
	assert.Contains(t, buf.String(), "residual tape: interpreted")

	f2 := newFixture(t, 2)
	def = f2.define(t, "biharmonic", "0.5*pow(laplacian(u), 2)")
	assert.False(t, def.NeedsSplitting)
}

func TestWorkerPointEvaluation(t *testing.T) {
	f := newFixture(t, 1)
	def := f.define(t, "poisson", "0.5*dot(grad(u), grad(u)) - f*u")
	w := def.NewWorker()
	qp := &eval.Context{
		Fields: map[string]eval.FieldData{"u": {Value: tensor.Real(1), Gradient: tensor.NewVector(3)}},
		Test:   map[string]eval.FunctionData{"u": {Value: tensor.Real(0.5), Gradient: tensor.NewVector(2)}},
		Shape:  map[string]eval.FunctionData{"u": {Value: tensor.Real(0.5), Gradient: tensor.NewVector(-1)}},
	}
	r, err := w.Residual(qp)
	require.NoError(t, err)
	want, err := eval.New(eval.WithParameters(f.runner.Parameters)).EvaluateScalar(def.Residual, qp)
	require.NoError(t, err)
	assert.InDelta(t, want, r, 1e-14)

	_, err = w.Jacobian(qp)
	require.NoError(t, err)
	assert.Equal(t, Stats{Tape: 2}, w.Stats())

	// no gradient: the tape misses u_grad and the interpreter reports why
	delete(qp.Fields, "u")
	qp.Fields["u"] = eval.FieldData{Value: tensor.Real(1)}
	_, err = w.Residual(qp)
	assert.Error(t, err)
	assert.Equal(t, 1, w.Stats().Fallback)
}

func TestAssembleLinearStiffness(t *testing.T) {
	f := newFixture(t, 1)
	def := f.define(t, "laplace", "0.5*dot(grad(u), grad(u))")
	line, err := element.NewLine(1)
	require.NoError(t, err)
	rule, err := quadrature.GaussLegendre(2)
	require.NoError(t, err)

	w := def.NewWorker()
	r, k, err := w.AssembleLine(line, rule, LineElement{X0: 0, X1: 0.5, U: []float64{0, 1}})
	require.NoError(t, err)
	// -∫ l_j' l_i' dx on an element of length h
	want := mat.NewDense(2, 2, []float64{-2, 2, 2, -2})
	assert.True(t, mat.EqualApprox(want, k, 1e-12), "stiffness\n%v", mat.Formatted(k))
	assert.InDelta(t, 2, r.AtVec(0), 1e-12)
	assert.InDelta(t, -2, r.AtVec(1), 1e-12)
	assert.Zero(t, w.Stats().Interpreted)
	assert.Zero(t, w.Stats().Fallback)
}

// the assembled Jacobian is the derivative of the assembled residual
func TestAssembleJacobianMatchesFiniteDifference(t *testing.T) {
	for _, energy := range []string{
		"W(u) + 0.5*kappa*dot(grad(u), grad(u))",
		"0.5*dot(grad(u), grad(u))*(1 + u*u) - f*u*x",
		"exp(u) + kappa*pow(dot(grad(u), grad(u)), 2)",
	} {
		t.Run(energy, func(t *testing.T) {
			f := newFixture(t, 2)
			def := f.define(t, "k", energy)
			line, err := element.NewLine(2)
			require.NoError(t, err)
			rule, err := quadrature.GaussLegendre(5)
			require.NoError(t, err)
			w := def.NewWorker()

			el := LineElement{X0: 0.25, X1: 1, U: []float64{0.3, -0.2, 0.7}}
			_, k, err := w.AssembleLine(line, rule, el)
			require.NoError(t, err)

			const h = 1e-6
			for j := range el.U {
				plus := LineElement{X0: el.X0, X1: el.X1, U: append([]float64(nil), el.U...)}
				minus := LineElement{X0: el.X0, X1: el.X1, U: append([]float64(nil), el.U...)}
				plus.U[j] += h
				minus.U[j] -= h
				rp, _, err := w.AssembleLine(line, rule, plus)
				require.NoError(t, err)
				rm, _, err := w.AssembleLine(line, rule, minus)
				require.NoError(t, err)
				for i := range el.U {
					fd := (rp.AtVec(i) - rm.AtVec(i)) / (2 * h)
					assert.InDelta(t, fd, k.At(i, j), 1e-6, "K[%d][%d]", i, j)
				}
			}
		})
	}
}

func TestTapeMatchesInterpreter(t *testing.T) {
	energy := "0.5*kappa*dot(grad(u), grad(u)) + 0.5*u*u - f*u"
	tapeFix := newFixture(t, 1)
	interpFix := newFixture(t, 1, func(c *Config) { c.DisableTape = true })
	line, err := element.NewLine(1)
	require.NoError(t, err)
	rule, err := quadrature.GaussLobatto(3)
	require.NoError(t, err)
	el := LineElement{X0: -1, X1: 1, U: []float64{0.5, 1.5}}

	wt := tapeFix.define(t, "k", energy).NewWorker()
	wi := interpFix.define(t, "k", energy).NewWorker()
	rt, kt, err := wt.AssembleLine(line, rule, el)
	require.NoError(t, err)
	ri, ki, err := wi.AssembleLine(line, rule, el)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(rt, ri, 1e-13))
	assert.True(t, mat.EqualApprox(kt, ki, 1e-13))
	assert.Positive(t, wt.Stats().Tape)
	assert.Zero(t, wt.Stats().Interpreted)
	assert.Zero(t, wi.Stats().Tape)
}

func TestAssembleLineErrors(t *testing.T) {
	f := newFixture(t, 1)
	def := f.define(t, "laplace", "0.5*dot(grad(u), grad(u))")
	line, err := element.NewLine(1)
	require.NoError(t, err)
	rule, err := quadrature.GaussLegendre(2)
	require.NoError(t, err)
	w := def.NewWorker()
	_, _, err = w.AssembleLine(line, rule, LineElement{X0: 0, X1: 1, U: []float64{1}})
	assert.Error(t, err)
	_, _, err = w.AssembleLine(line, rule, LineElement{X0: 1, X1: 1, U: []float64{1, 2}})
	assert.Error(t, err)
}

func TestWorkersRunConcurrently(t *testing.T) {
	f := newFixture(t, 2)
	def := f.define(t, "allen-cahn", "W(u) + 0.5*kappa*dot(grad(u), grad(u))")
	line, err := element.NewLine(2)
	require.NoError(t, err)
	rule, err := quadrature.GaussLegendre(4)
	require.NoError(t, err)

	elements := make([]LineElement, 16)
	for e := range elements {
		x := float64(e) / 16
		elements[e] = LineElement{X0: x, X1: x + 1./16, U: []float64{x, x + 0.1, x + 0.2}}
	}
	serial := make([]*mat.VecDense, len(elements))
	w := def.NewWorker()
	for e, el := range elements {
		serial[e], _, err = w.AssembleLine(line, rule, el)
		require.NoError(t, err)
	}

	parallel := make([]*mat.VecDense, len(elements))
	errs := make([]error, len(elements))
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			w := def.NewWorker()
			for e := g; e < len(elements); e += 4 {
				parallel[e], _, errs[e] = w.AssembleLine(line, rule, elements[e])
			}
		}(g)
	}
	wg.Wait()
	for e := range elements {
		require.NoError(t, errs[e])
		assert.True(t, mat.Equal(serial[e], parallel[e]), "element %d", e)
	}
}
