package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/parser"
	"github.com/notargets/DGWeakForm/tensor"
)

func parse(t *testing.T, dim int, text string) *expr.Node {
	p := parser.New(expr.NewArena(dim), parser.Config{
		Fields: map[string]tensor.Shape{
			"u": tensor.ScalarShape,
			"c": tensor.ScalarShape,
			"w": tensor.VectorShape(dim),
		},
		Parameters: []string{"kappa"},
	})
	n, err := p.Parse(text)
	require.NoError(t, err, text)
	return n
}

func TestMatchesInterpreter(t *testing.T) {
	n := parse(t, 3, "dot(grad(u), grad(u))")
	ctx := &eval.Context{Fields: map[string]eval.FieldData{
		"u": {Value: tensor.Real(0), Gradient: tensor.NewVector(1, -2, 3)},
	}}

	tp, ok := BuildScalar(n, nil)
	require.True(t, ok)
	require.NoError(t, tp.Validate())
	assert.Equal(t, 2, tp.Len(), "repeated loads share a slot")
	assert.Equal(t, []string{"u_grad"}, tp.Inputs())

	got, ok := tp.EvaluateScalar(InputsFrom(ctx, nil, nil))
	require.True(t, ok)
	want, err := eval.New().EvaluateScalar(n, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 14, got, 1e-14)
	assert.Equal(t, want, got)
}

func TestResidualTapes(t *testing.T) {
	params, err := eval.NewParameters(eval.Scalar("kappa").Bind(0.5))
	require.NoError(t, err)
	ctx := &eval.Context{
		Fields: map[string]eval.FieldData{
			"u": {Value: tensor.Real(2), Gradient: tensor.NewVector(1, 2)},
			"w": {Value: tensor.NewVector(1, -1), Gradient: tensor.NewTensor(2, []float64{1, 2, 3, 4})},
		},
		Test: map[string]eval.FunctionData{
			"u": {Value: tensor.Real(0.25), Gradient: tensor.NewVector(3, 4)},
			"w": {Value: tensor.NewVector(0, 1), Gradient: tensor.NewTensor(2, []float64{0, 1, 1, 0})},
		},
		Shape: map[string]eval.FunctionData{
			"u": {Value: tensor.Real(0.5), Gradient: tensor.NewVector(-1, 1)},
		},
		Position: tensor.NewVector(0.5, 0.25),
		Time:     2,
	}
	inputs := InputsFrom(ctx, params, nil)
	interp := eval.New(eval.WithParameters(params))
	for _, text := range []string{
		"-(dot(grad(u), grad(test(u))))",
		"kappa*dot(grad(u), grad(test(u))) + u*u*test(u)",
		"dot(grad(phi(u)), grad(test(u))) + 2*phi(u)*test(u)",
		"contract(grad(test(w)), outer(w, w))",
		"pow(u, 3)/kappa - t*x",
		"dot(w, test(w))",
	} {
		t.Run(text, func(t *testing.T) {
			n := parse(t, 2, text)
			tp, ok := BuildScalar(n, nil)
			require.True(t, ok)
			got, ok := tp.EvaluateScalar(inputs)
			require.True(t, ok)
			want, err := interp.EvaluateScalar(n, ctx)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12)
		})
	}
}

func TestBuildFailsSoftly(t *testing.T) {
	for _, text := range []string{
		"laplacian(u)",
		"sin(u)",
		"grad(u*u)",
		"cross(w, w)[0]",
		"trace(grad(w))",
		"vec(u, u)[0]",
	} {
		_, ok := BuildScalar(parse(t, 3, text), nil)
		assert.False(t, ok, text)
	}
	_, ok := BuildScalar(parse(t, 2, "grad(u)"), nil)
	assert.False(t, ok, "vector result")

	tp, ok := Build(parse(t, 2, "grad(u)"), nil)
	require.True(t, ok)
	assert.Equal(t, tensor.VectorShape(2), tp.Shape())

	_, ok = BuildScalar(parse(t, 2, "u*c"), []string{"u"})
	assert.False(t, ok, "c is outside the allow-list")
	_, ok = BuildScalar(parse(t, 2, "u*c"), []string{"u", "c"})
	assert.True(t, ok)
}

func TestEvaluateFailsSoftly(t *testing.T) {
	tp, ok := BuildScalar(parse(t, 2, "u*c"), nil)
	require.True(t, ok)
	_, ok = tp.Evaluate(map[string]tensor.Value{"u": tensor.Real(1)})
	assert.False(t, ok, "missing input")

	x, ok := tp.EvaluateScalar(map[string]tensor.Value{"u": tensor.Real(2), "c": tensor.Real(3)})
	require.True(t, ok)
	assert.Equal(t, 6.0, x)

	tp, ok = BuildScalar(parse(t, 2, "dot(w, w)"), nil)
	require.True(t, ok)
	_, ok = tp.Evaluate(map[string]tensor.Value{"w": tensor.Real(1)})
	assert.False(t, ok, "shape mismatch")
}

func TestValidate(t *testing.T) {
	bad := newTape([]Instruction{
		{Op: OpLoad, Input: "u"},
		{Op: OpAdd, A: 0, B: 2},
		{Op: OpConst, Const: tensor.Real(1)},
	}, tensor.ScalarShape)
	assert.Error(t, bad.Validate())
	assert.Error(t, newTape(nil, tensor.ScalarShape).Validate())
	assert.Error(t, newTape([]Instruction{{Op: OpConst}}, tensor.ScalarShape).Validate())
	assert.Error(t, newTape([]Instruction{{Op: OpLoad}}, tensor.ScalarShape).Validate())
}

func TestStringAndClone(t *testing.T) {
	tp, ok := BuildScalar(parse(t, 2, "-(2*u)"), nil)
	require.True(t, ok)
	s := tp.String()
	assert.Contains(t, s, "%0 = const 2")
	assert.Contains(t, s, "%1 = load u")
	assert.Contains(t, s, "%2 = mul %0 %1")
	assert.Contains(t, s, "%3 = neg %2")

	other := tp.Clone()
	a, ok := tp.EvaluateScalar(map[string]tensor.Value{"u": tensor.Real(1)})
	require.True(t, ok)
	b, ok := other.EvaluateScalar(map[string]tensor.Value{"u": tensor.Real(3)})
	require.True(t, ok)
	assert.Equal(t, -2.0, a)
	assert.Equal(t, -6.0, b)
}
