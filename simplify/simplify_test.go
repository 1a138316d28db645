package simplify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/parser"
	"github.com/notargets/DGWeakForm/tensor"
)

func parse(t *testing.T, a *expr.Arena, text string) *expr.Node {
	p := parser.New(a, parser.Config{Fields: map[string]tensor.Shape{
		"c": tensor.ScalarShape,
		"u": tensor.VectorShape(a.Dim()),
	}})
	n, err := p.Parse(text)
	require.NoError(t, err, text)
	return n
}

func TestRules(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"x + 0", "x"},
		{"0*x", "0"},
		{"1*x", "x"},
		{"x*1", "x"},
		{"x - x", "0"},
		{"2*x + 3*x", "5*x"},
		{"x - 3*x", "-2*x"},
		{"c + c", "2*c"},
		{"x*x", "pow(x,2)"},
		{"2*x*x", "2*pow(x,2)"},
		{"x*2", "2*x"},
		{"pow(pow(x,2),3)", "pow(x,6)"},
		{"pow(pow(x,2),-1)", "pow(x,-2)"},
		{"pow(pow(x,3),0.5)", "pow(x,1.5)"},
		{"pow(pow(x,2),0.5)", "pow(pow(x,2),0.5)"},
		{"0^2", "0"},
		{"0^x", "pow(0,x)"},
		{"x*y - y*x", "0"},
		{"x*y - y*x + x", "x"},
		{"x^0", "1"},
		{"x^1", "x"},
		{"1^x", "1"},
		{"--x", "x"},
		{"-(2*x)", "-2*x"},
		{"-1*x", "-(x)"},
		{"2*3", "6"},
		{"x/2", "0.5*x"},
		{"x/x", "1"},
		{"sin(0)", "0"},
		{"vec(1, 2)[1]", "2"},
		{"vec(x, y)[0]", "x"},
		{"2*x + 3 - x - 1", "(x + 2)"},
		{"a*x + b*x", "(a + b)*x"},
		{"dot(-(grad(c)), grad(c))", "-(dot(grad(c), grad(c)))"},
		{"dot(2*grad(c), grad(c))", "2*dot(grad(c), grad(c))"},
		{"grad(3*c)", "3*grad(c)"},
		{"trace(transpose(transpose(grad(u))))", "trace(grad(u))"},
	}
	for _, tt := range tests {
		a := expr.NewArena(2)
		s := New(a)
		got, err := s.Simplify(parse(t, a, tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestConstantFolding(t *testing.T) {
	a := expr.NewArena(2)
	s := New(a)

	got, err := s.Simplify(parse(t, a, "grad(3)"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.Equal(t, tensor.VectorShape(2), got.Shape())

	b := expr.NewBuilder(a)
	m := b.Constant(tensor.NewTensor(2, []float64{4, 1, 2, 3}))
	got, err = s.Simplify(b.Unary(expr.OpDet, m))
	require.NoError(t, err)
	x, ok := got.ScalarConstant()
	require.True(t, ok)
	assert.InDelta(t, 10., x, 1.e-12)

	got, err = s.Simplify(b.Contract(b.Identity(), b.Grad(a.Field("u", tensor.VectorShape(2), ""))))
	require.NoError(t, err)
	assert.Equal(t, "trace(grad(u))", got.String())

	// singular inverse stays symbolic
	sing := b.Unary(expr.OpInverse, b.Constant(tensor.NewTensor(2, []float64{1, 2, 2, 4})))
	got, err = s.Simplify(sing)
	require.NoError(t, err)
	assert.Equal(t, expr.KindUnary, got.Kind())
	require.NoError(t, b.Err())
}

func TestIdempotent(t *testing.T) {
	inputs := []string{
		"2*x + 3*x - x*x + pow(x,2)",
		"a*x + b*x + d*x",
		"kappa/2*dot(grad(c), grad(c)) + W(c)",
		"-(-(div(grad(c)))) + 0*c",
		"sym(grad(u))[0,1]*2 - 3",
		"(c - 1)*(c - 1)/c",
	}
	for _, in := range inputs {
		a := expr.NewArena(2)
		once, err := New(a).Simplify(parse(t, a, in))
		require.NoError(t, err, in)
		twice, err := New(a).Simplify(once)
		require.NoError(t, err, in)
		assert.True(t, once.Equal(twice), "%s: %s then %s", in, once, twice)
	}
}

func TestCache(t *testing.T) {
	a := expr.NewArena(2)
	s := New(a)
	n := parse(t, a, "x + x")
	first, err := s.Simplify(n)
	require.NoError(t, err)
	second, err := s.Simplify(n)
	require.NoError(t, err)
	assert.Same(t, first, second)
	again, err := s.Simplify(first)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.GreaterOrEqual(t, s.CacheSize(), 2)
}

func TestPreservesValues(t *testing.T) {
	tests := []string{
		"sqrt(u*u)",
		"pow(pow(u,2),0.5)",
		"pow(pow(u,2),1.5)*u",
		"pow(pow(u,3),-1)",
		"x*y - y*x + u",
		"2*u + 3*u - u*u + pow(u,2)",
		"a*u + b*u",
		"u*a*b - b*u*a + c",
		"(u - 1)*(u - 1)/u",
		"c*u + u*c",
		"u/u + u*0 - (1 - u)",
		"dot(2*grad(u), grad(u)) - dot(grad(u), grad(u))",
		"W(u) - W(u) + W(c)",
		"sym(grad(w))[0,1]*2 - 3",
		"trace(transpose(transpose(grad(w)))) + dot(-(w), w)",
		"exp(log(c))*pow(c,-1)",
	}
	points := []struct {
		u, c float64
	}{
		{-2, 0.5},
		{0.75, 3},
		{-0.3, 1.25},
	}
	for _, in := range tests {
		a := expr.NewArena(2)
		p := parser.New(a, parser.Config{Fields: map[string]tensor.Shape{
			"c": tensor.ScalarShape,
			"u": tensor.ScalarShape,
			"w": tensor.VectorShape(2),
		}})
		n, err := p.Parse(in)
		require.NoError(t, err, in)
		got, err := New(a, WithFunctions(p.Functions())).Simplify(n)
		require.NoError(t, err, in)

		params := &eval.Parameters{}
		params.Set("a", tensor.Real(1.5))
		params.Set("b", tensor.Real(-0.25))
		ev := eval.New(eval.WithFunctions(p.Functions()))
		for _, pt := range points {
			ctx := &eval.Context{
				Fields: map[string]eval.FieldData{
					"u": {Value: tensor.Real(pt.u), Gradient: tensor.NewVector(pt.u, 2)},
					"c": {Value: tensor.Real(pt.c), Gradient: tensor.NewVector(1, -1)},
					"w": {Value: tensor.NewVector(pt.u, pt.c), Gradient: tensor.NewTensor(2, []float64{pt.u, 1, 2, pt.c})},
				},
				Position:   tensor.NewVector(pt.c, pt.u),
				Parameters: params,
			}
			want, err := ev.EvaluateScalar(n, ctx)
			require.NoError(t, err, in)
			have, err := ev.EvaluateScalar(got, ctx)
			require.NoError(t, err, "%s => %s", in, got)
			assert.InDelta(t, want, have, 1.e-12*(1+math.Abs(want)), "%s => %s at u=%g", in, got, pt.u)
		}
	}
}
