package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

func newParser(dim int) *Parser {
	return New(expr.NewArena(dim), Config{
		Fields: map[string]tensor.Shape{
			"c": tensor.ScalarShape,
			"u": tensor.VectorShape(dim),
		},
		Parameters: []string{"kappa"},
	})
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2*x", "2*x"},
		{"x^2", "pow(x,2)"},
		{"-2*x", "-2*x"},
		{"-x", "-(x)"},
		{"1.5e-3", "0.0015"},
		{"a - b - d", "((a - b) - d)"},
		{"2^3^2", "pow(2,pow(3,2))"},
		{"vec(c, kappa)", "vec(c, kappa)"},
		{"sqrt(c)", "pow(c,0.5)"},
		{"W(c)", "pow((pow(c,2) - 1),2)"},
		{"ln(c)", "log(c)"},
		{"tr(grad(u))", "trace(grad(u))"},
		{"hessian(c)", "grad(grad(c))"},
		{"u[1]", "u[1]"},
		{"grad(u)[0,2]", "grad(u)[0,2]"},
		{"f(c, x)", "f(c, x)"},
		{"kappa/2 * dot(grad(c), grad(c))", "kappa/2*dot(grad(c), grad(c))"},
	}
	for _, tt := range tests {
		p := newParser(3)
		n, err := p.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, n.String(), tt.in)
	}
}

func TestNameResolution(t *testing.T) {
	p := newParser(2)
	n, err := p.Parse("kappa*c + s")
	require.NoError(t, err)
	prod := n.Left()
	assert.Equal(t, expr.KindVariable, prod.Left().Kind())
	assert.Equal(t, expr.KindField, prod.Right().Kind())
	assert.Equal(t, expr.KindVariable, n.Right().Kind())

	n, err = p.Parse("u")
	require.NoError(t, err)
	assert.Equal(t, tensor.VectorShape(2), n.Shape())
}

func TestDefinitions(t *testing.T) {
	p := newParser(3)
	n, err := p.Parse("g = grad(c); e = dot(g, g)\n# comment line\nkappa/2*e")
	require.NoError(t, err)
	assert.Equal(t, "kappa/2*dot(grad(c), grad(c))", n.String())

	_, err = p.Parse("c*c; g = c")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))

	_, err = p.Parse("g = grad(c)")
	assert.True(t, errors.As(err, &pe), "a program of definitions only has no expression")
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"vec(c, x)",
		"-(div(grad(c)))",
		"2*c - 3*pow(c,2)",
		"dot(grad(c), grad(c))/(c*c)",
		"sym(grad(u))[0,1] + norm(u)",
		"-0.5*c",
		"dot(grad(test(c)), grad(c)) + test(c)*pow(c,3)",
		"grad(phi(u)[1])[0]*-(u)[1]",
	}
	for _, in := range inputs {
		a := expr.NewArena(2)
		p := New(a, Config{Fields: map[string]tensor.Shape{"c": tensor.ScalarShape, "u": tensor.VectorShape(2)}})
		first, err := p.Parse(in)
		require.NoError(t, err, in)
		second, err := p.Parse(first.String())
		require.NoError(t, err, first.String())
		assert.True(t, first.Equal(second), "%s reparsed as %s", first, second)
		assert.Equal(t, first.String(), second.String())
	}
	n, err := Parse(expr.NewArena(2), "vec(u, v)")
	require.NoError(t, err)
	assert.Equal(t, "vec(u, v)", n.String())
}

func TestParseErrors(t *testing.T) {
	var pe *ParseError
	var se *tensor.ShapeError
	p := newParser(3)

	for _, in := range []string{"2 +", "(c", "c @ 2", "dot(c)", "u[x]", "vec(c)", "c d", ""} {
		_, err := p.Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.As(err, &pe), "%q: %v", in, err)
	}

	_, err := p.Parse("grad(grad(grad(u)))")
	require.Error(t, err)
	assert.True(t, errors.As(err, &se))

	_, err = p.Parse("c + u")
	assert.True(t, errors.As(err, &se))

	_, err = p.Parse("sin(u)")
	assert.True(t, errors.As(err, &pe))
}

func TestRegisterFunction(t *testing.T) {
	p := newParser(2)
	require.NoError(t, p.RegisterFunction(expr.FunctionSpec{
		Name:  "cube",
		Arity: 1,
		Eval:  func(args []float64) float64 { return args[0] * args[0] * args[0] },
	}))
	n, err := p.Parse("cube(c)")
	require.NoError(t, err)
	assert.Equal(t, "cube(c)", n.String())

	_, err = p.Parse("cube(c, c)")
	assert.Error(t, err)

	_, ok := newParser(2).Functions().Lookup("cube")
	assert.False(t, ok)
}

func TestParseStrongForm(t *testing.T) {
	p := newParser(2)
	p.DeclareField("mu", tensor.ScalarShape)
	eqs, err := p.ParseStrongForm("c_t = laplacian(mu)\ndt(u) = grad(c); mu = 2*c")
	require.NoError(t, err)
	require.Len(t, eqs, 3)
	assert.Equal(t, "dt(c) = laplacian(mu)", eqs[0].String())
	assert.True(t, eqs[1].Transient)
	assert.Equal(t, "u", eqs[1].Variable)
	assert.False(t, eqs[2].Transient)
	assert.Equal(t, "mu = 2*c", eqs[2].String())

	_, err = p.ParseStrongForm("c_t laplacian(c)")
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}
