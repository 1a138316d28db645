package split

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/parser"
	"github.com/notargets/DGWeakForm/tensor"
)

func parse(t *testing.T, a *expr.Arena, text string) *expr.Node {
	p := parser.New(a, parser.Config{Fields: map[string]tensor.Shape{
		"u": tensor.ScalarShape,
		"c": tensor.ScalarShape,
		"w": tensor.VectorShape(a.Dim()),
	}})
	n, err := p.Parse(text)
	require.NoError(t, err, text)
	return n
}

func TestRequiredOrders(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1)
	got := p.RequiredOrders(parse(t, a, "laplacian(laplacian(u)) + grad(c)[0]*u + div(grad(w))[1]"))
	want := map[string]int{"u": 4, "c": 1, "w": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("required orders (-want +got):\n%s", diff)
	}
}

func TestRecursiveSplit(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1)
	vars, err := p.GenerateSplitVariables(parse(t, a, "laplacian(laplacian(u))"), "u")
	require.NoError(t, err)
	require.Len(t, vars, 4)

	names := SortedNames(vars)
	assert.Equal(t, []string{"u_d1", "u_d2", "u_d3", "u_d4"}, names)
	prev := "u"
	for k, name := range names {
		v := vars[name]
		assert.Equal(t, k+1, v.Order)
		assert.Equal(t, "u", v.Original)
		assert.False(t, v.IsPrimary)
		assert.Equal(t, []string{prev}, v.DependsOn, name)
		assert.Equal(t, "("+v.Definition.String()+" - "+name+")", v.ConstraintResidual.String())
		prev = name
	}
	assert.Equal(t, "grad(u)", vars["u_d1"].Definition.String())
	assert.Equal(t, "div(u_d1)", vars["u_d2"].Definition.String())
	assert.Equal(t, "grad(u_d2)", vars["u_d3"].Definition.String())
	assert.Equal(t, "div(u_d3)", vars["u_d4"].Definition.String())
	assert.Equal(t, tensor.VectorShape(2), vars["u_d1"].Shape)
	assert.Equal(t, tensor.ScalarShape, vars["u_d2"].Shape)
	assert.Equal(t, "(grad(u) - u_d1)", vars["u_d1"].ConstraintResidual.String())
}

func TestDirectSplit(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1, WithStrategy(Direct, 0))
	vars, err := p.GenerateSplitVariables(parse(t, a, "laplacian(laplacian(u))"), "u")
	require.NoError(t, err)
	require.Len(t, vars, 4)
	for _, v := range vars {
		assert.Equal(t, []string{"u"}, v.DependsOn, v.Name)
	}
	assert.Equal(t, "laplacian(u)", vars["u_d2"].Definition.String())
	assert.Equal(t, "grad(laplacian(u))", vars["u_d3"].Definition.String())
	assert.Equal(t, "(laplacian(laplacian(u)) - u_d4)", vars["u_d4"].ConstraintResidual.String())
}

func TestMixedSplit(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1, WithStrategy(Mixed, 2))
	vars, err := p.GenerateSplitVariables(parse(t, a, "laplacian(laplacian(u))"), "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, vars["u_d1"].DependsOn)
	assert.Equal(t, []string{"u_d1"}, vars["u_d2"].DependsOn)
	assert.Equal(t, []string{"u"}, vars["u_d3"].DependsOn)
	assert.Equal(t, []string{"u"}, vars["u_d4"].DependsOn)
}

func TestNoSplitNeeded(t *testing.T) {
	a := expr.NewArena(2)
	n := parse(t, a, "0.5*dot(grad(u), grad(u))")
	vars, err := NewPlanner(a, 1).GenerateSplitVariables(n, "u")
	require.NoError(t, err)
	assert.Empty(t, vars)

	vars, err = NewPlanner(a, 2).GenerateSplitVariables(parse(t, a, "pow(laplacian(u), 2)"), "u")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestVectorSplit(t *testing.T) {
	a := expr.NewArena(3)
	vars, err := NewPlanner(a, 1).GenerateSplitVariables(parse(t, a, "dot(div(grad(w)), w)"), "w")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, tensor.TensorShape(3), vars["w_d1"].Shape)
	assert.Equal(t, tensor.VectorShape(3), vars["w_d2"].Shape)
}

func TestTransformExpression(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1)
	vars, err := p.GenerateSplitVariables(parse(t, a, "laplacian(laplacian(u))"), "u")
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{"laplacian(laplacian(u))", "u_d4"},
		{"0.5*pow(laplacian(u), 2)", "0.5*pow(u_d2,2)"},
		{"grad(laplacian(u))", "u_d3"},
		{"div(grad(u))*c", "u_d2*c"},
		{"grad(grad(u))", "grad(u_d1)"},
		{"dot(grad(u), grad(u))", "dot(grad(u), grad(u))"},
		{"u + c", "(u + c)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.TransformExpression(parse(t, a, tt.in), "u", vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestBandwidth(t *testing.T) {
	path := simple.NewUndirectedGraph()
	for i := 0; i < 5; i++ {
		path.AddNode(simple.Node(i))
	}
	// numbered badly on purpose: 0-3-1-4-2
	for _, e := range [][2]int64{{0, 3}, {3, 1}, {1, 4}, {4, 2}} {
		path.SetEdge(path.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}
	assert.Equal(t, 1, Bandwidth(path))
	assert.Len(t, CuthillMcKee(path), 5)

	star := simple.NewUndirectedGraph()
	star.AddNode(simple.Node(0))
	for i := int64(1); i < 5; i++ {
		star.SetEdge(star.NewEdge(simple.Node(0), simple.Node(i)))
	}
	assert.Equal(t, 3, Bandwidth(star))

	empty := simple.NewUndirectedGraph()
	assert.Equal(t, 0, Bandwidth(empty))
}

func TestComputeOptimalSplitting(t *testing.T) {
	a := expr.NewArena(2)
	p := NewPlanner(a, 1)
	best, all, err := p.ComputeOptimalSplitting(parse(t, a, "laplacian(laplacian(u))"), "u")
	require.NoError(t, err)
	require.Len(t, all, 5)

	assert.Equal(t, Recursive, best.Strategy)
	assert.Equal(t, 7, best.DOFs)
	assert.Equal(t, 1, best.Bandwidth)
	assert.InDelta(t, 16, best.Condition, 1e-12)
	assert.InDelta(t, 57.6, best.Cost, 1e-9)

	direct := all[1]
	assert.Equal(t, Direct, direct.Strategy)
	assert.Equal(t, 3, direct.Bandwidth)
	assert.InDelta(t, 340, direct.Condition, 1e-12)
	assert.InDelta(t, 104, direct.Cost, 1e-9)

	for _, plan := range all {
		assert.LessOrEqual(t, best.Cost, plan.Cost, plan.String())
	}
	assert.Equal(t, Mixed, all[4].Strategy)
	assert.Equal(t, 3, all[4].Threshold)
	assert.Equal(t, 1, all[4].Bandwidth)
}

func TestPlanDump(t *testing.T) {
	a := expr.NewArena(2)
	plan, err := NewPlanner(a, 1).PlanWith(parse(t, a, "laplacian(laplacian(u))"), "u", Recursive, 0)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, plan.Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "recursive split of u: 4 variables")
	assert.Contains(t, out, "u_d3 [vector(2)] order 3 = grad(u_d2)")
	assert.Contains(t, out, "constraint: (div(u_d3) - u_d4)")
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Recursive, Direct, Mixed} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("sideways")
	assert.Error(t, err)
}
