package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGWeakForm/tensor"
)

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const biharmonic = `
dimension: 2
fe_order: 1
primary: u
variables:
  - {name: u, shape: scalar}
energy: "0.5*pow(laplacian(u), 2)"
strong_form: "dt(u) = -laplacian(laplacian(u))"
`

func writeProblem(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestParse(t *testing.T) {
	out, err := run(t, "parse", "dot(grad(c), grad(c))")
	require.NoError(t, err)
	assert.Contains(t, out, "dot(grad(c), grad(c))")
	assert.Contains(t, out, "shape: scalar")
	assert.Contains(t, out, "orders: c=1")

	out, err = run(t, "parse", "--strong", "-f", writeProblem(t, biharmonic))
	require.NoError(t, err)
	assert.Contains(t, out, "dt(u) = ")

	_, err = run(t, "parse", "dot(grad(c)")
	assert.Error(t, err)
}

func TestDerive(t *testing.T) {
	out, err := run(t, "derive")
	require.NoError(t, err)
	assert.Contains(t, out, "weighted residual:")
	assert.Contains(t, out, "kernel c: c [scalar], order 1")
	assert.Contains(t, out, "requires splitting at order 1: false")

	out, err = run(t, "derive", "-f", writeProblem(t, biharmonic))
	require.NoError(t, err)
	assert.Contains(t, out, "requires splitting at order 1: true")
	assert.Contains(t, out, "needs splitting at order 1")
}

func TestSplit(t *testing.T) {
	path := writeProblem(t, biharmonic)
	out, err := run(t, "split", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "* recursive split of u")
	assert.Contains(t, out, "transformed:")

	out, err = run(t, "split", "-f", path, "--strategy", "direct")
	require.NoError(t, err)
	assert.Contains(t, out, "direct split of u")
	assert.NotContains(t, out, "* direct")

	_, err = run(t, "split", "-f", path, "--strategy", "sideways")
	assert.Error(t, err)
}

func TestEval(t *testing.T) {
	out, err := run(t, "eval", "dot(grad(c), grad(c)) + kappa", "--grad", "c=1,2", "--tape")
	require.NoError(t, err)
	assert.Contains(t, out, "= 5.01")
	assert.Contains(t, out, "load c_grad")
	assert.Contains(t, out, "tape = 5.01")

	out, err = run(t, "eval", "W(c)", "--field", "c=2")
	require.NoError(t, err)
	assert.Contains(t, out, "W(c) = 9")

	_, err = run(t, "eval", "c", "--field", "c=1,2,3")
	assert.Error(t, err)
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	out, err := run(t, "parse", "c*c", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c*c")
}

func TestParseAssignment(t *testing.T) {
	name, v, err := parseAssignment("u=1,2", 2, tensor.Scalar)
	require.NoError(t, err)
	assert.Equal(t, "u", name)
	assert.Equal(t, tensor.VectorShape(2), v.Shape())

	_, v, err = parseAssignment("u=3", 1, tensor.Vector)
	require.NoError(t, err)
	assert.Equal(t, tensor.VectorShape(1), v.Shape())

	_, v, err = parseAssignment("u=3", 1, tensor.Tensor2)
	require.NoError(t, err)
	assert.Equal(t, tensor.TensorShape(1), v.Shape())

	_, _, err = parseAssignment("=3", 2, tensor.Scalar)
	assert.Error(t, err)
	_, _, err = parseAssignment("u=x", 2, tensor.Scalar)
	assert.Error(t, err)
}
